package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/unalkalkan/chapter-analyzer/internal/analysis"
)

// defaultTitle is used when the caller does not supply one.
const defaultTitle = "Untitled Chapter"

// Orchestrator runs the eight analysis stages in sequence against a single
// chapter's text and assembles the final pipeline result and report.
type Orchestrator struct {
	speechVerbs       []string
	aiAttributor      *analysis.AIAttributor
	emotionClassifier *analysis.EmotionClassifier
}

// NewOrchestrator builds an orchestrator around the given speech-verb list
// and LLM-backed Stage 7/8 collaborators.
func NewOrchestrator(speechVerbs []string, llm analysis.LLM, aiAttributionSystem, aiAttributionUser, emotionSystem, emotionUser string) *Orchestrator {
	return &Orchestrator{
		speechVerbs:       speechVerbs,
		aiAttributor:      analysis.NewAIAttributor(llm, aiAttributionSystem, aiAttributionUser),
		emotionClassifier: analysis.NewEmotionClassifier(llm, emotionSystem, emotionUser),
	}
}

// Analyze runs Stages 1 through 8 against text and returns the assembled
// PipelineResult. Each invocation is fully independent; there is no shared
// mutable state between concurrent calls.
func (o *Orchestrator) Analyze(ctx context.Context, text, title string) (*analysis.PipelineResult, error) {
	if title == "" {
		title = defaultTitle
	}

	run := analysis.NewRun()

	segments := analysis.Record(run, "segment_splitter", analysis.NodeTypeLocal, func() []*analysis.Segment {
		return analysis.Split(text)
	})

	attributor := analysis.NewAttributor(o.speechVerbs)
	analysis.Record(run, "explicit_attribution", analysis.NodeTypeLocal, func() struct{} {
		attributor.Attribute(segments)
		return struct{}{}
	})

	analysis.Record(run, "turn_taking", analysis.NodeTypeLocal, func() struct{} {
		analysis.ApplyTurnTaking(segments)
		return struct{}{}
	})

	characters := analysis.Record(run, "character_registry", analysis.NodeTypeLocal, func() []analysis.Character {
		return analysis.BuildCharacterRegistry(segments)
	})

	analysis.Record(run, "pause_timing", analysis.NodeTypeLocal, func() struct{} {
		analysis.AssignPauses(segments)
		return struct{}{}
	})

	validation := analysis.Record(run, "validation", analysis.NodeTypeLocal, func() analysis.ValidationReport {
		return analysis.Validate(segments, text)
	})
	if !validation.Passed {
		log.Printf("pipeline: validation reported %d issue(s) for %q: %v", len(validation.Issues), title, validation.Issues)
	}

	if _, err := analysis.RecordErr(run, "ai_attribution", analysis.NodeTypeLLM, func() (struct{}, error) {
		return struct{}{}, o.aiAttributor.Resolve(ctx, segments, characters)
	}); err != nil {
		return nil, fmt.Errorf("ai attribution: %w", err)
	}

	if _, err := analysis.RecordErr(run, "emotion_classifier", analysis.NodeTypeLLM, func() (struct{}, error) {
		return struct{}{}, o.emotionClassifier.Classify(ctx, segments)
	}); err != nil {
		return nil, fmt.Errorf("emotion classification: %w", err)
	}

	output := make([]analysis.OutputSegment, 0, len(segments))
	for _, seg := range segments {
		speaker := seg.Speaker
		if seg.Kind == analysis.KindNarration {
			speaker = analysis.SpeakerNarrator
		}
		output = append(output, analysis.OutputSegment{
			ID:            seg.ID,
			Speaker:       speaker,
			OriginalText:  seg.OriginalText,
			Emotion:       seg.Emotion,
			Intensity:     roundTo2(seg.Intensity),
			PauseBeforeMs: seg.PauseBeforeMs,
		})
	}

	return &analysis.PipelineResult{
		Title:      title,
		Characters: characters,
		Segments:   output,
		Report:     run.Report(),
	}, nil
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
