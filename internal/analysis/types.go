// Package analysis implements the eight-stage text-analysis pipeline that
// turns raw chapter text into speaker- and emotion-tagged segments.
package analysis

import (
	"fmt"
	"strings"
)

// Kind classifies a segment as narration or spoken dialogue.
type Kind string

const (
	KindNarration Kind = "narration"
	KindDialogue  Kind = "dialogue"
)

// Speaker sentinels. Any other string value is a character name.
const (
	SpeakerNarrator = "narrator"
	SpeakerUnknown  = "unknown"
)

// AttributionSource records how a segment's speaker was determined.
type AttributionSource string

const (
	AttributionNone         AttributionSource = "none"
	AttributionExplicit     AttributionSource = "explicit"
	AttributionTurnTaking   AttributionSource = "turn_taking"
	AttributionPronounMale  AttributionSource = "pronoun_male"
	AttributionPronounFem   AttributionSource = "pronoun_female"
	AttributionAI           AttributionSource = "ai"
	AttributionDefault      AttributionSource = "default"
)

// Emotion is one of the eight allowed classifier outputs.
type Emotion string

const (
	EmotionNeutral       Emotion = "neutral"
	EmotionHappy         Emotion = "happy"
	EmotionSad           Emotion = "sad"
	EmotionAngry         Emotion = "angry"
	EmotionFearful       Emotion = "fearful"
	EmotionExcited       Emotion = "excited"
	EmotionTense         Emotion = "tense"
	EmotionContemplative Emotion = "contemplative"
)

// AllowedEmotions is the closed set of valid Emotion values.
var AllowedEmotions = map[Emotion]bool{
	EmotionNeutral:       true,
	EmotionHappy:         true,
	EmotionSad:           true,
	EmotionAngry:         true,
	EmotionFearful:       true,
	EmotionExcited:       true,
	EmotionTense:         true,
	EmotionContemplative: true,
}

// Segment is the core mutable unit threaded through every pipeline stage.
// Stage 1 creates the full ordered list; every later stage may mutate a
// segment's fields but must never add, remove, reorder or re-split it.
type Segment struct {
	ID                int               `json:"id"`
	Kind              Kind              `json:"kind"`
	OriginalText      string            `json:"original_text"`
	Speaker           string            `json:"speaker"`
	AttributionSource AttributionSource `json:"attribution_source"`
	Emotion           Emotion           `json:"emotion"`
	Intensity         float64           `json:"intensity"`
	PauseBeforeMs     int               `json:"pause_before_ms"`
	ParagraphIndex    int               `json:"paragraph_index"`
	CharOffsetStart   int               `json:"char_offset_start"`
	CharOffsetEnd     int               `json:"char_offset_end"`
}

// Character is a roster entry produced by Stage 4.
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NodeMetric records one stage's observed duration.
type NodeMetric struct {
	NodeName string        `json:"name"`
	NodeType string        `json:"type"`
	Duration int64         `json:"duration_ms"`
}

const (
	NodeTypeLocal = "local"
	NodeTypeLLM   = "llm"
)

// Report summarizes all recorded NodeMetrics for one pipeline invocation.
type Report struct {
	TotalDurationMs int64        `json:"total_duration_ms"`
	LocalDurationMs int64        `json:"local_duration_ms"`
	LLMDurationMs   int64        `json:"llm_duration_ms"`
	Nodes           []NodeMetric `json:"nodes"`
}

// PipelineResult is the pipeline's external output shape.
type PipelineResult struct {
	Title      string          `json:"title"`
	Characters []Character     `json:"characters"`
	Segments   []OutputSegment `json:"segments"`
	Report     Report          `json:"report"`
}

// OutputSegment is the wire-facing projection of Segment: only the fields
// the output contract (spec §6) names are exposed downstream.
type OutputSegment struct {
	ID            int     `json:"id"`
	Speaker       string  `json:"speaker"`
	OriginalText  string  `json:"original_text"`
	Emotion       Emotion `json:"emotion"`
	Intensity     float64 `json:"intensity"`
	PauseBeforeMs int     `json:"pause_before_ms"`
}

// ValidateInvariants checks the §3 invariants that must hold after the
// pipeline completes. It is used by tests and may be called defensively
// by callers that assemble segments by hand.
func ValidateInvariants(segments []*Segment) error {
	for i, s := range segments {
		if s.ID != i+1 {
			return fmt.Errorf("segment %d: id %d is not sequential", i, s.ID)
		}
		if s.Kind == KindNarration && s.Speaker != SpeakerNarrator {
			return fmt.Errorf("segment %d: narration segment has speaker %q", s.ID, s.Speaker)
		}
		if len(strings.TrimSpace(s.OriginalText)) == 0 {
			return fmt.Errorf("segment %d: empty original_text", s.ID)
		}
		if !AllowedEmotions[s.Emotion] {
			return fmt.Errorf("segment %d: emotion %q not allowed", s.ID, s.Emotion)
		}
		if s.Intensity < 0 || s.Intensity > 1 {
			return fmt.Errorf("segment %d: intensity %f out of range", s.ID, s.Intensity)
		}
		if s.CharOffsetStart >= s.CharOffsetEnd {
			return fmt.Errorf("segment %d: offsets [%d,%d) invalid", s.ID, s.CharOffsetStart, s.CharOffsetEnd)
		}
	}
	return nil
}
