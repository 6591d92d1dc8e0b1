package segmentation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/unalkalkan/chapter-analyzer/internal/analysis"
	"github.com/unalkalkan/chapter-analyzer/internal/pipeline"
	"github.com/unalkalkan/chapter-analyzer/pkg/types"
)

// Service drives the eight-stage analysis pipeline over a book's chapters
// and converts its output into the storage-layer Segment shape the rest of
// the book pipeline (voice mapping, TTS, packaging, streaming) already
// understands.
type Service struct {
	orchestrator     *pipeline.Orchestrator
	segmenterVersion string
}

// NewService wraps an analysis orchestrator for chapter-level segmentation.
func NewService(orchestrator *pipeline.Orchestrator) *Service {
	return &Service{
		orchestrator:     orchestrator,
		segmenterVersion: "analysis-v1",
	}
}

// SegmentChapters runs the analysis pipeline over each chapter in turn and
// returns the combined segment list, the character registry merged across
// chapters (deduplicated by name, first description wins), and a report
// summing each chapter's per-stage timings.
func (s *Service) SegmentChapters(ctx context.Context, bookID string, chapters []*types.Chapter) ([]*types.Segment, []analysis.Character, analysis.Report, error) {
	var segments []*types.Segment
	var characters []analysis.Character
	seenCharacter := make(map[string]bool)
	report := analysis.Report{}
	counter := 0

	for _, chapter := range chapters {
		text := strings.Join(chapter.Paragraphs, "\n\n")
		result, err := s.orchestrator.Analyze(ctx, text, chapter.Title)
		if err != nil {
			return nil, nil, analysis.Report{}, fmt.Errorf("analyzing chapter %s: %w", chapter.ID, err)
		}

		for _, c := range result.Characters {
			if seenCharacter[c.Name] {
				continue
			}
			seenCharacter[c.Name] = true
			characters = append(characters, c)
		}

		for i := range result.Segments {
			counter++
			segments = append(segments, s.toStorageSegment(bookID, chapter, &result.Segments[i], counter))
		}

		report.TotalDurationMs += result.Report.TotalDurationMs
		report.LocalDurationMs += result.Report.LocalDurationMs
		report.LLMDurationMs += result.Report.LLMDurationMs
		report.Nodes = append(report.Nodes, result.Report.Nodes...)
	}

	return segments, characters, report, nil
}

func (s *Service) toStorageSegment(bookID string, chapter *types.Chapter, out *analysis.OutputSegment, counter int) *types.Segment {
	return &types.Segment{
		ID:               fmt.Sprintf("seg_%05d", counter),
		BookID:           bookID,
		Chapter:          chapter.ID,
		TOCPath:          chapter.TOCPath,
		Text:             out.OriginalText,
		Language:         "en",
		Person:           out.Speaker,
		VoiceDescription: string(out.Emotion),
		Emotion:          string(out.Emotion),
		Intensity:        out.Intensity,
		PauseBeforeMs:    int64(out.PauseBeforeMs),
		Processing: &types.ProcessingInfo{
			SegmenterVersion: s.segmenterVersion,
			GeneratedAt:      time.Now(),
		},
	}
}

// DiscoverPersonas extracts the unique list of speakers from segments, in
// first-seen order.
func DiscoverPersonas(segments []*types.Segment) []string {
	seen := make(map[string]bool)
	personas := make([]string, 0)
	for _, segment := range segments {
		if segment.Person != "" && !seen[segment.Person] {
			seen[segment.Person] = true
			personas = append(personas, segment.Person)
		}
	}
	return personas
}
