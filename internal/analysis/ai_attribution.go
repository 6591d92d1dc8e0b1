package analysis

import (
	"context"
	"encoding/json"
	"log"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	aiAttributionBatchSize    = 20
	aiAttributionContextWindow = 3
)

// aiCandidateStopWords are capitalized words common enough mid-sentence
// that they are never character names; ported from the source pipeline's
// candidate-name inference. Extending this list is a tuning concern, not
// a correctness one.
var aiCandidateStopWords = map[string]bool{
	"The": true, "There": true, "Their": true, "They": true, "These": true,
	"This": true, "That": true, "Those": true, "Then": true, "Than": true,
	"When": true, "Where": true, "What": true, "Which": true, "While": true,
	"Who": true, "How": true, "Here": true, "His": true, "Her": true,
	"Its": true, "Our": true, "But": true, "And": true, "For": true,
	"Not": true, "All": true, "Can": true, "Has": true, "Had": true,
	"Was": true, "Were": true, "Are": true, "Did": true, "Does": true,
	"May": true, "Most": true, "Much": true, "Many": true, "Some": true,
	"Just": true, "Also": true, "From": true, "Into": true, "With": true,
	"After": true, "Before": true, "About": true, "Still": true, "Even": true,
	"Only": true, "Very": true, "Each": true, "Every": true, "Both": true,
	"Such": true, "Instead": true, "Mostly": true,
}

// midSentenceCapitalWord matches a capitalized word that is NOT at a
// sentence start: a preceding character (a lowercase letter, sentence
// punctuation, or a right single quote), then whitespace (group 1), then
// the candidate word (group 2). Go's RE2 engine has no lookbehind, so the
// preceding character is part of the match; callers resume scanning at
// the candidate word so that its last letter can precede the next one.
var midSentenceCapitalWord = regexp.MustCompile(`[a-z.,;!?’](\s)([A-Z][a-z]{2,})`)

// AIAttributor resolves remaining unknown dialogue speakers via an LLM
// call (Stage 7).
type AIAttributor struct {
	llm           LLM
	systemPrompt  string
	userTemplate  string
	batchSize     int
	contextWindow int
	concurrency   int
}

// NewAIAttributor builds a Stage 7 resolver around the given LLM and
// prompt templates (see data/prompts/ai_attribution_{system,user}.txt).
func NewAIAttributor(llm LLM, systemPrompt, userTemplate string) *AIAttributor {
	return &AIAttributor{
		llm:           llm,
		systemPrompt:  systemPrompt,
		userTemplate:  userTemplate,
		batchSize:     aiAttributionBatchSize,
		contextWindow: aiAttributionContextWindow,
		concurrency:   4,
	}
}

type attributionQuery struct {
	SegmentID    int                `json:"segment_id"`
	DialogueText string             `json:"dialogue_text"`
	Context      []contextSegment   `json:"context"`
}

type contextSegment struct {
	ID      int    `json:"id"`
	Kind    Kind   `json:"kind"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Resolve calls the LLM for any dialogue segment still marked
// speaker=unknown, then falls back to the last known speaker for any that
// remain unresolved. Batch failures, including calls cut short by a
// cancelled context, are logged and fail open, so Resolve returns nil.
func (a *AIAttributor) Resolve(ctx context.Context, segments []*Segment, characters []Character) error {
	var unknownIdx []int
	for i, seg := range segments {
		if seg.Kind == KindDialogue && seg.Speaker == SpeakerUnknown {
			unknownIdx = append(unknownIdx, i)
		}
	}
	if len(unknownIdx) == 0 {
		return nil
	}

	names := nonNarratorNames(characters)
	if len(names) == 0 {
		names = extractCandidateNames(segments)
	}

	batches := Chunks(unknownIdx, a.batchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			a.resolveBatch(gctx, segments, batch, names)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fallbackLastSpeaker(segments)
	return nil
}

func (a *AIAttributor) resolveBatch(ctx context.Context, segments []*Segment, batch []int, names []string) {
	queries := make([]attributionQuery, 0, len(batch))
	for _, idx := range batch {
		queries = append(queries, attributionQuery{
			SegmentID:    segments[idx].ID,
			DialogueText: segments[idx].OriginalText,
			Context:      contextWindow(segments, idx, a.contextWindow),
		})
	}

	prompt := a.buildPrompt(names, queries)
	resp, err := a.llm.Generate(ctx, a.systemPrompt, prompt)
	if err != nil {
		log.Printf("ai attribution: llm call failed: %v", err)
		return
	}

	attrMap := parseAttributions(resp)
	for _, idx := range batch {
		seg := segments[idx]
		if speaker, ok := attrMap[seg.ID]; ok && speaker != "" {
			seg.Speaker = speaker
			seg.AttributionSource = AttributionAI
		}
	}
}

func (a *AIAttributor) buildPrompt(names []string, queries []attributionQuery) string {
	namesJSON, _ := json.Marshal(names)
	queriesJSON, _ := json.MarshalIndent(queries, "", "  ")
	out := a.userTemplate
	out = strings.ReplaceAll(out, "{{CHARACTER_NAMES}}", string(namesJSON))
	out = strings.ReplaceAll(out, "{{QUERIES}}", string(queriesJSON))
	return out
}

func parseAttributions(resp map[string]any) map[int]string {
	out := make(map[int]string)
	raw, ok := resp["attributions"].([]any)
	if !ok {
		return out
	}
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, ok := asInt(m["segment_id"])
		if !ok {
			continue
		}
		speaker, _ := m["speaker"].(string)
		if speaker != "" {
			out[id] = speaker
		}
	}
	return out
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func contextWindow(segments []*Segment, idx, window int) []contextSegment {
	start := idx - window
	if start < 0 {
		start = 0
	}
	end := idx + window + 1
	if end > len(segments) {
		end = len(segments)
	}
	out := make([]contextSegment, 0, end-start)
	for _, s := range segments[start:end] {
		text := s.OriginalText
		if len(text) > 200 {
			text = text[:200]
		}
		out = append(out, contextSegment{ID: s.ID, Kind: s.Kind, Speaker: s.Speaker, Text: text})
	}
	return out
}

func nonNarratorNames(characters []Character) []string {
	var names []string
	for _, c := range characters {
		if c.Name != SpeakerNarrator {
			names = append(names, c.Name)
		}
	}
	return names
}

// extractCandidateNames infers likely character names from narration when
// no characters were found by explicit attribution: capitalized words not
// at a sentence start, outside the stop list, appearing at least twice.
func extractCandidateNames(segments []*Segment) []string {
	counts := make(map[string]int)
	var order []string
	for _, seg := range segments {
		if seg.Kind != KindNarration {
			continue
		}
		text := seg.OriginalText
		for pos := 0; pos < len(text); {
			m := midSentenceCapitalWord.FindStringSubmatchIndex(text[pos:])
			if m == nil {
				break
			}
			word := text[pos+m[4] : pos+m[5]]
			pos += m[4]
			if aiCandidateStopWords[word] {
				continue
			}
			if counts[word] == 0 {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	var candidates []string
	for _, w := range order {
		if counts[w] >= 2 {
			candidates = append(candidates, w)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return counts[candidates[i]] > counts[candidates[j]]
	})
	if len(candidates) > 10 {
		candidates = candidates[:10]
	}
	return candidates
}

// fallbackLastSpeaker assigns any still-unknown dialogue segment to the
// most recently seen non-narrator, non-unknown speaker.
func fallbackLastSpeaker(segments []*Segment) {
	var lastSpeaker string
	for _, seg := range segments {
		if seg.Kind != KindDialogue {
			continue
		}
		if seg.Speaker != SpeakerUnknown && seg.Speaker != SpeakerNarrator {
			lastSpeaker = seg.Speaker
		} else if seg.Speaker == SpeakerUnknown && lastSpeaker != "" {
			seg.Speaker = lastSpeaker
			seg.AttributionSource = AttributionDefault
		}
	}
}
