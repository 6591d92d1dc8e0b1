package analysis

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

const emotionBatchSize = 30

// allowedEmotionNames is AllowedEmotions projected to a sorted string
// slice, for embedding in the LLM prompt.
var allowedEmotionNames = func() []string {
	names := make([]string, 0, len(AllowedEmotions))
	for e := range AllowedEmotions {
		names = append(names, string(e))
	}
	sort.Strings(names)
	return names
}()

// EmotionClassifier assigns emotion and intensity to dialogue segments via
// an LLM call (Stage 8). Narration keeps its (neutral, 0.5) default.
type EmotionClassifier struct {
	llm          LLM
	systemPrompt string
	userTemplate string
	batchSize    int
	concurrency  int
}

// NewEmotionClassifier builds a Stage 8 classifier around the given LLM
// and prompt templates (see data/prompts/emotion_{system,user}.txt).
func NewEmotionClassifier(llm LLM, systemPrompt, userTemplate string) *EmotionClassifier {
	return &EmotionClassifier{
		llm:          llm,
		systemPrompt: systemPrompt,
		userTemplate: userTemplate,
		batchSize:    emotionBatchSize,
		concurrency:  4,
	}
}

type emotionItem struct {
	ID      int    `json:"id"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Classify batches all dialogue segments and asks the LLM to assign an
// emotion/intensity pair to each. Batch failures are logged and leave
// affected segments at their defaults.
func (c *EmotionClassifier) Classify(ctx context.Context, segments []*Segment) error {
	var dialogueIdx []int
	for i, seg := range segments {
		if seg.Kind == KindDialogue {
			dialogueIdx = append(dialogueIdx, i)
		}
	}
	if len(dialogueIdx) == 0 {
		return nil
	}

	batches := Chunks(dialogueIdx, c.batchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			c.classifyBatch(gctx, segments, batch)
			return nil
		})
	}
	return g.Wait()
}

func (c *EmotionClassifier) classifyBatch(ctx context.Context, segments []*Segment, batch []int) {
	items := make([]emotionItem, 0, len(batch))
	for _, idx := range batch {
		text := segments[idx].OriginalText
		if len(text) > 300 {
			text = text[:300]
		}
		items = append(items, emotionItem{ID: segments[idx].ID, Speaker: segments[idx].Speaker, Text: text})
	}

	prompt := c.buildPrompt(items)
	resp, err := c.llm.Generate(ctx, c.systemPrompt, prompt)
	if err != nil {
		log.Printf("emotion classifier: llm call failed: %v", err)
		return
	}

	emotionMap := parseEmotions(resp)
	for _, idx := range batch {
		seg := segments[idx]
		if result, ok := emotionMap[seg.ID]; ok {
			seg.Emotion = result.emotion
			seg.Intensity = clampIntensity(result.intensity)
		}
	}
}

func (c *EmotionClassifier) buildPrompt(items []emotionItem) string {
	allowedJSON, _ := json.Marshal(allowedEmotionNames)
	itemsJSON, _ := json.MarshalIndent(items, "", "  ")
	out := c.userTemplate
	out = strings.ReplaceAll(out, "{{ALLOWED_EMOTIONS}}", string(allowedJSON))
	out = strings.ReplaceAll(out, "{{SEGMENTS}}", string(itemsJSON))
	return out
}

type emotionResult struct {
	emotion   Emotion
	intensity float64
}

func parseEmotions(resp map[string]any) map[int]emotionResult {
	out := make(map[int]emotionResult)
	raw, ok := resp["emotions"].([]any)
	if !ok {
		return out
	}
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, ok := asInt(m["id"])
		if !ok {
			continue
		}
		emotionStr, _ := m["emotion"].(string)
		emotion := Emotion(emotionStr)
		if !AllowedEmotions[emotion] {
			continue
		}
		intensity, _ := m["intensity"].(float64)
		out[id] = emotionResult{emotion: emotion, intensity: intensity}
	}
	return out
}

func clampIntensity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
