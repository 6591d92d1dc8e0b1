package analysis

import (
	"context"
	"testing"
)

func TestEmotionClassifier_AssignsFromLLMResponse(t *testing.T) {
	segments := []*Segment{
		{ID: 1, Kind: KindDialogue, OriginalText: "I can't believe you did that!", Emotion: EmotionNeutral, Intensity: 0.5},
	}
	stub := &StubLLM{
		Response: map[string]any{
			"emotions": []any{
				map[string]any{"id": float64(1), "emotion": "angry", "intensity": 0.9},
			},
		},
	}

	if err := NewEmotionClassifier(stub, "s", "{{ALLOWED_EMOTIONS}} {{SEGMENTS}}").Classify(context.Background(), segments); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if segments[0].Emotion != EmotionAngry {
		t.Errorf("expected angry, got %s", segments[0].Emotion)
	}
	if segments[0].Intensity != 0.9 {
		t.Errorf("expected intensity 0.9, got %f", segments[0].Intensity)
	}
}

func TestEmotionClassifier_IntensityClamped(t *testing.T) {
	segments := []*Segment{
		{ID: 1, Kind: KindDialogue, OriginalText: "Fine."},
	}
	stub := &StubLLM{
		Response: map[string]any{
			"emotions": []any{
				map[string]any{"id": float64(1), "emotion": "happy", "intensity": 5.0},
			},
		},
	}

	NewEmotionClassifier(stub, "s", "u").Classify(context.Background(), segments)

	if segments[0].Intensity != 1 {
		t.Errorf("expected intensity clamped to 1, got %f", segments[0].Intensity)
	}
}

func TestEmotionClassifier_RejectsDisallowedEmotion(t *testing.T) {
	segments := []*Segment{
		{ID: 1, Kind: KindDialogue, OriginalText: "Hmm.", Emotion: EmotionNeutral},
	}
	stub := &StubLLM{
		Response: map[string]any{
			"emotions": []any{
				map[string]any{"id": float64(1), "emotion": "confused", "intensity": 0.5},
			},
		},
	}

	NewEmotionClassifier(stub, "s", "u").Classify(context.Background(), segments)

	if segments[0].Emotion != EmotionNeutral {
		t.Errorf("expected default to remain neutral for disallowed emotion, got %s", segments[0].Emotion)
	}
}

func TestEmotionClassifier_SkipsNarrationSegments(t *testing.T) {
	segments := []*Segment{
		{ID: 1, Kind: KindNarration, Speaker: SpeakerNarrator, Emotion: EmotionNeutral},
	}
	stub := &StubLLM{}

	if err := NewEmotionClassifier(stub, "s", "u").Classify(context.Background(), segments); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.Calls != 0 {
		t.Errorf("expected no llm calls for narration-only input, got %d", stub.Calls)
	}
}
