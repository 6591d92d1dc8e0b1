package analysis

import "testing"

func TestAssignPauses_FirstSegmentHasNoPause(t *testing.T) {
	segments := []*Segment{
		{Kind: KindNarration, ParagraphIndex: 0},
	}
	AssignPauses(segments)
	if segments[0].PauseBeforeMs != PauseFirst {
		t.Errorf("expected %d, got %d", PauseFirst, segments[0].PauseBeforeMs)
	}
}

func TestAssignPauses_DialogueAfterNarrationSameParagraph(t *testing.T) {
	segments := []*Segment{
		{Kind: KindNarration, ParagraphIndex: 0},
		{Kind: KindDialogue, ParagraphIndex: 0},
	}
	AssignPauses(segments)
	if segments[1].PauseBeforeMs != PauseDialogueAfterNarration {
		t.Errorf("expected %d, got %d", PauseDialogueAfterNarration, segments[1].PauseBeforeMs)
	}
}

func TestAssignPauses_NarrationAfterDialogueSameParagraph(t *testing.T) {
	segments := []*Segment{
		{Kind: KindDialogue, ParagraphIndex: 0},
		{Kind: KindNarration, ParagraphIndex: 0},
	}
	AssignPauses(segments)
	if segments[1].PauseBeforeMs != PauseNarrationAfterDialogue {
		t.Errorf("expected %d, got %d", PauseNarrationAfterDialogue, segments[1].PauseBeforeMs)
	}
}

func TestAssignPauses_DialogueTurnSameParagraph(t *testing.T) {
	segments := []*Segment{
		{Kind: KindDialogue, ParagraphIndex: 0},
		{Kind: KindDialogue, ParagraphIndex: 0},
	}
	AssignPauses(segments)
	if segments[1].PauseBeforeMs != PauseDialogueTurn {
		t.Errorf("expected %d, got %d", PauseDialogueTurn, segments[1].PauseBeforeMs)
	}
}

func TestAssignPauses_ParagraphBreak(t *testing.T) {
	segments := []*Segment{
		{Kind: KindNarration, ParagraphIndex: 0},
		{Kind: KindNarration, ParagraphIndex: 1},
	}
	AssignPauses(segments)
	if segments[1].PauseBeforeMs != PauseParagraphBreak {
		t.Errorf("expected %d, got %d", PauseParagraphBreak, segments[1].PauseBeforeMs)
	}
}

func TestAssignPauses_SceneBreakAcrossNonNarrationGap(t *testing.T) {
	segments := []*Segment{
		{Kind: KindDialogue, ParagraphIndex: 0},
		{Kind: KindNarration, ParagraphIndex: 3},
	}
	AssignPauses(segments)
	if segments[1].PauseBeforeMs != PauseSceneBreak {
		t.Errorf("expected %d, got %d", PauseSceneBreak, segments[1].PauseBeforeMs)
	}
}

func TestAssignPauses_ConsecutiveNarrationAcrossGapIsNotSceneBreak(t *testing.T) {
	segments := []*Segment{
		{Kind: KindNarration, ParagraphIndex: 0},
		{Kind: KindNarration, ParagraphIndex: 4},
	}
	AssignPauses(segments)
	if segments[1].PauseBeforeMs != PauseParagraphBreak {
		t.Errorf("expected paragraph break %d, got %d", PauseParagraphBreak, segments[1].PauseBeforeMs)
	}
}
