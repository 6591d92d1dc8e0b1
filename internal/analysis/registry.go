package analysis

import (
	"fmt"
	"strings"
)

// BuildCharacterRegistry produces the characters roster from the fully
// attributed segment list (Stage 4): narrator first, then each named
// speaker with a dialogue-segment count and an inferred gender, if a
// majority of adjacent-narration pronoun votes agree.
func BuildCharacterRegistry(segments []*Segment) []Character {
	type tally struct {
		count int
		male   int
		female int
	}
	order := []string{}
	counts := make(map[string]*tally)

	for i, seg := range segments {
		if seg.Kind != KindDialogue || seg.Speaker == SpeakerUnknown || seg.Speaker == SpeakerNarrator {
			continue
		}
		t, ok := counts[seg.Speaker]
		if !ok {
			t = &tally{}
			counts[seg.Speaker] = t
			order = append(order, seg.Speaker)
		}
		t.count++

		context := adjacentNarrationContext(segments, i)
		if malePronoun.MatchString(context) {
			t.male++
		}
		if femalePronoun.MatchString(context) {
			t.female++
		}
	}

	characters := []Character{{Name: SpeakerNarrator, Description: "the narrative voice"}}
	for _, name := range order {
		t := counts[name]
		var parts []string
		if t.male > t.female {
			parts = append(parts, "male")
		} else if t.female > t.male {
			parts = append(parts, "female")
		}
		parts = append(parts, fmt.Sprintf("%d dialogue segment(s)", t.count))
		characters = append(characters, Character{
			Name:        name,
			Description: strings.Join(parts, ", "),
		})
	}
	return characters
}
