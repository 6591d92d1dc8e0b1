package analysis

import (
	"regexp"
)

var malePronoun = regexp.MustCompile(`(?i)\b(he|him|his)\b`)
var femalePronoun = regexp.MustCompile(`(?i)\b(she|her|hers)\b`)

// ApplyTurnTaking resolves remaining unknown speakers in two passes:
// pronoun resolution against known speakers' inferred gender, then
// alternation within a conversational block (Stage 3).
func ApplyTurnTaking(segments []*Segment) {
	resolvePronouns(segments)
	alternateSpeakers(segments)
}

// resolvePronouns builds a gender map from explicitly-attributed speakers
// (inferred from adjacent narration pronouns) and assigns any
// pronoun_male/pronoun_female segment to the single known speaker sharing
// that gender, if exactly one exists.
func resolvePronouns(segments []*Segment) {
	knownGender := make(map[string]string) // name -> "male"/"female"

	for i, seg := range segments {
		if seg.Kind != KindDialogue || seg.AttributionSource != AttributionExplicit {
			continue
		}
		context := adjacentNarrationContext(segments, i)
		if malePronoun.MatchString(context) {
			knownGender[seg.Speaker] = "male"
		}
		if femalePronoun.MatchString(context) {
			knownGender[seg.Speaker] = "female"
		}
	}

	for _, seg := range segments {
		if seg.Kind != KindDialogue {
			continue
		}
		var wantGender string
		switch seg.AttributionSource {
		case AttributionPronounMale:
			wantGender = "male"
		case AttributionPronounFem:
			wantGender = "female"
		default:
			continue
		}

		var candidate string
		count := 0
		for name, gender := range knownGender {
			if gender == wantGender {
				candidate = name
				count++
			}
		}
		if count == 1 {
			seg.Speaker = candidate
			seg.AttributionSource = AttributionTurnTaking
		}
	}
}

// alternateSpeakers walks segments tracking a per-block history of
// distinct recently-seen speakers; on an unresolved dialogue segment it
// assigns the speaker other than the most recently seen one. Two or more
// consecutive narration segments reset the block (scene break).
func alternateSpeakers(segments []*Segment) {
	var history []string
	narrationStreak := 0

	appendDistinct := func(name string) {
		if len(history) == 0 || history[len(history)-1] != name {
			history = append(history, name)
		}
	}

	for _, seg := range segments {
		if seg.Kind == KindNarration {
			narrationStreak++
			if narrationStreak >= 2 {
				history = history[:0]
			}
			continue
		}

		narrationStreak = 0

		if seg.Speaker != SpeakerUnknown && seg.Speaker != SpeakerNarrator {
			appendDistinct(seg.Speaker)
			continue
		}

		if seg.Speaker == SpeakerUnknown && len(history) >= 2 {
			last := history[len(history)-1]
			secondLast := history[len(history)-2]
			assigned := secondLast
			if assigned == last {
				// defensive: history should already hold distinct
				// consecutive entries, but never assign the same speaker
				// twice in a row.
				continue
			}
			seg.Speaker = assigned
			seg.AttributionSource = AttributionTurnTaking
			appendDistinct(assigned)
		}
	}
}

