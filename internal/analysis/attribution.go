package analysis

import (
	"regexp"
	"sort"
	"strings"
)

// nonNames is a stop list of capitalized words that are grammatically
// common enough to falsely match the NAME patterns below but are never
// character names.
var nonNames = map[string]bool{
	"the": true, "this": true, "that": true, "these": true, "those": true,
	"there": true, "then": true, "than": true, "they": true, "them": true,
	"their": true, "what": true, "when": true, "where": true, "which": true,
	"while": true, "who": true, "whom": true, "whose": true, "with": true,
	"will": true, "would": true, "could": true, "should": true, "have": true,
	"has": true, "had": true, "been": true, "being": true, "does": true,
	"did": true, "done": true, "from": true, "into": true, "onto": true,
	"upon": true, "after": true, "before": true, "above": true, "below": true,
	"about": true, "again": true, "also": true, "another": true,
	"because": true, "between": true, "both": true, "but": true, "each": true,
	"even": true, "every": true, "for": true, "here": true, "how": true,
	"just": true, "like": true, "more": true, "most": true, "much": true,
	"never": true, "not": true, "now": true, "only": true, "other": true,
	"over": true, "some": true, "still": true, "such": true, "through": true,
	"under": true, "very": true, "well": true, "were": true, "why": true,
	"and": true, "are": true, "can": true, "her": true, "him": true,
	"his": true, "its": true, "may": true, "nor": true, "our": true,
	"out": true, "own": true, "per": true, "too": true, "two": true,
	"was": true, "yet": true, "all": true, "any": true, "few": true,
	"got": true, "get": true, "let": true, "new": true, "old": true,
	"one": true, "say": true, "see": true, "set": true, "way": true,
}

// Attributor resolves speaker=unknown dialogue segments by matching
// speech-verb patterns in adjacent narration (Stage 2).
type Attributor struct {
	verbPattern string

	patternVerbName *regexp.Regexp // VERB NAME
	patternNameVerb *regexp.Regexp // NAME VERB
	patternPronVerb *regexp.Regexp // (he|she) VERB
	patternVerbPron *regexp.Regexp // VERB (he|she)
}

const nameGroup = `((?:the\s+)?(?-i:[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*))`

// NewAttributor compiles the four attribution patterns from the given
// speech-verb list. Verbs are tried longest-first so multi-word verbs
// (e.g. "called out") take priority over their single-word prefixes.
func NewAttributor(verbs []string) *Attributor {
	sorted := append([]string(nil), verbs...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	quoted := make([]string, len(sorted))
	for i, v := range sorted {
		quoted[i] = regexp.QuoteMeta(v)
	}
	verbAlt := "(" + strings.Join(quoted, "|") + ")"

	return &Attributor{
		verbPattern:     verbAlt,
		patternVerbName: regexp.MustCompile(`(?i)\b` + verbAlt + `\s+` + nameGroup),
		patternNameVerb: regexp.MustCompile(`(?i)` + nameGroup + `\s+` + verbAlt + `\b`),
		patternPronVerb: regexp.MustCompile(`(?i)\b(he|she)\s+` + verbAlt + `\b`),
		patternVerbPron: regexp.MustCompile(`(?i)\b` + verbAlt + `\s+(he|she)\b`),
	}
}

// Attribute mutates segments in place, resolving unknown dialogue speakers
// from explicit speech-verb patterns in adjacent narration.
func (a *Attributor) Attribute(segments []*Segment) {
	for i, seg := range segments {
		if seg.Kind != KindDialogue || seg.Speaker != SpeakerUnknown {
			continue
		}

		context := adjacentNarrationContext(segments, i)
		if context == "" {
			continue
		}

		if name, ok := a.tryNamedMatch(context); ok {
			seg.Speaker = name
			seg.AttributionSource = AttributionExplicit
			continue
		}

		if gender, ok := a.tryPronounMatch(context); ok {
			if gender == "male" {
				seg.AttributionSource = AttributionPronounMale
			} else {
				seg.AttributionSource = AttributionPronounFem
			}
		}
	}
}

// adjacentNarrationContext concatenates the previous and next segment's
// text when they are narration, for use as attribution search context.
func adjacentNarrationContext(segments []*Segment, i int) string {
	var parts []string
	if i > 0 && segments[i-1].Kind == KindNarration {
		parts = append(parts, segments[i-1].OriginalText)
	}
	if i < len(segments)-1 && segments[i+1].Kind == KindNarration {
		parts = append(parts, segments[i+1].OriginalText)
	}
	return strings.Join(parts, " ")
}

func (a *Attributor) tryNamedMatch(context string) (string, bool) {
	if m := a.patternVerbName.FindStringSubmatch(context); m != nil {
		if name, ok := cleanName(m[2]); ok {
			return name, true
		}
	}
	if m := a.patternNameVerb.FindStringSubmatch(context); m != nil {
		if name, ok := cleanName(m[1]); ok {
			return name, true
		}
	}
	return "", false
}

func (a *Attributor) tryPronounMatch(context string) (string, bool) {
	if m := a.patternPronVerb.FindStringSubmatch(context); m != nil {
		return genderOf(m[1]), true
	}
	if m := a.patternVerbPron.FindStringSubmatch(context); m != nil {
		return genderOf(m[2]), true
	}
	return "", false
}

func genderOf(pronoun string) string {
	if strings.EqualFold(pronoun, "he") {
		return "male"
	}
	return "female"
}

// cleanName strips a leading "the " and rejects stop-list/too-short
// candidates.
func cleanName(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "the ") {
		name = strings.TrimSpace(name[4:])
	}
	if len(name) < 2 {
		return "", false
	}
	if nonNames[strings.ToLower(name)] {
		return "", false
	}
	return name, true
}
