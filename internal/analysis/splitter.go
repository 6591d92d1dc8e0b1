package analysis

import (
	"strings"
	"unicode"
)

// maxNarrationMergeChars bounds how much consecutive narration the merge
// pass in Split will fold into a single segment.
const maxNarrationMergeChars = 800

const straightDoubleQuote = '"'

var openQuotes = map[rune]bool{
	'“': true, // “
	'«': true, // «
}

var closeQuotes = map[rune]bool{
	'”': true, // ”
	'»': true, // »
}

// closingContextPunct is the sentence punctuation that, immediately before a
// straight double quote, marks it as closing rather than opening.
var closingContextPunct = map[rune]bool{
	'.': true, ',': true, '!': true, '?': true, ';': true, '…': true, // …
}

// isApostrophe reports whether runes[i] (expected to be ' or ’) is a
// word-internal apostrophe rather than punctuation, i.e. both neighbors are
// letters.
func isApostrophe(runes []rune, i int) bool {
	if runes[i] != '\'' && runes[i] != '’' {
		return false
	}
	if i == 0 || i >= len(runes)-1 {
		return false
	}
	return unicode.IsLetter(runes[i-1]) && unicode.IsLetter(runes[i+1])
}

// isClosingContext reports whether the rune at position i (the character
// immediately preceding a straight double quote) marks that quote as
// closing: a letter, a digit, sentence punctuation, or a non-apostrophe
// single quote.
func isClosingContext(runes []rune, i int) bool {
	if i < 0 {
		return false
	}
	c := runes[i]
	if unicode.IsLetter(c) || unicode.IsDigit(c) {
		return true
	}
	if closingContextPunct[c] {
		return true
	}
	if c == '\'' || c == '’' {
		return !isApostrophe(runes, i)
	}
	return false
}

// isOpeningQuote reports whether runes[i] opens a dialogue span.
func isOpeningQuote(runes []rune, i int) bool {
	c := runes[i]
	if openQuotes[c] {
		return true
	}
	if c == straightDoubleQuote {
		return !isClosingContext(runes, i-1)
	}
	return false
}

// isClosingQuote reports whether runes[i] closes a dialogue span.
func isClosingQuote(runes []rune, i int) bool {
	c := runes[i]
	if closeQuotes[c] {
		return true
	}
	if c == straightDoubleQuote {
		return isClosingContext(runes, i-1)
	}
	return false
}

// Split partitions raw chapter text into an ordered, verbatim-covering
// sequence of narration/dialogue segments (Stage 1).
func Split(text string) []*Segment {
	paragraphs := strings.Split(text, "\n")

	var spans []quoteSpan

	globalOffset := 0
	for pIdx, para := range paragraphs {
		runes := []rune(para)
		paraLen := len(runes)

		emit := func(kind Kind, textStart, textEnd, offStart, offEnd int) {
			if textEnd <= textStart {
				return
			}
			txt := strings.TrimSpace(string(runes[textStart:textEnd]))
			if txt == "" {
				return
			}
			spans = append(spans, quoteSpan{
				kind:           kind,
				text:           txt,
				paragraphIndex: pIdx,
				offsetStart:    globalOffset + offStart,
				offsetEnd:      globalOffset + offEnd,
			})
		}

		if paraLen > 0 {
			state := KindNarration
			spanStart := 0
			dialogueTextStart := 0

			for i := 0; i < paraLen; i++ {
				switch state {
				case KindNarration:
					if isOpeningQuote(runes, i) {
						emit(KindNarration, spanStart, i, spanStart, i)
						state = KindDialogue
						spanStart = i
						dialogueTextStart = i + 1
					}
				case KindDialogue:
					if isClosingQuote(runes, i) {
						emit(KindDialogue, dialogueTextStart, i, spanStart, i+1)
						state = KindNarration
						spanStart = i + 1
					}
				}
			}

			if state == KindNarration {
				emit(KindNarration, spanStart, paraLen, spanStart, paraLen)
			} else {
				// Unclosed quote: flush the remainder of the paragraph as a
				// dialogue continuation.
				emit(KindDialogue, dialogueTextStart, paraLen, spanStart, paraLen)
			}
		}

		globalOffset += paraLen + 1 // account for the stripped '\n'
	}

	merged := mergeConsecutiveNarration(spans, maxNarrationMergeChars)

	segments := make([]*Segment, 0, len(merged))
	for i, s := range merged {
		speaker := SpeakerUnknown
		if s.kind == KindNarration {
			speaker = SpeakerNarrator
		}
		segments = append(segments, &Segment{
			ID:                i + 1,
			Kind:              s.kind,
			OriginalText:      s.text,
			Speaker:           speaker,
			AttributionSource: AttributionNone,
			Emotion:           EmotionNeutral,
			Intensity:         0.5,
			ParagraphIndex:    s.paragraphIndex,
			CharOffsetStart:   s.offsetStart,
			CharOffsetEnd:     s.offsetEnd,
		})
	}
	return segments
}

type quoteSpan struct {
	kind                   Kind
	text                   string
	paragraphIndex         int
	offsetStart, offsetEnd int
}

// mergeConsecutiveNarration folds consecutive narration spans together
// (joined by a newline) while the combined length stays within maxChars,
// keeping the earliest paragraph index and extending the offset range.
func mergeConsecutiveNarration(spans []quoteSpan, maxChars int) []quoteSpan {
	out := make([]quoteSpan, 0, len(spans))
	var pending *quoteSpan

	flush := func() {
		if pending != nil {
			out = append(out, *pending)
			pending = nil
		}
	}

	for _, s := range spans {
		if s.kind != KindNarration {
			flush()
			out = append(out, s)
			continue
		}
		if pending == nil {
			cp := s
			pending = &cp
			continue
		}
		if len(pending.text)+1+len(s.text) <= maxChars {
			pending.text = pending.text + "\n" + s.text
			pending.offsetEnd = s.offsetEnd
		} else {
			flush()
			cp := s
			pending = &cp
		}
	}
	flush()
	return out
}
