package analysis

import (
	"regexp"
	"strconv"
	"strings"
)

// ValidationReport is the non-fatal outcome of Stage 6's verbatim-coverage
// check.
type ValidationReport struct {
	Passed        bool     `json:"passed"`
	Issues        []string `json:"issues"`
	MissingWords  []string `json:"missing_words,omitempty"`
	ExtraWords    []string `json:"extra_words,omitempty"`
}

var quoteChars = strings.NewReplacer("“", "", "”", "", "\"", "")
var whitespaceRun = regexp.MustCompile(`\s+`)

// normalize strips display quote characters, flattens newlines to spaces,
// and collapses runs of whitespace. Comparison stays case-sensitive.
func normalize(text string) string {
	t := quoteChars.Replace(text)
	t = strings.ReplaceAll(t, "\n", " ")
	t = whitespaceRun.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Validate checks that the segments' original_text reconstructs the
// original input (modulo quotes and whitespace). It never aborts the
// pipeline; callers log the returned issues as warnings.
func Validate(segments []*Segment, originalText string) ValidationReport {
	if len(segments) == 0 {
		return ValidationReport{Passed: false, Issues: []string{"no segments produced"}}
	}

	var sb strings.Builder
	for i, seg := range segments {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(seg.OriginalText)
	}

	normOriginal := normalize(originalText)
	normRebuilt := normalize(sb.String())
	if normOriginal == normRebuilt {
		return ValidationReport{Passed: true}
	}

	origWords := strings.Fields(normOriginal)
	rebuiltWords := strings.Fields(normRebuilt)

	missing := diffWords(origWords, rebuiltWords, 10)
	extra := diffWords(rebuiltWords, origWords, 10)

	var issues []string
	if len(missing) > 0 {
		issues = append(issues, "missing from reconstruction: "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		issues = append(issues, "extra in reconstruction: "+strings.Join(extra, ", "))
	}

	if ctx, ok := firstMismatchContext(origWords, rebuiltWords); ok {
		issues = append(issues, "first mismatch: "+ctx)
	}
	if len(origWords) != len(rebuiltWords) {
		issues = append(issues, wordCountMismatch(len(origWords), len(rebuiltWords)))
	}

	return ValidationReport{
		Passed:       false,
		Issues:       issues,
		MissingWords: missing,
		ExtraWords:   extra,
	}
}

// diffWords returns up to max words present in a but not in b (by
// set membership, not position or frequency).
func diffWords(a, b []string, max int) []string {
	inB := make(map[string]bool, len(b))
	for _, w := range b {
		inB[w] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, w := range a {
		if inB[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) >= max {
			break
		}
	}
	return out
}

func firstMismatchContext(a, b []string) (string, bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return mismatchWindow(a, i) + " != " + mismatchWindow(b, i), true
		}
	}
	return "", false
}

func mismatchWindow(words []string, i int) string {
	start := i - 3
	if start < 0 {
		start = 0
	}
	end := i + 4
	if end > len(words) {
		end = len(words)
	}
	return strings.Join(words[start:end], " ")
}

func wordCountMismatch(origCount, rebuiltCount int) string {
	return "word count mismatch: original has " + strconv.Itoa(origCount) +
		", reconstruction has " + strconv.Itoa(rebuiltCount)
}
