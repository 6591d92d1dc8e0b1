package analysis

import "testing"

func TestValidate_NoSegmentsFails(t *testing.T) {
	report := Validate(nil, "some text")
	if report.Passed {
		t.Error("expected empty segment list to fail validation")
	}
}

func TestValidate_PassesWhenCoverageExact(t *testing.T) {
	text := `She looked up. "We should leave now," she said.`
	segments := Split(text)
	report := Validate(segments, text)
	if !report.Passed {
		t.Errorf("expected validation to pass, got issues: %v", report.Issues)
	}
}

func TestValidate_FlagsMissingWords(t *testing.T) {
	segments := []*Segment{
		{OriginalText: "The quick brown fox"},
	}
	report := Validate(segments, "The quick brown fox jumps over the lazy dog")
	if report.Passed {
		t.Error("expected validation to fail on missing words")
	}
	if len(report.MissingWords) == 0 {
		t.Error("expected missing words to be reported")
	}
}

func TestValidate_IgnoresQuoteAndWhitespaceDifferences(t *testing.T) {
	segments := []*Segment{
		{OriginalText: "We should leave now,"},
	}
	report := Validate(segments, `"We   should leave now,"`)
	if !report.Passed {
		t.Errorf("expected quote/whitespace-insensitive match to pass, got: %v", report.Issues)
	}
}
