package analysis

import "context"

// LLM is the single operation the pipeline needs from an external
// large-language-model service: send a system and user prompt, get back a
// parsed JSON object. Stages 7 and 8 are the only callers.
type LLM interface {
	Generate(ctx context.Context, system, prompt string) (map[string]any, error)
}

// StubLLM is a deterministic mock for tests: it returns a fixed response
// for every call, or an error if Err is set.
type StubLLM struct {
	Response map[string]any
	Err      error
	Calls    int
}

func (s *StubLLM) Generate(ctx context.Context, system, prompt string) (map[string]any, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Response, nil
}
