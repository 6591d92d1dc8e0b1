package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/unalkalkan/chapter-analyzer/pkg/types"
)

// OllamaLLM implements analysis.LLM against a local or remote Ollama
// instance. It asks Ollama for JSON-formatted output and decodes the
// response payload's "response" field a second time, since that field is
// itself a JSON-encoded string rather than a nested object.
type OllamaLLM struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewOllamaLLM builds an Ollama-backed LLM client from the analysis
// configuration's base URL and model name.
func NewOllamaLLM(cfg types.AnalysisConfig) (*OllamaLLM, error) {
	if cfg.OllamaBaseURL == "" {
		return nil, fmt.Errorf("ollama base url is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	parsedURL, err := url.Parse(cfg.OllamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url %q: %w", cfg.OllamaBaseURL, err)
	}

	return &OllamaLLM{
		client:  api.NewClient(parsedURL, nil),
		model:   cfg.ModelName,
		timeout: 300 * time.Second,
	}, nil
}

// Generate sends a system+user prompt pair to Ollama's /api/generate
// endpoint and returns the decoded JSON object it produced.
func (o *OllamaLLM) Generate(ctx context.Context, system, prompt string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req := &api.GenerateRequest{
		Model:   o.model,
		System:  system,
		Prompt:  prompt,
		Format:  json.RawMessage(`"json"`),
		Stream:  boolPtrOllama(false),
		Options: map[string]any{"num_predict": -1},
	}

	log.Printf("[OLLAMA] Request: model=%s prompt_length=%d chars", o.model, len(prompt))
	log.Printf("[OLLAMA] Request prompt (truncated): %s", truncateForLog(prompt, 500))

	var final api.GenerateResponse
	startTime := time.Now()
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		final = resp
		return nil
	})
	duration := time.Since(startTime)
	if err != nil {
		log.Printf("[OLLAMA] Request failed after %v: %v", duration, err)
		return nil, fmt.Errorf("ollama generate failed: %w", err)
	}
	log.Printf("[OLLAMA] Response received in %v (eval_count=%d)", duration, final.EvalCount)
	log.Printf("[OLLAMA] Response content (truncated): %s", truncateForLog(final.Response, 500))

	var out map[string]any
	if err := json.Unmarshal([]byte(final.Response), &out); err != nil {
		log.Printf("[OLLAMA] Failed to parse response JSON: %v. Raw (truncated): %s", err, truncateForLog(final.Response, 500))
		return nil, fmt.Errorf("failed to parse ollama response as JSON: %w", err)
	}
	return out, nil
}

func boolPtrOllama(b bool) *bool {
	return &b
}
