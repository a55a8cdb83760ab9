// Package generate answers prompts with an upstream language model.
//
// Only the Ollama generate API is spoken here; the pipeline hands this
// package a fully assembled, already sanitized prompt and gets a completion
// back. Nothing in this package inspects or re-sanitizes the prompt.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/logger"
)

// maxCompletionBody caps how much of the model response is read.
const maxCompletionBody = 10 << 20 // 10 MB

// Generator produces a completion for a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// OllamaGenerator calls the Ollama generate API, optionally through a
// bearer-token gateway.
type OllamaGenerator struct {
	generateURL string
	apiKey      string
	model       string
	client      *http.Client
	log         *logger.Logger
}

// NewOllamaGenerator creates a generator for endpoint and model. timeout
// bounds one completion end to end; apiKey may be empty for a local server.
func NewOllamaGenerator(endpoint, apiKey, model string, timeout time.Duration, log *logger.Logger) *OllamaGenerator {
	if log == nil {
		log = logger.New("GENERATE", "info")
	}
	return &OllamaGenerator{
		generateURL: strings.TrimSuffix(endpoint, "/") + "/api/generate",
		apiKey:      apiKey,
		model:       model,
		client:      &http.Client{Timeout: timeout},
		log:         log,
	}
}

type completionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type completionResponse struct {
	Response string `json:"response"`
}

// Name identifies the generator in logs.
func (g *OllamaGenerator) Name() string { return "ollama:" + g.model }

// Complete sends the prompt and returns the model's answer.
func (g *OllamaGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.generateURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on HTTP response body

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		return "", fmt.Errorf("generation model returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCompletionBody))
	if err != nil {
		return "", fmt.Errorf("read completion: %w", err)
	}

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if out.Response == "" {
		return "", fmt.Errorf("generation model returned an empty completion")
	}

	g.log.Debugf("complete", "model %s answered in %s", g.model, time.Since(start).Round(time.Millisecond))
	return strings.TrimSpace(out.Response), nil
}
