// Package embedding turns text into dense vectors for the retrieval index.
//
// Two engines are available: a local Ollama server (default) and the Gemini
// API. Both produce float32 vectors; the store does not care which engine
// wrote them as long as indexing and querying use the same one.
package embedding

import (
	"context"
	"fmt"
)

// Engine generates embedding vectors for text.
type Engine interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name identifies the engine and model in logs.
	Name() string
}

// New selects an engine by backend name ("ollama" or "gemini").
func New(backend, endpoint, model, apiKey string) (Engine, error) {
	switch backend {
	case "ollama":
		return NewOllamaEngine(endpoint, model), nil
	case "gemini":
		return NewGeminiEngine(apiKey, model)
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", backend)
	}
}
