package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini task types. Queries and documents embed under the retrieval task
// pair so the two vector spaces line up for search.
const (
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// GeminiEngine embeds text through the Gemini API.
type GeminiEngine struct {
	client *genai.Client
	model  string
}

// NewGeminiEngine creates an engine authenticated with apiKey.
func NewGeminiEngine(apiKey, model string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedding backend needs an API key")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiEngine{client: client, model: model}, nil
}

// embedConfig builds the per-call config for one task type.
func embedConfig(task string) *genai.EmbedContentConfig {
	return &genai.EmbedContentConfig{TaskType: task}
}

// Embed returns the query-side vector for a single text.
func (e *GeminiEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, []string{text}, taskRetrievalQuery)
}

// EmbedBatch returns document-side vectors, one per input text.
func (e *GeminiEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, embedConfig(taskRetrievalDocument))
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}
	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (e *GeminiEngine) embed(ctx context.Context, texts []string, task string) ([]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, embedConfig(task))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("gemini returned no embeddings")
	}
	return result.Embeddings[0].Values, nil
}

// Name identifies the engine and model in logs.
func (e *GeminiEngine) Name() string { return "gemini:" + e.model }
