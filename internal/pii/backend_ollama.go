package pii

import (
	"bytes"
	"context"
	"crypto/md5" // #nosec G501 -- cache key derivation, not cryptographic security
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/lang"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/logger"
)

// defaultNERTimeout bounds one backend call when the caller's context
// carries no deadline. Detection blocks the pipeline, so this stays short.
const defaultNERTimeout = 20 * time.Second

// maxNERResponse caps how much of the model response is read.
const maxNERResponse = 10 << 20 // 10 MB

// OllamaBackend detects PERSON/ORGANIZATION/LOCATION entities with a
// language-specific Ollama model. Calls are synchronous — the redaction
// invariant requires detection to complete before generation — and results
// are cached by (model, language, text) hash so recurring passages skip the
// model.
//
// Safe for concurrent use: all fields are read-only after construction and
// the cache carries its own locking.
type OllamaBackend struct {
	generateURL string
	apiKey      string
	models      map[lang.Lang]string
	client      *http.Client
	cache       DetectionStore
	log         *logger.Logger
}

// NewOllamaBackend creates a backend calling endpoint (e.g.
// "http://localhost:11434"). modelEN/modelFR select the per-language NER
// model, mirroring the bilingual model split of the corpus. apiKey may be
// empty for a local Ollama. cache must not be nil.
func NewOllamaBackend(endpoint, apiKey, modelEN, modelFR string, cache DetectionStore, log *logger.Logger) *OllamaBackend {
	if log == nil {
		log = logger.New("NER", "info")
	}
	return &OllamaBackend{
		generateURL: strings.TrimSuffix(endpoint, "/") + "/api/generate",
		apiKey:      apiKey,
		models: map[lang.Lang]string{
			lang.English: modelEN,
			lang.French:  modelFR,
		},
		client: &http.Client{},
		cache:  cache,
		log:    log,
	}
}

// Name identifies the backend in logs.
func (b *OllamaBackend) Name() string { return "ollama" }

// nerDetection is one entity as reported by the model.
type nerDetection struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Detect returns located entity spans for text. Cache hits skip the model
// entirely. Errors (model unreachable, malformed response) surface to the
// Detector, which degrades to pattern-only detection.
func (b *OllamaBackend) Detect(ctx context.Context, text string, language lang.Lang) ([]Span, error) {
	model, ok := b.models[language]
	if !ok || model == "" {
		return nil, fmt.Errorf("no NER model configured for language %q", language)
	}

	key := cacheKey(model, language, text)
	if cached, hit := b.cache.Get(key); hit {
		var detections []nerDetection
		if err := json.Unmarshal([]byte(cached), &detections); err == nil {
			return locateSpans(text, detections), nil
		}
		// Corrupt entry: drop it and fall through to a fresh query.
		b.cache.Delete(key)
	}

	detections, err := b.query(ctx, model, language, text)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(detections); err == nil {
		b.cache.Set(key, string(encoded))
	}

	return locateSpans(text, detections), nil
}

// query calls the Ollama generate API and parses the detection array out of
// the model's free-text response.
func (b *OllamaBackend) query(ctx context.Context, model string, language lang.Lang, text string) ([]nerDetection, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultNERTimeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(`You are a named-entity recognizer for %s text.
Find every person name, organization name and location in the text below.
Return ONLY a JSON array. Each item must have:
- "text": the exact text found
- "label": one of: person, organization, location
- "confidence": float 0.0-1.0

Text:
%s

Return ONLY the JSON array, no explanation. Example: [{"text":"Jean Dupont","label":"person","confidence":0.95}]`,
		languageName(language), text)

	reqBody, _ := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.generateURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create ner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on HTTP response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ner model returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxNERResponse))
	if err != nil {
		return nil, err
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, fmt.Errorf("ner response parse error: %w", err)
	}

	// Extract the JSON array from the model's text response.
	raw := strings.TrimSpace(genResp.Response)
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in ner response")
	}

	var detections []nerDetection
	if err := json.Unmarshal([]byte(raw[start:end+1]), &detections); err != nil {
		return nil, fmt.Errorf("detection parse error: %w", err)
	}
	return detections, nil
}

// locateSpans turns value-level detections into offset spans by finding
// every occurrence of each detected value in text. Detections shorter than
// three characters are dropped: they are almost always partial-word noise.
func locateSpans(text string, detections []nerDetection) []Span {
	var spans []Span
	for _, d := range detections {
		value := strings.TrimSpace(d.Text)
		if len(value) <= 2 {
			continue
		}
		kind := nerKind(d.Label)
		for from := 0; ; {
			idx := strings.Index(text[from:], value)
			if idx < 0 {
				break
			}
			start := from + idx
			spans = append(spans, Span{
				Start:      start,
				End:        start + len(value),
				Kind:       kind,
				Text:       value,
				Confidence: d.Confidence,
			})
			from = start + len(value)
		}
	}
	return spans
}

// nerKind maps model labels onto the closed EntityKind set.
// spaCy-style tags (PER, ORG, GPE) are accepted alongside the prompt's own
// lowercase labels; anything else folds to KindOther.
func nerKind(label string) EntityKind {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PERSON", "PER", "NAME":
		return KindPerson
	case "ORGANIZATION", "ORG", "COMPANY":
		return KindOrganization
	case "LOCATION", "LOC", "GPE", "ADDRESS":
		return KindLocation
	default:
		return KindOther
	}
}

// cacheKey hashes (model, language, text) into the detection-cache key.
// Language is part of the key because the prompt is language-specific even
// when both languages share one model. The separators prevent ambiguity
// between the fields.
func cacheKey(model string, language lang.Lang, text string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(model+"\x00"+string(language)+"\x00"+text))) // #nosec G401 -- cache key, not crypto
}

// languageName expands a Lang tag for the model prompt.
func languageName(l lang.Lang) string {
	if l == lang.French {
		return "French"
	}
	return "English"
}
