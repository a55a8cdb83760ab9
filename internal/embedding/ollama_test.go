package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEngineEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "embeddinggemma" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}}) //nolint:errcheck // test server
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, "embeddinggemma")
	v, err := e.Embed(context.Background(), "clause about severance pay")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 || v[0] != 0.1 {
		t.Errorf("vector = %v", v)
	}
}

func TestOllamaEngineEmbedBatchOrder(t *testing.T) {
	var n int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n++
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{float32(n)}}) //nolint:errcheck // test server
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, "m")
	vs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 3 {
		t.Fatalf("got %d vectors", len(vs))
	}
	for i, v := range vs {
		if v[0] != float32(i+1) {
			t.Errorf("vector %d = %v, order not preserved", i, v)
		}
	}
}

func TestOllamaEngineErrors(t *testing.T) {
	t.Run("server error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()
		if _, err := NewOllamaEngine(srv.URL, "m").Embed(context.Background(), "x"); err == nil {
			t.Error("expected an error on non-200 status")
		}
	})

	t.Run("empty vector", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(ollamaEmbedResponse{}) //nolint:errcheck // test server
		}))
		defer srv.Close()
		if _, err := NewOllamaEngine(srv.URL, "m").Embed(context.Background(), "x"); err == nil {
			t.Error("expected an error on an empty embedding")
		}
	})
}

func TestNewSelectsBackend(t *testing.T) {
	e, err := New("ollama", "http://localhost:11434", "embeddinggemma", "")
	if err != nil {
		t.Fatal(err)
	}
	if e.Name() != "ollama:embeddinggemma" {
		t.Errorf("name = %q", e.Name())
	}

	if _, err := New("gemini", "", "gemini-embedding-001", ""); err == nil {
		t.Error("gemini without an API key must be rejected")
	}
	if _, err := New("chroma", "", "", ""); err == nil {
		t.Error("unknown backend must be rejected")
	}
}
