package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/logger"
)

func testLog() *logger.Logger { return logger.New("TEST", "error") }

func TestOllamaGeneratorComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekret" {
			t.Errorf("Authorization = %q", got)
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Stream {
			t.Error("streaming must be disabled")
		}
		if req.Model != "qwen2.5:3b" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(completionResponse{Response: "  The notice period is 30 days.\n"}) //nolint:errcheck // test server
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "sekret", "qwen2.5:3b", 5*time.Second, testLog())
	got, err := g.Complete(context.Background(), "What is the notice period?")
	if err != nil {
		t.Fatal(err)
	}
	if got != "The notice period is 30 days." {
		t.Errorf("completion = %q", got)
	}
}

func TestOllamaGeneratorNoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization header must be absent when no key is set")
		}
		json.NewEncoder(w).Encode(completionResponse{Response: "ok"}) //nolint:errcheck // test server
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "", "m", 5*time.Second, testLog())
	if _, err := g.Complete(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
}

func TestOllamaGeneratorErrors(t *testing.T) {
	t.Run("upstream status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		g := NewOllamaGenerator(srv.URL, "", "m", 5*time.Second, testLog())
		if _, err := g.Complete(context.Background(), "q"); err == nil {
			t.Error("expected an error on non-200 status")
		}
	})

	t.Run("empty completion", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(completionResponse{}) //nolint:errcheck // test server
		}))
		defer srv.Close()
		g := NewOllamaGenerator(srv.URL, "", "m", 5*time.Second, testLog())
		if _, err := g.Complete(context.Background(), "q"); err == nil {
			t.Error("expected an error on an empty completion")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			json.NewEncoder(w).Encode(completionResponse{Response: "late"}) //nolint:errcheck // test server
		}))
		defer srv.Close()
		g := NewOllamaGenerator(srv.URL, "", "m", 20*time.Millisecond, testLog())
		if _, err := g.Complete(context.Background(), "q"); err == nil {
			t.Error("expected a timeout error")
		}
	})
}
