package pii

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/lang"
)

// nerServer fakes the Ollama generate API, wrapping the given detection
// array in model chatter to exercise the JSON extraction.
func nerServer(t *testing.T, calls *atomic.Int64, detections string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		resp := generateResponse{Response: "Sure! Here are the entities:\n" + detections + "\nLet me know if you need more."}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck // test server
	}))
}

func TestOllamaBackendDetect(t *testing.T) {
	var calls atomic.Int64
	srv := nerServer(t, &calls,
		`[{"text":"Jean Dupont","label":"person","confidence":0.93},{"text":"TechCorp","label":"org","confidence":0.88}]`)
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "", "ner-en", "ner-fr", newMemoryStore(), testLog())

	text := "Jean Dupont signed for TechCorp. Jean Dupont approved."
	spans, err := b.Detect(context.Background(), text, lang.French)
	if err != nil {
		t.Fatal(err)
	}

	// "Jean Dupont" occurs twice; both occurrences become spans.
	var persons, orgs int
	for _, s := range spans {
		switch s.Kind {
		case KindPerson:
			persons++
			if text[s.Start:s.End] != "Jean Dupont" {
				t.Errorf("person span [%d,%d) = %q", s.Start, s.End, text[s.Start:s.End])
			}
		case KindOrganization:
			orgs++
		}
	}
	if persons != 2 || orgs != 1 {
		t.Errorf("persons=%d orgs=%d, want 2 and 1: %+v", persons, orgs, spans)
	}
}

func TestOllamaBackendCachesByModelLanguageAndText(t *testing.T) {
	var calls atomic.Int64
	srv := nerServer(t, &calls, `[{"text":"Alice Vance","label":"person","confidence":0.9}]`)
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "", "ner-en", "ner-fr", newMemoryStore(), testLog())

	text := "Alice Vance was present"
	if _, err := b.Detect(context.Background(), text, lang.English); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Detect(context.Background(), text, lang.English); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("model called %d times for identical input, want 1", got)
	}

	// A different language selects a different model: separate cache entry.
	if _, err := b.Detect(context.Background(), text, lang.French); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("model called %d times after language switch, want 2", got)
	}

	// With one model serving both languages the prompts still differ, so a
	// language switch must miss the cache too.
	calls.Store(0)
	shared := NewOllamaBackend(srv.URL, "", "ner-shared", "ner-shared", newMemoryStore(), testLog())
	if _, err := shared.Detect(context.Background(), text, lang.English); err != nil {
		t.Fatal(err)
	}
	if _, err := shared.Detect(context.Background(), text, lang.French); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("shared model called %d times across languages, want 2", got)
	}
}

func TestOllamaBackendUnreachable(t *testing.T) {
	b := NewOllamaBackend("http://127.0.0.1:1", "", "ner-en", "ner-fr", newMemoryStore(), testLog())
	if _, err := b.Detect(context.Background(), "some text", lang.English); err == nil {
		t.Error("expected an error for an unreachable endpoint")
	}
}

func TestOllamaBackendNoJSONArray(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(generateResponse{Response: "I could not find any entities."}) //nolint:errcheck // test server
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "", "ner-en", "ner-fr", newMemoryStore(), testLog())
	if _, err := b.Detect(context.Background(), "some text", lang.English); err == nil {
		t.Error("expected an error when the response holds no JSON array")
	}
}

func TestLocateSpansSkipsShortAndMissingValues(t *testing.T) {
	text := "Jean Dupont met M. X"
	spans := locateSpans(text, []nerDetection{
		{Text: "Jean Dupont", Label: "person", Confidence: 0.9},
		{Text: "X", Label: "person", Confidence: 0.9},          // too short
		{Text: "Marie Curie", Label: "person", Confidence: 0.9}, // not in text
	})
	if len(spans) != 1 || spans[0].Text != "Jean Dupont" {
		t.Errorf("spans = %+v, want only Jean Dupont", spans)
	}
}

func TestNerKindMapping(t *testing.T) {
	cases := []struct {
		label string
		want  EntityKind
	}{
		{"person", KindPerson},
		{"PER", KindPerson},
		{"org", KindOrganization},
		{"ORGANIZATION", KindOrganization},
		{"location", KindLocation},
		{"GPE", KindLocation},
		{"salary", KindOther}, // outside the closed set
	}
	for _, c := range cases {
		if got := nerKind(c.label); got != c.want {
			t.Errorf("nerKind(%q) = %v, want %v", c.label, got, c.want)
		}
	}
}
