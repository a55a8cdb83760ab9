package pii

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/lang"
)

// fakeBackend returns canned spans or a canned error.
type fakeBackend struct {
	spans []Span
	err   error
	calls int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Detect(_ context.Context, _ string, _ lang.Lang) ([]Span, error) {
	f.calls++
	return f.spans, f.err
}

// spanFor builds a span for the first occurrence of value in text.
func spanFor(t *testing.T, text, value string, kind EntityKind, conf float64) Span {
	t.Helper()
	idx := strings.Index(text, value)
	if idx < 0 {
		t.Fatalf("value %q not in text", value)
	}
	return Span{Start: idx, End: idx + len(value), Kind: kind, Text: value, Confidence: conf}
}

func TestDetectPatternOnly(t *testing.T) {
	d := NewDetector(nil, 0.7, nil)

	text := "Reach me at alice@example.com or 555-867-5309."
	res := d.Detect(context.Background(), text, lang.English)

	if res.Partial {
		t.Error("pattern-only mode must not be flagged partial")
	}
	if len(res.Spans) != 2 {
		t.Fatalf("got %d spans, want 2: %+v", len(res.Spans), res.Spans)
	}
	if res.Spans[0].Kind != KindEmail || res.Spans[0].Confidence != 1.0 {
		t.Errorf("first span = %+v, want EMAIL at confidence 1.0", res.Spans[0])
	}
	if res.Spans[1].Kind != KindPhone || res.Spans[1].Confidence != 1.0 {
		t.Errorf("second span = %+v, want PHONE at confidence 1.0", res.Spans[1])
	}
}

func TestDetectBilingualExample(t *testing.T) {
	text := "Contactez Jean Dupont à jean.dupont@example.com ou au 06 12 34 56 78"
	backend := &fakeBackend{spans: []Span{
		spanFor(t, text, "Jean Dupont", KindPerson, 0.92),
	}}
	d := NewDetector(backend, 0.7, nil)

	res := d.Detect(context.Background(), text, lang.French)

	if len(res.Spans) != 3 {
		t.Fatalf("got %d spans, want 3: %+v", len(res.Spans), res.Spans)
	}
	wantKinds := []EntityKind{KindPerson, KindEmail, KindPhone}
	for i, k := range wantKinds {
		if res.Spans[i].Kind != k {
			t.Errorf("span %d kind = %v, want %v", i, res.Spans[i].Kind, k)
		}
	}
	if res.Spans[1].Confidence != 1.0 || res.Spans[2].Confidence != 1.0 {
		t.Error("pattern spans (EMAIL, PHONE) must carry confidence 1.0")
	}
	if res.Spans[2].Text != "06 12 34 56 78" {
		t.Errorf("phone span text = %q", res.Spans[2].Text)
	}
}

func TestDetectNationalIDBeatsPhoneOnOverlap(t *testing.T) {
	d := NewDetector(nil, 0.7, nil)

	// A dashed SSN also matches the phone shape; the national-ID pattern is
	// registered first and must win the full tie.
	res := d.Detect(context.Background(), "SSN on file: 123-45-6789", lang.English)

	if len(res.Spans) != 1 {
		t.Fatalf("got %d spans, want 1: %+v", len(res.Spans), res.Spans)
	}
	if res.Spans[0].Kind != KindNationalID {
		t.Errorf("kind = %v, want NATIONAL_ID", res.Spans[0].Kind)
	}
}

func TestDetectFrenchNationalIDAndPassport(t *testing.T) {
	d := NewDetector(nil, 0.7, nil)

	cases := []struct {
		text string
		kind EntityKind
	}{
		{"numéro de sécurité sociale 1850275123456", KindNationalID},
		{"passport XY1234567 issued 2019", KindPassport},
	}
	for _, c := range cases {
		res := d.Detect(context.Background(), c.text, lang.French)
		found := false
		for _, s := range res.Spans {
			if s.Kind == c.kind {
				found = true
			}
		}
		if !found {
			t.Errorf("no %v span in %q: %+v", c.kind, c.text, res.Spans)
		}
	}
}

func TestDetectDateIsNotAPhone(t *testing.T) {
	d := NewDetector(nil, 0.7, nil)
	res := d.Detect(context.Background(), "signed on 2023-01-15 in duplicate", lang.English)
	for _, s := range res.Spans {
		if s.Kind == KindPhone {
			t.Errorf("date matched as phone: %+v", s)
		}
	}
}

func TestDetectBackendErrorDegradesToPartial(t *testing.T) {
	backend := &fakeBackend{err: errors.New("model unreachable")}
	d := NewDetector(backend, 0.7, nil)

	text := "Email bob@corp.io about the merger"
	res := d.Detect(context.Background(), text, lang.English)

	if !res.Partial {
		t.Error("backend failure must flag the result as partial")
	}
	if len(res.Spans) != 1 || res.Spans[0].Kind != KindEmail {
		t.Errorf("pattern spans must survive backend failure: %+v", res.Spans)
	}
}

func TestDetectThresholdFiltersModelSpans(t *testing.T) {
	text := "Maybe Alice Carroll attended"
	backend := &fakeBackend{spans: []Span{
		spanFor(t, text, "Alice Carroll", KindPerson, 0.4),
	}}
	d := NewDetector(backend, 0.7, nil)

	res := d.Detect(context.Background(), text, lang.English)
	if len(res.Spans) != 0 {
		t.Errorf("sub-threshold span must be dropped: %+v", res.Spans)
	}
}

func TestDetectOutOfBoundsModelSpanDropped(t *testing.T) {
	backend := &fakeBackend{spans: []Span{
		{Start: 5, End: 999, Kind: KindPerson, Text: "x", Confidence: 0.9},
	}}
	d := NewDetector(backend, 0.7, nil)

	res := d.Detect(context.Background(), "short text", lang.English)
	if len(res.Spans) != 0 {
		t.Errorf("out-of-bounds span must be dropped: %+v", res.Spans)
	}
}

func TestDetectIdempotentOnRedactedText(t *testing.T) {
	d := NewDetector(nil, 0.7, nil)
	policy, err := NewPolicy("redact", "*", nil)
	if err != nil {
		t.Fatal(err)
	}

	text := "Contact jean.dupont@example.com or 06 12 34 56 78"
	first := d.Detect(context.Background(), text, lang.French)
	if len(first.Spans) == 0 {
		t.Fatal("first pass found nothing")
	}

	sanitized, err := Redact(text, first.Spans, policy)
	if err != nil {
		t.Fatal(err)
	}

	second := d.Detect(context.Background(), sanitized.Redacted, lang.French)
	if len(second.Spans) != 0 {
		t.Errorf("second pass on redacted text found spans: %+v", second.Spans)
	}
}

func TestDetectEmptyText(t *testing.T) {
	backend := &fakeBackend{}
	d := NewDetector(backend, 0.7, nil)
	res := d.Detect(context.Background(), "", lang.English)
	if len(res.Spans) != 0 || res.Partial {
		t.Errorf("empty text should yield an empty result, got %+v", res)
	}
	if backend.calls != 0 {
		t.Error("backend must not be called for empty text")
	}
}

func TestResolveOverlapsPriority(t *testing.T) {
	cases := []struct {
		name string
		pool []Span
		want []Span
	}{
		{
			name: "higher confidence wins",
			pool: []Span{
				{Start: 0, End: 5, Kind: KindPerson, Confidence: 0.8},
				{Start: 2, End: 7, Kind: KindOrganization, Confidence: 0.9},
			},
			want: []Span{{Start: 2, End: 7, Kind: KindOrganization, Confidence: 0.9}},
		},
		{
			name: "longer span wins on equal confidence",
			pool: []Span{
				{Start: 0, End: 4, Kind: KindPerson, Confidence: 0.9},
				{Start: 0, End: 9, Kind: KindPerson, Confidence: 0.9},
			},
			want: []Span{{Start: 0, End: 9, Kind: KindPerson, Confidence: 0.9}},
		},
		{
			name: "earlier start wins on equal confidence and length",
			pool: []Span{
				{Start: 3, End: 8, Kind: KindLocation, Confidence: 0.9},
				{Start: 1, End: 6, Kind: KindPerson, Confidence: 0.9},
			},
			want: []Span{{Start: 1, End: 6, Kind: KindPerson, Confidence: 0.9}},
		},
		{
			name: "non-overlapping spans all kept, sorted",
			pool: []Span{
				{Start: 10, End: 15, Kind: KindEmail, Confidence: 1.0},
				{Start: 0, End: 5, Kind: KindPerson, Confidence: 0.9},
			},
			want: []Span{
				{Start: 0, End: 5, Kind: KindPerson, Confidence: 0.9},
				{Start: 10, End: 15, Kind: KindEmail, Confidence: 1.0},
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := resolveOverlaps(c.pool)
			if len(got) != len(c.want) {
				t.Fatalf("got %d spans, want %d: %+v", len(got), len(c.want), got)
			}
			for i := range got {
				if got[i] != c.want[i] {
					t.Errorf("span %d = %+v, want %+v", i, got[i], c.want[i])
				}
			}
		})
	}
}

func TestKindFromStringClosedSet(t *testing.T) {
	if k := KindFromString("EMAIL"); k != KindEmail {
		t.Errorf("KindFromString(EMAIL) = %v", k)
	}
	if k := KindFromString("IBAN"); k != KindOther {
		t.Errorf("unknown labels must fold to OTHER, got %v", k)
	}
}
