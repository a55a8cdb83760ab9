package pii

import (
	"context"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/lang"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/logger"
)

// Result is the outcome of one detection pass over a single text.
type Result struct {
	// Spans are non-overlapping and sorted by start offset.
	Spans []Span

	// Partial is true when the statistical backend was unavailable and only
	// the pattern pass ran. Redaction completeness for PERSON/ORGANIZATION/
	// LOCATION entities is not guaranteed on a partial result.
	Partial bool
}

// Backend is the statistical NER capability behind the detector.
// Implementations must be safe for concurrent use: one backend instance is
// shared by every request in the process.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Detect returns located PERSON/ORGANIZATION/LOCATION spans for text.
	// The language selects the underlying model.
	Detect(ctx context.Context, text string, language lang.Lang) ([]Span, error)
}

// Detector finds PII spans in text. One instance serves all requests;
// all fields are read-only after construction.
type Detector struct {
	patterns  []pattern
	backend   Backend // nil = pattern-only detection
	threshold float64 // minimum backend confidence for a span to be actionable
	log       *logger.Logger
}

// NewDetector creates a Detector. A nil backend yields pattern-only
// detection (results are still flagged as partial in that case only when a
// backend was expected — a nil backend here means pattern-only is the
// configured mode, so Partial stays false).
func NewDetector(backend Backend, threshold float64, log *logger.Logger) *Detector {
	if log == nil {
		log = logger.New("DETECTOR", "info")
	}
	return &Detector{
		patterns:  compilePatterns(),
		backend:   backend,
		threshold: threshold,
		log:       log,
	}
}

// Detect scans text and returns located PII spans, merged across the
// pattern and NER passes. Overlaps are resolved by confidence, then span
// length, then earliest start, then pool order. Re-running on redacted
// text returns no spans over placeholder tokens.
//
// Detection never fails the request: backend errors degrade the result to
// pattern-only with Partial set.
func (d *Detector) Detect(ctx context.Context, text string, language lang.Lang) Result {
	if text == "" {
		return Result{}
	}

	// Placeholder regions from a previous redaction are off-limits for
	// both passes (idempotence).
	holes := placeholderRe.FindAllStringIndex(text, -1)

	pool := d.patternPass(text, holes)

	if d.backend != nil {
		modelSpans, err := d.backend.Detect(ctx, text, language)
		if err != nil {
			d.log.Warnf("ner_degraded", "backend %s unavailable, pattern-only result: %v", d.backend.Name(), err)
			return Result{Spans: resolveOverlaps(pool), Partial: true}
		}
		for _, s := range modelSpans {
			if s.Confidence < d.threshold {
				continue
			}
			if s.Start < 0 || s.End <= s.Start || s.End > len(text) {
				d.log.Warnf("span_dropped", "backend %s returned out-of-bounds span [%d,%d)", d.backend.Name(), s.Start, s.End)
				continue
			}
			if overlapsAny(s.Start, s.End, holes) {
				continue
			}
			pool = append(pool, s)
		}
	}

	return Result{Spans: resolveOverlaps(pool)}
}

// patternPass runs every compiled regex over text.
// Matches inside placeholder regions or below a pattern's digit floor are
// skipped. Pattern spans carry confidence 1.0 (deterministic).
func (d *Detector) patternPass(text string, holes [][]int) []Span {
	var spans []Span
	for _, p := range d.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			match := text[loc[0]:loc[1]]
			if p.minDigits > 0 && digitCount(match) < p.minDigits {
				continue
			}
			if overlapsAny(loc[0], loc[1], holes) {
				continue
			}
			spans = append(spans, Span{
				Start:      loc[0],
				End:        loc[1],
				Kind:       p.kind,
				Text:       match,
				Confidence: 1.0,
			})
		}
	}
	return spans
}

// overlapsAny reports whether [start,end) intersects any interval in set.
func overlapsAny(start, end int, set [][]int) bool {
	for _, iv := range set {
		if start < iv[1] && iv[0] < end {
			return true
		}
	}
	return false
}
