// Package metrics provides lightweight, lock-minimal counters for the
// query pipeline.
//
// Counters use sync/atomic so hot paths (detection, passage packing) incur
// no mutex contention. Latency statistics use a single mutex per dimension;
// they are updated at most once per request.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/pii"
)

// Metrics holds all runtime counters for a running pipeline instance.
// The zero value is NOT valid for the per-kind span counters — use New().
type Metrics struct {
	// Query counters
	QueriesTotal       atomic.Int64
	QueriesProtected   atomic.Int64 // processed with redaction active
	QueriesPassthrough atomic.Int64 // redaction toggled off by the caller
	QueriesFailed      atomic.Int64

	// Error counters
	ErrorsRetrieval   atomic.Int64
	ErrorsGeneration  atomic.Int64
	DetectionDegraded atomic.Int64 // requests answered with pattern-only detection

	// Passage volume
	PassagesRetrieved atomic.Int64
	PassagesPacked    atomic.Int64
	PassagesTruncated atomic.Int64

	// Detected span counters per entity kind.
	// The map is written only in New(); concurrent reads are safe without a lock.
	spansDetected map[pii.EntityKind]*atomic.Int64

	// Latency statistics (mutex-guarded because they accumulate floats)
	detectMu   sync.Mutex
	detectStat latencyStats

	retrieveMu   sync.Mutex
	retrieveStat latencyStats

	generateMu   sync.Mutex
	generateStat latencyStats

	startTime time.Time
}

// New returns a new Metrics with the start time recorded and per-kind span
// counters pre-populated for the whole entity-kind set.
func New() *Metrics {
	m := &Metrics{
		startTime:     time.Now(),
		spansDetected: make(map[pii.EntityKind]*atomic.Int64, len(pii.Kinds)),
	}
	for _, k := range pii.Kinds {
		m.spansDetected[k] = new(atomic.Int64)
	}
	return m
}

// RecordSpans increments the per-kind counters for one detection result.
// Unknown kinds are silently ignored.
func (m *Metrics) RecordSpans(spans []pii.Span) {
	for _, s := range spans {
		if c, ok := m.spansDetected[s.Kind]; ok {
			c.Add(1)
		}
	}
}

// RecordDetectLatency records the duration of one full detection pass
// (query plus passages).
func (m *Metrics) RecordDetectLatency(d time.Duration) {
	m.detectMu.Lock()
	m.detectStat.record(float64(d.Microseconds()) / 1000.0)
	m.detectMu.Unlock()
}

// RecordRetrieveLatency records the round-trip time of one index search.
func (m *Metrics) RecordRetrieveLatency(d time.Duration) {
	m.retrieveMu.Lock()
	m.retrieveStat.record(float64(d.Microseconds()) / 1000.0)
	m.retrieveMu.Unlock()
}

// RecordGenerateLatency records the round-trip time to the answer model.
func (m *Metrics) RecordGenerateLatency(d time.Duration) {
	m.generateMu.Lock()
	m.generateStat.record(float64(d.Microseconds()) / 1000.0)
	m.generateMu.Unlock()
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON encoding.
func (m *Metrics) Snapshot() Snapshot {
	m.detectMu.Lock()
	detect := m.detectStat.snapshot()
	m.detectMu.Unlock()

	m.retrieveMu.Lock()
	retrieve := m.retrieveStat.snapshot()
	m.retrieveMu.Unlock()

	m.generateMu.Lock()
	generate := m.generateStat.snapshot()
	m.generateMu.Unlock()

	spans := make(map[string]int64, len(m.spansDetected))
	for k, c := range m.spansDetected {
		if n := c.Load(); n > 0 {
			spans[string(k)] = n
		}
	}

	return Snapshot{
		Queries: QuerySnapshot{
			Total:       m.QueriesTotal.Load(),
			Protected:   m.QueriesProtected.Load(),
			Passthrough: m.QueriesPassthrough.Load(),
			Failed:      m.QueriesFailed.Load(),
		},
		Errors: ErrorSnapshot{
			Retrieval:         m.ErrorsRetrieval.Load(),
			Generation:        m.ErrorsGeneration.Load(),
			DetectionDegraded: m.DetectionDegraded.Load(),
		},
		Passages: PassageSnapshot{
			Retrieved: m.PassagesRetrieved.Load(),
			Packed:    m.PassagesPacked.Load(),
			Truncated: m.PassagesTruncated.Load(),
		},
		SpansDetected: spans,
		Latency: LatencyGroup{
			DetectionMs:  detect,
			RetrievalMs:  retrieve,
			GenerationMs: generate,
		},
		UptimeSecs: time.Since(m.startTime).Seconds(),
	}
}

// --- JSON-serialisable snapshot types ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Queries       QuerySnapshot    `json:"queries"`
	Errors        ErrorSnapshot    `json:"errors"`
	Passages      PassageSnapshot  `json:"passages"`
	SpansDetected map[string]int64 `json:"spansDetected,omitempty"`
	Latency       LatencyGroup     `json:"latency"`
	UptimeSecs    float64          `json:"uptimeSecs"`
}

// QuerySnapshot holds request-level counters.
type QuerySnapshot struct {
	Total       int64 `json:"total"`
	Protected   int64 `json:"protected"`
	Passthrough int64 `json:"passthrough"`
	Failed      int64 `json:"failed"`
}

// ErrorSnapshot holds error counters.
type ErrorSnapshot struct {
	Retrieval         int64 `json:"retrieval"`
	Generation        int64 `json:"generation"`
	DetectionDegraded int64 `json:"detectionDegraded"`
}

// PassageSnapshot holds passage volume counters.
type PassageSnapshot struct {
	Retrieved int64 `json:"retrieved"`
	Packed    int64 `json:"packed"`
	Truncated int64 `json:"truncated"`
}

// LatencyGroup groups the three latency dimensions.
type LatencyGroup struct {
	DetectionMs  LatencySnapshot `json:"detectionMs"`
	RetrievalMs  LatencySnapshot `json:"retrievalMs"`
	GenerationMs LatencySnapshot `json:"generationMs"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

// --- internal accumulator ---

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}
