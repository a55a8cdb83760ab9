package metrics

import (
	"testing"
	"time"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/pii"
)

func TestNew_StartTimeSet(t *testing.T) {
	before := time.Now()
	m := New()
	after := time.Now()

	if m.startTime.Before(before) || m.startTime.After(after) {
		t.Errorf("startTime %v not in expected range [%v, %v]", m.startTime, before, after)
	}
}

func TestZeroValue_SnapshotSafe(t *testing.T) {
	var m Metrics
	s := m.Snapshot()
	if s.Queries.Total != 0 {
		t.Errorf("expected 0 total queries, got %d", s.Queries.Total)
	}
}

func TestQueryCounters(t *testing.T) {
	m := New()
	m.QueriesTotal.Add(10)
	m.QueriesProtected.Add(7)
	m.QueriesPassthrough.Add(2)
	m.QueriesFailed.Add(1)

	s := m.Snapshot()
	if s.Queries.Total != 10 {
		t.Errorf("Total: got %d, want 10", s.Queries.Total)
	}
	if s.Queries.Protected != 7 {
		t.Errorf("Protected: got %d, want 7", s.Queries.Protected)
	}
	if s.Queries.Passthrough != 2 {
		t.Errorf("Passthrough: got %d, want 2", s.Queries.Passthrough)
	}
	if s.Queries.Failed != 1 {
		t.Errorf("Failed: got %d, want 1", s.Queries.Failed)
	}
}

func TestErrorCounters(t *testing.T) {
	m := New()
	m.ErrorsRetrieval.Add(3)
	m.ErrorsGeneration.Add(2)
	m.DetectionDegraded.Add(4)

	s := m.Snapshot()
	if s.Errors.Retrieval != 3 {
		t.Errorf("Retrieval errors: got %d, want 3", s.Errors.Retrieval)
	}
	if s.Errors.Generation != 2 {
		t.Errorf("Generation errors: got %d, want 2", s.Errors.Generation)
	}
	if s.Errors.DetectionDegraded != 4 {
		t.Errorf("DetectionDegraded: got %d, want 4", s.Errors.DetectionDegraded)
	}
}

func TestPassageCounters(t *testing.T) {
	m := New()
	m.PassagesRetrieved.Add(50)
	m.PassagesPacked.Add(45)
	m.PassagesTruncated.Add(5)

	s := m.Snapshot()
	if s.Passages.Retrieved != 50 {
		t.Errorf("Retrieved: got %d, want 50", s.Passages.Retrieved)
	}
	if s.Passages.Packed != 45 {
		t.Errorf("Packed: got %d, want 45", s.Passages.Packed)
	}
	if s.Passages.Truncated != 5 {
		t.Errorf("Truncated: got %d, want 5", s.Passages.Truncated)
	}
}

func TestRecordSpansPerKind(t *testing.T) {
	m := New()
	m.RecordSpans([]pii.Span{
		{Kind: pii.KindEmail},
		{Kind: pii.KindEmail},
		{Kind: pii.KindPerson},
	})

	s := m.Snapshot()
	if s.SpansDetected["EMAIL"] != 2 {
		t.Errorf("EMAIL spans: got %d, want 2", s.SpansDetected["EMAIL"])
	}
	if s.SpansDetected["PERSON"] != 1 {
		t.Errorf("PERSON spans: got %d, want 1", s.SpansDetected["PERSON"])
	}
	if _, present := s.SpansDetected["PHONE"]; present {
		t.Error("PHONE should be absent from snapshot when count is 0")
	}
}

func TestRecordSpansUnknownKindIgnored(t *testing.T) {
	m := New()
	// Should not panic or create a new entry for a kind outside the set.
	m.RecordSpans([]pii.Span{{Kind: pii.EntityKind("IBAN")}})

	s := m.Snapshot()
	if _, present := s.SpansDetected["IBAN"]; present {
		t.Error("unknown kind should not appear in snapshot")
	}
}

func TestSpanCountersZeroValueOmitted(t *testing.T) {
	m := New()
	s := m.Snapshot()
	if len(s.SpansDetected) != 0 {
		t.Errorf("SpansDetected should be empty map when all zero, got %v", s.SpansDetected)
	}
}

func TestRecordDetectLatency_SingleSample(t *testing.T) {
	m := New()
	m.RecordDetectLatency(100 * time.Millisecond)

	s := m.Snapshot()
	if s.Latency.DetectionMs.Count != 1 {
		t.Errorf("Count: got %d, want 1", s.Latency.DetectionMs.Count)
	}
	// 100ms should be recorded as ~100ms
	if s.Latency.DetectionMs.MinMs < 90 || s.Latency.DetectionMs.MinMs > 110 {
		t.Errorf("MinMs: got %f, want ~100", s.Latency.DetectionMs.MinMs)
	}
}

func TestRecordGenerateLatency_MinMaxMean(t *testing.T) {
	m := New()
	m.RecordGenerateLatency(50 * time.Millisecond)
	m.RecordGenerateLatency(150 * time.Millisecond)
	m.RecordGenerateLatency(100 * time.Millisecond)

	s := m.Snapshot()
	ls := s.Latency.GenerationMs
	if ls.Count != 3 {
		t.Errorf("Count: got %d, want 3", ls.Count)
	}
	if ls.MinMs > 60 {
		t.Errorf("MinMs too high: %f", ls.MinMs)
	}
	if ls.MaxMs < 140 {
		t.Errorf("MaxMs too low: %f", ls.MaxMs)
	}
	// mean ~100ms
	if ls.MeanMs < 90 || ls.MeanMs > 110 {
		t.Errorf("MeanMs: got %f, want ~100", ls.MeanMs)
	}
}

func TestSnapshotLatency_EmptyIsZeroValue(t *testing.T) {
	m := New()
	s := m.Snapshot()
	if s.Latency.DetectionMs.Count != 0 {
		t.Errorf("empty detection latency count should be 0")
	}
	if s.Latency.RetrievalMs.Count != 0 {
		t.Errorf("empty retrieval latency count should be 0")
	}
	if s.Latency.GenerationMs.Count != 0 {
		t.Errorf("empty generation latency count should be 0")
	}
}

func TestSnapshot_UptimePositive(t *testing.T) {
	m := New()
	time.Sleep(5 * time.Millisecond)
	s := m.Snapshot()
	if s.UptimeSecs <= 0 {
		t.Errorf("UptimeSecs should be positive, got %f", s.UptimeSecs)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		input float64
		want  float64
	}{
		{1.236, 1.24},
		{1.234, 1.23},
		{100.0, 100.0},
		{0.0, 0.0},
	}
	for _, c := range cases {
		got := round2(c.input)
		if got != c.want {
			t.Errorf("round2(%f) = %f, want %f", c.input, got, c.want)
		}
	}
}

func TestLatencyStats_Record(t *testing.T) {
	var s latencyStats
	s.record(10)
	s.record(20)
	s.record(15)

	snap := s.snapshot()
	if snap.Count != 3 {
		t.Errorf("Count: got %d, want 3", snap.Count)
	}
	if snap.MinMs != 10 {
		t.Errorf("MinMs: got %f, want 10", snap.MinMs)
	}
	if snap.MaxMs != 20 {
		t.Errorf("MaxMs: got %f, want 20", snap.MaxMs)
	}
	if snap.MeanMs != 15 {
		t.Errorf("MeanMs: got %f, want 15", snap.MeanMs)
	}
}

func TestLatencyStats_Empty(t *testing.T) {
	var s latencyStats
	snap := s.snapshot()
	if snap.Count != 0 || snap.MinMs != 0 || snap.MaxMs != 0 || snap.MeanMs != 0 {
		t.Errorf("empty stats snapshot should be zero, got %+v", snap)
	}
}
