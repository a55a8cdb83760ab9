// Package pii detects and neutralizes personally identifiable information
// in text before it can reach an external language model.
//
// Detection runs in two passes:
//  1. Deterministic regex pass for structured identifiers (email, phone,
//     national ID, passport). Pattern matches carry confidence 1.0.
//  2. Statistical NER pass for context-dependent entities (person,
//     organization, location), delegated to a pluggable Backend selected at
//     startup. The backend is best-effort: when it is unavailable the
//     detector degrades to pattern-only results flagged as partial.
//
// Redaction is a pure function over (text, spans, policy) and is safe to
// call concurrently on independent inputs.
package pii

import "sort"

// EntityKind classifies the kind of sensitive data found.
// The set is closed: detections with unknown labels map to KindOther.
type EntityKind string

// Supported entity kinds.
const (
	KindPerson       EntityKind = "PERSON"
	KindEmail        EntityKind = "EMAIL"
	KindPhone        EntityKind = "PHONE"
	KindNationalID   EntityKind = "NATIONAL_ID"
	KindPassport     EntityKind = "PASSPORT"
	KindOrganization EntityKind = "ORGANIZATION"
	KindLocation     EntityKind = "LOCATION"
	KindOther        EntityKind = "OTHER"
)

// Kinds lists every supported entity kind, in placeholder/report order.
var Kinds = []EntityKind{
	KindPerson, KindEmail, KindPhone, KindNationalID,
	KindPassport, KindOrganization, KindLocation, KindOther,
}

// KindFromString maps a label to an EntityKind, folding anything outside
// the closed set to KindOther.
func KindFromString(s string) EntityKind {
	for _, k := range Kinds {
		if string(k) == s {
			return k
		}
	}
	return KindOther
}

// Placeholder returns the redaction token for this kind, e.g. "[PERSON]".
func (k EntityKind) Placeholder() string {
	return "[" + string(k) + "]"
}

// Span is a located, typed substring flagged as PII.
// Invariant: 0 <= Start < End <= len(source text), byte offsets.
type Span struct {
	Start      int
	End        int
	Kind       EntityKind
	Text       string
	Confidence float64
}

// overlaps reports whether two spans share at least one byte.
func (s Span) overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// resolveOverlaps reduces a pooled candidate list to non-overlapping spans.
// Priority: higher confidence, then longer span, then earlier start, then
// pool order (patterns are pooled before model spans, so on a full tie the
// deterministic pass wins). Output is sorted by start offset.
func resolveOverlaps(pool []Span) []Span {
	if len(pool) <= 1 {
		return append([]Span(nil), pool...)
	}

	type candidate struct {
		Span
		order int
	}
	cands := make([]candidate, len(pool))
	for i, s := range pool {
		cands[i] = candidate{Span: s, order: i}
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if al, bl := a.End-a.Start, b.End-b.Start; al != bl {
			return al > bl
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.order < b.order
	})

	var kept []Span
	for _, c := range cands {
		conflict := false
		for _, k := range kept {
			if c.Span.overlaps(k) {
				conflict = true
				break
			}
		}
		if !conflict {
			kept = append(kept, c.Span)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}
