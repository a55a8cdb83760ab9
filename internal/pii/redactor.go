package pii

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Strategy selects how detected spans are rewritten.
type Strategy string

// Supported redaction strategies.
const (
	// StrategyRedact replaces each span with a kind-tagged placeholder,
	// e.g. "[PERSON]". Output length may differ from the input.
	StrategyRedact Strategy = "redact"

	// StrategyMask overwrites interior characters while preserving span
	// length and a boundary hint (first and last characters stay visible).
	StrategyMask Strategy = "mask"
)

// ErrInvalidPolicy is returned by NewPolicy for malformed configurations.
var ErrInvalidPolicy = errors.New("pii: invalid redaction policy")

// ErrOffsetIntegrity is returned by Redact when spans reference offsets
// outside the text or overlap each other. It is an internal invariant
// violation and is never silently clamped.
var ErrOffsetIntegrity = errors.New("pii: span offsets violate text bounds")

// Policy is a validated redaction configuration. Construct with NewPolicy;
// the zero value is not valid.
type Policy struct {
	Strategy      Strategy
	MaskChar      rune
	PreserveKinds map[EntityKind]bool
}

// NewPolicy validates and builds a Policy. Unknown strategies, multi-rune
// mask characters and unknown preserve kinds are rejected (fail fast).
func NewPolicy(strategy, maskChar string, preserveKinds []string) (Policy, error) {
	s := Strategy(strategy)
	if s != StrategyRedact && s != StrategyMask {
		return Policy{}, fmt.Errorf("%w: unknown strategy %q", ErrInvalidPolicy, strategy)
	}
	if utf8.RuneCountInString(maskChar) != 1 {
		return Policy{}, fmt.Errorf("%w: mask char must be a single rune, got %q", ErrInvalidPolicy, maskChar)
	}
	preserve := make(map[EntityKind]bool, len(preserveKinds))
	for _, k := range preserveKinds {
		kind := KindFromString(strings.ToUpper(strings.TrimSpace(k)))
		if string(kind) != strings.ToUpper(strings.TrimSpace(k)) {
			return Policy{}, fmt.Errorf("%w: unknown entity kind %q", ErrInvalidPolicy, k)
		}
		preserve[kind] = true
	}
	r, _ := utf8.DecodeRuneInString(maskChar)
	return Policy{Strategy: s, MaskChar: r, PreserveKinds: preserve}, nil
}

// SanitizedText is the immutable result of one redaction call.
type SanitizedText struct {
	// Original is the input text, untouched.
	Original string

	// Redacted is the sanitized copy.
	Redacted string

	// Spans are the detected spans, with offsets into Original,
	// sorted by start. Includes spans skipped via PreserveKinds.
	Spans []Span

	// Placements locate each replacement inside Redacted, sorted by start.
	// Preserved spans do not appear here. Used by the context assembler to
	// avoid truncating mid-entity.
	Placements []Placement
}

// Placement is the interval a replacement occupies in the redacted text.
type Placement struct {
	Start int
	End   int
	Kind  EntityKind
}

// Redact applies spans to text under the given policy.
//
// Spans are applied in reverse order of start offset so earlier offsets
// stay valid while later (rightward) spans are rewritten first. This is
// the standard safe-rewrite order for offset-based edits; changing it
// introduces offset drift.
//
// Pure function: no I/O, no shared state. Safe for concurrent use on
// independent inputs.
func Redact(text string, spans []Span, policy Policy) (SanitizedText, error) {
	ordered := append([]Span(nil), spans...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	for i, s := range ordered {
		if s.Start < 0 || s.End <= s.Start || s.End > len(text) {
			return SanitizedText{}, fmt.Errorf("%w: span %d is [%d,%d) over %d bytes", ErrOffsetIntegrity, i, s.Start, s.End, len(text))
		}
		if i > 0 && s.Start < ordered[i-1].End {
			return SanitizedText{}, fmt.Errorf("%w: span %d overlaps its predecessor", ErrOffsetIntegrity, i)
		}
	}

	redacted := text
	for i := len(ordered) - 1; i >= 0; i-- {
		s := ordered[i]
		if policy.PreserveKinds[s.Kind] {
			continue
		}
		redacted = redacted[:s.Start] + policy.replacement(text[s.Start:s.End], s.Kind) + redacted[s.End:]
	}

	// Forward pass to compute where each replacement landed in the output.
	var placements []Placement
	delta := 0
	for _, s := range ordered {
		if policy.PreserveKinds[s.Kind] {
			continue
		}
		repl := policy.replacement(text[s.Start:s.End], s.Kind)
		start := s.Start + delta
		placements = append(placements, Placement{Start: start, End: start + len(repl), Kind: s.Kind})
		delta += len(repl) - (s.End - s.Start)
	}

	return SanitizedText{
		Original:   text,
		Redacted:   redacted,
		Spans:      ordered,
		Placements: placements,
	}, nil
}

// replacement builds the rewrite for one span under the policy.
func (p Policy) replacement(original string, kind EntityKind) string {
	if p.Strategy == StrategyMask {
		return maskSpan(original, p.MaskChar)
	}
	return kind.Placeholder()
}

// maskSpan overwrites alphanumeric runes with the mask char, keeping the
// first and last two runes visible as a boundary hint when the span is
// long enough. Separators (spaces, dashes, '@', '.') pass through so the
// shape of the value stays recognizable:
//
//	"06 12 34 56 78" → "06 ** ** ** 78"
//
// Output rune length always equals input rune length.
func maskSpan(s string, maskChar rune) string {
	runes := []rune(s)
	keep := 2
	if len(runes) <= 4 {
		keep = 0 // too short for a boundary hint without leaking most of it
	}
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch {
		case i < keep || i >= len(runes)-keep:
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(maskChar)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
