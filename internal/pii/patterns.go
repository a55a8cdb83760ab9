package pii

import "regexp"

// pattern pairs a compiled regex with its entity kind.
// minDigits filters numeric patterns that are structurally valid but too
// short to be an identifier (dates match the phone shape, for example).
type pattern struct {
	re        *regexp.Regexp
	kind      EntityKind
	minDigits int
}

// patternSpecs lists the deterministic detection rules.
//
// Registration order matters: when a pattern span ties with another pooled
// span on confidence, length and start, the earlier entry wins. National
// IDs are registered before phones because a dashed SSN also matches the
// phone shape.
var patternSpecs = []struct {
	expr      string
	kind      EntityKind
	minDigits int
}{
	{`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, KindEmail, 0},
	{`\b\d{3}-\d{2}-\d{4}\b`, KindNationalID, 0}, // US SSN
	{`\b[12]\d{12}\b`, KindNationalID, 0},        // French INSEE number
	{`\b[A-Z]{1,2}\d{6,9}\b`, KindPassport, 0},
	{`(?:\+?\d{1,3}[\s.\-]?)?(?:\(\d{1,4}\)[\s.\-]?)?\d{2,4}(?:[\s.\-]\d{2,4}){2,4}\b`, KindPhone, 9},
}

// compilePatterns compiles patternSpecs. Pattern expressions are constants,
// so a compile failure is a programming error and panics at startup.
func compilePatterns() []pattern {
	out := make([]pattern, 0, len(patternSpecs))
	for _, s := range patternSpecs {
		out = append(out, pattern{
			re:        regexp.MustCompile(s.expr),
			kind:      s.kind,
			minDigits: s.minDigits,
		})
	}
	return out
}

// placeholderRe matches the redaction tokens this package produces.
// Detections overlapping a placeholder are discarded so re-running the
// detector on already-redacted text finds nothing new there.
var placeholderRe = regexp.MustCompile(
	`\[(?:PERSON|EMAIL|PHONE|NATIONAL_ID|PASSPORT|ORGANIZATION|LOCATION|OTHER)\]`,
)

// digitCount returns the number of ASCII digits in s.
func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
