// Package assemble builds the bounded, sanitized context handed to the
// answer generator.
//
// Each retrieved passage is detected and redacted independently (fanned out
// per passage), then packed into the prompt in descending retrieval-score
// order under a character budget. A passage that would overflow the budget is
// truncated at a sentence boundary, shifted left if needed so the cut never
// lands inside a redaction placement.
package assemble

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/lang"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/logger"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/pii"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/retrieval"
)

// PassageContext pairs a retrieved passage with its sanitized text.
type PassageContext struct {
	ID        string
	SourceDoc string
	Score     float64
	Sanitized pii.SanitizedText
	Truncated bool
}

// QueryContext is everything the generator prompt is built from. It is
// constructed per request, consumed once, and never persisted.
type QueryContext struct {
	Query    pii.SanitizedText
	Passages []PassageContext
	// Protected records whether redaction was applied; the prompt preamble
	// explains the bracketed placeholders only when it was.
	Protected bool
	// Partial is set when entity detection degraded to pattern-only for the
	// query or any included passage.
	Partial bool
}

// Assembler sanitizes passages and packs them under the context budget.
type Assembler struct {
	detector *pii.Detector
	policy   pii.Policy
	maxChars int
	log      *logger.Logger
}

// New creates an assembler. maxChars bounds the summed size of the rendered
// passage blocks; the query and prompt scaffolding are not counted against it.
func New(detector *pii.Detector, policy pii.Policy, maxChars int, log *logger.Logger) *Assembler {
	if log == nil {
		log = logger.New("ASSEMBLE", "info")
	}
	return &Assembler{detector: detector, policy: policy, maxChars: maxChars, log: log}
}

// Assemble sanitizes every passage and packs the highest-scoring ones under
// the budget. query must already be sanitized by the caller. When active is
// false, detection still runs but passages pass through un-redacted.
//
// Passage inputs are never mutated; sort order inside the result is by
// descending score with ties kept in retrieval order.
func (a *Assembler) Assemble(ctx context.Context, query pii.SanitizedText, language lang.Lang, passages []retrieval.Passage, active bool) (*QueryContext, error) {
	qc := &QueryContext{Query: query, Protected: active}

	sanitized := make([]PassageContext, len(passages))
	partial := make([]bool, len(passages))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range passages {
		g.Go(func() error {
			res := a.detector.Detect(gctx, p.Text, language)
			partial[i] = res.Partial

			st := pii.SanitizedText{Original: p.Text, Redacted: p.Text, Spans: res.Spans}
			if active {
				var err error
				st, err = pii.Redact(p.Text, res.Spans, a.policy)
				if err != nil {
					return fmt.Errorf("sanitize passage %s: %w", p.ID, err)
				}
			}
			sanitized[i] = PassageContext{
				ID:        p.ID,
				SourceDoc: p.SourceDoc,
				Score:     p.Score,
				Sanitized: st,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, p := range partial {
		if p {
			qc.Partial = true
		}
	}

	// Stable sort keeps retrieval order for equal scores.
	sort.SliceStable(sanitized, func(i, j int) bool {
		return sanitized[i].Score > sanitized[j].Score
	})

	remaining := a.maxChars
	for _, pc := range sanitized {
		cost := blockLen(pc.SourceDoc, pc.Sanitized.Redacted)
		if cost <= remaining {
			qc.Passages = append(qc.Passages, pc)
			remaining -= cost
			continue
		}

		// Budget left for text after the block scaffolding.
		room := remaining - blockLen(pc.SourceDoc, "")
		cut, ok := truncateAt(pc.Sanitized.Redacted, room, pc.Sanitized.Placements)
		if !ok {
			a.log.Debugf("assemble", "passage %s dropped, %d chars of budget left", pc.ID, remaining)
			break
		}
		pc.Sanitized.Redacted = pc.Sanitized.Redacted[:cut]
		pc.Truncated = true
		qc.Passages = append(qc.Passages, pc)
		break
	}

	a.log.Debugf("assemble", "packed %d/%d passages, %d chars of budget unused",
		len(qc.Passages), len(passages), remaining)
	return qc, nil
}

// blockLen is the budget cost of one rendered passage block.
func blockLen(sourceDoc, text string) int {
	return len("Source: ") + len(sourceDoc) + len("\nContent: ") + len(text) + len("\n\n")
}

// minTruncated is the smallest truncated passage worth keeping; anything
// shorter adds noise without content.
const minTruncated = 40

// truncateAt returns the byte offset to cut text so that the kept prefix fits
// in room, ends at a sentence boundary, and never splits a placement. ok is
// false when no acceptable cut exists.
func truncateAt(text string, room int, placements []pii.Placement) (int, bool) {
	if room <= 0 {
		return 0, false
	}
	if room >= len(text) {
		return len(text), true
	}

	cut := lastSentenceEnd(text[:room])
	// A cut inside a placement moves left to the placement start, then back
	// to the sentence end before it.
	for {
		adjusted := cut
		for _, p := range placements {
			if adjusted > p.Start && adjusted < p.End {
				adjusted = p.Start
			}
		}
		if adjusted == cut {
			break
		}
		cut = lastSentenceEnd(text[:adjusted])
	}

	if cut < minTruncated {
		return 0, false
	}
	return cut, true
}

// lastSentenceEnd returns the offset just past the last sentence terminator
// in s, or 0 when s holds no complete sentence.
func lastSentenceEnd(s string) int {
	best := 0
	for _, sep := range []string{". ", ".\n", "! ", "? ", "!\n", "?\n"} {
		if idx := strings.LastIndex(s, sep); idx >= 0 && idx+1 > best {
			best = idx + 1
		}
	}
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		best = len(s)
	}
	return best
}
