// Package pipeline sequences one query through sanitization, retrieval,
// context assembly and answer generation.
//
// The orchestrator is a short synchronous state machine per request:
//
//	RECEIVED → QUERY_SANITIZED → RETRIEVED → PASSAGES_SANITIZED
//	         → CONTEXT_BUILT → GENERATED → RESPONDED
//
// terminal on RESPONDED or FAILED. All request data is scoped to the call
// and discarded afterwards; nothing the caller sends is ever persisted.
// Detection always runs so PIIDetected reports ground truth, but redaction
// is applied only while the caller leaves protection on.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/assemble"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/generate"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/lang"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/logger"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/metrics"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/pii"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/retrieval"
)

// Request is one caller query.
type Request struct {
	Query string
	// ActivateDetector toggles redaction of the query and passages. Detection
	// itself always runs.
	ActivateDetector bool
	// Language forces the request language; empty means auto-detect.
	Language lang.Lang
}

// Answer is the structured result of a completed request.
type Answer struct {
	Text        string              `json:"answer"`
	Citations   []assemble.Citation `json:"citations"`
	PIIDetected bool                `json:"pii_detected"`
	// EntityCounts reports how many spans of each kind were found in the
	// query. Kinds only count, never values: the response must not echo
	// what was detected.
	EntityCounts       map[pii.EntityKind]int `json:"entity_counts,omitempty"`
	ProtectionEnabled  bool                   `json:"pii_protection_enabled"`
	Language           lang.Lang              `json:"language"`
	ProcessingTimeSecs float64                `json:"processing_time"`
	// Partial is set when entity detection degraded to pattern-only at any
	// point of the request.
	Partial bool `json:"partial,omitempty"`
}

// Orchestrator wires the pipeline stages together. Safe for concurrent use;
// all per-request data lives on the stack of Process.
type Orchestrator struct {
	detector   *pii.Detector
	policy     pii.Policy
	retriever  retrieval.Retriever
	assembler  *assemble.Assembler
	generator  generate.Generator
	k          int
	genTimeout time.Duration
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// New creates an orchestrator. k is how many passages are retrieved per
// query; genTimeout bounds the answer-generation call.
func New(detector *pii.Detector, policy pii.Policy, retriever retrieval.Retriever,
	assembler *assemble.Assembler, generator generate.Generator,
	k int, genTimeout time.Duration, m *metrics.Metrics, log *logger.Logger) *Orchestrator {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = logger.New("PIPELINE", "info")
	}
	return &Orchestrator{
		detector:   detector,
		policy:     policy,
		retriever:  retriever,
		assembler:  assembler,
		generator:  generator,
		k:          k,
		genTimeout: genTimeout,
		metrics:    m,
		log:        log,
	}
}

// Process runs one request through the pipeline. On failure the returned
// error is a *PipelineError tagging the stage that failed; no partial answer
// is ever returned.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Answer, error) {
	o.metrics.QueriesTotal.Add(1)
	start := time.Now()

	if req.Query == "" {
		return nil, o.fail(StateReceived, CodeInvalidRequest, "query must not be empty", nil)
	}

	// Language is resolved once and threaded through every detector call so
	// the query and its passages use the same model.
	language := req.Language
	if language == "" {
		language = lang.Detect(req.Query)
	}

	// --- query sanitization ---
	detectStart := time.Now()
	res := o.detector.Detect(ctx, req.Query, language)
	o.metrics.RecordDetectLatency(time.Since(detectStart))
	o.metrics.RecordSpans(res.Spans)
	partial := res.Partial

	query := pii.SanitizedText{Original: req.Query, Redacted: req.Query, Spans: res.Spans}
	if req.ActivateDetector {
		var err error
		query, err = pii.Redact(req.Query, res.Spans, o.policy)
		if err != nil {
			return nil, o.fail(StateQuerySanitized, codeFor(err), "query sanitization failed", err)
		}
		o.metrics.QueriesProtected.Add(1)
	} else {
		o.metrics.QueriesPassthrough.Add(1)
	}

	// --- retrieval ---
	retrieveStart := time.Now()
	passages, err := o.retriever.Search(ctx, query.Redacted, o.k)
	if err != nil {
		o.metrics.ErrorsRetrieval.Add(1)
		return nil, o.fail(StateRetrieved, CodeUpstream, "retrieval failed", err)
	}
	o.metrics.RecordRetrieveLatency(time.Since(retrieveStart))
	o.metrics.PassagesRetrieved.Add(int64(len(passages)))

	// --- passage sanitization and context assembly ---
	// Passage detection dominates assembly, so the whole call counts as
	// detection time.
	assembleStart := time.Now()
	qc, err := o.assembler.Assemble(ctx, query, language, passages, req.ActivateDetector)
	if err != nil {
		return nil, o.fail(StatePassagesSanitized, codeFor(err), "context assembly failed", err)
	}
	o.metrics.RecordDetectLatency(time.Since(assembleStart))
	partial = partial || qc.Partial
	if partial {
		o.metrics.DetectionDegraded.Add(1)
	}
	for _, pc := range qc.Passages {
		o.metrics.PassagesPacked.Add(1)
		if pc.Truncated {
			o.metrics.PassagesTruncated.Add(1)
		}
	}

	// --- generation ---
	genCtx, cancel := context.WithTimeout(ctx, o.genTimeout)
	defer cancel()

	generateStart := time.Now()
	completion, err := o.generator.Complete(genCtx, qc.Prompt(language))
	if err != nil {
		o.metrics.ErrorsGeneration.Add(1)
		code := CodeUpstream
		msg := "generation failed"
		if errors.Is(err, context.DeadlineExceeded) {
			code = CodeTimeout
			msg = "generation timed out"
		}
		return nil, o.fail(StateGenerated, code, msg, err)
	}
	o.metrics.RecordGenerateLatency(time.Since(generateStart))

	answer := &Answer{
		Text:               completion,
		Citations:          qc.Citations(),
		PIIDetected:        len(res.Spans) > 0,
		EntityCounts:       countKinds(res.Spans),
		ProtectionEnabled:  req.ActivateDetector,
		Language:           language,
		ProcessingTimeSecs: time.Since(start).Seconds(),
		Partial:            partial,
	}

	o.log.Infof("process", "%s: %d spans on query, %d passages cited, lang %s, protected=%v",
		StateResponded, len(res.Spans), len(answer.Citations), language, req.ActivateDetector)
	return answer, nil
}

// fail records the failure and builds the stage-tagged error. cause is
// logged server-side only; the returned error carries a fixed message so no
// caller text can leak through error paths.
func (o *Orchestrator) fail(stage State, code ErrorCode, msg string, cause error) *PipelineError {
	o.metrics.QueriesFailed.Add(1)
	if cause != nil {
		o.log.Errorf("process", "failed at %s (%s): %v", stage, code, cause)
	} else {
		o.log.Errorf("process", "failed at %s (%s): %s", stage, code, msg)
	}
	return &PipelineError{Stage: stage, Code: code, Message: msg}
}

// countKinds tallies detected spans by kind. Returns nil when nothing was
// found so the field is omitted from clean responses.
func countKinds(spans []pii.Span) map[pii.EntityKind]int {
	if len(spans) == 0 {
		return nil
	}
	counts := make(map[pii.EntityKind]int, len(spans))
	for _, s := range spans {
		counts[s.Kind]++
	}
	return counts
}

// codeFor maps sanitization errors onto the error taxonomy.
func codeFor(err error) ErrorCode {
	switch {
	case errors.Is(err, pii.ErrOffsetIntegrity):
		return CodeOffsetIntegrity
	case errors.Is(err, pii.ErrInvalidPolicy):
		return CodeInvalidPolicy
	default:
		return CodeInternal
	}
}
