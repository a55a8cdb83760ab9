package pipeline

import "fmt"

// State names one stage of the request state machine.
type State string

const (
	StateReceived          State = "RECEIVED"
	StateQuerySanitized    State = "QUERY_SANITIZED"
	StateRetrieved         State = "RETRIEVED"
	StatePassagesSanitized State = "PASSAGES_SANITIZED"
	StateContextBuilt      State = "CONTEXT_BUILT"
	StateGenerated         State = "GENERATED"
	StateResponded         State = "RESPONDED"
	StateFailed            State = "FAILED"
)

// ErrorCode classifies a pipeline failure for the caller.
type ErrorCode string

const (
	// CodeInvalidRequest rejects a malformed request before any processing.
	CodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	// CodeInvalidPolicy rejects a malformed redaction policy.
	CodeInvalidPolicy ErrorCode = "INVALID_POLICY"
	// CodeOffsetIntegrity reports spans referencing offsets outside their
	// text, an internal invariant violation.
	CodeOffsetIntegrity ErrorCode = "OFFSET_INTEGRITY"
	// CodeUpstream reports a failed external collaborator (retriever or
	// generation model).
	CodeUpstream ErrorCode = "UPSTREAM_ERROR"
	// CodeTimeout reports an abandoned generation call.
	CodeTimeout ErrorCode = "TIMEOUT"
	// CodeInternal covers everything else.
	CodeInternal ErrorCode = "INTERNAL"
)

// PipelineError is the structured error returned for a failed request. The
// stage tag lets the caller tell "no answer because retrieval failed" from
// "no answer because generation failed". Message is always a fixed string:
// caller input never appears in error output.
type PipelineError struct {
	Stage   State     `json:"stage"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at %s (%s): %s", e.Stage, e.Code, e.Message)
}
