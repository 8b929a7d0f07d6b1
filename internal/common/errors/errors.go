// Package errors provides the tagged error type shared by every analysis transport.
package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Error Kinds
// ==========================

// ErrorKind classifies a failure of the analysis pipeline.
type ErrorKind string

const (
	KindClientInput ErrorKind = "CLIENT_INPUT_ERROR"
	KindDecode      ErrorKind = "DECODE_ERROR"
	KindSchema      ErrorKind = "SCHEMA_ERROR"
	KindUpstream    ErrorKind = "UPSTREAM_ERROR"
	KindConfig      ErrorKind = "CONFIG_ERROR"
)

const (
	StatusFailed = "failed"

	MsgContentRequired     = "content is required"
	MsgInvalidOutputFormat = "Invalid GenAI output format"

	prefixExtract          = "extract_json_from_markdown: "
	prefixGenerateAndParse = "generate_and_parse_json: "
	prefixLoadTemplates    = "load_prompt_templates: "
)

// AnalysisError is the single failure representation carried through the pipeline.
// It is serialized to text only at the outer boundary.
type AnalysisError struct {
	Kind       ErrorKind `json:"kind"`
	StatusCode int       `json:"status_code"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Err        error     `json:"-"`
}

func (e *AnalysisError) Error() string {
	return e.Message
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Envelope returns the wire representation of the error.
func (e *AnalysisError) Envelope() Envelope {
	return Envelope{
		Status:     StatusFailed,
		StatusCode: e.StatusCode,
		Error:      e.Message,
	}
}

// Envelope is the {status, status_code, error} body surfaced on every failure path.
type Envelope struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
}

// String renders the envelope with spaced separators, e.g.
// {"status": "failed", "status_code": 500, "error": "..."}.
func (e Envelope) String() string {
	return fmt.Sprintf(`{"status": %s, "status_code": %d, "error": %s}`,
		quote(e.Status), e.StatusCode, quote(e.Error))
}

// ToMap returns the envelope as job variables.
func (e Envelope) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"status":      e.Status,
		"status_code": e.StatusCode,
		"error":       e.Error,
	}
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// ==========================
// 2. Error Constructors
// ==========================

// NewContentRequiredError is the only client-input (400) failure.
func NewContentRequiredError() *AnalysisError {
	return &AnalysisError{
		Kind:       KindClientInput,
		StatusCode: http.StatusBadRequest,
		Message:    MsgContentRequired,
		Timestamp:  time.Now().UTC(),
	}
}

// NewDecodeError wraps a JSON decode failure of the model output.
func NewDecodeError(err error) *AnalysisError {
	return &AnalysisError{
		Kind:       KindDecode,
		StatusCode: http.StatusInternalServerError,
		Message:    prefixExtract + err.Error(),
		Timestamp:  time.Now().UTC(),
		Err:        err,
	}
}

// NewSchemaError reports model output that does not satisfy the analysis contract.
func NewSchemaError() *AnalysisError {
	return &AnalysisError{
		Kind:       KindSchema,
		StatusCode: http.StatusInternalServerError,
		Message:    MsgInvalidOutputFormat,
		Timestamp:  time.Now().UTC(),
	}
}

// NewUpstreamError wraps a failed remote model call.
func NewUpstreamError(err error) *AnalysisError {
	return &AnalysisError{
		Kind:       KindUpstream,
		StatusCode: http.StatusInternalServerError,
		Message:    err.Error(),
		Timestamp:  time.Now().UTC(),
		Err:        err,
	}
}

// NewConfigError wraps a prompt template load failure.
func NewConfigError(err error) *AnalysisError {
	return &AnalysisError{
		Kind:       KindConfig,
		StatusCode: http.StatusInternalServerError,
		Message:    prefixLoadTemplates + err.Error(),
		Timestamp:  time.Now().UTC(),
		Err:        err,
	}
}

// WrapGenerateAndParse restamps any failure of the generate-and-parse step as a 500
// carrying "generate_and_parse_json: <inner message>". The inner kind is kept;
// errors that are not AnalysisErrors are classified as upstream failures.
func WrapGenerateAndParse(err error) *AnalysisError {
	kind := KindUpstream
	var inner *AnalysisError
	if stderrors.As(err, &inner) {
		kind = inner.Kind
	}
	return &AnalysisError{
		Kind:       kind,
		StatusCode: http.StatusInternalServerError,
		Message:    prefixGenerateAndParse + err.Error(),
		Timestamp:  time.Now().UTC(),
		Err:        err,
	}
}

// AsAnalysisError normalizes any error into an AnalysisError. Unknown errors
// become 500 upstream failures carrying their own text.
func AsAnalysisError(err error) *AnalysisError {
	if err == nil {
		return nil
	}
	var ae *AnalysisError
	if stderrors.As(err, &ae) {
		return ae
	}
	return NewUpstreamError(err)
}

// IsKind reports whether err is an AnalysisError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *AnalysisError
	return stderrors.As(err, &ae) && ae.Kind == kind
}

// ==========================
// 3. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job error variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// GetRetryCount returns the retry budget for a kind. The pipeline never retries.
func GetRetryCount(kind ErrorKind) int {
	return 0
}

// ConvertToBPMNError converts an AnalysisError to a BPMNError for Camunda.
func ConvertToBPMNError(ae *AnalysisError) *BPMNError {
	return &BPMNError{
		Code:    string(ae.Kind),
		Message: ae.Message,
		Retries: GetRetryCount(ae.Kind),
		ErrorVariables: map[string]interface{}{
			"envelope":  ae.Envelope().ToMap(),
			"timestamp": ae.Timestamp.Format(time.RFC3339),
		},
	}
}
