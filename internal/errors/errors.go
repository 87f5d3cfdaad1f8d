package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Error codes carried in the error_code extension of a problem response.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInvalidJSON      = "INVALID_JSON"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeNotFound         = "NOT_FOUND"
	CodeNoData           = "NO_DATA"
	CodeNoResults        = "NO_RESULTS"
	CodeNoDiagnosis      = "NO_DIAGNOSIS"
	CodeConflict         = "CONFLICT"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	CodeWebSocketUpgrade = "WEBSOCKET_UPGRADE_FAILED"
)

// APIError is an error raised at the HTTP boundary with a fixed status.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// Is matches on status and code so copies of the session errors compare equal.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.StatusCode == e.StatusCode && t.ErrorCode == e.ErrorCode
}

func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	e := New(statusCode, errorCode, message)
	e.Details = details
	return e
}

// Session state errors: the plate has no data, has not been processed, or
// has not been diagnosed yet, or its inputs changed under a running pipeline.
var (
	ErrNoData         = New(http.StatusNotFound, CodeNoData, "No trace data loaded")
	ErrNoResults      = New(http.StatusNotFound, CodeNoResults, "No analysis results available; run processing first")
	ErrNoDiagnosisRun = New(http.StatusNotFound, CodeNoDiagnosis, "No diagnosis has been run")

	ErrInputsChanged = New(http.StatusConflict, CodeConflict, "Data, layout or parameters changed while processing; reprocess")
)

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the details payload for a multi-field rejection.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationError{Field: field, Message: message})
}

func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationErrors{Errors: errs})
}

// NotFoundError reports a missing resource such as a well or a saved file.
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource), resource)
}

// problemType maps an error code onto its RFC 7807 type URI.
func problemType(code string) string {
	switch code {
	case CodeValidationFailed, CodeInvalidRequest, CodeInvalidJSON, CodePayloadTooLarge:
		return TypeValidation
	case CodeNotFound, CodeNoData, CodeNoResults, CodeNoDiagnosis:
		return TypeNotFound
	case CodeConflict:
		return TypeConflict
	case CodeRateLimited:
		return TypeRateLimit
	case CodeWebSocketUpgrade:
		return TypeWebSocketUpgrade
	}
	return TypeInternal
}

// WriteError writes err as a problem document without going through
// chi/render, for callers that run before routing such as the websocket
// upgrader.
func WriteError(w http.ResponseWriter, err *APIError) {
	problem := NewProblemDetails(err.StatusCode, problemType(err.ErrorCode), http.StatusText(err.StatusCode), err.Message, "").
		WithExtension("error_code", err.ErrorCode)
	if err.Details != nil {
		problem.WithExtension("details", err.Details)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(problem)
}
