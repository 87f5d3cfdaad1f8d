package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem type URIs.
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeTimeout          = "/errors/timeout"
	TypeConflict         = "/errors/conflict"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeDataParsing      = "/errors/data/parsing"
	TypeInvalidRange     = "/errors/analysis/invalid-range"
	TypeLengthMismatch   = "/errors/analysis/length-mismatch"
	TypeAnalysisFailed   = "/errors/analysis/failed"
	TypeConfigInvalid    = "/errors/config/invalid"
	TypeStorage          = "/errors/storage"
	TypeWebSocketUpgrade = "/errors/websocket/upgrade-failed"
)

type problemClass struct {
	status int
	uri    string
	title  string
}

// appErrorClasses maps AppError categories onto responses. Anything not
// listed is reported as a failed analysis.
var appErrorClasses = map[ErrorType]problemClass{
	ErrTypeParsing:        {http.StatusUnprocessableEntity, TypeDataParsing, "Malformed Data File"},
	ErrTypeValidation:     {http.StatusBadRequest, TypeValidation, "Validation Failed"},
	ErrTypeNotFound:       {http.StatusNotFound, TypeNotFound, "Resource Not Found"},
	ErrTypeConfig:         {http.StatusBadRequest, TypeConfigInvalid, "Invalid Configuration"},
	ErrTypeInvalidRange:   {http.StatusUnprocessableEntity, TypeInvalidRange, "Invalid Frame Range"},
	ErrTypeLengthMismatch: {http.StatusUnprocessableEntity, TypeLengthMismatch, "Length Mismatch"},
	ErrTypeStorage:        {http.StatusInternalServerError, TypeStorage, "Storage Failure"},
}

var analysisFailed = problemClass{http.StatusInternalServerError, TypeAnalysisFailed, "Analysis Failed"}

// ErrorHandler renders every handler error as a problem document and logs it
// once.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates an error handler. includeStack adds a goroutine
// stack to each response and belongs to development builds only.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError writes err to w. A nil err writes nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	h.send(w, r, problem, nil)
}

// ErrorToProblem classifies err. Context cancellation maps to 504, APIError
// keeps its own status and AppError goes through its category.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	var (
		apiErr *APIError
		appErr *AppError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request was cancelled before it finished", r.URL.Path)

	case errors.As(err, &apiErr):
		problem := NewProblemDetails(apiErr.StatusCode, problemType(apiErr.ErrorCode), "", apiErr.Message, r.URL.Path).
			WithExtension("error_code", apiErr.ErrorCode)
		if apiErr.Details != nil {
			problem.WithExtension("details", apiErr.Details)
		}
		return problem

	case errors.As(err, &appErr):
		class, ok := appErrorClasses[appErr.Type]
		if !ok {
			class = analysisFailed
		}
		problem := NewProblemDetails(class.status, class.uri, class.title, appErr.Error(), r.URL.Path).
			WithExtension("error_type", string(appErr.Type))
		if len(appErr.Context) > 0 {
			problem.WithExtension("context", appErr.Context)
		}
		return problem
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "",
		"An unexpected error occurred while processing your request", r.URL.Path)
}

// HandlePanic answers a recovered panic with a 500.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	stack := stackTrace()
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", stack),
	)

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal, "", "An unexpected error occurred", r.URL.Path)
	var debugInfo map[string]interface{}
	if h.includeStack {
		debugInfo = map[string]interface{}{"panic": fmt.Sprint(recovered), "stack": stack}
	}
	h.send(w, r, problem, debugInfo)
}

func (h *ErrorHandler) send(w http.ResponseWriter, r *http.Request, problem *ProblemDetails, debugInfo map[string]interface{}) {
	problem.WithExtension("trace_id", middleware.GetReqID(r.Context()))
	if h.includeStack {
		problem.WithExtension("stack", stackTrace())
		for k, v := range debugInfo {
			problem.WithExtension(k, v)
		}
	}
	render.Render(w, r, problem)
}

func stackTrace() string {
	buf := make([]byte, 8<<10)
	return string(buf[:runtime.Stack(buf, false)])
}
