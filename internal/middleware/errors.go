package middleware

import (
	"net/http"

	"github.com/go-chi/render"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
)

// statusProblemTypes gives the problem type for statuses the middleware
// chain raises itself. Other statuses are reported as internal.
var statusProblemTypes = map[int]string{
	http.StatusBadRequest:            apierrors.TypeValidation,
	http.StatusRequestEntityTooLarge: apierrors.TypeValidation,
	http.StatusUnsupportedMediaType:  apierrors.TypeValidation,
	http.StatusNotFound:              apierrors.TypeNotFound,
	http.StatusConflict:              apierrors.TypeConflict,
	http.StatusTooManyRequests:       apierrors.TypeRateLimit,
	http.StatusGatewayTimeout:        apierrors.TypeTimeout,
	http.StatusServiceUnavailable:    apierrors.TypeServiceDown,
}

// ProblemFromStatus builds a problem for status. An empty traceID is left out.
func ProblemFromStatus(status int, detail string, traceID string) *apierrors.ProblemDetails {
	problemType, ok := statusProblemTypes[status]
	if !ok {
		problemType = apierrors.TypeInternal
	}
	problem := apierrors.NewProblemDetails(status, problemType, "", detail, "")
	if traceID != "" {
		problem.WithExtension("trace_id", traceID)
	}
	return problem
}

// writeProblem answers a request the chain rejects before routing.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	problem := ProblemFromStatus(status, detail, GetRequestID(r.Context()))
	problem.Instance = r.URL.Path
	render.Render(w, r, problem)
}
