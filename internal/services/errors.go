package services

import (
	"context"
	"errors"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
)

// Session state errors. The missing-state errors render as 404 problems,
// ErrInputsChanged as a 409.
var (
	ErrNoData        = apierrors.ErrNoData
	ErrNoResults     = apierrors.ErrNoResults
	ErrNoDiagnosis   = apierrors.ErrNoDiagnosisRun
	ErrInputsChanged = apierrors.ErrInputsChanged
)

// stageError keeps typed errors and cancellation intact and wraps anything
// else as an analysis failure of stage.
func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var appErr *apierrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apierrors.NewAnalysisError(stage, err)
}
