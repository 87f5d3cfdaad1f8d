package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/middleware"
	api "github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/api/v1"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// AnalysisHandler handles parameters, processing runs and diagnosis
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	query        *middleware.QueryParamValidator
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service AnalysisServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "analysis_handler")),
		errorHandler: errorHandler,
		query:        middleware.NewQueryParamValidator(errorHandler),
	}
}

// RegisterRoutes registers the analysis routes
func (h *AnalysisHandler) RegisterRoutes(r chi.Router) {
	r.Get("/parameters", h.GetParameters)
	r.Put("/parameters", h.PutParameters)
	r.Post("/process", h.Process)

	r.Route("/diagnosis", func(r chi.Router) {
		r.Get("/", h.GetDiagnosis)
		r.Post("/", h.Diagnose)
		r.Get("/config", h.GetDiagnosisConfig)
		r.Put("/config", h.PutDiagnosisConfig)
	})
}

// GetParameters handles GET /parameters
func (h *AnalysisHandler) GetParameters(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.Success(h.service.Parameters()))
}

// PutParameters handles PUT /parameters. Omitted fields take their defaults.
func (h *AnalysisHandler) PutParameters(w http.ResponseWriter, r *http.Request) {
	var params domain.AnalysisParameters
	if err := middleware.DecodeJSON(r, &params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if err := h.service.UpdateParameters(r.Context(), params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.Success(h.service.Parameters()))
}

// Process handles POST /process
func (h *AnalysisHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.service.Process(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "processing run failed",
			slog.String("request_id", middleware.GetRequestID(ctx)),
			slog.String("error", err.Error()),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := api.ProcessResponse{
		RunID:       snap.RunID,
		CreatedAt:   snap.CreatedAt,
		Source:      snap.Source,
		Wells:       len(snap.Metrics),
		Groups:      len(snap.Groups),
		Normalized:  len(snap.Normalized),
		FitFailures: snap.FitFailures,
		DurationMS:  snap.Duration.Milliseconds(),
		Parameters:  snap.Params,
	}
	if snap.Pre != nil && snap.Pre.DFF != nil {
		resp.Frames = snap.Pre.DFF.Frames()
	}
	render.JSON(w, r, api.Success(resp))
}

// GetDiagnosis handles GET /diagnosis
func (h *AnalysisHandler) GetDiagnosis(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Diagnosis()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.Success(result))
}

// Diagnose handles POST /diagnosis
func (h *AnalysisHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.Diagnose(ctx)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "diagnosis completed",
		slog.String("request_id", middleware.GetRequestID(ctx)),
		slog.String("run_id", result.RunID),
		slog.Bool("qc_passed", result.QCPassed),
		slog.Int("samples", len(result.SampleIDs)),
	)
	render.JSON(w, r, api.Success(result))
}

// GetDiagnosisConfig handles GET /diagnosis/config
func (h *AnalysisHandler) GetDiagnosisConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.service.DiagnosisConfig()
	render.JSON(w, r, api.Success(api.DiagnosisConfigResponse{
		Config:   cfg,
		Warnings: cfg.OverlapWarnings(),
	}))
}

// PutDiagnosisConfig handles PUT /diagnosis/config. With ?save=true the
// configuration is also written to the configured file.
func (h *AnalysisHandler) PutDiagnosisConfig(w http.ResponseWriter, r *http.Request) {
	save, ok := h.query.ValidateBool(w, r, "save", false)
	if !ok {
		return
	}

	var cfg domain.DiagnosisConfig
	if err := middleware.DecodeJSON(r, &cfg); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	warnings, err := h.service.SetDiagnosisConfig(r.Context(), cfg, save)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.Success(api.DiagnosisConfigResponse{
		Config:   h.service.DiagnosisConfig(),
		Warnings: warnings,
		Saved:    save,
	}))
}
