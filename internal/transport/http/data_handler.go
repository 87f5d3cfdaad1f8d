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

// DataHandler serves trace uploads and the per-well and per-group results
type DataHandler struct {
	service      AnalysisServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a new data handler with RFC 7807 error handling
func NewDataHandler(service AnalysisServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
	}
}

// RegisterRoutes registers the data and result routes
func (h *DataHandler) RegisterRoutes(r chi.Router) {
	r.Post("/data", h.Upload)
	r.Get("/status", h.Status)

	r.Route("/wells", func(r chi.Router) {
		r.Get("/", h.Wells)
		r.Get("/{wellID}/trace", h.Trace)
	})
	r.Get("/groups", h.Groups)
	r.Get("/normalized", h.Normalized)
}

// Upload handles POST /data with an instrument export as a multipart
// "file" field or as the raw body
func (h *DataHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)

	body, name, err := uploadedFile(r, "file", "upload.txt")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer body.Close()

	summary, err := h.service.LoadData(ctx, body, name)
	if err != nil {
		h.logger.WarnContext(ctx, "trace upload rejected",
			slog.String("request_id", reqID),
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "trace data uploaded",
		slog.String("request_id", reqID),
		slog.String("file", name),
		slog.Int("wells", summary.Wells),
		slog.Int("frames", summary.Frames),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, api.Success(summary))
}

// Status handles GET /status
func (h *DataHandler) Status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.Success(h.service.Status()))
}

// Wells handles GET /wells with the metric row of every analyzed well
func (h *DataHandler) Wells(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	normalized := make(map[string]float64, len(snap.Normalized))
	for _, n := range snap.Normalized {
		normalized[n.WellID] = n.Normalized
	}

	rows := make([]api.WellResult, 0, len(snap.Metrics))
	for _, m := range snap.Metrics {
		row := api.WellResult{WellID: m.WellID, Metrics: m}
		if well, ok := snap.Layout.Lookup(m.WellID); ok {
			row.Label = well.Label
			row.Concentration = well.Concentration
			row.SampleID = well.SampleID
		}
		if v, ok := normalized[m.WellID]; ok {
			row.Normalized = domain.Nullable(v)
		}
		rows = append(rows, row)
	}
	render.JSON(w, r, api.List(rows, len(rows)))
}

// Trace handles GET /wells/{wellID}/trace
func (h *DataHandler) Trace(w http.ResponseWriter, r *http.Request) {
	id := domain.NormalizeWellID(chi.URLParam(r, "wellID"))

	snap, err := h.service.Snapshot()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	dff, ok := snap.Pre.DFF.Values(id)
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("well "+id))
		return
	}
	raw, _ := snap.Pre.Raw.Values(id)

	resp := api.TraceResponse{
		WellID:   id,
		RawTimes: domain.NullableSlice(snap.Pre.Raw.Times()),
		Raw:      domain.NullableSlice(raw),
		Times:    domain.NullableSlice(snap.Pre.DFF.Times()),
		DFF:      domain.NullableSlice(dff),
	}
	if f0, ok := snap.Pre.F0[id]; ok {
		resp.F0 = domain.Nullable(f0)
	}
	render.JSON(w, r, api.Success(resp))
}

// Groups handles GET /groups
func (h *DataHandler) Groups(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.List(snap.Groups, len(snap.Groups)))
}

// Normalized handles GET /normalized with each well's peak as a percentage
// of its sample's ionomycin reference
func (h *DataHandler) Normalized(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.List(snap.Normalized, len(snap.Normalized)))
}
