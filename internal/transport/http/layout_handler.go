package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/files"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/layout"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/middleware"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/services"
	api "github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/api/v1"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// LayoutHandler handles plate layout editing, import and persistence
type LayoutHandler struct {
	service      AnalysisServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewLayoutHandler creates a new layout handler
func NewLayoutHandler(service AnalysisServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *LayoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LayoutHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "layout_handler")),
		errorHandler: errorHandler,
	}
}

// RegisterRoutes registers the layout routes
func (h *LayoutHandler) RegisterRoutes(r chi.Router) {
	r.Route("/layout", func(r chi.Router) {
		r.Get("/", h.GetLayout)
		r.Put("/", h.PutLayout)
		r.Post("/labels", h.ApplyLabels)
		r.Post("/import", h.Import)
		r.Get("/fmg", h.ExportFMG)
		r.Post("/save", h.Save)
		r.Post("/load", h.Load)
		r.Get("/saved", h.ListSaved)
		r.Delete("/saved/{name}", h.DeleteSaved)
	})
}

// GetLayout handles GET /layout
func (h *LayoutHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.Success(h.service.Layout()))
}

// PutLayout handles PUT /layout with a full 96-well layout document
func (h *LayoutHandler) PutLayout(w http.ResponseWriter, r *http.Request) {
	l := domain.NewPlateLayout()
	if err := middleware.DecodeJSON(r, l); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.service.SetLayout(r.Context(), l, "replace")
	render.JSON(w, r, api.Success(h.service.Layout()))
}

// ApplyLabels handles POST /layout/labels
func (h *LayoutHandler) ApplyLabels(w http.ResponseWriter, r *http.Request) {
	var req api.LabelRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	fields := make([]layout.Field, len(req.Fields))
	for i, f := range req.Fields {
		fields[i] = layout.Field(f)
	}
	cmd := services.LabelCommand{
		Mode:  services.LabelMode(req.Mode),
		Wells: req.Wells,
		Spec: layout.LabelSpec{
			Label:         req.Label,
			Concentration: req.Concentration,
			SampleID:      req.SampleID,
			Color:         req.Color,
			Fields:        fields,
		},
		Start: req.Start,
	}

	l, err := h.service.ApplyLabels(r.Context(), cmd)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.Success(l))
}

// Import handles POST /layout/import with a CSV or XLSX metadata sheet
func (h *LayoutHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, name, err := uploadedFile(r, "file", "metadata.csv")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer body.Close()

	res, err := h.service.ImportMetadata(ctx, body, name)
	if err != nil {
		h.logger.WarnContext(ctx, "metadata import failed",
			slog.String("request_id", middleware.GetRequestID(ctx)),
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, api.Success(api.ImportResponse{
		Assigned: res.Assigned,
		Skipped:  res.Skipped,
		Groups:   res.Groups,
		Layout:   res.Layout,
	}))
}

// ExportFMG handles GET /layout/fmg
func (h *LayoutHandler) ExportFMG(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.WriteFMG(&buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="plate_layout.fmg"`)
	w.Write(buf.Bytes())
}

// Save handles POST /layout/save
func (h *LayoutHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req api.LayoutFileRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	path, err := h.service.SaveLayout(r.Context(), req.Name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, api.Success(api.FileResponse{Path: path, Name: filepath.Base(path)}))
}

// Load handles POST /layout/load
func (h *LayoutHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req api.LayoutFileRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	l, err := h.service.LoadLayout(r.Context(), req.Name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.Success(l))
}

// ListSaved handles GET /layout/saved
func (h *LayoutHandler) ListSaved(w http.ResponseWriter, r *http.Request) {
	layouts, err := h.service.ListSaved(files.AreaLayouts)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.List(layouts, len(layouts)))
}

// DeleteSaved handles DELETE /layout/saved/{name}
func (h *LayoutHandler) DeleteSaved(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSaved(r.Context(), files.AreaLayouts, chi.URLParam(r, "name")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
