package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/files"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/middleware"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/services"
	api "github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/api/v1"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// ExportHandler streams result workbooks and CSV tables, and saves them
// to the reports directory
type ExportHandler struct {
	service      AnalysisServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	query        *middleware.QueryParamValidator
}

// NewExportHandler creates a new export handler
func NewExportHandler(service AnalysisServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "export_handler")),
		errorHandler: errorHandler,
		query:        middleware.NewQueryParamValidator(errorHandler),
	}
}

// RegisterRoutes registers the export routes
func (h *ExportHandler) RegisterRoutes(r chi.Router) {
	r.Route("/export", func(r chi.Router) {
		r.Get("/xlsx", h.Workbook)
		r.Get("/csv", h.MetricsCSV)
		r.Get("/reports", h.ListReports)
		r.Post("/reports", h.SaveReport)
		r.Get("/reports/{name}", h.DownloadReport)
		r.Delete("/reports/{name}", h.DeleteReport)
	})
}

// Workbook handles GET /export/xlsx
func (h *ExportHandler) Workbook(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.WriteWorkbook(r.Context(), &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.attach(w, contentTypeXLSX, services.ReportFilename(snap.Source, snap.CreatedAt, ".xlsx"), buf.Bytes())
}

// MetricsCSV handles GET /export/csv
func (h *ExportHandler) MetricsCSV(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.WriteMetricsCSV(r.Context(), &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.attach(w, contentTypeCSV, services.ReportFilename(snap.Source, snap.CreatedAt, ".csv"), buf.Bytes())
}

func (h *ExportHandler) attach(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write(body)
}

// SaveReport handles POST /export/reports
func (h *ExportHandler) SaveReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SaveReportRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	// Saved reports always land in the reports directory.
	filename := ""
	if req.Filename != "" {
		filename = filepath.Base(req.Filename)
	}

	var (
		path string
		err  error
	)
	switch req.Format {
	case "csv":
		path, err = h.service.SaveMetricsCSV(ctx, filename)
	default:
		path, err = h.service.SaveWorkbook(ctx, filename)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "report saved",
		slog.String("request_id", middleware.GetRequestID(ctx)),
		slog.String("path", path),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, api.Success(api.FileResponse{Path: path, Name: filepath.Base(path)}))
}

// ListReports handles GET /export/reports?format=csv|xlsx&limit=N
func (h *ExportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	format, ok := h.query.ValidateEnum(w, r, "format", []string{"csv", "xlsx"}, "")
	if !ok {
		return
	}
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, 1000, 0)
	if !ok {
		return
	}

	reports, err := h.service.ListSaved(files.AreaReports)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if format != "" {
		kept := reports[:0]
		for _, f := range reports {
			if strings.EqualFold(filepath.Ext(f.Name), "."+format) {
				kept = append(kept, f)
			}
		}
		reports = kept
	}
	// Newest first, so a limit keeps the most recent reports.
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	render.JSON(w, r, api.List(reports, len(reports)))
}

// DownloadReport handles GET /export/reports/{name}
func (h *ExportHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	f, info, err := h.service.OpenSaved(files.AreaReports, chi.URLParam(r, "name"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer f.Close()

	contentType := contentTypeXLSX
	if strings.EqualFold(filepath.Ext(info.Name), ".csv") {
		contentType = contentTypeCSV
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name))
	http.ServeContent(w, r, info.Name, info.ModTime, f)
}

// DeleteReport handles DELETE /export/reports/{name}
func (h *ExportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSaved(r.Context(), files.AreaReports, chi.URLParam(r, "name")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
