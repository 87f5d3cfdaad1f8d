package api

import (
	"time"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// Response is the envelope of every successful JSON response.
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Count  *int        `json:"count,omitempty"`
}

// Success wraps data in a success envelope.
func Success(data interface{}) Response {
	return Response{Status: "success", Data: data}
}

// List wraps a slice in a success envelope with its length.
func List(data interface{}, count int) Response {
	return Response{Status: "success", Data: data, Count: &count}
}

// ProcessResponse summarizes one processing run.
type ProcessResponse struct {
	RunID       string                    `json:"run_id"`
	CreatedAt   time.Time                 `json:"created_at"`
	Source      string                    `json:"source"`
	Wells       int                       `json:"wells"`
	Frames      int                       `json:"frames"`
	Groups      int                       `json:"groups"`
	Normalized  int                       `json:"normalized"`
	FitFailures int                       `json:"fit_failures"`
	DurationMS  int64                     `json:"duration_ms"`
	Parameters  domain.AnalysisParameters `json:"parameters"`
}

// WellResult is the metric row of one well with its metadata.
type WellResult struct {
	WellID        string           `json:"well_id"`
	Label         string           `json:"label"`
	Concentration string           `json:"concentration"`
	SampleID      string           `json:"sample_id"`
	Metrics       domain.MetricSet `json:"metrics"`
	Normalized    *float64         `json:"normalized,omitempty"`
}

// TraceResponse holds the raw and ΔF/F₀ traces of one well. Non-finite
// samples are null.
type TraceResponse struct {
	WellID   string     `json:"well_id"`
	F0       *float64   `json:"f0"`
	RawTimes []*float64 `json:"raw_times"`
	Raw      []*float64 `json:"raw"`
	Times    []*float64 `json:"times"`
	DFF      []*float64 `json:"dff"`
}

// DiagnosisConfigResponse returns the active configuration with any column
// overlap warnings.
type DiagnosisConfigResponse struct {
	Config   domain.DiagnosisConfig `json:"config"`
	Warnings []domain.Warning       `json:"warnings"`
	Saved    bool                   `json:"saved"`
}

// ImportResponse reports the outcome of a metadata import.
type ImportResponse struct {
	Assigned int                 `json:"assigned"`
	Skipped  []string            `json:"skipped"`
	Groups   []string            `json:"groups"`
	Layout   *domain.PlateLayout `json:"layout"`
}

// FileResponse names a file written on the server.
type FileResponse struct {
	Path string `json:"path"`
	Name string `json:"name"`
}
