package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/aggregate"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// MetricsHeaders is the column layout of the per-well metrics CSV.
var MetricsHeaders = []string{
	"well_id", "group", "label", "concentration", "sample_id",
	"peak_dff", "time_to_peak_s", "auc", "baseline_dff", "raw_baseline",
	"normalized_percent",
	"fit_amplitude", "fit_center", "fit_sigma", "fit_tau_rise", "fit_tau_decay",
	"fit_rise_time", "fit_fwhm", "fit_auc", "fit_error",
}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance. Relative file paths are
// placed under the reports directory of paths; a nil paths keeps them as given.
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{paths: paths, logger: logger.With(slog.String("component", "csv_writer"))}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// Encode writes options to w.
func Encode(w io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSV writes data to a CSV file with the given options
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) (string, error) {
	fullPath := w.resolvePath(filePath)

	w.logger.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if err := Encode(file, options); err != nil {
		return "", err
	}
	return fullPath, file.Close()
}

// WriteMetricsCSV writes the per-well metrics table and returns the path written.
func (w *CSVWriter) WriteMetricsCSV(filePath string, layout *domain.PlateLayout, metrics []domain.MetricSet, normalized []domain.NormalizedWell) (string, error) {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   MetricsHeaders,
		Records:   MetricsRecords(layout, metrics, normalized),
		BOMPrefix: true,
	})
}

// EncodeMetrics streams the per-well metrics table to out.
func EncodeMetrics(out io.Writer, layout *domain.PlateLayout, metrics []domain.MetricSet, normalized []domain.NormalizedWell) error {
	return Encode(out, WriteOptions{
		Headers:   MetricsHeaders,
		Records:   MetricsRecords(layout, metrics, normalized),
		BOMPrefix: true,
	})
}

// MetricsRecords renders one record per metric set, in the given order.
func MetricsRecords(layout *domain.PlateLayout, metrics []domain.MetricSet, normalized []domain.NormalizedWell) [][]string {
	if layout == nil {
		layout = domain.NewPlateLayout()
	}
	norm := make(map[string]float64, len(normalized))
	for _, n := range normalized {
		norm[n.WellID] = n.Normalized
	}

	records := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		well, _ := layout.Lookup(m.WellID)
		record := []string{
			m.WellID,
			aggregate.GroupKey(well),
			well.Label,
			well.Concentration,
			well.SampleID,
			formatFloat(m.Peak),
			formatFloat(m.TimeToPeak),
			formatFloat(m.AUC),
			formatFloat(m.BaselineMean),
			formatFloat(m.RawBaseline),
		}
		if v, ok := norm[m.WellID]; ok {
			record = append(record, formatFloat(v))
		} else {
			record = append(record, "")
		}
		record = append(record, fitFields(m)...)
		records = append(records, record)
	}
	return records
}

func fitFields(m domain.MetricSet) []string {
	if m.Fit == nil {
		return []string{"", "", "", "", "", "", "", "", m.FitError}
	}
	f := m.Fit
	return []string{
		formatFloat(f.Amplitude),
		formatFloat(f.Center),
		formatFloat(f.Sigma),
		formatFloat(f.TauRise),
		formatFloat(f.TauDecay),
		formatFloat(f.RiseTime),
		formatOptional(f.FWHM),
		formatFloat(f.AUC),
		"",
	}
}

// resolvePath resolves a path to the reports directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.paths == nil {
		return filePath
	}
	return w.paths.GetReportPath(filePath)
}
