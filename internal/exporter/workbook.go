package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/aggregate"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// Workbook sheet names, in output order.
const (
	SheetSummary          = "Summary"
	SheetIndividualTraces = "Individual_Traces"
	SheetMeanTraces       = "Mean_Traces"
	SheetPeakResponses    = "Peak_Responses"
	SheetAnalysisMetrics  = "Analysis_Metrics"
	SheetNormalized       = "Ionomycin_Normalized"
	SheetDiagnosis        = "Diagnosis"
)

// SheetOrder lists every sheet a results workbook contains.
var SheetOrder = []string{
	SheetSummary,
	SheetIndividualTraces,
	SheetMeanTraces,
	SheetPeakResponses,
	SheetAnalysisMetrics,
	SheetNormalized,
	SheetDiagnosis,
}

// Report gathers the pipeline outputs written to a results workbook.
// Diagnosis may be nil.
type Report struct {
	Name       string
	CreatedAt  time.Time
	Params     domain.AnalysisParameters
	Layout     *domain.PlateLayout
	DFF        *domain.TraceTable
	Metrics    []domain.MetricSet
	Groups     []domain.GroupSummary
	Normalized []domain.NormalizedWell
	Diagnosis  *domain.DiagnosisResult
}

// WorkbookWriter renders Reports as xlsx workbooks.
type WorkbookWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer. Relative file paths are placed
// under the reports directory of paths.
func NewWorkbookWriter(paths *config.Paths, logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{paths: paths, logger: logger.With(slog.String("component", "workbook_writer"))}
}

// Save writes the workbook to filePath and returns the resolved path.
func (w *WorkbookWriter) Save(filePath string, r *Report) (string, error) {
	fullPath := filePath
	if !filepath.IsAbs(filePath) && w.paths != nil {
		fullPath = w.paths.GetReportPath(filePath)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := Build(r)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.SaveAs(fullPath); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	w.logger.Info("Results workbook written",
		slog.String("path", fullPath),
		slog.Int("wells", len(r.Metrics)),
		slog.Int("groups", len(r.Groups)),
		slog.Bool("diagnosis", r.Diagnosis != nil))
	return fullPath, nil
}

// Write streams the workbook to out.
func (w *WorkbookWriter) Write(out io.Writer, r *Report) error {
	f, err := Build(r)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(out)
	return err
}

// Build assembles the workbook in memory. The caller closes the file.
func Build(r *Report) (*excelize.File, error) {
	if r == nil || r.DFF == nil {
		return nil, fmt.Errorf("no processed data to export")
	}
	if r.Layout == nil {
		withLayout := *r
		withLayout.Layout = domain.NewPlateLayout()
		r = &withLayout
	}

	f := excelize.NewFile()
	b := &builder{f: f, report: r, groupOf: groupMembership(r.Groups)}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range SheetOrder[1:] {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	b.headerStyle = style

	steps := []func() error{
		b.summary,
		b.individualTraces,
		b.meanTraces,
		b.peakResponses,
		b.analysisMetrics,
		b.normalized,
		b.diagnosis,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

type builder struct {
	f           *excelize.File
	report      *Report
	groupOf     map[string]string
	headerStyle int
}

func groupMembership(groups []domain.GroupSummary) map[string]string {
	out := make(map[string]string)
	for _, g := range groups {
		for _, id := range g.WellIDs {
			out[id] = g.Name
		}
	}
	return out
}

func (b *builder) row(sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return b.f.SetSheetRow(sheet, cell, &values)
}

func (b *builder) header(sheet string, titles ...string) error {
	values := make([]interface{}, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	if err := b.row(sheet, 1, values...); err != nil {
		return err
	}
	return b.f.SetRowStyle(sheet, 1, 1, b.headerStyle)
}

func (b *builder) concentration(id string) string {
	w, _ := b.report.Layout.Lookup(id)
	return strings.TrimSuffix(w.Concentration, " µM")
}

// splitGroupName recovers agonist, cell id and concentration from a group key.
func splitGroupName(name string) (agonist, cellID, conc string) {
	parts := strings.Split(name, "|")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		switch {
		case i == 0:
			agonist = p
		case strings.Contains(p, "µM"):
			conc = strings.TrimSuffix(p, " µM")
		case cellID == "":
			cellID = p
		}
	}
	return agonist, cellID, conc
}

func (b *builder) summary() error {
	r := b.report
	err := b.header(SheetSummary,
		"Group", "Agonist", "Cell ID", "Concentration (µM)", "N",
		"Raw Baseline", "Raw Baseline SEM",
		"Baseline ΔF/F₀", "Baseline SEM",
		"Peak ΔF/F₀", "Peak SEM",
		"Time to Peak (s)", "Time to Peak SEM",
		"AUC", "AUC SEM",
		"Normalized (% Ionomycin)", "Normalized SEM")
	if err != nil {
		return err
	}

	raw := make(map[string]float64, len(r.Metrics))
	for _, m := range r.Metrics {
		raw[m.WellID] = m.RawBaseline
	}

	row := 2
	for _, g := range r.Groups {
		values := make([]float64, 0, len(g.WellIDs))
		for _, id := range g.WellIDs {
			v, ok := raw[id]
			if !ok {
				v = math.NaN()
			}
			values = append(values, v)
		}
		rawStat := aggregate.Summarize(values)

		agonist, cellID, conc := splitGroupName(g.Name)
		cells := []interface{}{
			g.Name, agonist, cellID, conc, len(g.WellIDs),
			round3(rawStat.Mean), round3(rawStat.SEM),
			round3(g.BaselineMean.Mean), round3(g.BaselineMean.SEM),
			round3(g.Peak.Mean), round3(g.Peak.SEM),
			round3(g.TimeToPeak.Mean), round3(g.TimeToPeak.SEM),
			round3(g.AUC.Mean), round3(g.AUC.SEM),
		}
		if g.Normalized != nil {
			cells = append(cells, round3(g.Normalized.Mean), round3(g.Normalized.SEM))
		}
		if err := b.row(SheetSummary, row, cells...); err != nil {
			return err
		}
		row++
	}

	row++
	p := r.Params
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	params := [][]interface{}{
		{"Parameter", "Value"},
		{"Data", r.Name},
		{"Generated", created.Format(time.RFC3339)},
		{"Wells", r.DFF.Len()},
		{"Frames", r.DFF.Frames()},
		{"Artifact start frame", p.ArtifactStartFrame},
		{"Artifact end frame", p.ArtifactEndFrame},
		{"Artifact removed", formatBool(p.RemoveArtifact)},
		{"Baseline frames", p.BaselineFrameCount},
		{"Peak start frame", p.PeakStartFrame},
		{"Peak fitting", formatBool(p.FitPeaks)},
	}
	for i, cells := range params {
		if err := b.row(SheetSummary, row, cells...); err != nil {
			return err
		}
		if i == 0 {
			if err := b.f.SetRowStyle(SheetSummary, row, row, b.headerStyle); err != nil {
				return err
			}
		}
		row++
	}
	return b.f.SetColWidth(SheetSummary, "A", "A", 32)
}

func (b *builder) individualTraces() error {
	dff := b.report.DFF
	titles := []interface{}{"Well ID", "Group", "Concentration (µM)"}
	for _, t := range dff.Times() {
		titles = append(titles, cellValue(t))
	}
	if err := b.row(SheetIndividualTraces, 1, titles...); err != nil {
		return err
	}
	if err := b.f.SetRowStyle(SheetIndividualTraces, 1, 1, b.headerStyle); err != nil {
		return err
	}

	row := 2
	for _, id := range b.orderedWells() {
		values, ok := dff.Values(id)
		if !ok {
			continue
		}
		cells := make([]interface{}, 0, len(values)+3)
		cells = append(cells, id, b.groupOf[id], b.concentration(id))
		for _, v := range values {
			cells = append(cells, cellValue(v))
		}
		if err := b.row(SheetIndividualTraces, row, cells...); err != nil {
			return err
		}
		row++
	}
	return nil
}

// orderedWells lists wells group by group, then any ungrouped wells in
// table order.
func (b *builder) orderedWells() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range b.report.Groups {
		for _, id := range g.WellIDs {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	for _, id := range b.report.DFF.WellIDs() {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

func (b *builder) meanTraces() error {
	err := b.header(SheetMeanTraces, "Group", "Concentration (µM)", "Time (s)", "Mean ΔF/F₀", "SEM")
	if err != nil {
		return err
	}

	times := b.report.DFF.Times()
	row := 2
	for _, g := range b.report.Groups {
		_, _, conc := splitGroupName(g.Name)
		for i, mean := range g.MeanTrace {
			if i >= len(times) {
				break
			}
			sem := math.NaN()
			if i < len(g.SEMTrace) {
				sem = g.SEMTrace[i]
			}
			if err := b.row(SheetMeanTraces, row, g.Name, conc, cellValue(times[i]), cellValue(mean), cellValue(sem)); err != nil {
				return err
			}
			row++
		}
		// Blank row between groups.
		row++
	}
	return nil
}

func (b *builder) peakResponses() error {
	err := b.header(SheetPeakResponses,
		"Group", "Well ID", "Concentration (µM)",
		"Raw Baseline", "Baseline ΔF/F₀", "Peak ΔF/F₀",
		"Time to Peak (s)", "AUC")
	if err != nil {
		return err
	}

	byWell := make(map[string]domain.MetricSet, len(b.report.Metrics))
	for _, m := range b.report.Metrics {
		byWell[m.WellID] = m
	}

	row := 2
	for _, id := range b.orderedWells() {
		m, ok := byWell[id]
		if !ok {
			continue
		}
		err := b.row(SheetPeakResponses, row,
			b.groupOf[id], id, b.concentration(id),
			round3(m.RawBaseline), round3(m.BaselineMean), round3(m.Peak),
			round3(m.TimeToPeak), round3(m.AUC))
		if err != nil {
			return err
		}
		row++
	}
	return nil
}

func (b *builder) analysisMetrics() error {
	err := b.header(SheetAnalysisMetrics,
		"Well ID", "Group", "Amplitude", "Center (s)", "Sigma",
		"Tau Rise (s)", "Tau Decay (s)", "Rise Time (s)", "FWHM (s)", "Fit AUC", "Fit Error")
	if err != nil {
		return err
	}

	if !b.report.Params.FitPeaks {
		return b.row(SheetAnalysisMetrics, 2, "Peak fitting disabled")
	}

	row := 2
	for _, m := range b.report.Metrics {
		cells := []interface{}{m.WellID, b.groupOf[m.WellID]}
		if fit := m.Fit; fit != nil {
			var fwhm interface{} = ""
			if fit.FWHM != nil {
				fwhm = round3(*fit.FWHM)
			}
			cells = append(cells,
				round3(fit.Amplitude), round3(fit.Center), round3(fit.Sigma),
				round3(fit.TauRise), round3(fit.TauDecay), round3(fit.RiseTime),
				fwhm, round3(fit.AUC), "")
		} else {
			cells = append(cells, "", "", "", "", "", "", "", "", m.FitError)
		}
		if err := b.row(SheetAnalysisMetrics, row, cells...); err != nil {
			return err
		}
		row++
	}
	return nil
}

func (b *builder) normalized() error {
	err := b.header(SheetNormalized,
		"Well ID", "Sample ID", "Group", "Peak ΔF/F₀", "Ionomycin Reference", "Normalized (%)")
	if err != nil {
		return err
	}
	if len(b.report.Normalized) == 0 {
		return b.row(SheetNormalized, 2, "No ionomycin reference wells")
	}

	row := 2
	for _, n := range b.report.Normalized {
		err := b.row(SheetNormalized, row,
			n.WellID, n.SampleID, b.groupOf[n.WellID],
			round3(n.Peak), round3(n.Reference), round3(n.Normalized))
		if err != nil {
			return err
		}
		row++
	}
	return nil
}

func (b *builder) diagnosis() error {
	d := b.report.Diagnosis
	if d == nil {
		return b.row(SheetDiagnosis, 1, "No diagnosis has been run")
	}

	rows := [][]interface{}{
		{"Run ID", d.RunID},
		{"Created", d.CreatedAt.Format(time.RFC3339)},
		{"QC Passed", formatBool(d.QCPassed)},
		{"Autism risk threshold (%)", cellValue(d.Threshold)},
		{},
		{"Test", "Name", "Passed", "Message"},
	}
	for _, id := range d.TestOrder {
		res, ok := d.Tests[id]
		if !ok {
			continue
		}
		msg := res.Message
		if res.Placeholder {
			msg += " (placeholder)"
		}
		rows = append(rows, []interface{}{res.ID, res.Name, formatBool(res.Passed), msg})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Sample", "Status", "Normalized (%)", "Message"})
	for _, id := range d.SampleIDs {
		s, ok := d.Diagnosis[id]
		if !ok {
			continue
		}
		var value interface{} = ""
		if s.Value != nil {
			value = round3(*s.Value)
		}
		rows = append(rows, []interface{}{id, s.Status, value, s.Message})
	}
	for _, w := range d.Warnings {
		rows = append(rows, []interface{}{"Warning", w.Message})
	}

	for i, cells := range rows {
		if len(cells) == 0 {
			continue
		}
		if err := b.row(SheetDiagnosis, i+1, cells...); err != nil {
			return err
		}
	}
	return b.f.SetColWidth(SheetDiagnosis, "A", "D", 28)
}
