package exporter

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

func sampleReport(t *testing.T) *Report {
	t.Helper()
	dff, err := domain.NewTraceTable("run1",
		[]float64{0, 1, 2},
		[]string{"A1", "A2"},
		[][]float64{{0, 1.5, 0.5}, {0, math.NaN(), 0}})
	require.NoError(t, err)

	params := domain.DefaultAnalysisParameters()
	params.FitPeaks = true
	norm := domain.Stat{N: 1, Mean: 50, SD: math.NaN(), SEM: math.NaN(), CV: math.NaN(), Min: 50, Max: 50}
	return &Report{
		Name:      "run1",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Params:    params,
		Layout:    labeledLayout(t),
		DFF:       dff,
		Metrics:   sampleMetrics(),
		Groups: []domain.GroupSummary{{
			Group:      domain.Group{Name: "ATP | 10 µM | S1", WellIDs: []string{"A1", "A2"}},
			Peak:       domain.Stat{N: 2, Mean: 1.5, SEM: 0.1},
			Normalized: &norm,
			MeanTrace:  []float64{0, math.NaN(), 0.25},
			SEMTrace:   []float64{0, math.NaN(), 0.25},
		}},
		Normalized: []domain.NormalizedWell{{WellID: "A1", SampleID: "S1", Peak: 1.5, Reference: 3, Normalized: 50}},
	}
}

func openBuilt(t *testing.T, r *Report) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewWorkbookWriter(nil, nil).Write(&buf, r))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestBuild_Sheets(t *testing.T) {
	f := openBuilt(t, sampleReport(t))
	assert.Equal(t, SheetOrder, f.GetSheetList())
}

func TestBuild_RequiresData(t *testing.T) {
	_, err := Build(&Report{})
	assert.Error(t, err)
	_, err = Build(nil)
	assert.Error(t, err)
}

func TestBuild_Summary(t *testing.T) {
	f := openBuilt(t, sampleReport(t))
	rows, err := f.GetRows(SheetSummary)
	require.NoError(t, err)

	assert.Equal(t, "Group", rows[0][0])
	assert.Equal(t, "ATP | 10 µM | S1", rows[1][0])
	assert.Equal(t, "ATP", rows[1][1])
	assert.Equal(t, "S1", rows[1][2])
	assert.Equal(t, "10", rows[1][3])
	assert.Equal(t, "2", rows[1][4])
	assert.Equal(t, "1950", rows[1][5], "raw baseline mean over both wells")
	assert.Equal(t, "50", rows[1][15])

	var found bool
	for _, row := range rows {
		if len(row) >= 2 && row[0] == "Peak fitting" {
			found = true
			assert.Equal(t, "true", row[1])
		}
	}
	assert.True(t, found, "parameter block is present")
}

func TestBuild_TracesWriteNonFiniteAsText(t *testing.T) {
	f := openBuilt(t, sampleReport(t))

	rows, err := f.GetRows(SheetIndividualTraces)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Well ID", "Group", "Concentration (µM)", "0", "1", "2"}, rows[0])
	assert.Equal(t, []string{"A1", "ATP | 10 µM | S1", "10", "0", "1.5", "0.5"}, rows[1])
	assert.Equal(t, "NaN", rows[2][4])

	mean, err := f.GetRows(SheetMeanTraces)
	require.NoError(t, err)
	require.Len(t, mean, 4)
	assert.Equal(t, "NaN", mean[2][3])
	assert.Equal(t, "0.25", mean[3][4])
}

func TestBuild_PeakAndFitSheets(t *testing.T) {
	f := openBuilt(t, sampleReport(t))

	peaks, err := f.GetRows(SheetPeakResponses)
	require.NoError(t, err)
	require.Len(t, peaks, 3)
	assert.Equal(t, "A1", peaks[1][1])
	assert.Equal(t, "1.5", peaks[1][5])
	assert.Equal(t, "NaN", peaks[2][5])

	fits, err := f.GetRows(SheetAnalysisMetrics)
	require.NoError(t, err)
	require.Len(t, fits, 3)
	assert.Equal(t, "1.4", fits[1][2])
	assert.Equal(t, "4", fits[1][8])
	assert.Equal(t, "no peak with sufficient prominence", fits[2][10])
}

func TestBuild_FitDisabled(t *testing.T) {
	r := sampleReport(t)
	r.Params.FitPeaks = false
	f := openBuilt(t, r)

	fits, err := f.GetRows(SheetAnalysisMetrics)
	require.NoError(t, err)
	require.Len(t, fits, 2)
	assert.Equal(t, "Peak fitting disabled", fits[1][0])
}

func TestBuild_Diagnosis(t *testing.T) {
	t.Run("not run", func(t *testing.T) {
		f := openBuilt(t, sampleReport(t))
		rows, err := f.GetRows(SheetDiagnosis)
		require.NoError(t, err)
		assert.Equal(t, "No diagnosis has been run", rows[0][0])
	})

	t.Run("with results", func(t *testing.T) {
		r := sampleReport(t)
		value := 12.5
		r.Diagnosis = &domain.DiagnosisResult{
			RunID:     "run-1",
			CreatedAt: r.CreatedAt,
			QCPassed:  true,
			Threshold: 20,
			TestOrder: []string{"peak_height"},
			Tests: map[string]domain.TestResult{
				"peak_height": {ID: "peak_height", Name: "Peak height", Passed: true, Message: "All groups within range"},
			},
			SampleIDs: []string{"S1"},
			Diagnosis: map[string]domain.SampleDiagnosis{
				"S1": {Status: domain.StatusPositive, Message: "Normalized response at or below threshold", Value: &value},
			},
		}
		f := openBuilt(t, r)

		rows, err := f.GetRows(SheetDiagnosis)
		require.NoError(t, err)
		assert.Equal(t, []string{"Run ID", "run-1"}, rows[0])
		assert.Equal(t, []string{"QC Passed", "true"}, rows[2])
		assert.Equal(t, []string{"peak_height", "Peak height", "true", "All groups within range"}, rows[6])
		assert.Equal(t, "S1", rows[9][0])
		assert.Equal(t, domain.StatusPositive, rows[9][1])
		assert.Equal(t, "12.5", rows[9][2])
	})
}

func TestWorkbookWriter_Save(t *testing.T) {
	paths := config.NewPaths(config.PathsConfig{BaseDir: t.TempDir()})
	path, err := NewWorkbookWriter(paths, nil).Save(config.WorkbookFileName, sampleReport(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(paths.ReportsDir, config.WorkbookFileName), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), len(SheetOrder))
}
