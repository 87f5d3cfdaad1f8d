package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// exportFile writes a 40-frame instrument export where each well peaks at
// frame 20 with the given ΔF/F₀.
func exportFile(t *testing.T, dir string, amplitudes map[string]float64, order ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("run.seq\tx\tx\tx\tWell")
	for f := 0; f < 40; f++ {
		fmt.Fprintf(&b, "\t%d", f)
	}
	b.WriteString("\n")
	for _, id := range order {
		fmt.Fprintf(&b, "%s\tg\tg\tg\t%s", id, id)
		for f := 0; f < 40; f++ {
			v := 800.0
			if f >= 16 {
				v *= 1 + amplitudes[id]*math.Exp(-math.Pow(float64(f-20), 2)/8)
			}
			fmt.Fprintf(&b, "\t%g", v)
		}
		b.WriteString("\n")
	}
	return writeFile(t, dir, "run.txt", b.String())
}

const metadataCSV = `Group Name,Well ID,Sample
ATP,A1,S1
,A2,S1
Ionomycin,A3,S1
,A4,S1
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr, quietLogger())
	return stdout.String(), err
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		check   func(t *testing.T, o *options)
	}{
		{
			name:    "data required",
			args:    []string{},
			wantErr: "-data is required",
		},
		{
			name: "version without data",
			args: []string{"-version"},
			check: func(t *testing.T, o *options) {
				assert.True(t, o.version)
			},
		},
		{
			name: "json implies diagnose",
			args: []string{"-data", "x.txt", "-json"},
			check: func(t *testing.T, o *options) {
				assert.True(t, o.diagnose)
				assert.Equal(t, "x.txt", o.data)
			},
		},
		{
			name:    "unknown flag",
			args:    []string{"-bogus"},
			wantErr: "bogus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}

func TestRun_Version(t *testing.T) {
	out, err := runCLI(t, "-version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "flipr-analyze "))
}

func TestRun_Pipeline(t *testing.T) {
	dir := t.TempDir()
	data := exportFile(t, dir, map[string]float64{"A1": 0.4, "A2": 0.4, "A3": 0.8, "A4": 0.8}, "A1", "A2", "A3", "A4")
	meta := writeFile(t, dir, "plate.csv", metadataCSV)
	params := writeFile(t, dir, "params.json", `{"baseline_frame_count":12,"peak_start_frame":16}`)
	workbook := filepath.Join(dir, "out", "results.xlsx")
	metrics := filepath.Join(dir, "out", "metrics.csv")
	fmg := filepath.Join(dir, "out", "plate.fmg")

	out, err := runCLI(t,
		"-data", data, "-layout", meta, "-params", params,
		"-out", workbook, "-csv", metrics, "-fmg", fmg)
	require.NoError(t, err, out)

	assert.Contains(t, out, "4 wells, 40 frames")
	assert.Contains(t, out, "Metadata imported: 4 wells assigned, 0 skipped")
	assert.Contains(t, out, "Processed 4 wells into 2 groups")
	assert.Contains(t, out, "ATP")

	f, err := excelize.OpenFile(workbook)
	require.NoError(t, err)
	defer f.Close()
	assert.NotEmpty(t, f.GetSheetList())

	csvData, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(csvData), "A1")

	fmgData, err := os.ReadFile(fmg)
	require.NoError(t, err)
	assert.NotEmpty(t, fmgData)
}

func TestRun_DiagnosisJSON(t *testing.T) {
	dir := t.TempDir()
	data := exportFile(t, dir, map[string]float64{"A1": 0.4, "A2": 0.4}, "A1", "A2")

	out, err := runCLI(t, "-data", data, "-json")
	require.NoError(t, err, out)

	start := strings.Index(out, "{")
	require.GreaterOrEqual(t, start, 0, out)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out[start:]), &result))
	assert.Contains(t, result, "qc_passed")
	assert.Contains(t, result, "tests")
}

func TestRun_InvalidInputs(t *testing.T) {
	dir := t.TempDir()
	data := exportFile(t, dir, map[string]float64{"A1": 0.4}, "A1")

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing data file", args: []string{"-data", filepath.Join(dir, "absent.txt")}},
		{name: "wrong data extension", args: []string{"-data", writeFile(t, dir, "run.xlsx", "x")}},
		{name: "wrong workbook extension", args: []string{"-data", data, "-out", filepath.Join(dir, "results.csv")}},
		{name: "malformed params", args: []string{"-data", data, "-params", writeFile(t, dir, "bad.json", "{")}},
		{name: "params out of range", args: []string{"-data", data, "-params", writeFile(t, dir, "range.json", `{"baseline_frame_count":0}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
