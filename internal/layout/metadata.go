package layout

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// ImportResult reports what a metadata import changed.
type ImportResult struct {
	Layout   *domain.PlateLayout
	Assigned int
	Skipped  []string
	Groups   []string
}

// header holds the column positions found in a metadata sheet.
type header struct {
	row     int
	group   int
	well    int
	conc    int
	sample  int
	located bool
}

func containsAll(cell string, words ...string) bool {
	c := strings.ToLower(cell)
	for _, w := range words {
		if !strings.Contains(c, w) {
			return false
		}
	}
	return true
}

// findHeader locates the row holding both a group-name and a well-id cell.
func findHeader(rows [][]string) header {
	for r, row := range rows {
		h := header{row: r, group: -1, well: -1, conc: -1, sample: -1}
		for c, cell := range row {
			switch {
			case h.group < 0 && containsAll(cell, "group", "name"):
				h.group = c
			case h.well < 0 && containsAll(cell, "well", "id"):
				h.well = c
			case h.conc < 0 && containsAll(cell, "conc"):
				h.conc = c
			case h.sample < 0 && containsAll(cell, "sample"):
				h.sample = c
			}
		}
		if h.group >= 0 && h.well >= 0 {
			h.located = true
			return h
		}
	}
	return header{}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ApplyMetadata assigns group names from a metadata sheet to wells. Rows
// with a group name and no well start a new group; rows with a well assign
// it to the current group. Malformed well ids are skipped.
func ApplyMetadata(layout *domain.PlateLayout, rows [][]string) (*ImportResult, error) {
	h := findHeader(rows)
	if !h.located {
		return nil, apierrors.NewParsingError("metadata sheet has no group name / well id header", nil)
	}

	res := &ImportResult{Layout: layout.Clone()}
	current := ""
	seenGroup := make(map[string]bool)
	for _, row := range rows[h.row+1:] {
		group := cell(row, h.group)
		wellID := cell(row, h.well)

		if group != "" {
			current = group
			if !seenGroup[group] {
				seenGroup[group] = true
				res.Groups = append(res.Groups, group)
			}
		}
		if wellID == "" {
			continue
		}

		id := strings.ToUpper(wellID)
		if !domain.IsWellID(id) {
			res.Skipped = append(res.Skipped, wellID)
			continue
		}
		if current == "" {
			res.Skipped = append(res.Skipped, wellID)
			continue
		}

		w, _ := res.Layout.Lookup(id)
		w.Label = current
		if v := cell(row, h.conc); v != "" {
			w.Concentration = v
		}
		if v := cell(row, h.sample); v != "" {
			w.SampleID = v
		}
		res.Layout.Set(w)
		res.Assigned++
	}
	return res, nil
}

// ReadMetadataRows reads a CSV or, for .xlsx files, the first worksheet.
func ReadMetadataRows(path string) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSXRows(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apierrors.NewStorageError("open metadata file", err)
	}
	defer f.Close()
	return ReadMetadataCSV(f)
}

// ReadMetadataCSV reads every record of a comma separated sheet.
func ReadMetadataCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apierrors.NewParsingError("malformed metadata CSV", err)
	}
	return rows, nil
}

// ReadMetadataXLSX reads the first worksheet of a workbook stream.
func ReadMetadataXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apierrors.NewParsingError("malformed metadata workbook", err)
	}
	defer f.Close()
	return firstSheetRows(f)
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apierrors.NewParsingError("open metadata workbook", err)
	}
	defer f.Close()
	return firstSheetRows(f)
}

func firstSheetRows(f *excelize.File) ([][]string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apierrors.NewParsingError("metadata workbook has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apierrors.NewParsingError("read metadata sheet", err)
	}
	return rows, nil
}

// Importer wraps metadata import with logging.
type Importer struct {
	logger *slog.Logger
}

// NewImporter creates an importer. A nil logger falls back to slog.Default.
func NewImporter(logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{logger: logger.With(slog.String("component", "metadata_importer"))}
}

// ImportFile applies the metadata file at path to layout.
func (im *Importer) ImportFile(layout *domain.PlateLayout, path string) (*ImportResult, error) {
	rows, err := ReadMetadataRows(path)
	if err != nil {
		return nil, err
	}
	return im.apply(layout, rows, filepath.Base(path))
}

// Import applies a metadata stream. xlsx selects the workbook reader.
func (im *Importer) Import(layout *domain.PlateLayout, r io.Reader, name string, xlsx bool) (*ImportResult, error) {
	read := ReadMetadataCSV
	if xlsx {
		read = ReadMetadataXLSX
	}
	rows, err := read(r)
	if err != nil {
		return nil, err
	}
	return im.apply(layout, rows, name)
}

func (im *Importer) apply(layout *domain.PlateLayout, rows [][]string, name string) (*ImportResult, error) {
	res, err := ApplyMetadata(layout, rows)
	if err != nil {
		im.logger.Error("Metadata import failed",
			slog.String("source", name),
			slog.String("error", err.Error()))
		return nil, err
	}
	if len(res.Skipped) > 0 {
		im.logger.Warn("Metadata rows skipped",
			slog.String("source", name),
			slog.Any("wells", res.Skipped))
	}
	im.logger.Info("Metadata imported",
		slog.String("source", name),
		slog.Int("assigned", res.Assigned),
		slog.Int("groups", len(res.Groups)))
	return res, nil
}
