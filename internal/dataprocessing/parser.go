package dataprocessing

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

const (
	// Instrument exports carry four descriptor columns before the samples.
	wellIDColumn     = 4
	firstValueColumn = 5
)

// Parser reads tab-delimited FLIPR exports into trace tables.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger falls back to slog.Default.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger.With(slog.String("component", "trace_parser"))}
}

// ParseFile opens and parses a raw export.
func (p *Parser) ParseFile(path string) (*domain.TraceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apierrors.NewParsingError("failed to open data file", err).
			WithContext("path", path)
	}
	defer f.Close()

	table, err := p.Parse(f)
	if err != nil {
		var appErr *apierrors.AppError
		if errors.As(err, &appErr) {
			appErr.WithContext("file", filepath.Base(path))
		}
		return nil, err
	}
	return table, nil
}

// Parse reads one export. The first line holds the display name in field 0
// and time coordinates from field 5 on. Each data row carries its well id in
// field 0 (or field 4 for full instrument exports) and samples from field 5.
// Rows with four or fewer fields are skipped and non-numeric cells become NaN.
func (p *Parser) Parse(r io.Reader) (*domain.TraceTable, error) {
	br := bufio.NewReader(r)

	headerLine, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, apierrors.NewParsingError("failed to read header", err)
	}
	headerLine = strings.TrimRight(headerLine, "\r\n")
	if strings.TrimSpace(headerLine) == "" {
		return nil, apierrors.NewParsingError("data file is empty", nil)
	}

	header := strings.Split(headerLine, "\t")
	if len(header) <= firstValueColumn {
		return nil, apierrors.NewParsingError(
			fmt.Sprintf("header has %d fields, expected time points from field %d", len(header), firstValueColumn+1), nil)
	}
	name := strings.TrimSpace(header[0])
	times := make([]float64, 0, len(header)-firstValueColumn)
	for _, cell := range header[firstValueColumn:] {
		times = append(times, parseCell(cell))
	}

	reader := csv.NewReader(br)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		ids     []string
		values  [][]float64
		seen    = make(map[string]bool)
		skipped int
		line    = 1
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, apierrors.NewParsingError("malformed data row", err).WithContext("line", line)
		}
		if len(row) <= wellIDColumn {
			skipped++
			continue
		}

		id, ok := rowWellID(row)
		if !ok {
			p.logger.Warn("Skipping row without a well identifier",
				slog.Int("line", line),
				slog.String("field0", row[0]))
			skipped++
			continue
		}
		if seen[id] {
			p.logger.Warn("Duplicate well row ignored",
				slog.String("well_id", id),
				slog.Int("line", line))
			continue
		}
		seen[id] = true

		samples := make([]float64, len(times))
		for i := range samples {
			col := firstValueColumn + i
			if col < len(row) {
				samples[i] = parseCell(row[col])
			} else {
				samples[i] = math.NaN()
			}
		}
		ids = append(ids, id)
		values = append(values, samples)
	}

	if len(ids) == 0 {
		return nil, apierrors.NewParsingError("no well rows found", nil).
			WithContext("skipped_rows", skipped)
	}

	table, err := domain.NewTraceTable(name, times, ids, values)
	if err != nil {
		return nil, apierrors.NewParsingError("inconsistent trace table", err)
	}

	p.logger.Info("Trace data loaded",
		slog.String("name", name),
		slog.Int("wells", table.Len()),
		slog.Int("frames", table.Frames()),
		slog.Int("skipped_rows", skipped))

	return table, nil
}

func rowWellID(row []string) (string, bool) {
	for _, col := range []int{0, wellIDColumn} {
		id := domain.NormalizeWellID(row[col])
		if domain.IsWellID(id) {
			return id, true
		}
	}
	return "", false
}

func parseCell(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
