package dataprocessing

import (
	"fmt"
	"math"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// Baseline is the output of baseline normalization.
type Baseline struct {
	// DFF holds ΔF/F0 as a fraction.
	DFF *domain.TraceTable
	// F0 is the raw baseline per well.
	F0 map[string]float64
}

// F0 averages the first n finite samples of row. The result is NaN when
// the window holds no finite value.
func F0(row []float64, n int) float64 {
	if n > len(row) {
		n = len(row)
	}
	sum, count := 0.0, 0
	for _, v := range row[:n] {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

// NormalizeBaseline computes F0 over the first frames samples of each well and
// derives v/F0 - 1. A zero F0 yields Inf or NaN samples, which are kept.
func NormalizeBaseline(t *domain.TraceTable, frames int) (*Baseline, error) {
	if frames < 1 {
		return nil, apierrors.NewAppValidationError(
			fmt.Sprintf("baseline frame count must be at least 1, got %d", frames))
	}

	f0 := make(map[string]float64, t.Len())
	dff, err := t.Map(t.Times(), func(id string, row []float64) []float64 {
		base := F0(row, frames)
		f0[id] = base
		out := make([]float64, len(row))
		for i, v := range row {
			out[i] = v/base - 1
		}
		return out
	})
	if err != nil {
		return nil, err
	}

	return &Baseline{DFF: dff, F0: f0}, nil
}
