package aggregate

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// Summarize computes N, mean, sample SD, SEM, CV% and range. SD, SEM and CV
// are NaN below two values; any NaN input makes every moment NaN.
func Summarize(values []float64) domain.Stat {
	nan := math.NaN()
	s := domain.Stat{N: len(values), Mean: nan, SD: nan, SEM: nan, CV: nan, Min: nan, Max: nan}
	if len(values) == 0 {
		return s
	}
	if floats.HasNaN(values) {
		return s
	}

	s.Mean = stat.Mean(values, nil)
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	if len(values) < 2 {
		return s
	}
	s.SD = stat.StdDev(values, nil)
	s.SEM = s.SD / math.Sqrt(float64(len(values)))
	s.CV = s.SD / s.Mean * 100
	return s
}

// columnStats returns the per-frame mean and SEM across rows. Rows must share
// a length; NaN propagates into the affected frames.
func columnStats(rows [][]float64) (mean, sem []float64) {
	if len(rows) == 0 {
		return nil, nil
	}
	frames := len(rows[0])
	mean = make([]float64, frames)
	sem = make([]float64, frames)
	col := make([]float64, len(rows))
	for f := 0; f < frames; f++ {
		for r, row := range rows {
			col[r] = row[f]
		}
		s := Summarize(col)
		mean[f], sem[f] = s.Mean, s.SEM
	}
	return mean, sem
}
