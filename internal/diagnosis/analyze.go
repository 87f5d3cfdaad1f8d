package diagnosis

import (
	"fmt"
	"math"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/aggregate"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// Group names used for the control analyses.
const (
	PositiveControlName = "Positive Control"
	NegativeControlName = "Negative Control"
	BufferControlName   = "Buffer Control"
)

// defaultEndFrames is the tail length averaged for the end level when the
// return-to-baseline test does not configure one.
const defaultEndFrames = 10

// Analyses is the ANALYZE_GROUPS output consumed by the QC tests.
type Analyses struct {
	Positive *domain.GroupAnalysis
	Negative *domain.GroupAnalysis
	Buffer   *domain.GroupAnalysis
	Samples  []*domain.GroupAnalysis
}

// All returns every analysed group, controls first.
func (a *Analyses) All() []*domain.GroupAnalysis {
	out := make([]*domain.GroupAnalysis, 0, 3+len(a.Samples))
	for _, g := range []*domain.GroupAnalysis{a.Positive, a.Negative, a.Buffer} {
		if g != nil {
			out = append(out, g)
		}
	}
	return append(out, a.Samples...)
}

// groupInputs are the per-well values an analysis draws on.
type groupInputs struct {
	dff        *domain.TraceTable
	metrics    map[string]domain.MetricSet
	normalized []domain.NormalizedWell
	endFrames  int
}

// analyzeGroup never fails: an empty group is missing, and an error or
// panic inside the computation becomes an error status.
func analyzeGroup(name string, wellIDs []string, in groupInputs) (ga *domain.GroupAnalysis) {
	ga = &domain.GroupAnalysis{Name: name, WellIDs: wellIDs}
	if len(wellIDs) == 0 {
		ga.Status = domain.GroupMissing
		ga.Message = "No wells assigned"
		return ga
	}

	defer func() {
		if r := recover(); r != nil {
			ga = failedGroup(name, wellIDs, fmt.Errorf("%v", r))
		}
	}()

	if err := computeGroup(ga, in); err != nil {
		return failedGroup(name, wellIDs, err)
	}
	ga.Status = domain.GroupOK
	return ga
}

func failedGroup(name string, wellIDs []string, err error) *domain.GroupAnalysis {
	return &domain.GroupAnalysis{
		Name:    name,
		Status:  domain.GroupError,
		Message: "analysis failed: " + err.Error(),
		WellIDs: wellIDs,
	}
}

func computeGroup(ga *domain.GroupAnalysis, in groupInputs) error {
	n := len(ga.WellIDs)
	raw := make([]float64, 0, n)
	base := make([]float64, 0, n)
	peak := make([]float64, 0, n)
	ttp := make([]float64, 0, n)
	auc := make([]float64, 0, n)
	end := make([]float64, 0, n)

	for _, id := range ga.WellIDs {
		m, ok := in.metrics[id]
		if !ok {
			return fmt.Errorf("no metrics for well %s", id)
		}
		row, ok := in.dff.Values(id)
		if !ok {
			return fmt.Errorf("no trace for well %s", id)
		}
		raw = append(raw, m.RawBaseline)
		base = append(base, m.BaselineMean)
		peak = append(peak, m.Peak)
		ttp = append(ttp, m.TimeToPeak)
		auc = append(auc, m.AUC)
		end = append(end, tailMean(row, in.endFrames))
	}

	ga.RawBaseline = aggregate.Summarize(raw)
	ga.DFFBaseline = aggregate.Summarize(base)
	ga.Peak = aggregate.Summarize(peak)
	ga.TimeToPeak = aggregate.Summarize(ttp)
	ga.AUC = aggregate.Summarize(auc)
	ga.Normalized = aggregate.Summarize(aggregate.NormalizedValues(in.normalized, ga.WellIDs))
	ga.EndLevel = aggregate.Summarize(end)
	return nil
}

// tailMean averages the last n samples, propagating NaN.
func tailMean(row []float64, n int) float64 {
	if n <= 0 || len(row) == 0 {
		return math.NaN()
	}
	if n > len(row) {
		n = len(row)
	}
	sum := 0.0
	for _, v := range row[len(row)-n:] {
		sum += v
	}
	return sum / float64(n)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
