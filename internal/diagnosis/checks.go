package diagnosis

import (
	"fmt"
	"math"
	"strings"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// DefaultRegistry returns the standard QC battery in report order.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, spec := range defaultTests() {
		if err := r.Register(spec); err != nil {
			panic(err)
		}
	}
	return r
}

func defaultTests() []TestSpec {
	threshold := func(desc string) []ParamSpec { return []ParamSpec{{Name: "param1", Description: desc}} }
	bounds := func(unit string) []ParamSpec {
		return []ParamSpec{
			{Name: "param1", Description: "minimum " + unit},
			{Name: "param2", Description: "maximum " + unit},
		}
	}

	return []TestSpec{
		{ID: domain.TestInjectionArtifact, Name: "Injection artifact", Placeholder: true},
		{
			ID: domain.TestRawBaselineMin, Name: "Raw baseline minimum",
			Params:   threshold("lowest acceptable raw baseline"),
			Evaluate: atLeast(allGroups, rawBaseline(statMin), "raw baseline min"),
		},
		{
			ID: domain.TestRawBaselineMax, Name: "Raw baseline maximum",
			Params:   threshold("highest acceptable raw baseline"),
			Evaluate: atMost(allGroups, rawBaseline(statMax), "raw baseline max"),
		},
		{
			ID: domain.TestRawBaselineMeanRange, Name: "Raw baseline mean range",
			Params:   bounds("raw baseline mean"),
			Evaluate: within(allGroups, rawBaseline(statMean), "raw baseline mean"),
		},
		{
			ID: domain.TestRawBaselineSD, Name: "Raw baseline standard deviation",
			Params:   threshold("highest acceptable raw baseline SD"),
			Evaluate: atMost(allGroups, rawBaseline(statSD), "raw baseline SD"),
		},
		{
			ID: domain.TestDFFBaselineZero, Name: "ΔF/F0 baseline near zero",
			Params:   threshold("largest acceptable |ΔF/F0| baseline mean"),
			Evaluate: atMost(allGroups, absolute(metric(func(g *domain.GroupAnalysis) domain.Stat { return g.DFFBaseline }, statMean)), "|ΔF/F0 baseline mean|"),
		},
		{
			ID: domain.TestDFFReturnToBaseline, Name: "ΔF/F0 return to baseline",
			Params: []ParamSpec{
				{Name: "param1", Description: "largest acceptable |ΔF/F0| at end of trace"},
				{Name: "param2", Description: "number of final frames averaged"},
			},
			NeedsBuffer: true,
			Evaluate:    atMost(bufferGroup, absolute(metric(func(g *domain.GroupAnalysis) domain.Stat { return g.EndLevel }, statMean)), "|buffer end-of-trace ΔF/F0|"),
		},
		{
			ID: domain.TestPeakHeightRange, Name: "Peak height range",
			Params:   bounds("positive control peak ΔF/F0"),
			Evaluate: within(positiveGroup, metric(func(g *domain.GroupAnalysis) domain.Stat { return g.Peak }, statMean), "positive control peak"),
		},
		{ID: domain.TestPeakWidthRange, Name: "Peak width range", Params: bounds("peak width"), Placeholder: true},
		{
			ID: domain.TestAUCRange, Name: "AUC range",
			Params:   bounds("positive control AUC"),
			Evaluate: within(positiveGroup, metric(func(g *domain.GroupAnalysis) domain.Stat { return g.AUC }, statMean), "positive control AUC"),
		},
		{
			ID: domain.TestPositiveControlResponse, Name: "Positive control response",
			Params:   bounds("% of ionomycin"),
			Evaluate: within(positiveGroup, normalizedMean, "positive control normalized response"),
		},
		{
			ID: domain.TestNegativeControlResponse, Name: "Negative control response",
			Params:   bounds("% of ionomycin"),
			Evaluate: within(negativeGroup, normalizedMean, "negative control normalized response"),
		},
		{ID: domain.TestIonomycinAdequacy, Name: "Ionomycin response adequacy", Placeholder: true},
		{ID: domain.TestATPAdequacy, Name: "ATP response adequacy", Placeholder: true},
		{
			ID: domain.TestReplicateCV, Name: "Replicate CV",
			Params:   threshold("largest acceptable peak CV (%)"),
			Evaluate: below(allGroups, metric(func(g *domain.GroupAnalysis) domain.Stat { return g.Peak }, statCV), "peak CV"),
		},
	}
}

type groupSelector func(a *Analyses) []*domain.GroupAnalysis

func allGroups(a *Analyses) []*domain.GroupAnalysis { return a.All() }

func positiveGroup(a *Analyses) []*domain.GroupAnalysis { return []*domain.GroupAnalysis{a.Positive} }

func negativeGroup(a *Analyses) []*domain.GroupAnalysis { return []*domain.GroupAnalysis{a.Negative} }

func bufferGroup(a *Analyses) []*domain.GroupAnalysis { return []*domain.GroupAnalysis{a.Buffer} }

// metricFn extracts one number from a group. ok is false when the group
// holds no value for it, which excludes the group from the test.
type metricFn func(g *domain.GroupAnalysis) (v float64, ok bool)

type statField struct {
	get    func(s domain.Stat) float64
	minN   int
	spread bool
}

var (
	statMin  = statField{get: func(s domain.Stat) float64 { return s.Min }, minN: 1}
	statMax  = statField{get: func(s domain.Stat) float64 { return s.Max }, minN: 1}
	statMean = statField{get: func(s domain.Stat) float64 { return s.Mean }, minN: 1}
	statSD   = statField{get: func(s domain.Stat) float64 { return s.SD }, minN: 2}
	statCV   = statField{get: func(s domain.Stat) float64 { return s.CV }, minN: 2}
)

func metric(sel func(g *domain.GroupAnalysis) domain.Stat, f statField) metricFn {
	return func(g *domain.GroupAnalysis) (float64, bool) {
		s := sel(g)
		if s.N < f.minN {
			return 0, false
		}
		return f.get(s), true
	}
}

func rawBaseline(f statField) metricFn {
	return metric(func(g *domain.GroupAnalysis) domain.Stat { return g.RawBaseline }, f)
}

var normalizedMean = metric(func(g *domain.GroupAnalysis) domain.Stat { return g.Normalized }, statMean)

func absolute(m metricFn) metricFn {
	return func(g *domain.GroupAnalysis) (float64, bool) {
		v, ok := m(g)
		return math.Abs(v), ok
	}
}

// inRange is inclusive on both bounds; a nil bound is not checked. NaN is
// never in range.
func inRange(v float64, lo, hi *float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

func within(sel groupSelector, m metricFn, what string) Evaluator {
	return func(a *Analyses, cfg domain.TestConfig) Outcome {
		want := what + " in " + describeRange(cfg.Param1, cfg.Param2)
		return evaluateGroups(sel(a), m, func(v float64) bool { return inRange(v, cfg.Param1, cfg.Param2) }, want)
	}
}

func atLeast(sel groupSelector, m metricFn, what string) Evaluator {
	return func(a *Analyses, cfg domain.TestConfig) Outcome {
		if cfg.Param1 == nil {
			return Outcome{Passed: true, Message: "No threshold configured"}
		}
		return evaluateGroups(sel(a), m, func(v float64) bool { return inRange(v, cfg.Param1, nil) },
			fmt.Sprintf("%s >= %s", what, formatValue(*cfg.Param1)))
	}
}

func atMost(sel groupSelector, m metricFn, what string) Evaluator {
	return func(a *Analyses, cfg domain.TestConfig) Outcome {
		if cfg.Param1 == nil {
			return Outcome{Passed: true, Message: "No threshold configured"}
		}
		return evaluateGroups(sel(a), m, func(v float64) bool { return inRange(v, nil, cfg.Param1) },
			fmt.Sprintf("%s <= %s", what, formatValue(*cfg.Param1)))
	}
}

func below(sel groupSelector, m metricFn, what string) Evaluator {
	return func(a *Analyses, cfg domain.TestConfig) Outcome {
		if cfg.Param1 == nil {
			return Outcome{Passed: true, Message: "No threshold configured"}
		}
		limit := *cfg.Param1
		return evaluateGroups(sel(a), m, func(v float64) bool { return !math.IsNaN(v) && v < limit },
			fmt.Sprintf("%s < %s", what, formatValue(limit)))
	}
}

func evaluateGroups(groups []*domain.GroupAnalysis, m metricFn, ok func(float64) bool, want string) Outcome {
	var failed []string
	evaluated := 0
	for _, g := range groups {
		if !g.Usable() {
			continue
		}
		v, has := m(g)
		if !has {
			continue
		}
		evaluated++
		if !ok(v) {
			failed = append(failed, fmt.Sprintf("%s (%s)", g.Name, formatValue(v)))
		}
	}

	switch {
	case evaluated == 0:
		return Outcome{Passed: true, Message: "No data available for evaluation"}
	case len(failed) > 0:
		return Outcome{Passed: false, Message: fmt.Sprintf("Expected %s; failed: %s", want, strings.Join(failed, ", "))}
	default:
		return Outcome{Passed: true, Message: fmt.Sprintf("%s (%d group(s) checked)", want, evaluated)}
	}
}

func describeRange(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("[%s, %s]", formatValue(*lo), formatValue(*hi))
	case lo != nil:
		return fmt.Sprintf("[%s, +Inf)", formatValue(*lo))
	case hi != nil:
		return fmt.Sprintf("(-Inf, %s]", formatValue(*hi))
	default:
		return "any range"
	}
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.4g", v)
}
