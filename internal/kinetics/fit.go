package kinetics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// Peak fit failures. Each is a per-well soft failure.
var (
	ErrNoPeak          = errors.New("no peak with sufficient prominence")
	ErrNotConverged    = errors.New("peak fit did not converge")
	ErrNonFiniteInput  = errors.New("trace contains non-finite samples")
	ErrRiseUndefined   = errors.New("rise time undefined")
	ErrTooFewSamples   = errors.New("too few samples to fit")
	minProminenceRatio = 0.2
)

const fitParams = 5

// PeakShape evaluates the asymmetric peak model at t. The rising phase
// saturates towards amplitude with time constant tauRise and reaches the
// center from center-5*tauRise; the decay is a single exponential. sigma is
// part of the parameter vector but does not enter the shape.
func PeakShape(t, amplitude, center, sigma, tauRise, tauDecay float64) float64 {
	if t <= center {
		return amplitude * (1 - math.Exp(-(t-(center-5*tauRise))/tauRise))
	}
	return amplitude * math.Exp(-(t-center)/tauDecay)
}

func evalShape(times, p []float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = PeakShape(t, p[0], p[1], p[2], p[3], p[4])
	}
	return out
}

func sse(times, values, p []float64) float64 {
	if p[3] <= 0 || p[4] <= 0 {
		return math.Inf(1)
	}
	sum := 0.0
	for i, t := range times {
		r := PeakShape(t, p[0], p[1], p[2], p[3], p[4]) - values[i]
		sum += r * r
	}
	if math.IsNaN(sum) {
		return math.Inf(1)
	}
	return sum
}

// FitSettings bounds the optimizer.
type FitSettings struct {
	MaxEvaluations int
	Tolerance      float64
}

// DefaultFitSettings mirrors a bounded least-squares run.
func DefaultFitSettings() FitSettings {
	return FitSettings{MaxEvaluations: 20000, Tolerance: 1e-10}
}

// FitPeak fits PeakShape to (times, values) by least squares, seeded from the
// most prominent peak (prominence >= 20% of the trace maximum).
func FitPeak(times, values []float64, settings FitSettings) (*domain.PeakFit, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("%d times for %d values", len(times), len(values))
	}
	if len(values) < fitParams {
		return nil, ErrTooFewSamples
	}
	for i := range values {
		if !isFinite(values[i]) || !isFinite(times[i]) {
			return nil, ErrNonFiniteInput
		}
	}

	maxVal := math.Inf(-1)
	for _, v := range values {
		maxVal = math.Max(maxVal, v)
	}
	seed, ok := MostProminent(FindPeaks(values, minProminenceRatio*maxVal))
	if !ok {
		return nil, ErrNoPeak
	}

	x0 := []float64{seed.Value, times[seed.Index], 2, 2, 5}
	if math.IsInf(sse(times, values, x0), 1) {
		return nil, ErrNotConverged
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 { return sse(times, values, p) },
	}
	result, err := optimize.Minimize(problem, x0, &optimize.Settings{
		FuncEvaluations: settings.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   settings.Tolerance,
			Iterations: 200,
		},
	}, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}
	switch result.Status {
	case optimize.FunctionEvaluationLimit, optimize.IterationLimit, optimize.RuntimeLimit, optimize.Failure:
		return nil, fmt.Errorf("%w: %s", ErrNotConverged, result.Status)
	}

	p := result.X
	for _, v := range p {
		if !isFinite(v) {
			return nil, ErrNotConverged
		}
	}
	if !isFinite(result.F) || p[3] <= 0 || p[4] <= 0 {
		return nil, ErrNotConverged
	}

	fitted := evalShape(times, p)
	rise, ok := RiseTime(times, fitted, p[1])
	if !ok {
		return nil, ErrRiseUndefined
	}
	auc, err := Trapz(fitted, times)
	if err != nil {
		return nil, err
	}

	fit := &domain.PeakFit{
		Amplitude:   p[0],
		Center:      p[1],
		Sigma:       p[2],
		TauRise:     p[3],
		TauDecay:    p[4],
		RiseTime:    rise,
		AUC:         auc,
		FittedCurve: fitted,
	}
	if w, ok := FWHM(times, fitted); ok {
		fit.FWHM = &w
	}
	return fit, nil
}
