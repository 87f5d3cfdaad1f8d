package kinetics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// WellResult is the outcome for one well. FitErr is set when fitting was
// requested and failed; Metrics is always populated.
type WellResult struct {
	Metrics domain.MetricSet
	FitErr  error
}

// Results holds per-well outcomes in table order.
type Results struct {
	Order []string
	Wells map[string]WellResult
}

// Metrics returns the metric sets in table order.
func (r *Results) Metrics() []domain.MetricSet {
	out := make([]domain.MetricSet, 0, len(r.Order))
	for _, id := range r.Order {
		out = append(out, r.Wells[id].Metrics)
	}
	return out
}

// Peaks maps well id to peak ΔF/F₀.
func (r *Results) Peaks() map[string]float64 {
	out := make(map[string]float64, len(r.Wells))
	for id, w := range r.Wells {
		out[id] = w.Metrics.Peak
	}
	return out
}

// FitFailures counts wells whose requested fit did not produce a result.
func (r *Results) FitFailures() int {
	n := 0
	for _, w := range r.Wells {
		if w.FitErr != nil {
			n++
		}
	}
	return n
}

// Extractor computes per-well kinetics.
type Extractor struct {
	logger   *slog.Logger
	workers  int
	settings FitSettings
}

// NewExtractor creates an extractor running at most workers wells at once.
// workers <= 0 uses GOMAXPROCS.
func NewExtractor(logger *slog.Logger, workers int) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Extractor{
		logger:   logger.With(slog.String("component", "metric_extractor")),
		workers:  workers,
		settings: DefaultFitSettings(),
	}
}

// Extract computes a MetricSet for every well of dff. f0 supplies the raw
// baseline per well and may be nil. A failed fit is recorded on that well
// only; an integration error aborts the stage.
func (e *Extractor) Extract(ctx context.Context, dff *domain.TraceTable, f0 map[string]float64, params domain.AnalysisParameters) (*Results, error) {
	if dff == nil {
		return nil, apierrors.NewAppValidationError("no normalized data available")
	}

	ids := dff.WellIDs()
	times := dff.Times()
	slots := make([]WellResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, _ := dff.Values(id)
			raw := math.NaN()
			if v, ok := f0[id]; ok {
				raw = v
			}
			res, err := e.extractWell(id, times, row, raw, params)
			if err != nil {
				return err
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apierrors.NewAnalysisError("metric_extraction", err)
	}

	out := &Results{Order: ids, Wells: make(map[string]WellResult, len(ids))}
	for i, id := range ids {
		out.Wells[id] = slots[i]
		if fitErr := slots[i].FitErr; fitErr != nil {
			e.logger.WarnContext(ctx, "Peak fit failed",
				slog.String("well_id", id),
				slog.String("error", fitErr.Error()))
		}
	}

	e.logger.InfoContext(ctx, "Metrics extracted",
		slog.Int("wells", len(ids)),
		slog.Bool("fit_peaks", params.FitPeaks),
		slog.Int("fit_failures", out.FitFailures()))
	return out, nil
}

func (e *Extractor) extractWell(id string, times, row []float64, rawBaseline float64, params domain.AnalysisParameters) (res WellResult, err error) {
	peak, ttp := PeakFrom(times, row, params.PeakStartFrame)
	auc, err := Trapz(row, times)
	if err != nil {
		return WellResult{}, err
	}

	res.Metrics = domain.MetricSet{
		WellID:       id,
		Peak:         peak,
		TimeToPeak:   ttp,
		AUC:          auc,
		BaselineMean: nanMean(row, params.BaselineFrameCount),
		RawBaseline:  rawBaseline,
	}
	if !params.FitPeaks {
		return res, nil
	}

	fit, fitErr := e.safeFit(times, row)
	if fitErr != nil {
		res.FitErr = fitErr
		res.Metrics.FitError = fitErr.Error()
		return res, nil
	}
	res.Metrics.Fit = fit
	return res, nil
}

func (e *Extractor) safeFit(times, row []float64) (fit *domain.PeakFit, err error) {
	defer func() {
		if r := recover(); r != nil {
			fit, err = nil, fmt.Errorf("peak fit panicked: %v", r)
		}
	}()
	return FitPeak(times, row, e.settings)
}

// PeakFrom returns the NaN-skipping maximum of v from index start and the
// time of its first occurrence. Both are NaN when no finite sample exists
// in range.
func PeakFrom(times, v []float64, start int) (float64, float64) {
	if start < 0 {
		start = 0
	}
	peak, at := math.NaN(), -1
	for i := start; i < len(v); i++ {
		if math.IsNaN(v[i]) {
			continue
		}
		if at < 0 || v[i] > peak {
			peak, at = v[i], i
		}
	}
	if at < 0 || at >= len(times) {
		return math.NaN(), math.NaN()
	}
	return peak, times[at]
}

func nanMean(v []float64, n int) float64 {
	if n > len(v) {
		n = len(v)
	}
	sum, count := 0.0, 0
	for _, x := range v[:max(n, 0)] {
		if !math.IsNaN(x) {
			sum += x
			count++
		}
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}
