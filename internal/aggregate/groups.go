package aggregate

import (
	"context"
	"log/slog"
	"math"
	"strings"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// AllWellsGroup is the implicit group used when no well carries metadata.
const AllWellsGroup = "All Wells"

const keySeparator = " | "

// GroupKey joins the non-empty label, concentration and sample id of w.
// It is empty for wells without metadata.
func GroupKey(w domain.Well) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{w.Label, w.Concentration, w.SampleID} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, keySeparator)
}

// GroupWells partitions the plate into metadata groups. include filters
// wells, typically to those present in the data; nil includes every well.
// When no included well has metadata a single AllWellsGroup is returned.
func GroupWells(layout *domain.PlateLayout, include func(id string) bool) []domain.Group {
	var groups []domain.Group
	index := make(map[string]int)
	var all []string

	for _, w := range layout.Wells() {
		if include != nil && !include(w.ID) {
			continue
		}
		all = append(all, w.ID)

		key := GroupKey(w)
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, domain.Group{Name: key})
		}
		groups[i].WellIDs = append(groups[i].WellIDs, w.ID)
	}

	if len(groups) == 0 && len(all) > 0 {
		return []domain.Group{{Name: AllWellsGroup, WellIDs: all}}
	}
	return groups
}

// Aggregator builds group summaries from extracted metrics.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an aggregator. A nil logger falls back to slog.Default.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger.With(slog.String("component", "group_aggregator"))}
}

// Summarize groups the wells present in dff and computes per-metric statistics
// and mean/SEM traces for each group. Wells without a metric set contribute
// NaN.
func (a *Aggregator) Summarize(ctx context.Context, layout *domain.PlateLayout, dff *domain.TraceTable, metrics map[string]domain.MetricSet) ([]domain.GroupSummary, error) {
	if layout == nil || dff == nil {
		return nil, apierrors.NewAppValidationError("layout and processed data are required for grouping")
	}

	groups := GroupWells(layout, dff.Has)
	summaries := make([]domain.GroupSummary, 0, len(groups))
	for _, g := range groups {
		summaries = append(summaries, summarizeGroup(g, dff, metrics))
	}

	a.logger.InfoContext(ctx, "Groups summarized",
		slog.Int("groups", len(summaries)),
		slog.Bool("labeled", layout.Labeled()))
	return summaries, nil
}

func summarizeGroup(g domain.Group, dff *domain.TraceTable, metrics map[string]domain.MetricSet) domain.GroupSummary {
	n := len(g.WellIDs)
	peak := make([]float64, n)
	ttp := make([]float64, n)
	auc := make([]float64, n)
	base := make([]float64, n)
	rows := make([][]float64, 0, n)

	for i, id := range g.WellIDs {
		m, ok := metrics[id]
		if !ok {
			m = missingMetrics(id)
		}
		peak[i], ttp[i], auc[i], base[i] = m.Peak, m.TimeToPeak, m.AUC, m.BaselineMean
		if row, ok := dff.Values(id); ok {
			rows = append(rows, row)
		}
	}

	s := domain.GroupSummary{
		Group:        g,
		Peak:         Summarize(peak),
		TimeToPeak:   Summarize(ttp),
		AUC:          Summarize(auc),
		BaselineMean: Summarize(base),
	}
	s.MeanTrace, s.SEMTrace = columnStats(rows)
	return s
}

func missingMetrics(id string) domain.MetricSet {
	nan := math.NaN()
	return domain.MetricSet{WellID: id, Peak: nan, TimeToPeak: nan, AUC: nan, BaselineMean: nan, RawBaseline: nan}
}
