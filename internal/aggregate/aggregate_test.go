package aggregate

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

func label(t *testing.T, layout *domain.PlateLayout, id, lbl, conc, sample string) {
	t.Helper()
	w, ok := layout.Lookup(id)
	require.True(t, ok)
	w.Label, w.Concentration, w.SampleID = lbl, conc, sample
	layout.Set(w)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, s.N)
	assert.InDelta(t, 5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7), s.SD, 1e-12)
	assert.InDelta(t, s.SD/math.Sqrt(8), s.SEM, 1e-12)
	assert.InDelta(t, s.SD/5*100, s.CV, 1e-12)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
}

func TestSummarize_Undefined(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		meanNaN bool
	}{
		{name: "empty", values: nil, meanNaN: true},
		{name: "single value", values: []float64{3}, meanNaN: false},
		{name: "NaN propagates", values: []float64{1, math.NaN(), 3}, meanNaN: true},
		{name: "all NaN", values: []float64{math.NaN(), math.NaN()}, meanNaN: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(tt.values)
			assert.Equal(t, len(tt.values), s.N)
			assert.Equal(t, tt.meanNaN, math.IsNaN(s.Mean))
			assert.True(t, math.IsNaN(s.SD))
			assert.True(t, math.IsNaN(s.SEM))
		})
	}
}

func TestGroupKey(t *testing.T) {
	assert.Equal(t, "ATP | 10 µM | S1", GroupKey(domain.Well{Label: "ATP", Concentration: "10 µM", SampleID: "S1"}))
	assert.Equal(t, "ATP | S1", GroupKey(domain.Well{Label: "ATP", SampleID: "S1"}))
	assert.Equal(t, "", GroupKey(domain.Well{}))
}

func TestGroupWells(t *testing.T) {
	layout := domain.NewPlateLayout()
	label(t, layout, "B1", "ATP", "10 µM", "S1")
	label(t, layout, "A2", "ATP", "10 µM", "S1")
	label(t, layout, "A1", "ATP", "10 µM", "S2")
	label(t, layout, "C5", "ATP", "1 µM", "S1")

	groups := GroupWells(layout, nil)
	require.Len(t, groups, 3)

	assert.Equal(t, "ATP | 10 µM | S2", groups[0].Name, "A1 is encountered first")
	assert.Equal(t, []string{"A1"}, groups[0].WellIDs)
	assert.Equal(t, "ATP | 10 µM | S1", groups[1].Name)
	assert.Equal(t, []string{"A2", "B1"}, groups[1].WellIDs, "members keep plate order")
	assert.Equal(t, "ATP | 1 µM | S1", groups[2].Name)
}

func TestGroupWells_AllWells(t *testing.T) {
	layout := domain.NewPlateLayout()
	present := map[string]bool{"A1": true, "A2": true, "H12": true}

	groups := GroupWells(layout, func(id string) bool { return present[id] })
	require.Len(t, groups, 1)
	assert.Equal(t, AllWellsGroup, groups[0].Name)
	assert.Equal(t, []string{"A1", "A2", "H12"}, groups[0].WellIDs)

	assert.Empty(t, GroupWells(layout, func(string) bool { return false }))
}

func TestAggregator_Summarize(t *testing.T) {
	layout := domain.NewPlateLayout()
	label(t, layout, "A1", "ATP", "", "S1")
	label(t, layout, "A2", "ATP", "", "S1")

	dff, err := domain.NewTraceTable("dff", []float64{0, 1, 2},
		[]string{"A1", "A2", "A3"},
		[][]float64{{0, 1, 0}, {0, 3, math.NaN()}, {9, 9, 9}})
	require.NoError(t, err)

	metrics := map[string]domain.MetricSet{
		"A1": {WellID: "A1", Peak: 1, TimeToPeak: 1, AUC: 1, BaselineMean: 0},
		"A2": {WellID: "A2", Peak: 3, TimeToPeak: 1, AUC: 2, BaselineMean: 0},
	}

	summaries, err := NewAggregator(nil).Summarize(context.Background(), layout, dff, metrics)
	require.NoError(t, err)
	require.Len(t, summaries, 1, "unlabeled A3 is not grouped")

	s := summaries[0]
	assert.Equal(t, "ATP | S1", s.Name)
	assert.InDelta(t, 2, s.Peak.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt2/math.Sqrt2, s.Peak.SEM, 1e-12)
	assert.Equal(t, []float64{0, 2}, s.MeanTrace[:2])
	assert.True(t, math.IsNaN(s.MeanTrace[2]), "NaN frame propagates into the mean trace")
	assert.Nil(t, s.Normalized)
}

func TestAggregator_MissingMetricsPropagate(t *testing.T) {
	layout := domain.NewPlateLayout()
	dff, err := domain.NewTraceTable("dff", []float64{0, 1}, []string{"A1", "A2"}, [][]float64{{0, 1}, {0, 2}})
	require.NoError(t, err)

	summaries, err := NewAggregator(nil).Summarize(context.Background(), layout, dff,
		map[string]domain.MetricSet{"A1": {Peak: 1}})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, math.IsNaN(summaries[0].Peak.Mean))
}
