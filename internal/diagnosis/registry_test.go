package diagnosis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

func fptr(v float64) *float64 { return &v }

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, 15, r.Count())

	list := r.List()
	assert.Equal(t, domain.TestInjectionArtifact, list[0].ID)
	assert.Equal(t, domain.TestReplicateCV, list[len(list)-1].ID)

	for id := range domain.DefaultTestConfigs() {
		_, err := r.Get(id)
		assert.NoError(t, err, id)
	}

	placeholders := map[string]bool{}
	for _, spec := range list {
		if spec.Placeholder {
			placeholders[spec.ID] = true
		}
	}
	assert.Equal(t, map[string]bool{
		domain.TestInjectionArtifact: true,
		domain.TestPeakWidthRange:    true,
		domain.TestIonomycinAdequacy: true,
		domain.TestATPAdequacy:       true,
	}, placeholders)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(TestSpec{ID: "a", Placeholder: true}))

	assert.Error(t, r.Register(TestSpec{ID: "a", Placeholder: true}), "duplicate")
	assert.Error(t, r.Register(TestSpec{ID: ""}), "empty id")
	assert.Error(t, r.Register(TestSpec{ID: "b"}), "no evaluator")

	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestTestSpec_RunPlaceholder(t *testing.T) {
	spec, err := DefaultRegistry().Get(domain.TestPeakWidthRange)
	require.NoError(t, err)

	res := spec.Run(&Analyses{}, domain.TestConfig{Enabled: true, Param1: fptr(-1), Param2: fptr(-2)})
	assert.True(t, res.Passed)
	assert.True(t, res.Placeholder)
	assert.Equal(t, domain.TestPeakWidthRange, res.ID)
}

func TestInRange(t *testing.T) {
	tests := []struct {
		name   string
		v      float64
		lo, hi *float64
		want   bool
	}{
		{name: "inclusive lower", v: 1, lo: fptr(1), hi: fptr(2), want: true},
		{name: "inclusive upper", v: 2, lo: fptr(1), hi: fptr(2), want: true},
		{name: "below", v: 0.99, lo: fptr(1), hi: fptr(2), want: false},
		{name: "lower bound only", v: 1e12, lo: fptr(1), want: true},
		{name: "upper bound only", v: -1e12, hi: fptr(1), want: true},
		{name: "no bounds", v: 5, want: true},
		{name: "NaN", v: math.NaN(), lo: fptr(0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inRange(tt.v, tt.lo, tt.hi))
		})
	}
}

func okGroup(name string, peak domain.Stat) *domain.GroupAnalysis {
	return &domain.GroupAnalysis{Name: name, Status: domain.GroupOK, Peak: peak}
}

func TestPeakHeightRange(t *testing.T) {
	spec, err := DefaultRegistry().Get(domain.TestPeakHeightRange)
	require.NoError(t, err)
	cfg := domain.TestConfig{Enabled: true, Param1: fptr(0.5), Param2: fptr(10)}

	tests := []struct {
		name     string
		positive *domain.GroupAnalysis
		want     bool
	}{
		{name: "within", positive: okGroup("Positive Control", domain.Stat{N: 4, Mean: 2}), want: true},
		{name: "too high", positive: okGroup("Positive Control", domain.Stat{N: 4, Mean: 11}), want: false},
		{name: "NaN fails", positive: okGroup("Positive Control", domain.Stat{N: 4, Mean: math.NaN()}), want: false},
		{name: "missing skipped", positive: &domain.GroupAnalysis{Status: domain.GroupMissing}, want: true},
		{name: "error skipped", positive: &domain.GroupAnalysis{Status: domain.GroupError}, want: true},
		{name: "absent skipped", positive: nil, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := spec.Run(&Analyses{Positive: tt.positive}, cfg)
			assert.Equal(t, tt.want, res.Passed, res.Message)
		})
	}
}

func TestReplicateCV(t *testing.T) {
	spec, err := DefaultRegistry().Get(domain.TestReplicateCV)
	require.NoError(t, err)
	cfg := domain.TestConfig{Enabled: true, Param1: fptr(30)}

	a := &Analyses{
		Positive: okGroup("Positive Control", domain.Stat{N: 4, Mean: 2, CV: 10}),
		Samples:  []*domain.GroupAnalysis{okGroup("S1", domain.Stat{N: 1, Mean: 1, CV: math.NaN()})},
	}
	res := spec.Run(a, cfg)
	assert.True(t, res.Passed, "single-well groups have no CV and are skipped")

	a.Samples = append(a.Samples, okGroup("S2", domain.Stat{N: 3, Mean: 1, CV: 30}))
	res = spec.Run(a, cfg)
	assert.False(t, res.Passed, "CV must be strictly below the threshold")
	assert.Contains(t, res.Message, "S2")
}

func TestRawBaselineMin_NoThreshold(t *testing.T) {
	spec, err := DefaultRegistry().Get(domain.TestRawBaselineMin)
	require.NoError(t, err)

	a := &Analyses{Positive: &domain.GroupAnalysis{Name: "p", Status: domain.GroupOK, RawBaseline: domain.Stat{N: 2, Min: 1}}}
	assert.True(t, spec.Run(a, domain.TestConfig{Enabled: true}).Passed)
	assert.False(t, spec.Run(a, domain.TestConfig{Enabled: true, Param1: fptr(500)}).Passed)
}
