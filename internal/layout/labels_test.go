package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

func TestApplyLabel(t *testing.T) {
	base := domain.NewPlateLayout()
	spec := LabelSpec{Label: "ATP", Concentration: "10", SampleID: "S1", Color: "#123456"}

	out, err := ApplyLabel(base, []string{"a01", "B2"}, spec)
	require.NoError(t, err)

	a1, _ := out.Lookup("A1")
	assert.Equal(t, "ATP", a1.Label)
	assert.Equal(t, "10 µM", a1.Concentration)
	assert.Equal(t, "S1", a1.SampleID)
	assert.Equal(t, "#123456", a1.Color)

	orig, _ := base.Lookup("A1")
	assert.Empty(t, orig.Label, "input layout is not modified")
}

func TestApplyLabel_SelectedFields(t *testing.T) {
	base, err := ApplyLabel(domain.NewPlateLayout(), []string{"C3"}, LabelSpec{Label: "ATP", SampleID: "S1"})
	require.NoError(t, err)

	out, err := ApplyLabel(base, []string{"C3"}, LabelSpec{Label: "Ionomycin", SampleID: "S9", Fields: []Field{FieldLabel}})
	require.NoError(t, err)

	w, _ := out.Lookup("C3")
	assert.Equal(t, "Ionomycin", w.Label)
	assert.Equal(t, "S1", w.SampleID)
}

func TestApplyLabel_InvalidWell(t *testing.T) {
	_, err := ApplyLabel(domain.NewPlateLayout(), []string{"A1", "Z9"}, LabelSpec{Label: "x"})
	require.Error(t, err)
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeValidation))
}

func TestApplyLog10Series(t *testing.T) {
	out, err := ApplyLog10Series(domain.NewPlateLayout(), []string{"A3", "A1", "A2"}, LabelSpec{Label: "ATP"}, 100)
	require.NoError(t, err)

	want := map[string]string{"A1": "100.00 µM", "A2": "10.00 µM", "A3": "1.00 µM"}
	for id, conc := range want {
		w, _ := out.Lookup(id)
		assert.Equal(t, conc, w.Concentration, id)
		assert.Equal(t, "ATP", w.Label)
	}

	_, err = ApplyLog10Series(domain.NewPlateLayout(), []string{"A1"}, LabelSpec{}, 100)
	assert.Error(t, err)
}

func TestClearWells(t *testing.T) {
	base, err := ApplyLabel(domain.NewPlateLayout(), []string{"D4"}, LabelSpec{Label: "ATP", Concentration: "1", SampleID: "S1", Color: "#000000"})
	require.NoError(t, err)

	partial, err := ClearWells(base, []string{"D4"}, []Field{FieldSampleID})
	require.NoError(t, err)
	w, _ := partial.Lookup("D4")
	assert.Equal(t, "ATP", w.Label)
	assert.Empty(t, w.SampleID)

	cleared, err := ClearWells(base, []string{"D4"}, nil)
	require.NoError(t, err)
	w, _ = cleared.Lookup("D4")
	assert.False(t, w.HasMetadata())
	assert.Equal(t, domain.BlankWell(w.Index).Color, w.Color)
}
