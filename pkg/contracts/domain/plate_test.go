package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWellID_RoundTrip(t *testing.T) {
	for i := 0; i < PlateSize; i++ {
		id := WellID(i)
		idx, err := WellIndex(id)
		require.NoError(t, err, id)
		assert.Equal(t, i, idx)
	}
}

func TestWellIndex(t *testing.T) {
	tests := []struct {
		id      string
		want    int
		wantErr bool
	}{
		{id: "A1", want: 0},
		{id: "A12", want: 11},
		{id: "B1", want: 12},
		{id: "H12", want: 95},
		{id: "c05", want: 28},
		{id: " D10 ", want: 45},
		{id: "I1", wantErr: true},
		{id: "A13", wantErr: true},
		{id: "A0", wantErr: true},
		{id: "", wantErr: true},
		{id: "Well", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := WellIndex(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsWellID(t *testing.T) {
	assert.True(t, IsWellID("H12"))
	assert.True(t, IsWellID("A9"))
	assert.False(t, IsWellID("A01"))
	assert.False(t, IsWellID("a1"))
	assert.False(t, IsWellID("A13"))
}

func TestNewPlateLayout(t *testing.T) {
	p := NewPlateLayout()

	w := p.Well(9)
	assert.Equal(t, "A10", w.ID)
	assert.Equal(t, DefaultColors[1], w.Color)
	assert.Equal(t, 0, w.Row())
	assert.Equal(t, 9, w.Column())
	assert.False(t, p.Labeled())
}

func TestPlateLayout_CloneIsIndependent(t *testing.T) {
	p := NewPlateLayout()
	c := p.Clone()

	w := c.Well(0)
	w.Label = "ATP"
	c.Set(w)

	assert.Equal(t, "", p.Well(0).Label)
	assert.Equal(t, "ATP", c.Well(0).Label)
	assert.True(t, c.Labeled())
}

func TestPlateLayout_JSON(t *testing.T) {
	p := NewPlateLayout()
	p.Set(Well{Index: 13, Label: "Ionomycin", Concentration: "1 µM", SampleID: "S1", Color: "#ff0000"})

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var entries []map[string]string
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, PlateSize)
	assert.Equal(t, "B2", entries[13]["well_id"])
	assert.Equal(t, "Ionomycin", entries[13]["label"])

	loaded := NewPlateLayout()
	require.NoError(t, json.Unmarshal(data, loaded))
	assert.Equal(t, p.Wells(), loaded.Wells())
}

func TestPlateLayout_UnmarshalPlacesByWellID(t *testing.T) {
	data := []byte(`[{"well_id":"C3","label":"ATP"},{"label":"second"}]`)

	p := NewPlateLayout()
	require.NoError(t, json.Unmarshal(data, p))

	w, ok := p.Lookup("C3")
	require.True(t, ok)
	assert.Equal(t, "ATP", w.Label)
	assert.Equal(t, DefaultColors[26%len(DefaultColors)], w.Color)
	assert.Equal(t, "second", p.Well(1).Label)
}
