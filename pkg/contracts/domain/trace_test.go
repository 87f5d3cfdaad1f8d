package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTraceTable(t *testing.T) {
	tests := []struct {
		name    string
		times   []float64
		ids     []string
		values  [][]float64
		wantErr bool
	}{
		{
			name:   "valid table",
			times:  []float64{0, 1, 2},
			ids:    []string{"A1", "A2"},
			values: [][]float64{{1, 2, 3}, {4, 5, 6}},
		},
		{
			name:    "row shorter than time axis",
			times:   []float64{0, 1, 2},
			ids:     []string{"A1"},
			values:  [][]float64{{1, 2}},
			wantErr: true,
		},
		{
			name:    "id count mismatch",
			times:   []float64{0},
			ids:     []string{"A1", "A2"},
			values:  [][]float64{{1}},
			wantErr: true,
		},
		{
			name:    "duplicate well",
			times:   []float64{0},
			ids:     []string{"A1", "A1"},
			values:  [][]float64{{1}, {2}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := NewTraceTable("plate", tt.times, tt.ids, tt.values)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.times), tbl.Frames())
			assert.Equal(t, len(tt.ids), tbl.Len())
		})
	}
}

func TestNewTraceTable_ShapeMismatchSentinel(t *testing.T) {
	_, err := NewTraceTable("x", []float64{0, 1}, []string{"A1"}, [][]float64{{1}})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestTraceTable_Immutable(t *testing.T) {
	row := []float64{1, 2, 3}
	tbl, err := NewTraceTable("x", []float64{0, 1, 2}, []string{"A1"}, [][]float64{row})
	require.NoError(t, err)

	row[0] = 99
	got, ok := tbl.Values("A1")
	require.True(t, ok)
	assert.Equal(t, 1.0, got[0])

	got[1] = 42
	again, _ := tbl.Values("A1")
	assert.Equal(t, 2.0, again[1])

	_, ok = tbl.Values("B1")
	assert.False(t, ok)
}

func TestTraceTable_MarshalJSONNullsNonFinite(t *testing.T) {
	tbl, err := NewTraceTable("x", []float64{0, 1}, []string{"A1"}, [][]float64{{math.NaN(), math.Inf(1)}})
	require.NoError(t, err)

	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x","times":[0,1],"wells":{"A1":[null,null]},"order":["A1"]}`, string(data))
}
