package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when a well's values do not line up with the time axis.
var ErrShapeMismatch = errors.New("trace length does not match time axis")

// TraceTable is an immutable wells x frames table with a shared time axis.
type TraceTable struct {
	name   string
	times  []float64
	ids    []string
	index  map[string]int
	values [][]float64
}

// NewTraceTable copies its inputs. Every row must have len(times) values and
// well ids must be unique.
func NewTraceTable(name string, times []float64, ids []string, values [][]float64) (*TraceTable, error) {
	if len(ids) != len(values) {
		return nil, fmt.Errorf("%d well ids for %d value rows", len(ids), len(values))
	}

	t := &TraceTable{
		name:   name,
		times:  append([]float64(nil), times...),
		ids:    append([]string(nil), ids...),
		index:  make(map[string]int, len(ids)),
		values: make([][]float64, len(values)),
	}
	for i, row := range values {
		if len(row) != len(times) {
			return nil, fmt.Errorf("well %s: %w (%d values, %d frames)", ids[i], ErrShapeMismatch, len(row), len(times))
		}
		if _, dup := t.index[ids[i]]; dup {
			return nil, fmt.Errorf("duplicate well id %s", ids[i])
		}
		t.index[ids[i]] = i
		t.values[i] = append([]float64(nil), row...)
	}
	return t, nil
}

// Name is the display name from the source file.
func (t *TraceTable) Name() string { return t.name }

// Frames is the length of the time axis.
func (t *TraceTable) Frames() int { return len(t.times) }

// Len is the number of wells.
func (t *TraceTable) Len() int { return len(t.ids) }

// Times returns a copy of the time axis.
func (t *TraceTable) Times() []float64 {
	return append([]float64(nil), t.times...)
}

// WellIDs returns the wells in table order.
func (t *TraceTable) WellIDs() []string {
	return append([]string(nil), t.ids...)
}

// Has reports whether the table carries a trace for id.
func (t *TraceTable) Has(id string) bool {
	_, ok := t.index[id]
	return ok
}

// Values returns a copy of the trace for id.
func (t *TraceTable) Values(id string) ([]float64, bool) {
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), t.values[i]...), true
}

// Row returns a copy of the i-th trace in table order.
func (t *TraceTable) Row(i int) []float64 {
	return append([]float64(nil), t.values[i]...)
}

// Map applies fn to every row and returns a new table sharing no storage
// with t. fn must return a row of the same length as times.
func (t *TraceTable) Map(times []float64, fn func(id string, row []float64) []float64) (*TraceTable, error) {
	out := make([][]float64, len(t.values))
	for i, id := range t.ids {
		out[i] = fn(id, t.Row(i))
	}
	return NewTraceTable(t.name, times, t.ids, out)
}

type traceTableJSON struct {
	Name  string                `json:"name"`
	Times []*float64            `json:"times"`
	Wells map[string][]*float64 `json:"wells"`
	Order []string              `json:"order"`
}

// MarshalJSON encodes non-finite samples as null.
func (t *TraceTable) MarshalJSON() ([]byte, error) {
	out := traceTableJSON{
		Name:  t.name,
		Times: NullableSlice(t.times),
		Wells: make(map[string][]*float64, len(t.ids)),
		Order: t.ids,
	}
	for i, id := range t.ids {
		out.Wells[id] = NullableSlice(t.values[i])
	}
	return json.Marshal(out)
}

// Nullable maps non-finite values to nil so they survive JSON encoding.
func Nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// NullableSlice applies Nullable element-wise.
func NullableSlice(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = Nullable(v)
	}
	return out
}
