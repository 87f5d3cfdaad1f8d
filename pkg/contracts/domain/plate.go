// Package domain holds the data contracts shared by the analysis pipeline,
// the HTTP API and the exporters.
package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	PlateRows = 8
	PlateCols = 12
	PlateSize = PlateRows * PlateCols
)

// DefaultColors is the palette assigned to wells by index, cycling every 8 wells.
var DefaultColors = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728",
	"#9467bd", "#8c564b", "#e377c2", "#7f7f7f",
}

var wellIDPattern = regexp.MustCompile(`^[A-H](1[0-2]|[1-9])$`)

// IsWellID reports whether id is a canonical plate position such as "B7".
func IsWellID(id string) bool {
	return wellIDPattern.MatchString(id)
}

// WellID returns the plate position for a 0-based well index.
func WellID(index int) string {
	return fmt.Sprintf("%c%d", 'A'+index/PlateCols, index%PlateCols+1)
}

// NormalizeWellID upper-cases id and strips column zero padding ("a01" -> "A1").
func NormalizeWellID(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	if len(id) < 2 {
		return id
	}
	col := strings.TrimLeft(id[1:], "0")
	if col == "" {
		return id
	}
	return id[:1] + col
}

// WellIndex is the inverse of WellID.
func WellIndex(id string) (int, error) {
	id = NormalizeWellID(id)
	if !IsWellID(id) {
		return -1, fmt.Errorf("invalid well id %q", id)
	}
	col, _ := strconv.Atoi(id[1:])
	return int(id[0]-'A')*PlateCols + col - 1, nil
}

// Well is one physical position on the plate plus its user metadata.
type Well struct {
	Index         int    `json:"-"`
	ID            string `json:"well_id"`
	Label         string `json:"label"`
	Concentration string `json:"concentration"`
	SampleID      string `json:"sample_id"`
	Color         string `json:"color"`
}

// Row returns the 0-based plate row.
func (w Well) Row() int { return w.Index / PlateCols }

// Column returns the 0-based plate column.
func (w Well) Column() int { return w.Index % PlateCols }

// HasMetadata reports whether any grouping field is set.
func (w Well) HasMetadata() bool {
	return w.Label != "" || w.Concentration != "" || w.SampleID != ""
}

// PlateLayout is the 96-well metadata table. Pipeline stages receive it
// read-only; edits go through Clone and Set.
type PlateLayout struct {
	wells [PlateSize]Well
}

// NewPlateLayout returns an unlabeled plate with default colors.
func NewPlateLayout() *PlateLayout {
	p := &PlateLayout{}
	for i := range p.wells {
		p.wells[i] = blankWell(i)
	}
	return p
}

func blankWell(i int) Well {
	return Well{
		Index: i,
		ID:    WellID(i),
		Color: DefaultColors[i%len(DefaultColors)],
	}
}

// BlankWell returns the default state for the well at index i.
func BlankWell(i int) Well {
	return blankWell(i)
}

// Well returns the well at index i.
func (p *PlateLayout) Well(i int) Well {
	return p.wells[i]
}

// Lookup returns the well by plate position.
func (p *PlateLayout) Lookup(id string) (Well, bool) {
	i, err := WellIndex(id)
	if err != nil {
		return Well{}, false
	}
	return p.wells[i], true
}

// Wells returns a copy of all 96 wells in index order.
func (p *PlateLayout) Wells() []Well {
	out := make([]Well, PlateSize)
	copy(out, p.wells[:])
	return out
}

// Set replaces the well at w.Index. Index and ID are kept consistent.
func (p *PlateLayout) Set(w Well) {
	if w.Index < 0 || w.Index >= PlateSize {
		return
	}
	w.ID = WellID(w.Index)
	p.wells[w.Index] = w
}

// Clone returns an independent copy.
func (p *PlateLayout) Clone() *PlateLayout {
	c := *p
	return &c
}

// Labeled reports whether at least one well carries metadata.
func (p *PlateLayout) Labeled() bool {
	for _, w := range p.wells {
		if w.HasMetadata() {
			return true
		}
	}
	return false
}

// MarshalJSON writes the layout as the 96-entry list used by saved layout files.
func (p *PlateLayout) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.wells[:])
}

// UnmarshalJSON accepts a list of wells. Entries are placed by well_id
// when it is valid, otherwise by list position.
func (p *PlateLayout) UnmarshalJSON(data []byte) error {
	var entries []Well
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if len(entries) > PlateSize {
		return fmt.Errorf("layout has %d wells, expected at most %d", len(entries), PlateSize)
	}

	for i := range p.wells {
		p.wells[i] = blankWell(i)
	}
	for pos, e := range entries {
		idx := pos
		if e.ID != "" {
			if i, err := WellIndex(e.ID); err == nil {
				idx = i
			}
		}
		e.Index = idx
		if e.Color == "" {
			e.Color = DefaultColors[idx%len(DefaultColors)]
		}
		p.Set(e)
	}
	return nil
}
