package layout

import (
	"fmt"
	"math"
	"sort"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// Field selects which well attributes an edit touches.
type Field string

const (
	FieldLabel         Field = "label"
	FieldConcentration Field = "concentration"
	FieldSampleID      Field = "sample_id"
	FieldColor         Field = "color"
)

// AllFields is the field set used when a request names none.
var AllFields = []Field{FieldLabel, FieldConcentration, FieldSampleID, FieldColor}

// LabelSpec is one labeling request. Concentration is the bare number as
// typed; it is stored with a µM suffix.
type LabelSpec struct {
	Label         string  `json:"label"`
	Concentration string  `json:"concentration"`
	SampleID      string  `json:"sample_id"`
	Color         string  `json:"color" validate:"omitempty,hexcolor"`
	Fields        []Field `json:"fields" validate:"dive,oneof=label concentration sample_id color"`
}

func (s LabelSpec) enabled(f Field) bool {
	fields := s.Fields
	if len(fields) == 0 {
		fields = AllFields
	}
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}

// resolve turns well ids into sorted, de-duplicated plate indices.
func resolve(wellIDs []string) ([]int, error) {
	seen := make(map[int]bool, len(wellIDs))
	out := make([]int, 0, len(wellIDs))
	for _, id := range wellIDs {
		i, err := domain.WellIndex(domain.NormalizeWellID(id))
		if err != nil {
			return nil, apierrors.NewAppValidationError(err.Error()).WithContext("well_id", id)
		}
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out, nil
}

// applyCommon sets label, sample id and color per the requested fields.
// A color equal to the well's default is left untouched.
func applyCommon(w *domain.Well, spec LabelSpec) {
	if spec.enabled(FieldLabel) {
		w.Label = spec.Label
	}
	if spec.enabled(FieldSampleID) {
		w.SampleID = spec.SampleID
	}
	if spec.enabled(FieldColor) && spec.Color != "" {
		if spec.Color != domain.BlankWell(w.Index).Color {
			w.Color = spec.Color
		}
	}
}

// ApplyLabel sets the selected fields on every listed well.
func ApplyLabel(layout *domain.PlateLayout, wellIDs []string, spec LabelSpec) (*domain.PlateLayout, error) {
	idx, err := resolve(wellIDs)
	if err != nil {
		return nil, err
	}

	out := layout.Clone()
	for _, i := range idx {
		w := out.Well(i)
		applyCommon(&w, spec)
		if spec.enabled(FieldConcentration) {
			w.Concentration = ""
			if spec.Concentration != "" {
				w.Concentration = spec.Concentration + " µM"
			}
		}
		out.Set(w)
	}
	return out, nil
}

// ApplyLog10Series assigns start, start/10, start/100, ... to the listed
// wells in plate order. At least two wells are required.
func ApplyLog10Series(layout *domain.PlateLayout, wellIDs []string, spec LabelSpec, start float64) (*domain.PlateLayout, error) {
	idx, err := resolve(wellIDs)
	if err != nil {
		return nil, err
	}
	if len(idx) < 2 {
		return nil, apierrors.NewAppValidationError("select at least 2 wells for a log10 series")
	}
	if math.IsNaN(start) || math.IsInf(start, 0) {
		return nil, apierrors.NewAppValidationError("invalid starting concentration")
	}

	out := layout.Clone()
	for n, i := range idx {
		w := out.Well(i)
		applyCommon(&w, spec)
		w.Concentration = fmt.Sprintf("%.2f µM", start/math.Pow(10, float64(n)))
		out.Set(w)
	}
	return out, nil
}

// ClearWells resets the selected fields of the listed wells. Clearing the
// color restores the well's default.
func ClearWells(layout *domain.PlateLayout, wellIDs []string, fields []Field) (*domain.PlateLayout, error) {
	idx, err := resolve(wellIDs)
	if err != nil {
		return nil, err
	}
	spec := LabelSpec{Fields: fields}

	out := layout.Clone()
	for _, i := range idx {
		w := out.Well(i)
		if spec.enabled(FieldLabel) {
			w.Label = ""
		}
		if spec.enabled(FieldConcentration) {
			w.Concentration = ""
		}
		if spec.enabled(FieldSampleID) {
			w.SampleID = ""
		}
		if spec.enabled(FieldColor) {
			w.Color = domain.BlankWell(i).Color
		}
		out.Set(w)
	}
	return out, nil
}
