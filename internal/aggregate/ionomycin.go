package aggregate

import (
	"strings"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// IonomycinLabel is the agonist label that marks reference wells.
const IonomycinLabel = "Ionomycin"

// IsIonomycinGroup reports whether a group name refers to the reference itself.
func IsIonomycinGroup(name string) bool {
	return strings.Contains(strings.ToLower(name), "ionomycin")
}

// References returns the mean ionomycin peak per sample id. Only wells
// present in peaks count; NaN peaks propagate into the reference.
func References(layout *domain.PlateLayout, peaks map[string]float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, w := range layout.Wells() {
		if w.Label != IonomycinLabel {
			continue
		}
		p, ok := peaks[w.ID]
		if !ok {
			continue
		}
		sums[w.SampleID] += p
		counts[w.SampleID]++
	}

	refs := make(map[string]float64, len(sums))
	for id, sum := range sums {
		refs[id] = sum / float64(counts[id])
	}
	return refs
}

// hasReference reports whether ref can normalize. Zero references are
// excluded rather than producing Inf.
func hasReference(refs map[string]float64, sampleID string) (float64, bool) {
	ref, ok := refs[sampleID]
	if !ok || ref == 0 {
		return 0, false
	}
	return ref, true
}

// NormalizeWells expresses the peak of every non-ionomycin well as percent of
// its sample's reference. Wells without a usable reference are omitted.
func NormalizeWells(layout *domain.PlateLayout, peaks, refs map[string]float64) []domain.NormalizedWell {
	var out []domain.NormalizedWell
	for _, w := range layout.Wells() {
		if w.Label == IonomycinLabel {
			continue
		}
		p, ok := peaks[w.ID]
		if !ok {
			continue
		}
		ref, ok := hasReference(refs, w.SampleID)
		if !ok {
			continue
		}
		out = append(out, domain.NormalizedWell{
			WellID:     w.ID,
			SampleID:   w.SampleID,
			Peak:       p,
			Reference:  ref,
			Normalized: p / ref * 100,
		})
	}
	return out
}

// NormalizedValues returns the normalized responses of the given wells,
// skipping wells with no reference.
func NormalizedValues(normalized []domain.NormalizedWell, wellIDs []string) []float64 {
	byID := make(map[string]float64, len(normalized))
	for _, n := range normalized {
		byID[n.WellID] = n.Normalized
	}
	var out []float64
	for _, id := range wellIDs {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// ApplyNormalized attaches normalized-response statistics to every
// non-ionomycin summary that has at least one normalized well. It returns a
// new slice.
func ApplyNormalized(summaries []domain.GroupSummary, normalized []domain.NormalizedWell) []domain.GroupSummary {
	out := make([]domain.GroupSummary, len(summaries))
	copy(out, summaries)
	for i := range out {
		out[i].Normalized = nil
		if IsIonomycinGroup(out[i].Name) {
			continue
		}
		values := NormalizedValues(normalized, out[i].WellIDs)
		if len(values) == 0 {
			continue
		}
		s := Summarize(values)
		out[i].Normalized = &s
	}
	return out
}
