package diagnosis

import (
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// Collection is the COLLECT_WELLS output: well ids per control type and per
// sample id, each in plate order.
type Collection struct {
	Positive  []string
	Negative  []string
	Buffer    []string
	Samples   map[string][]string
	SampleIDs []string
}

// CollectWells partitions the plate by column range. Wells that fail
// present are ignored. A well whose column falls in several ranges is
// collected into each of them.
func CollectWells(layout *domain.PlateLayout, cfg domain.DiagnosisConfig, present func(id string) bool) Collection {
	c := Collection{Samples: make(map[string][]string)}
	for _, w := range layout.Wells() {
		if present != nil && !present(w.ID) {
			continue
		}
		col := w.Column()
		if cfg.PositiveControl.Contains(col) {
			c.Positive = append(c.Positive, w.ID)
		}
		if cfg.NegativeControl.Contains(col) {
			c.Negative = append(c.Negative, w.ID)
		}
		if cfg.BufferEnabled && cfg.BufferControl.Contains(col) {
			c.Buffer = append(c.Buffer, w.ID)
		}
		if cfg.Samples.Contains(col) && w.SampleID != "" {
			if _, seen := c.Samples[w.SampleID]; !seen {
				c.SampleIDs = append(c.SampleIDs, w.SampleID)
			}
			c.Samples[w.SampleID] = append(c.Samples[w.SampleID], w.ID)
		}
	}
	return c
}
