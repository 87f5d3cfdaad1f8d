// Package api contains the request and response bodies of the FLIPR
// analysis REST API. Version v1 is the current stable API version.
package api

// Layout API Requests

// LabelRequest edits the metadata of a set of wells.
//
// Mode "label" writes the enabled fields to every well, "log10" writes a
// tenfold dilution series starting at Start, and "clear" resets the enabled
// fields. An empty Fields list enables all of them.
type LabelRequest struct {
	Mode          string   `json:"mode" validate:"omitempty,oneof=label log10 clear"`
	Wells         []string `json:"wells" validate:"required,min=1,max=96,dive,well_id"`
	Label         string   `json:"label" validate:"max=100"`
	Concentration string   `json:"concentration" validate:"max=50"`
	SampleID      string   `json:"sample_id" validate:"max=100"`
	Color         string   `json:"color" validate:"omitempty,hexcolor"`
	Fields        []string `json:"fields,omitempty" validate:"omitempty,dive,oneof=label concentration sample_id color"`
	Start         float64  `json:"start,omitempty" validate:"omitempty,gt=0"`
}

// LayoutFileRequest names a layout file in the layouts directory.
type LayoutFileRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// Export API Requests

// SaveReportRequest writes the results to the reports directory. An empty
// Filename derives one from the data file name and run time.
type SaveReportRequest struct {
	Format   string `json:"format" validate:"omitempty,oneof=xlsx csv"`
	Filename string `json:"filename" validate:"omitempty,max=200"`
}
