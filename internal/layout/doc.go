// Package layout edits and persists the 96-well plate map.
//
// Every edit takes a *domain.PlateLayout and returns a modified clone; the
// input layout is never changed. Layouts are saved as a JSON list of wells,
// imported from group/well metadata sheets (CSV or XLSX) and exported to the
// instrument's .fmg plate format.
package layout
