package exporter

import (
	"fmt"
	"math"
)

// formatFloat formats a float64 for CSV output with four decimal places.
// Non-finite values are written as NaN, +Inf or -Inf.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return fmt.Sprintf("%.4f", f)
}

// formatOptional formats a pointer value, empty when nil.
func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// cellValue returns a numeric cell, or its text form when non-finite so
// spreadsheets do not receive invalid numbers.
func cellValue(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return formatFloat(f)
	}
	return f
}

// round3 rounds to three decimals for the summary tables.
func round3(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return formatFloat(f)
	}
	return math.Round(f*1000) / 1000
}
