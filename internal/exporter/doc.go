// Package exporter writes analysis results for use outside the server.
//
// This package contains two main components:
//
// CSVWriter: per-well metrics as CSV with a UTF-8 BOM for Excel
// compatibility, written to the reports directory or streamed to a writer.
//
// WorkbookWriter: the results workbook with Summary, Individual_Traces,
// Mean_Traces, Peak_Responses, Analysis_Metrics, Ionomycin_Normalized and
// Diagnosis sheets. Non-finite numbers are written as text.
//
// Example usage:
//
//	writer := exporter.NewWorkbookWriter(paths, logger)
//	path, err := writer.Save(config.WorkbookFileName, &exporter.Report{
//	    Name:    raw.Name(),
//	    Params:  params,
//	    Layout:  layout,
//	    DFF:     pre.DFF,
//	    Metrics: results.Metrics(),
//	    Groups:  summaries,
//	})
package exporter
