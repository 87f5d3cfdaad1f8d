// Package dataprocessing turns raw FLIPR exports into normalized response traces.
//
// # Stages
//
//  1. Parser reads the tab-delimited instrument export into a domain.TraceTable.
//  2. ExciseArtifact drops the injection artifact window, expressed on the
//     220-frame reference protocol and rescaled to the table's frame count.
//  3. NormalizeBaseline computes F0 over the leading frames and derives ΔF/F0.
//
// Every stage returns a new table. The raw table stays available so a
// parameter change can reprocess from scratch.
//
// # Usage
//
//	raw, err := dataprocessing.NewParser(logger).ParseFile("plate1.txt")
//	if err != nil {
//	    return err
//	}
//	pre, err := dataprocessing.NewProcessor(logger).Process(ctx, raw, domain.DefaultAnalysisParameters())
//
// # Error Handling
//
// Malformed files return a PARSING AppError and an empty artifact window
// returns INVALID_RANGE. A zero baseline is not an error: the affected
// samples become Inf or NaN and flow downstream unchanged.
package dataprocessing
