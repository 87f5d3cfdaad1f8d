// Package kinetics extracts response metrics from ΔF/F0 traces.
//
// Extractor computes peak, time-to-peak, baseline mean and a trapezoidal AUC
// for every well, optionally fitting an asymmetric peak shape. Wells run in
// parallel; a fit that fails is recorded on its own WellResult and never
// affects other wells.
//
// Trapz is tolerant of unsorted time axes and non-finite samples, but a
// length mismatch between x and y is reported as LENGTH_MISMATCH and aborts
// extraction.
package kinetics
