// Package services holds the session state of the FLIPR analysis server and
// the operations that act on it.
//
// AnalysisService owns the loaded trace table, the plate layout, the analysis
// parameters and the diagnosis configuration. Process runs the pipeline
//
//	excision -> baseline normalization -> metric extraction ->
//	group aggregation -> ionomycin normalization
//
// and installs an immutable Snapshot; Diagnose evaluates the configured QC
// and sample tests against that snapshot. Any change to the inputs discards
// the snapshot and the diagnosis built from it.
//
// Progress is published as websocket events through a Publisher, and each
// run is traced with OpenTelemetry spans through PipelineTracer.
//
// HealthService reports liveness, readiness and runtime statistics for the
// HTTP health endpoints.
package services
