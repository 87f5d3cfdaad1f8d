package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/infrastructure"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

const (
	PipelineTracerName = "flipr.pipeline"
)

// PipelineTracer provides OpenTelemetry instrumentation for processing and
// diagnostic runs. A nil metrics set only disables metric recording.
type PipelineTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
}

// NewPipelineTracer creates a tracer. A nil tracer uses the global provider.
func NewPipelineTracer(tracer trace.Tracer, metrics *infrastructure.BusinessMetrics) *PipelineTracer {
	if tracer == nil {
		tracer = otel.Tracer(PipelineTracerName)
	}
	return &PipelineTracer{tracer: tracer, metrics: metrics}
}

// StartRun creates the parent span for a processing run
func (pt *PipelineTracer) StartRun(ctx context.Context, runID string, params domain.AnalysisParameters, raw *domain.TraceTable) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "pipeline.process",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("pipeline.run_id", runID),
			attribute.Int("pipeline.wells", raw.Len()),
			attribute.Int("pipeline.frames", raw.Frames()),
			attribute.Bool("pipeline.remove_artifact", params.RemoveArtifact),
			attribute.Bool("pipeline.fit_peaks", params.FitPeaks),
			attribute.Int("pipeline.baseline_frames", params.BaselineFrameCount),
		),
	)
}

// EndRun records the run outcome and closes its span.
func (pt *PipelineTracer) EndRun(ctx context.Context, span trace.Span, snap *Snapshot, start time.Time, err error) {
	wells, fitFailures := 0, 0
	if snap != nil {
		wells, fitFailures = len(snap.Metrics), snap.FitFailures
		span.SetAttributes(
			attribute.Int("pipeline.groups", len(snap.Groups)),
			attribute.Int("pipeline.normalized", len(snap.Normalized)),
			attribute.Int("pipeline.fit_failures", fitFailures),
		)
	}
	infrastructure.RecordPipelineRun(ctx, pt.metrics, wells, fitFailures, time.Since(start), err)
	finish(span, err)
}

// StartStage creates a child span for one pipeline stage
func (pt *PipelineTracer) StartStage(ctx context.Context, runID, stage string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "pipeline.stage."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("pipeline.run_id", runID),
			attribute.String("pipeline.stage", stage),
		),
	)
}

// EndStage records the stage duration and closes its span.
func (pt *PipelineTracer) EndStage(ctx context.Context, span trace.Span, stage string, start time.Time, err error) {
	infrastructure.RecordStage(ctx, pt.metrics, stage, time.Since(start), err)
	finish(span, err)
}

// StartDiagnosis creates the span for a diagnostic run
func (pt *PipelineTracer) StartDiagnosis(ctx context.Context, snapshotRunID string, cfg domain.DiagnosisConfig) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "diagnosis.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("pipeline.run_id", snapshotRunID),
			attribute.Bool("diagnosis.buffer_enabled", cfg.BufferEnabled),
			attribute.Float64("diagnosis.threshold", cfg.AutismRiskThreshold),
		),
	)
}

// EndDiagnosis records per-sample outcomes and failed QC tests.
func (pt *PipelineTracer) EndDiagnosis(ctx context.Context, span trace.Span, result *domain.DiagnosisResult, err error) {
	if result != nil {
		statuses := make([]string, 0, len(result.Diagnosis))
		for _, id := range result.SampleIDs {
			if d, ok := result.Diagnosis[id]; ok {
				statuses = append(statuses, d.Status)
			}
		}
		failed := failedTests(result)
		span.SetAttributes(
			attribute.String("diagnosis.run_id", result.RunID),
			attribute.Bool("diagnosis.qc_passed", result.QCPassed),
			attribute.Int("diagnosis.samples", len(statuses)),
			attribute.StringSlice("diagnosis.failed_tests", failed),
		)
		infrastructure.RecordDiagnosis(ctx, pt.metrics, result.QCPassed, statuses, failed)
	}
	finish(span, err)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func failedTests(result *domain.DiagnosisResult) []string {
	var failed []string
	for _, id := range result.TestOrder {
		if !result.Tests[id].Passed {
			failed = append(failed, id)
		}
	}
	return failed
}
