package diagnosis

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// QCFailedMessage is reported for every sample when any enabled test fails.
const QCFailedMessage = "Cannot diagnose due to failed quality control"

// Input is the already-computed pipeline state a run reads. It is never
// modified.
type Input struct {
	Layout     *domain.PlateLayout
	DFF        *domain.TraceTable
	Metrics    map[string]domain.MetricSet
	Normalized []domain.NormalizedWell
}

// Engine runs the diagnostic state machine.
type Engine struct {
	logger   *slog.Logger
	registry *Registry
	observer StageObserver
	now      func() time.Time
}

// NewEngine creates an engine. A nil registry uses DefaultRegistry.
func NewEngine(logger *slog.Logger, registry *Registry) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Engine{
		logger:   logger.With(slog.String("component", "diagnostic_engine")),
		registry: registry,
		now:      time.Now,
	}
}

// WithObserver sets a callback invoked on each stage transition.
func (e *Engine) WithObserver(obs StageObserver) *Engine {
	e.observer = obs
	return e
}

// Registry returns the engine's test registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Run executes COLLECT_WELLS, ANALYZE_GROUPS, RUN_TESTS and
// DETERMINE_DIAGNOSIS. It returns a complete result or an error, never a
// partial result.
func (e *Engine) Run(ctx context.Context, cfg domain.DiagnosisConfig, in Input) (*domain.DiagnosisResult, error) {
	if in.Layout == nil || in.DFF == nil || in.Metrics == nil {
		return nil, apierrors.NewAppValidationError("diagnosis requires processed data and metrics")
	}
	warnings, err := Validate(cfg)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		e.logger.WarnContext(ctx, "Diagnosis configuration warning",
			slog.String("code", w.Code),
			slog.String("message", w.Message))
	}

	sm := &stageMachine{observer: e.observer}
	result := &domain.DiagnosisResult{
		RunID:     uuid.New().String(),
		CreatedAt: e.now().UTC(),
		Warnings:  warnings,
		Threshold: cfg.AutismRiskThreshold,
	}

	if err := sm.enter(ctx, StageCollectWells); err != nil {
		return nil, e.fail(ctx, StageCollectWells, err)
	}
	collected := CollectWells(in.Layout, cfg, in.DFF.Has)
	e.logger.DebugContext(ctx, "Wells collected",
		slog.Int("positive", len(collected.Positive)),
		slog.Int("negative", len(collected.Negative)),
		slog.Int("buffer", len(collected.Buffer)),
		slog.Int("samples", len(collected.SampleIDs)))

	if err := sm.enter(ctx, StageAnalyzeGroups); err != nil {
		return nil, e.fail(ctx, StageAnalyzeGroups, err)
	}
	analyses := e.analyze(ctx, cfg, collected, in)
	result.Controls = domain.Controls{Positive: analyses.Positive, Negative: analyses.Negative, Buffer: analyses.Buffer}
	result.Samples = make(map[string]*domain.GroupAnalysis, len(analyses.Samples))
	for _, g := range analyses.Samples {
		result.Samples[g.Name] = g
	}
	result.SampleIDs = collected.SampleIDs

	if err := sm.enter(ctx, StageRunTests); err != nil {
		return nil, e.fail(ctx, StageRunTests, err)
	}
	result.Tests, result.TestOrder = e.runTests(ctx, cfg, analyses)
	result.QCPassed = true
	for _, id := range result.TestOrder {
		if !result.Tests[id].Passed {
			result.QCPassed = false
		}
	}

	if err := sm.enter(ctx, StageDetermineDiagnosis); err != nil {
		return nil, e.fail(ctx, StageDetermineDiagnosis, err)
	}
	result.Diagnosis = Diagnose(analyses.Samples, result.QCPassed, cfg.AutismRiskThreshold)

	if err := sm.enter(ctx, StageDone); err != nil {
		return nil, e.fail(ctx, StageDone, err)
	}
	result.Stages = sm.visited

	e.logger.InfoContext(ctx, "Diagnosis complete",
		slog.String("run_id", result.RunID),
		slog.Bool("qc_passed", result.QCPassed),
		slog.Int("tests_run", len(result.TestOrder)),
		slog.Int("samples", len(result.SampleIDs)))
	return result, nil
}

func (e *Engine) fail(ctx context.Context, stage Stage, err error) error {
	e.logger.ErrorContext(ctx, "Diagnosis run failed",
		slog.String("stage", string(stage)),
		slog.String("error", err.Error()))
	if ctx.Err() != nil {
		return err
	}
	return apierrors.NewAnalysisError(string(stage), err)
}

func (e *Engine) analyze(ctx context.Context, cfg domain.DiagnosisConfig, c Collection, in Input) *Analyses {
	gi := groupInputs{
		dff:        in.DFF,
		metrics:    in.Metrics,
		normalized: in.Normalized,
		endFrames:  endFrames(cfg),
	}

	a := &Analyses{
		Positive: analyzeGroup(PositiveControlName, c.Positive, gi),
		Negative: analyzeGroup(NegativeControlName, c.Negative, gi),
	}
	if cfg.BufferEnabled {
		a.Buffer = analyzeGroup(BufferControlName, c.Buffer, gi)
	}
	for _, id := range c.SampleIDs {
		a.Samples = append(a.Samples, analyzeGroup(id, c.Samples[id], gi))
	}

	for _, g := range a.All() {
		if g.Status != domain.GroupOK {
			e.logger.WarnContext(ctx, "Group excluded from QC",
				slog.String("group", g.Name),
				slog.String("status", g.Status),
				slog.String("message", g.Message))
		}
	}
	return a
}

func endFrames(cfg domain.DiagnosisConfig) int {
	if p := cfg.Test(domain.TestDFFReturnToBaseline).Param2; p != nil && *p >= 1 {
		return int(*p)
	}
	return defaultEndFrames
}

func (e *Engine) runTests(ctx context.Context, cfg domain.DiagnosisConfig, a *Analyses) (map[string]domain.TestResult, []string) {
	results := make(map[string]domain.TestResult)
	var order []string
	for _, spec := range e.registry.List() {
		tc := cfg.Test(spec.ID)
		if !tc.Enabled {
			continue
		}
		if spec.NeedsBuffer && !cfg.BufferEnabled {
			continue
		}
		res := spec.Run(a, tc)
		results[spec.ID] = res
		order = append(order, spec.ID)
		if !res.Passed {
			e.logger.InfoContext(ctx, "QC test failed",
				slog.String("test_id", spec.ID),
				slog.String("message", res.Message))
		}
	}
	return results, order
}

// Diagnose applies the QC gate and the risk threshold to each sample.
func Diagnose(samples []*domain.GroupAnalysis, qcPassed bool, threshold float64) map[string]domain.SampleDiagnosis {
	out := make(map[string]domain.SampleDiagnosis, len(samples))
	for _, g := range samples {
		out[g.Name] = diagnoseSample(g, qcPassed, threshold)
	}
	return out
}

func diagnoseSample(g *domain.GroupAnalysis, qcPassed bool, threshold float64) domain.SampleDiagnosis {
	if !qcPassed {
		return domain.SampleDiagnosis{Status: domain.StatusInvalid, Message: QCFailedMessage}
	}
	switch g.Status {
	case domain.GroupMissing:
		return domain.SampleDiagnosis{Status: domain.StatusMissing, Message: "No wells found for sample"}
	case domain.GroupError:
		return domain.SampleDiagnosis{Status: domain.StatusInvalid, Message: g.Message}
	}

	mean := g.Normalized.Mean
	if g.Normalized.N == 0 || !isFinite(mean) {
		return domain.SampleDiagnosis{Status: domain.StatusInvalid, Message: "No normalized response data available"}
	}
	value := mean
	if mean <= threshold {
		return domain.SampleDiagnosis{
			Status:  domain.StatusPositive,
			Message: "Normalized response at or below risk threshold",
			Value:   &value,
		}
	}
	return domain.SampleDiagnosis{
		Status:  domain.StatusNegative,
		Message: "Normalized response above risk threshold",
		Value:   &value,
	}
}
