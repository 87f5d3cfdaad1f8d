package services

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/aggregate"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/dataprocessing"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/diagnosis"
	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/exporter"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/files"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/infrastructure"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/kinetics"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/layout"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/validation"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/websocket"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/events"
)

// Pipeline stage names used in spans, metrics and progress events.
const (
	StagePreprocess  = "preprocess"
	StageMetrics     = "metric_extraction"
	StageAggregation = "group_aggregation"
	StageIonomycin   = "ionomycin_normalization"
)

// LabelMode selects how a label request edits the layout.
type LabelMode string

const (
	LabelModeSet   LabelMode = "label"
	LabelModeLog10 LabelMode = "log10"
	LabelModeClear LabelMode = "clear"
)

// LabelCommand is one layout edit.
type LabelCommand struct {
	Mode  LabelMode
	Wells []string
	Spec  layout.LabelSpec
	// Start is the first concentration of a log10 series.
	Start float64
}

// Snapshot is the immutable output of one processing run.
type Snapshot struct {
	RunID       string
	CreatedAt   time.Time
	Source      string
	Params      domain.AnalysisParameters
	Layout      *domain.PlateLayout
	Pre         *dataprocessing.Preprocessed
	Metrics     []domain.MetricSet
	ByWell      map[string]domain.MetricSet
	Groups      []domain.GroupSummary
	Normalized  []domain.NormalizedWell
	FitFailures int
	Duration    time.Duration
}

// DataSummary describes a loaded trace table.
type DataSummary struct {
	Name    string   `json:"name"`
	Source  string   `json:"source"`
	Wells   int      `json:"wells"`
	Frames  int      `json:"frames"`
	WellIDs []string `json:"well_ids"`
}

// SessionStatus reports which inputs and results are present.
type SessionStatus struct {
	DataLoaded bool                      `json:"data_loaded"`
	Source     string                    `json:"source,omitempty"`
	Wells      int                       `json:"wells"`
	Frames     int                       `json:"frames"`
	Labeled    bool                      `json:"labeled"`
	Processed  bool                      `json:"processed"`
	RunID      string                    `json:"run_id,omitempty"`
	Diagnosed  bool                      `json:"diagnosed"`
	Parameters domain.AnalysisParameters `json:"parameters"`
}

// AnalysisOptions wires an AnalysisService. Zero values fall back to
// defaults; a nil Publisher disables progress events.
type AnalysisOptions struct {
	Params              domain.AnalysisParameters
	DiagnosisConfig     *domain.DiagnosisConfig
	DiagnosisConfigPath string
	Workers             int
	Paths               *config.Paths
	Publisher           websocket.Publisher
	Tracer              trace.Tracer
	Metrics             *infrastructure.BusinessMetrics
	Logger              *slog.Logger
}

// AnalysisService owns the session state of one plate: the raw table, the
// layout, the parameters and the latest results. Every run recomputes from
// the raw table; a failed run leaves the previous results in place.
type AnalysisService struct {
	parser     *dataprocessing.Parser
	processor  *dataprocessing.Processor
	extractor  *kinetics.Extractor
	aggregator *aggregate.Aggregator
	importer   *layout.Importer
	registry   *diagnosis.Registry
	workbook   *exporter.WorkbookWriter
	csv        *exporter.CSVWriter
	files      *files.Manager
	paths      *config.Paths
	publisher  websocket.Publisher
	tracer     *PipelineTracer
	baseLogger *slog.Logger
	logger     *slog.Logger

	// runMu serializes Process and Diagnose so results are installed in order.
	runMu sync.Mutex

	mu        sync.RWMutex
	raw       *domain.TraceTable
	source    string
	layout    *domain.PlateLayout
	params    domain.AnalysisParameters
	diagCfg   domain.DiagnosisConfig
	diagPath  string
	snapshot  *Snapshot
	diagnosis *domain.DiagnosisResult

	// inputGen counts input changes and diagGen counts diagnosis config
	// changes. A run installs its result only if its generation is current.
	inputGen uint64
	diagGen  uint64
}

// NewAnalysisService creates the service. When DiagnosisConfigPath names an
// existing file it is loaded; otherwise DiagnosisConfig or the defaults apply.
func NewAnalysisService(opts AnalysisOptions) (*AnalysisService, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	params := opts.Params
	if params == (domain.AnalysisParameters{}) {
		params = domain.DefaultAnalysisParameters()
	}
	if err := validateParameters(params); err != nil {
		return nil, err
	}

	diagCfg := domain.DefaultDiagnosisConfig()
	if opts.DiagnosisConfig != nil {
		diagCfg = *opts.DiagnosisConfig
	}
	if opts.DiagnosisConfigPath != "" && config.FileExists(opts.DiagnosisConfigPath) {
		loaded, err := diagnosis.LoadConfig(opts.DiagnosisConfigPath)
		if err != nil {
			return nil, err
		}
		diagCfg = loaded
		logger.Info("Diagnosis configuration loaded", slog.String("path", opts.DiagnosisConfigPath))
	}
	if _, err := diagnosis.Validate(diagCfg); err != nil {
		return nil, err
	}

	return &AnalysisService{
		parser:     dataprocessing.NewParser(logger),
		processor:  dataprocessing.NewProcessor(logger),
		extractor:  kinetics.NewExtractor(logger, opts.Workers),
		aggregator: aggregate.NewAggregator(logger),
		importer:   layout.NewImporter(logger),
		registry:   diagnosis.DefaultRegistry(),
		workbook:   exporter.NewWorkbookWriter(opts.Paths, logger),
		csv:        exporter.NewCSVWriter(opts.Paths, logger),
		files:      files.NewManager(opts.Paths, logger),
		paths:      opts.Paths,
		publisher:  opts.Publisher,
		tracer:     NewPipelineTracer(opts.Tracer, opts.Metrics),
		baseLogger: logger,
		logger:     infrastructure.WithComponent(logger, "analysis_service"),
		layout:     domain.NewPlateLayout(),
		params:     params,
		diagCfg:    diagCfg,
		diagPath:   opts.DiagnosisConfigPath,
	}, nil
}

func (s *AnalysisService) publish(ctx context.Context, t events.MessageType, data interface{}) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, t, data)
	}
}

// invalidate drops results derived from the current inputs. Callers hold mu.
func (s *AnalysisService) invalidate() {
	s.inputGen++
	s.snapshot = nil
	s.diagnosis = nil
}

// LoadData parses a raw instrument export and replaces the session's table.
func (s *AnalysisService) LoadData(ctx context.Context, r io.Reader, source string) (*DataSummary, error) {
	table, err := s.parser.Parse(r)
	if err != nil {
		infrastructure.WithError(s.logger, err).WarnContext(ctx, "Raw data rejected",
			slog.String("source", source))
		return nil, err
	}
	return s.installTable(ctx, table, source), nil
}

// LoadDataFile is LoadData for a file on disk.
func (s *AnalysisService) LoadDataFile(ctx context.Context, path string) (*DataSummary, error) {
	table, err := s.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return s.installTable(ctx, table, filepath.Base(path)), nil
}

func (s *AnalysisService) installTable(ctx context.Context, table *domain.TraceTable, source string) *DataSummary {
	s.mu.Lock()
	s.raw = table
	s.source = source
	s.invalidate()
	s.mu.Unlock()

	summary := &DataSummary{
		Name:    table.Name(),
		Source:  source,
		Wells:   table.Len(),
		Frames:  table.Frames(),
		WellIDs: table.WellIDs(),
	}
	s.logger.InfoContext(ctx, "Raw data loaded",
		slog.String("source", source),
		slog.String("name", summary.Name),
		slog.Int("wells", summary.Wells),
		slog.Int("frames", summary.Frames))
	s.publish(ctx, events.MessageTypeDataLoaded, events.DataLoaded{
		Source: source,
		Wells:  summary.Wells,
		Frames: summary.Frames,
	})
	return summary
}

// Status reports the session state.
func (s *AnalysisService) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := SessionStatus{
		DataLoaded: s.raw != nil,
		Source:     s.source,
		Labeled:    s.layout.Labeled(),
		Processed:  s.snapshot != nil,
		Diagnosed:  s.diagnosis != nil,
		Parameters: s.params,
	}
	if s.raw != nil {
		st.Wells, st.Frames = s.raw.Len(), s.raw.Frames()
	}
	if s.snapshot != nil {
		st.RunID = s.snapshot.RunID
	}
	return st
}

// Layout returns a copy of the current plate layout.
func (s *AnalysisService) Layout() *domain.PlateLayout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layout.Clone()
}

// SetLayout replaces the plate layout.
func (s *AnalysisService) SetLayout(ctx context.Context, l *domain.PlateLayout, reason string) {
	if l == nil {
		l = domain.NewPlateLayout()
	}
	s.mu.Lock()
	s.layout = l.Clone()
	s.invalidate()
	labeled := s.layout.Labeled()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Plate layout updated",
		slog.String("reason", reason),
		slog.Bool("labeled", labeled))
	s.publish(ctx, events.MessageTypeLayoutUpdated, events.LayoutUpdated{Reason: reason})
}

// ApplyLabels edits the layout and returns the result.
func (s *AnalysisService) ApplyLabels(ctx context.Context, cmd LabelCommand) (*domain.PlateLayout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		next *domain.PlateLayout
		err  error
	)
	switch cmd.Mode {
	case LabelModeSet, "":
		next, err = layout.ApplyLabel(s.layout, cmd.Wells, cmd.Spec)
	case LabelModeLog10:
		if cmd.Start <= 0 {
			return nil, apierrors.NewAppValidationError("log10 series needs a positive starting concentration")
		}
		next, err = layout.ApplyLog10Series(s.layout, cmd.Wells, cmd.Spec, cmd.Start)
	case LabelModeClear:
		next, err = layout.ClearWells(s.layout, cmd.Wells, cmd.Spec.Fields)
	default:
		return nil, apierrors.NewAppValidationError("unknown label mode " + string(cmd.Mode))
	}
	if err != nil {
		return nil, err
	}

	s.layout = next
	s.invalidate()
	s.logger.InfoContext(ctx, "Wells labeled",
		slog.String("mode", string(cmd.Mode)),
		slog.Int("wells", len(cmd.Wells)),
		slog.String("label", cmd.Spec.Label))
	s.publish(ctx, events.MessageTypeLayoutUpdated, events.LayoutUpdated{
		Reason:   "labels:" + string(cmd.Mode),
		Assigned: len(cmd.Wells),
	})
	return next.Clone(), nil
}

// ImportMetadata applies a CSV or XLSX metadata sheet to the layout.
func (s *AnalysisService) ImportMetadata(ctx context.Context, r io.Reader, name string) (*layout.ImportResult, error) {
	xlsx := strings.EqualFold(filepath.Ext(name), ".xlsx")
	return s.applyImport(ctx, func(l *domain.PlateLayout) (*layout.ImportResult, error) {
		return s.importer.Import(l, r, name, xlsx)
	})
}

// ImportMetadataFile applies a CSV or xlsx metadata file from disk.
func (s *AnalysisService) ImportMetadataFile(ctx context.Context, path string) (*layout.ImportResult, error) {
	return s.applyImport(ctx, func(l *domain.PlateLayout) (*layout.ImportResult, error) {
		return s.importer.ImportFile(l, path)
	})
}

func (s *AnalysisService) applyImport(ctx context.Context, apply func(*domain.PlateLayout) (*layout.ImportResult, error)) (*layout.ImportResult, error) {
	s.mu.Lock()
	res, err := apply(s.layout)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.layout = res.Layout
	s.invalidate()
	s.mu.Unlock()

	s.publish(ctx, events.MessageTypeLayoutUpdated, events.LayoutUpdated{
		Reason:   "import",
		Assigned: res.Assigned,
		Groups:   res.Groups,
	})
	return res, nil
}

// layoutFile maps a user-supplied layout name onto the layouts directory.
func (s *AnalysisService) layoutFile(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name != "" && !strings.EqualFold(filepath.Ext(name), ".json") {
		name += ".json"
	}
	return s.files.Resolve(files.AreaLayouts, name)
}

// SaveLayout persists the current layout under the layouts directory and
// returns the file written.
func (s *AnalysisService) SaveLayout(ctx context.Context, name string) (string, error) {
	path, err := s.layoutFile(name)
	if err != nil {
		return "", err
	}
	if err := layout.Save(path, s.Layout()); err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "Layout saved", slog.String("path", path))
	return path, nil
}

// LoadLayout replaces the layout with a saved one.
func (s *AnalysisService) LoadLayout(ctx context.Context, name string) (*domain.PlateLayout, error) {
	path, err := s.layoutFile(name)
	if err != nil {
		return nil, err
	}
	if !config.FileExists(path) {
		return nil, apierrors.NewNotFoundError("layout " + filepath.Base(path))
	}
	return s.LoadLayoutFile(ctx, path)
}

// LoadLayoutFile replaces the layout with the one stored at path.
func (s *AnalysisService) LoadLayoutFile(ctx context.Context, path string) (*domain.PlateLayout, error) {
	l, err := layout.Load(path)
	if err != nil {
		return nil, err
	}
	s.SetLayout(ctx, l, "load:"+filepath.Base(path))
	return l, nil
}

// ListSaved returns the saved reports or layouts, newest first.
func (s *AnalysisService) ListSaved(area files.Area) ([]files.FileInfo, error) {
	return s.files.List(area)
}

// OpenSaved opens a saved report or layout for download.
func (s *AnalysisService) OpenSaved(area files.Area, name string) (*os.File, files.FileInfo, error) {
	return s.files.Open(area, name)
}

// DeleteSaved removes a saved report or layout.
func (s *AnalysisService) DeleteSaved(ctx context.Context, area files.Area, name string) error {
	if err := s.files.Delete(area, name); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Saved file deleted",
		slog.String("area", string(area)),
		slog.String("name", filepath.Base(name)))
	return nil
}

// WriteFMG renders the layout in the instrument's plate format.
func (s *AnalysisService) WriteFMG(w io.Writer) error {
	return layout.WriteFMG(w, s.Layout())
}

// Parameters returns the current analysis parameters.
func (s *AnalysisService) Parameters() domain.AnalysisParameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

func validateParameters(p domain.AnalysisParameters) error {
	issues, err := validation.Struct(p)
	if err != nil {
		return apierrors.NewAppValidationError(err.Error())
	}
	if len(issues) > 0 {
		fields := make([]string, len(issues))
		for i, is := range issues {
			fields[i] = is.Field
		}
		return apierrors.NewAppValidationError(validation.Join(issues)).WithContext("fields", fields)
	}
	if p.RemoveArtifact && p.ArtifactStartFrame >= p.ArtifactEndFrame {
		return apierrors.NewInvalidRangeError(p.ArtifactStartFrame, p.ArtifactEndFrame).
			WithContext("reference_frames", domain.ReferenceProtocolFrames)
	}
	return nil
}

// UpdateParameters validates and installs new parameters. Changed parameters
// invalidate the current results.
func (s *AnalysisService) UpdateParameters(ctx context.Context, p domain.AnalysisParameters) error {
	if err := validateParameters(p); err != nil {
		return err
	}

	s.mu.Lock()
	changed := s.params != p
	s.params = p
	if changed {
		s.invalidate()
	}
	s.mu.Unlock()

	if changed {
		s.logger.InfoContext(ctx, "Analysis parameters updated",
			slog.Int("artifact_start_frame", p.ArtifactStartFrame),
			slog.Int("artifact_end_frame", p.ArtifactEndFrame),
			slog.Int("baseline_frame_count", p.BaselineFrameCount),
			slog.Int("peak_start_frame", p.PeakStartFrame),
			slog.Bool("remove_artifact", p.RemoveArtifact),
			slog.Bool("fit_peaks", p.FitPeaks))
		s.publish(ctx, events.MessageTypeParamsUpdated, p)
	}
	return nil
}

// DiagnosisConfig returns the current diagnostic configuration.
func (s *AnalysisService) DiagnosisConfig() domain.DiagnosisConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diagCfg
}

// SetDiagnosisConfig validates and installs cfg, persisting it when save is
// set and a config path is configured. Overlap warnings are returned.
func (s *AnalysisService) SetDiagnosisConfig(ctx context.Context, cfg domain.DiagnosisConfig, save bool) ([]domain.Warning, error) {
	warnings, err := diagnosis.Validate(cfg)
	if err != nil {
		return nil, err
	}
	if save {
		if s.diagPath == "" {
			return nil, apierrors.NewConfigError("no diagnosis config file configured", nil)
		}
		if err := diagnosis.SaveConfig(s.diagPath, cfg); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "Diagnosis configuration saved", slog.String("path", s.diagPath))
	}

	s.mu.Lock()
	s.diagCfg = cfg
	s.diagGen++
	s.diagnosis = nil
	s.mu.Unlock()

	s.publish(ctx, events.MessageTypeDiagnosisConfig, map[string]interface{}{
		"warnings": warnings,
		"saved":    save,
	})
	return warnings, nil
}

// Process runs excision, normalization, metric extraction, grouping and
// ionomycin normalization over the raw table and installs the new snapshot.
func (s *AnalysisService) Process(ctx context.Context) (*Snapshot, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.RLock()
	raw, source, params, gen := s.raw, s.source, s.params, s.inputGen
	plate := s.layout.Clone()
	s.mu.RUnlock()
	if raw == nil {
		return nil, ErrNoData
	}

	ctx = infrastructure.EnsureTraceID(ctx)
	runID := uuid.New().String()
	start := time.Now()
	ctx, span := s.tracer.StartRun(ctx, runID, params, raw)

	snap := &Snapshot{
		RunID:     runID,
		CreatedAt: start.UTC(),
		Source:    source,
		Params:    params,
		Layout:    plate,
	}
	err := s.run(ctx, snap, raw)
	snap.Duration = time.Since(start)
	if err != nil {
		s.tracer.EndRun(ctx, span, nil, start, err)
		infrastructure.WithError(s.logger, err).ErrorContext(ctx, "Processing failed",
			slog.String("run_id", runID))
		s.publish(ctx, events.MessageTypeError, events.ErrorData{
			Code:        "PIPELINE_FAILED",
			Message:     err.Error(),
			Recoverable: true,
			Hint:        "Check the analysis parameters and reprocess",
		})
		return nil, err
	}
	s.tracer.EndRun(ctx, span, snap, start, nil)

	s.mu.Lock()
	stale := s.inputGen != gen
	if !stale {
		s.snapshot = snap
		s.diagnosis = nil
	}
	s.mu.Unlock()
	if stale {
		s.logger.WarnContext(ctx, "Processing result discarded, inputs changed during the run",
			slog.String("run_id", runID))
		return nil, ErrInputsChanged
	}

	s.logger.InfoContext(ctx, "Processing complete",
		slog.String("run_id", runID),
		slog.Int("wells", len(snap.Metrics)),
		slog.Int("groups", len(snap.Groups)),
		slog.Int("normalized", len(snap.Normalized)),
		slog.Int("fit_failures", snap.FitFailures),
		slog.Duration("duration", snap.Duration))
	s.publish(ctx, events.MessageTypePipelineComplete, events.PipelineComplete{
		RunID:       runID,
		Wells:       len(snap.Metrics),
		Groups:      len(snap.Groups),
		Normalized:  len(snap.Normalized),
		FitFailures: snap.FitFailures,
		DurationMS:  snap.Duration.Milliseconds(),
	})
	return snap, nil
}

func (s *AnalysisService) run(ctx context.Context, snap *Snapshot, raw *domain.TraceTable) error {
	var results *kinetics.Results

	steps := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{StagePreprocess, func(ctx context.Context) (err error) {
			snap.Pre, err = s.processor.Process(ctx, raw, snap.Params)
			return err
		}},
		{StageMetrics, func(ctx context.Context) (err error) {
			results, err = s.extractor.Extract(ctx, snap.Pre.DFF, snap.Pre.F0, snap.Params)
			if err != nil {
				return err
			}
			snap.Metrics = results.Metrics()
			snap.FitFailures = results.FitFailures()
			snap.ByWell = make(map[string]domain.MetricSet, len(snap.Metrics))
			for _, m := range snap.Metrics {
				snap.ByWell[m.WellID] = m
			}
			return nil
		}},
		{StageAggregation, func(ctx context.Context) (err error) {
			snap.Groups, err = s.aggregator.Summarize(ctx, snap.Layout, snap.Pre.DFF, snap.ByWell)
			return err
		}},
		{StageIonomycin, func(ctx context.Context) error {
			peaks := results.Peaks()
			refs := aggregate.References(snap.Layout, peaks)
			snap.Normalized = aggregate.NormalizeWells(snap.Layout, peaks, refs)
			snap.Groups = aggregate.ApplyNormalized(snap.Groups, snap.Normalized)
			return nil
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.stage(ctx, snap.RunID, step.name, step.fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *AnalysisService) stage(ctx context.Context, runID, name string, fn func(ctx context.Context) error) error {
	s.publish(ctx, events.MessageTypeStage, events.StageEvent{RunID: runID, Stage: name, Status: events.StageStarted})

	stageCtx, span := s.tracer.StartStage(ctx, runID, name)
	start := time.Now()
	err := stageError(name, fn(stageCtx))
	s.tracer.EndStage(stageCtx, span, name, start, err)

	ev := events.StageEvent{
		RunID:      runID,
		Stage:      name,
		Status:     events.StageCompleted,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		ev.Status = events.StageFailed
		ev.Error = err.Error()
	}
	s.publish(ctx, events.MessageTypeStage, ev)
	return err
}

// Snapshot returns the latest results or ErrNoResults.
func (s *AnalysisService) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		if s.raw == nil {
			return nil, ErrNoData
		}
		return nil, ErrNoResults
	}
	return s.snapshot, nil
}

// Diagnose runs the diagnostic engine over the latest snapshot with the
// current configuration.
func (s *AnalysisService) Diagnose(ctx context.Context) (*domain.DiagnosisResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	cfg, gen := s.diagCfg, s.diagGen
	s.mu.RUnlock()

	ctx = infrastructure.EnsureTraceID(ctx)
	ctx, span := s.tracer.StartDiagnosis(ctx, snap.RunID, cfg)
	engine := diagnosis.NewEngine(s.baseLogger, s.registry).WithObserver(func(ctx context.Context, st diagnosis.Stage) {
		s.publish(ctx, events.MessageTypeDiagnosisStage, events.StageEvent{
			RunID:  snap.RunID,
			Stage:  string(st),
			Status: events.StageStarted,
		})
	})

	result, err := engine.Run(ctx, cfg, diagnosis.Input{
		Layout:     snap.Layout,
		DFF:        snap.Pre.DFF,
		Metrics:    snap.ByWell,
		Normalized: snap.Normalized,
	})
	s.tracer.EndDiagnosis(ctx, span, result, err)
	if err != nil {
		infrastructure.WithError(s.logger, err).ErrorContext(ctx, "Diagnosis failed")
		s.publish(ctx, events.MessageTypeError, events.ErrorData{
			Code:        "DIAGNOSIS_FAILED",
			Message:     err.Error(),
			Stage:       "diagnosis",
			Recoverable: true,
			Hint:        "Check the diagnosis configuration",
		})
		return nil, err
	}

	s.mu.Lock()
	if s.snapshot == snap && s.diagGen == gen {
		s.diagnosis = result
	}
	s.mu.Unlock()

	samples := make(map[string]string, len(result.Diagnosis))
	for id, d := range result.Diagnosis {
		samples[id] = d.Status
	}
	s.publish(ctx, events.MessageTypeDiagnosisResult, events.DiagnosisComplete{
		RunID:    result.RunID,
		QCPassed: result.QCPassed,
		Failed:   failedTests(result),
		Samples:  samples,
	})
	return result, nil
}

// Diagnosis returns the latest diagnostic result.
func (s *AnalysisService) Diagnosis() (*domain.DiagnosisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.diagnosis == nil {
		return nil, ErrNoDiagnosis
	}
	return s.diagnosis, nil
}

func (s *AnalysisService) report() (*exporter.Report, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	res, _ := s.Diagnosis()

	name := snap.Source
	if snap.Pre != nil && snap.Pre.Raw != nil && snap.Pre.Raw.Name() != "" {
		name = snap.Pre.Raw.Name()
	}
	return &exporter.Report{
		Name:       name,
		CreatedAt:  snap.CreatedAt,
		Params:     snap.Params,
		Layout:     snap.Layout,
		DFF:        snap.Pre.DFF,
		Metrics:    snap.Metrics,
		Groups:     snap.Groups,
		Normalized: snap.Normalized,
		Diagnosis:  res,
	}, nil
}

// WriteWorkbook streams the results workbook for the latest snapshot.
func (s *AnalysisService) WriteWorkbook(ctx context.Context, w io.Writer) error {
	r, err := s.report()
	if err != nil {
		return err
	}
	return s.workbook.Write(w, r)
}

// SaveWorkbook writes the results workbook under the reports directory, or
// to filename when it is absolute, and returns the path written.
func (s *AnalysisService) SaveWorkbook(ctx context.Context, filename string) (string, error) {
	r, err := s.report()
	if err != nil {
		return "", err
	}
	if filename == "" {
		filename = ReportFilename(r.Name, r.CreatedAt, ".xlsx")
	}
	path, err := s.workbook.Save(filename, r)
	if err != nil {
		return "", apierrors.NewStorageError("save results workbook", err)
	}
	s.logger.InfoContext(ctx, "Results workbook saved", slog.String("path", path))
	return path, nil
}

// WriteMetricsCSV streams the per-well metrics table.
func (s *AnalysisService) WriteMetricsCSV(ctx context.Context, w io.Writer) error {
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	return exporter.EncodeMetrics(w, snap.Layout, snap.Metrics, snap.Normalized)
}

// SaveMetricsCSV writes the metrics table like SaveWorkbook.
func (s *AnalysisService) SaveMetricsCSV(ctx context.Context, filename string) (string, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return "", err
	}
	if filename == "" {
		filename = ReportFilename(snap.Source, snap.CreatedAt, ".csv")
	}
	path, err := s.csv.WriteMetricsCSV(filename, snap.Layout, snap.Metrics, snap.Normalized)
	if err != nil {
		return "", apierrors.NewStorageError("save metrics csv", err)
	}
	return path, nil
}

// ReportFilename derives a default output name such as
// "plate1_results_20240501-153000.xlsx".
func ReportFilename(name string, at time.Time, ext string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		switch {
		case r == os.PathSeparator, r == ' ', r == ':':
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." {
		base = "flipr"
	}
	return base + "_results_" + at.Format("20060102-150405") + ext
}
