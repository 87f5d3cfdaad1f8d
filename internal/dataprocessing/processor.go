package dataprocessing

import (
	"context"
	"log/slog"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// Preprocessed bundles the derived tables produced from one raw table.
type Preprocessed struct {
	Raw      *domain.TraceTable
	Excised  *domain.TraceTable
	DFF      *domain.TraceTable
	F0       map[string]float64
	Params   domain.AnalysisParameters
	Window   [2]int
	Excision bool
}

// Processor runs artifact excision followed by baseline normalization.
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a processor. A nil logger falls back to slog.Default.
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger.With(slog.String("component", "preprocessor"))}
}

// Process never modifies raw; derived tables are new values.
func (p *Processor) Process(ctx context.Context, raw *domain.TraceTable, params domain.AnalysisParameters) (*Preprocessed, error) {
	if raw == nil {
		return nil, apierrors.NewAppValidationError("no trace data loaded")
	}

	excised, err := ExciseArtifact(raw, params.ArtifactStartFrame, params.ArtifactEndFrame, params.RemoveArtifact)
	if err != nil {
		p.logger.ErrorContext(ctx, "Artifact excision failed",
			slog.String("error", err.Error()),
			slog.Int("frames", raw.Frames()))
		return nil, err
	}

	out := &Preprocessed{
		Raw:      raw,
		Excised:  excised,
		Params:   params,
		Excision: params.RemoveArtifact,
	}
	if params.RemoveArtifact {
		start, end := ArtifactWindow(raw.Frames(), params.ArtifactStartFrame, params.ArtifactEndFrame)
		out.Window = [2]int{start, end}
		p.logger.InfoContext(ctx, "Injection artifact removed",
			slog.Int("start_idx", start),
			slog.Int("end_idx", end),
			slog.Int("frames_remaining", excised.Frames()))
	}

	baseline, err := NormalizeBaseline(excised, params.BaselineFrameCount)
	if err != nil {
		p.logger.ErrorContext(ctx, "Baseline normalization failed", slog.String("error", err.Error()))
		return nil, err
	}
	out.DFF = baseline.DFF
	out.F0 = baseline.F0

	p.logger.DebugContext(ctx, "Baseline normalized",
		slog.Int("wells", baseline.DFF.Len()),
		slog.Int("baseline_frames", params.BaselineFrameCount))

	return out, nil
}
