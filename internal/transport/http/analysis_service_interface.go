package http

import (
	"context"
	"io"
	"os"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/files"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/layout"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/services"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// AnalysisServiceInterface defines the session operations the handlers use
type AnalysisServiceInterface interface {
	LoadData(ctx context.Context, r io.Reader, source string) (*services.DataSummary, error)
	Status() services.SessionStatus

	Layout() *domain.PlateLayout
	SetLayout(ctx context.Context, l *domain.PlateLayout, reason string)
	ApplyLabels(ctx context.Context, cmd services.LabelCommand) (*domain.PlateLayout, error)
	ImportMetadata(ctx context.Context, r io.Reader, name string) (*layout.ImportResult, error)
	SaveLayout(ctx context.Context, name string) (string, error)
	LoadLayout(ctx context.Context, name string) (*domain.PlateLayout, error)
	WriteFMG(w io.Writer) error

	Parameters() domain.AnalysisParameters
	UpdateParameters(ctx context.Context, p domain.AnalysisParameters) error
	DiagnosisConfig() domain.DiagnosisConfig
	SetDiagnosisConfig(ctx context.Context, cfg domain.DiagnosisConfig, save bool) ([]domain.Warning, error)

	Process(ctx context.Context) (*services.Snapshot, error)
	Snapshot() (*services.Snapshot, error)
	Diagnose(ctx context.Context) (*domain.DiagnosisResult, error)
	Diagnosis() (*domain.DiagnosisResult, error)

	WriteWorkbook(ctx context.Context, w io.Writer) error
	SaveWorkbook(ctx context.Context, filename string) (string, error)
	WriteMetricsCSV(ctx context.Context, w io.Writer) error
	SaveMetricsCSV(ctx context.Context, filename string) (string, error)

	ListSaved(area files.Area) ([]files.FileInfo, error)
	OpenSaved(area files.Area, name string) (*os.File, files.FileInfo, error)
	DeleteSaved(ctx context.Context, area files.Area, name string) error
}

var _ AnalysisServiceInterface = (*services.AnalysisService)(nil)
