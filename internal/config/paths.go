package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths
// This is the single source of truth for file locations in the application
type Paths struct {
	BaseDir    string
	DataDir    string
	ReportsDir string
	LayoutsDir string
	LogsDir    string
	WebDir     string

	// Well-known files
	DiagnosisConfigFile string
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// executableDir returns the directory of the running binary with symlinks
// resolved.
func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %v", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}
	return filepath.Dir(exe), nil
}

// NewPaths resolves cfg against its BaseDir. Absolute entries are kept.
func NewPaths(cfg PathsConfig) *Paths {
	resolve := func(p, fallback string) string {
		if p == "" {
			p = fallback
		}
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(cfg.BaseDir, p)
	}

	dataDir := resolve(cfg.DataDir, DefaultDataDir)
	return &Paths{
		BaseDir:             cfg.BaseDir,
		DataDir:             dataDir,
		ReportsDir:          resolve(cfg.ReportsDir, DefaultReportsDir),
		LayoutsDir:          resolve(cfg.LayoutsDir, DefaultLayoutsDir),
		LogsDir:             resolve(cfg.LogsDir, DefaultLogsDir),
		WebDir:              resolve(cfg.WebDir, DefaultWebDir),
		DiagnosisConfigFile: filepath.Join(dataDir, DiagnosisConfigFileName),
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.ReportsDir,
		p.LayoutsDir,
		p.LogsDir,
	}

	logger := slog.Default()
	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// GetReportPath returns the full path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filepath.Base(filename))
}

// GetLayoutPath returns the full path for a saved plate layout
func (p *Paths) GetLayoutPath(filename string) string {
	return filepath.Join(p.LayoutsDir, filepath.Base(filename))
}

// LogPathResolution logs the resolved layout for debugging.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution",
		slog.String("base_dir", p.BaseDir),
		slog.String("data_dir", p.DataDir),
		slog.String("reports_dir", p.ReportsDir),
		slog.String("layouts_dir", p.LayoutsDir),
		slog.String("logs_dir", p.LogsDir),
		slog.String("diagnosis_config", p.DiagnosisConfigFile))
}
