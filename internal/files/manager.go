package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
)

// Area names a directory of saved files.
type Area string

const (
	AreaReports Area = "reports"
	AreaLayouts Area = "layouts"
)

var areaExtensions = map[Area][]string{
	AreaReports: {".xlsx", ".csv"},
	AreaLayouts: {".json"},
}

// Manager provides file management operations on the saved-file areas
type Manager struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		paths:  paths,
		logger: logger.With(slog.String("component", "file_manager")),
	}
}

func (m *Manager) dir(area Area) (string, error) {
	if m.paths == nil {
		return "", apierrors.NewConfigError("no data directories configured", nil)
	}
	switch area {
	case AreaReports:
		return m.paths.ReportsDir, nil
	case AreaLayouts:
		return m.paths.LayoutsDir, nil
	}
	return "", apierrors.NewAppValidationError(fmt.Sprintf("unknown file area %q", area))
}

// Resolve maps name onto area. Directory components are dropped and the
// extension must be one the area stores.
func (m *Manager) Resolve(area Area, name string) (string, error) {
	if _, err := m.dir(area); err != nil {
		return "", err
	}
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) || strings.HasPrefix(base, ".") {
		return "", apierrors.NewAppValidationError("file name is required")
	}
	if !hasExtension(base, areaExtensions[area]) {
		return "", apierrors.NewAppValidationError(fmt.Sprintf(
			"%s files must have one of the extensions %s", area, strings.Join(areaExtensions[area], ", ")))
	}
	if area == AreaLayouts {
		return m.paths.GetLayoutPath(base), nil
	}
	return m.paths.GetReportPath(base), nil
}

// List returns the files saved in area, newest first
func (m *Manager) List(area Area) ([]FileInfo, error) {
	dir, err := m.dir(area)
	if err != nil {
		return nil, err
	}
	files, err := NewDiscovery(dir).FindFiles(areaExtensions[area]...)
	if err != nil {
		return nil, apierrors.NewStorageError("list "+string(area), err)
	}
	return files, nil
}

// Open opens a saved file for reading. The caller closes it.
func (m *Manager) Open(area Area, name string) (*os.File, FileInfo, error) {
	path, err := m.Resolve(area, name)
	if err != nil {
		return nil, FileInfo{}, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, FileInfo{}, apierrors.NewNotFoundError(string(area) + " file " + filepath.Base(path))
	}
	if err != nil {
		return nil, FileInfo{}, apierrors.NewStorageError("open "+filepath.Base(path), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, FileInfo{}, apierrors.NewStorageError("stat "+filepath.Base(path), err)
	}
	if info.IsDir() {
		f.Close()
		return nil, FileInfo{}, apierrors.NewNotFoundError(string(area) + " file " + filepath.Base(path))
	}
	return f, FileInfo{Path: path, Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Delete removes a saved file
func (m *Manager) Delete(area Area, name string) error {
	path, err := m.Resolve(area, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return apierrors.NewNotFoundError(string(area) + " file " + filepath.Base(path))
		}
		return apierrors.NewStorageError("delete "+filepath.Base(path), err)
	}

	m.logger.Info("Deleted file",
		slog.String("area", string(area)),
		slog.String("path", path))
	return nil
}
