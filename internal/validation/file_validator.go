package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
)

// Accepted extensions per input kind.
var (
	DataExtensions     = []string{".txt", ".tsv", ".seq1"}
	MetadataExtensions = []string{".csv", ".xlsx"}
	JSONExtensions     = []string{".json"}
	WorkbookExtensions = []string{".xlsx"}
)

// FileValidator checks command-line inputs and outputs before a batch run
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// ValidateFile checks that path exists, is a regular file and can be opened
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist", slog.String("file", path))
		return apierrors.NewNotFoundError(path)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apierrors.NewStorageError(fmt.Sprintf("failed to stat file %s", path), err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file", slog.String("path", path))
		return apierrors.NewAppValidationError(fmt.Sprintf("%s is a directory, not a file", path))
	}
	if info.Size() == 0 {
		return apierrors.NewAppValidationError(fmt.Sprintf("file %s is empty", path))
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apierrors.NewStorageError(fmt.Sprintf("file %s is not readable", path), err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

func (v *FileValidator) validateKind(path, kind string, allowed []string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		v.logger.Warn("Skipping temporary office file", slog.String("file", path))
		return apierrors.NewAppValidationError(fmt.Sprintf("file %s is a temporary office file", path))
	}

	if !hasExtension(path, allowed) {
		ext := strings.ToLower(filepath.Ext(path))
		v.logger.Error("Unsupported file extension",
			slog.String("file", path),
			slog.String("kind", kind),
			slog.String("extension", ext))
		return apierrors.NewAppValidationError(fmt.Sprintf(
			"%s file %s must have one of the extensions %s", kind, path, strings.Join(allowed, ", ")))
	}
	return nil
}

// ValidateDataFile checks a tab-delimited instrument export
func (v *FileValidator) ValidateDataFile(path string) error {
	return v.validateKind(path, "data", DataExtensions)
}

// ValidateMetadataFile checks a CSV or XLSX well metadata sheet
func (v *FileValidator) ValidateMetadataFile(path string) error {
	return v.validateKind(path, "metadata", MetadataExtensions)
}

// ValidateJSONFile checks a saved layout or diagnosis configuration
func (v *FileValidator) ValidateJSONFile(path string) error {
	return v.validateKind(path, "json", JSONExtensions)
}

// ValidateOutputFile ensures the parent directory of an output file is
// writable and the extension matches.
func (v *FileValidator) ValidateOutputFile(path string, allowed []string) error {
	if !hasExtension(path, allowed) {
		return apierrors.NewAppValidationError(fmt.Sprintf(
			"output file %s must have one of the extensions %s", path, strings.Join(allowed, ", ")))
	}
	return v.ValidateOutputDirectory(filepath.Dir(path))
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apierrors.NewStorageError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	// Verify it's writable by creating a probe file
	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apierrors.NewStorageError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

func hasExtension(path string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
