package diagnosis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/validation"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// Validate checks the structure of cfg and reports overlapping column ranges
// as warnings. Only structural problems are errors.
func Validate(cfg domain.DiagnosisConfig) ([]domain.Warning, error) {
	issues, err := validation.Struct(cfg)
	if err != nil {
		return nil, apierrors.NewConfigError("invalid diagnosis configuration", err)
	}
	if len(issues) > 0 {
		fields := make([]string, len(issues))
		for i, is := range issues {
			fields[i] = is.Field
		}
		return nil, apierrors.NewConfigError(validation.Join(issues), nil).
			WithContext("fields", fields)
	}
	return cfg.OverlapWarnings(), nil
}

// MarshalConfig renders cfg as the persisted JSON document.
func MarshalConfig(cfg domain.DiagnosisConfig) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}

// UnmarshalConfig parses a persisted document. Missing keys take their
// defaults and unknown keys are ignored.
func UnmarshalConfig(data []byte) (domain.DiagnosisConfig, error) {
	var cfg domain.DiagnosisConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.DiagnosisConfig{}, apierrors.NewConfigError("malformed diagnosis configuration", err)
	}
	return cfg, nil
}

// LoadConfig reads a configuration file.
func LoadConfig(path string) (domain.DiagnosisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.DiagnosisConfig{}, apierrors.NewStorageError(fmt.Sprintf("read diagnosis config %s", path), err)
	}
	return UnmarshalConfig(data)
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg domain.DiagnosisConfig) error {
	data, err := MarshalConfig(cfg)
	if err != nil {
		return apierrors.NewStorageError("encode diagnosis config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apierrors.NewStorageError("create config directory", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apierrors.NewStorageError(fmt.Sprintf("write diagnosis config %s", path), err)
	}
	return nil
}
