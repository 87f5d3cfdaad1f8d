package layout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// Decode reads a saved layout document.
func Decode(r io.Reader) (*domain.PlateLayout, error) {
	layout := domain.NewPlateLayout()
	if err := json.NewDecoder(r).Decode(layout); err != nil {
		return nil, apierrors.NewParsingError("malformed layout document", err)
	}
	return layout, nil
}

// Load reads a layout file.
func Load(path string) (*domain.PlateLayout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apierrors.NewStorageError(fmt.Sprintf("open layout %s", path), err)
	}
	defer f.Close()
	return Decode(f)
}

// Save writes layout as an indented JSON list of 96 wells.
func Save(path string, layout *domain.PlateLayout) error {
	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return apierrors.NewStorageError("encode layout", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apierrors.NewStorageError("create layout directory", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apierrors.NewStorageError(fmt.Sprintf("write layout %s", path), err)
	}
	return nil
}
