package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestFileValidator_ValidateDataFile(t *testing.T) {
	dir := t.TempDir()
	v := NewFileValidator(nil)

	tests := []struct {
		name     string
		path     string
		wantType apierrors.ErrorType
	}{
		{name: "tab separated export", path: writeFile(t, dir, "run.txt", "x")},
		{name: "uppercase extension", path: writeFile(t, dir, "RUN.TSV", "x")},
		{name: "missing", path: filepath.Join(dir, "absent.txt"), wantType: apierrors.ErrTypeNotFound},
		{name: "empty", path: writeFile(t, dir, "empty.txt", ""), wantType: apierrors.ErrTypeValidation},
		{name: "wrong extension", path: writeFile(t, dir, "run.xlsx", "x"), wantType: apierrors.ErrTypeValidation},
		{name: "directory", path: dir, wantType: apierrors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDataFile(tt.path)
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apierrors.IsType(err, tt.wantType), err.Error())
		})
	}
}

func TestFileValidator_ValidateMetadataFile(t *testing.T) {
	dir := t.TempDir()
	v := NewFileValidator(nil)

	assert.NoError(t, v.ValidateMetadataFile(writeFile(t, dir, "meta.csv", "x")))
	assert.NoError(t, v.ValidateMetadataFile(writeFile(t, dir, "meta.xlsx", "x")))

	err := v.ValidateMetadataFile(writeFile(t, dir, "~$meta.xlsx", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temporary")

	assert.Error(t, v.ValidateMetadataFile(writeFile(t, dir, "meta.json", "x")))
}

func TestFileValidator_ValidateJSONFile(t *testing.T) {
	dir := t.TempDir()
	v := NewFileValidator(nil)

	assert.NoError(t, v.ValidateJSONFile(writeFile(t, dir, "layout.json", "[]")))
	assert.Error(t, v.ValidateJSONFile(writeFile(t, dir, "layout.yaml", "a: 1")))
}

func TestFileValidator_ValidateOutputFile(t *testing.T) {
	dir := t.TempDir()
	v := NewFileValidator(nil)

	target := filepath.Join(dir, "nested", "results.xlsx")
	require.NoError(t, v.ValidateOutputFile(target, WorkbookExtensions))
	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Empty(t, entries, "write probe is removed")

	err = v.ValidateOutputFile(filepath.Join(dir, "results.csv"), WorkbookExtensions)
	require.Error(t, err)
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeValidation))
}
