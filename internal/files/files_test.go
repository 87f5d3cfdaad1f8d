package files

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
)

func writeAt(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func newManager(t *testing.T) (*Manager, *config.Paths) {
	t.Helper()
	paths := config.NewPaths(config.PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, paths.EnsureDirectories())
	return NewManager(paths, slog.New(slog.NewJSONHandler(io.Discard, nil))), paths
}

func TestDiscovery_FindFiles(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	writeAt(t, filepath.Join(dir, "old.xlsx"), "a", base)
	writeAt(t, filepath.Join(dir, "new.csv"), "bb", base.Add(time.Hour))
	writeAt(t, filepath.Join(dir, "notes.txt"), "c", base)
	writeAt(t, filepath.Join(dir, ".hidden.csv"), "d", base)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0755))

	files, err := NewDiscovery(dir).FindFiles(".xlsx", ".csv")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "new.csv", files[0].Name)
	assert.EqualValues(t, 2, files[0].Size)
	assert.Equal(t, "old.xlsx", files[1].Name)
	assert.Equal(t, filepath.Join(dir, "old.xlsx"), files[1].Path)

	all, err := NewDiscovery(dir).FindFiles()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDiscovery_MissingDirectory(t *testing.T) {
	files, err := NewDiscovery(filepath.Join(t.TempDir(), "absent")).FindFiles(".csv")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestManager_Resolve(t *testing.T) {
	m, paths := newManager(t)

	tests := []struct {
		name    string
		area    Area
		input   string
		want    string
		wantErr apierrors.ErrorType
	}{
		{name: "report", area: AreaReports, input: "run.xlsx", want: filepath.Join(paths.ReportsDir, "run.xlsx")},
		{name: "traversal stripped", area: AreaReports, input: "../../etc/run.csv", want: filepath.Join(paths.ReportsDir, "run.csv")},
		{name: "layout", area: AreaLayouts, input: "plate.json", want: filepath.Join(paths.LayoutsDir, "plate.json")},
		{name: "wrong extension", area: AreaLayouts, input: "plate.xlsx", wantErr: apierrors.ErrTypeValidation},
		{name: "empty", area: AreaReports, input: "  ", wantErr: apierrors.ErrTypeValidation},
		{name: "dot dot", area: AreaReports, input: "..", wantErr: apierrors.ErrTypeValidation},
		{name: "hidden", area: AreaReports, input: ".secret.csv", wantErr: apierrors.ErrTypeValidation},
		{name: "unknown area", area: Area("logs"), input: "x.log", wantErr: apierrors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Resolve(tt.area, tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apierrors.IsType(err, tt.wantErr), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManager_NoPaths(t *testing.T) {
	m := NewManager(nil, nil)
	_, err := m.List(AreaReports)
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeConfig))
}

func TestManager_ListOpenDelete(t *testing.T) {
	m, paths := newManager(t)
	writeAt(t, filepath.Join(paths.ReportsDir, "run.csv"), "well_id\nA1\n", time.Now())
	writeAt(t, filepath.Join(paths.LayoutsDir, "plate.json"), "[]", time.Now())

	reports, err := m.List(AreaReports)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "run.csv", reports[0].Name)

	layouts, err := m.List(AreaLayouts)
	require.NoError(t, err)
	require.Len(t, layouts, 1)

	f, info, err := m.Open(AreaReports, "run.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, "well_id\nA1\n", string(body))
	assert.EqualValues(t, len(body), info.Size)

	_, _, err = m.Open(AreaReports, "absent.csv")
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeNotFound))

	require.NoError(t, m.Delete(AreaReports, "run.csv"))
	assert.NoFileExists(t, filepath.Join(paths.ReportsDir, "run.csv"))

	err = m.Delete(AreaReports, "run.csv")
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeNotFound))
}
