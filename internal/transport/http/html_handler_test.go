package http

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeMainApp(t *testing.T) {
	webDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html>plate</html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "app.js"), []byte("console.log(1)"), 0644))
	handler := ServeMainApp(webDir)

	tests := []struct {
		path     string
		contains string
	}{
		{path: "/", contains: "plate"},
		{path: "/app.js", contains: "console.log"},
		{path: "/results/A1", contains: "plate"},
		{path: "/../../etc/passwd", contains: "plate"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestServeMainApp_MissingFrontend(t *testing.T) {
	rec := httptest.NewRecorder()
	ServeMainApp(t.TempDir())(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
