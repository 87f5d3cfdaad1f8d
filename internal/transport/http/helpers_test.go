package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/middleware"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/services"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// plateExport renders an instrument export of 60 frames in which each well
// sits at 1000 counts and peaks at frame 30 with ΔF/F₀ equal to its amplitude.
func plateExport(amplitudes map[string]float64) string {
	ids := make([]string, 0, len(amplitudes))
	for id := range amplitudes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := domain.WellIndex(ids[i])
		b, _ := domain.WellIndex(ids[j])
		return a < b
	})

	var b strings.Builder
	b.WriteString("plate_01.seq\tx\tx\tx\tWell")
	for f := 0; f < 60; f++ {
		fmt.Fprintf(&b, "\t%d", f)
	}
	b.WriteString("\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "%s\tg\tg\tg\t%s", id, id)
		for f := 0; f < 60; f++ {
			v := 1000.0
			if f >= 20 {
				v *= 1 + amplitudes[id]*math.Exp(-math.Pow(float64(f-30), 2)/20)
			}
			fmt.Fprintf(&b, "\t%g", v)
		}
		b.WriteString("\n")
	}
	return b.String()
}

var standardPlate = plateExport(map[string]float64{
	"A1": 0.5, "A2": 0.5, "A3": 0.5,
	"A4": 1.0, "A5": 1.0, "A6": 1.0,
})

type testServer struct {
	service *services.AnalysisService
	paths   *config.Paths
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	paths := config.NewPaths(config.PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, paths.EnsureDirectories())

	svc, err := services.NewAnalysisService(services.AnalysisOptions{
		Paths:               paths,
		DiagnosisConfigPath: paths.DiagnosisConfigFile,
		Logger:              quietLogger(),
	})
	require.NoError(t, err)

	errorHandler := apierrors.NewErrorHandler(quietLogger(), false)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Route("/api/v1", func(r chi.Router) {
		NewDataHandler(svc, quietLogger(), errorHandler).RegisterRoutes(r)
		NewLayoutHandler(svc, quietLogger(), errorHandler).RegisterRoutes(r)
		NewAnalysisHandler(svc, quietLogger(), errorHandler).RegisterRoutes(r)
		NewExportHandler(svc, quietLogger(), errorHandler).RegisterRoutes(r)
	})

	return &testServer{service: svc, paths: paths, router: r}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" && strings.HasPrefix(strings.TrimSpace(body), "{") {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// labeledAndProcessed uploads the standard plate, labels ATP in A1-A3 and
// its ionomycin reference in A4-A6, and runs the pipeline.
func (s *testServer) labeledAndProcessed(t *testing.T) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/data?name=plate_01.txt", standardPlate)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/layout/labels",
		`{"wells":["A1","A2","A3"],"label":"ATP","sample_id":"S1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/api/v1/layout/labels",
		`{"wells":["A4","A5","A6"],"label":"Ionomycin","sample_id":"S1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/process", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// data returns the "data" member of a success envelope.
func data(t *testing.T, rec *httptest.ResponseRecorder) interface{} {
	t.Helper()
	body := decodeBody(t, rec)
	require.Equal(t, "success", body["status"])
	return body["data"]
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}
