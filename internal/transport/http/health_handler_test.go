package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/services"
	ws "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/websocket"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts"
)

func newHealthRouter(t *testing.T, complete bool) http.Handler {
	t.Helper()
	var health *services.HealthService
	if complete {
		srv := newTestServer(t)
		hub := ws.NewHub(config.WebSocketConfig{}, nil, quietLogger())
		hub.Start()
		t.Cleanup(hub.Stop)
		health = services.NewHealthService(srv.paths, srv.service, hub, nil, quietLogger())
	} else {
		health = services.NewHealthService(nil, nil, nil, nil, quietLogger())
	}

	r := chi.NewRouter()
	NewHealthHandler(health, quietLogger(), apierrors.NewErrorHandler(quietLogger(), false)).RegisterRoutes(r)
	return r
}

func TestHealthHandler_Endpoints(t *testing.T) {
	router := newHealthRouter(t, true)

	tests := []struct {
		name          string
		path          string
		checkResponse func(t *testing.T, body map[string]interface{})
	}{
		{
			name: "health",
			path: "/health",
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "ok", body["status"])
				assert.Equal(t, contracts.Version, body["version"])
			},
		},
		{
			name: "readiness",
			path: "/health/ready",
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "ready", body["status"])
			},
		},
		{
			name: "liveness",
			path: "/health/live",
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "alive", body["status"])
			},
		},
		{
			name: "version",
			path: "/version",
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, contracts.VersionStage, body["stage"])
			},
		},
		{
			name: "stats",
			path: "/stats",
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				assert.Contains(t, body, "session")
				assert.EqualValues(t, 0, body["websocket_clients"])
			},
		},
		{
			name: "detailed",
			path: "/health/detailed",
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				assert.Contains(t, body, "readiness")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			tt.checkResponse(t, body)
		})
	}
}

func TestHealthHandler_NotReady(t *testing.T) {
	router := newHealthRouter(t, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body["status"])
}
