package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/infrastructure"
	ws "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/websocket"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts"
)

func newHealthFixture(t *testing.T) (*HealthService, *config.Paths) {
	t.Helper()
	paths := config.NewPaths(config.PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, paths.EnsureDirectories())

	hub := ws.NewHub(config.WebSocketConfig{}, nil, quietLogger())
	hub.Start()
	t.Cleanup(hub.Stop)

	collector, err := infrastructure.NewSystemMetricsCollector(sdkmetric.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	svc, _ := newTestService(t, AnalysisOptions{Paths: paths})
	return NewHealthService(paths, svc, hub, collector, quietLogger()), paths
}

func TestHealthService_HealthCheck(t *testing.T) {
	hs := NewHealthService(nil, nil, nil, nil, quietLogger())
	status := hs.HealthCheck(context.Background())

	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, contracts.Version, status.Version)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthService_ReadinessCheck(t *testing.T) {
	t.Run("missing dependencies", func(t *testing.T) {
		hs := NewHealthService(nil, nil, nil, nil, quietLogger())
		status := hs.ReadinessCheck(context.Background())

		assert.Equal(t, "not_ready", status.Status)
		require.Contains(t, status.Services, "analysis")
		require.Contains(t, status.Services, "websocket")
		require.Contains(t, status.Services, "storage")
		assert.Equal(t, "not_ready", status.Services["storage"].(ServiceHealth).Status)
	})

	t.Run("all dependencies", func(t *testing.T) {
		hs, paths := newHealthFixture(t)
		status := hs.ReadinessCheck(context.Background())

		assert.Equal(t, "ready", status.Status)
		assert.Equal(t, "no data loaded", status.Services["analysis"].(ServiceHealth).Message)

		// the write probe cleans up after itself
		entries, err := os.ReadDir(paths.ReportsDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestHealthService_LivenessCheck(t *testing.T) {
	hs, _ := newHealthFixture(t)
	status := hs.LivenessCheck(context.Background())

	assert.Equal(t, "alive", status.Status)
	assert.Contains(t, status.Runtime, "goroutines")
	assert.Contains(t, status.Runtime, "memory_alloc_mb")
}

func TestHealthService_Version(t *testing.T) {
	hs := NewHealthService(nil, nil, nil, nil, quietLogger())
	info := hs.Version()

	assert.Equal(t, contracts.Version, info["version"])
	assert.Equal(t, contracts.VersionStage, info["stage"])
	assert.Equal(t, contracts.APIVersion, info["api_version"])
}

func TestHealthService_SystemStats(t *testing.T) {
	hs, paths := newHealthFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(paths.ReportsDir, "run.xlsx"), []byte("12345"), 0644))

	stats, err := hs.SystemStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ReportFiles)
	assert.Equal(t, int64(5), stats.ReportBytes)
	require.NotNil(t, stats.WebSocket)
	assert.Equal(t, 0, stats.WebSocketClients)
	require.NotNil(t, stats.Session)
	assert.False(t, stats.Session.DataLoaded)
	require.NotNil(t, stats.Runtime)
	assert.Positive(t, stats.Runtime.CPUCount)
}

func TestHealthService_GetDetailedHealth(t *testing.T) {
	hs, _ := newHealthFixture(t)
	detail := hs.GetDetailedHealth(context.Background())

	for _, key := range []string{"health", "readiness", "liveness", "version", "stats"} {
		assert.Contains(t, detail, key)
	}
}
