package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/infrastructure"
	ws "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/websocket"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts"
)

// HealthService provides health check functionality
type HealthService struct {
	paths        *config.Paths
	analysis     *AnalysisService
	webSocketHub *ws.Hub
	collector    *infrastructure.SystemMetricsCollector
	startTime    time.Time
	logger       *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64                      `json:"uptime_seconds"`
	ReportFiles      int                          `json:"report_files"`
	ReportBytes      int64                        `json:"report_bytes"`
	WebSocketClients int                          `json:"websocket_clients"`
	WebSocket        *ws.HubStats                 `json:"websocket,omitempty"`
	Session          *SessionStatus               `json:"session,omitempty"`
	Runtime          *infrastructure.RuntimeStats `json:"runtime,omitempty"`
	GoVersion        string                       `json:"go_version"`
	OS               string                       `json:"os"`
	Arch             string                       `json:"arch"`
}

// NewHealthService creates a health service. Any dependency may be nil; the
// matching readiness check then reports not_ready.
func NewHealthService(paths *config.Paths, analysis *AnalysisService, hub *ws.Hub, collector *infrastructure.SystemMetricsCollector, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	startTime := time.Now()
	if collector != nil {
		startTime = collector.StartTime()
	}

	logger.Info("HealthService initialized",
		slog.String("version", contracts.Version),
		slog.Bool("websocket", hub != nil),
		slog.Bool("analysis", analysis != nil))

	return &HealthService{
		paths:        paths,
		analysis:     analysis,
		webSocketHub: hub,
		collector:    collector,
		startTime:    startTime,
		logger:       infrastructure.WithComponent(logger, "health_service"),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services:  make(map[string]interface{}),
	}

	status.Services["analysis"] = hs.checkAnalysisHealth()
	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["storage"] = hs.checkStorageHealth()

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	runtimeInfo := map[string]interface{}{
		"uptime":     time.Since(hs.startTime).Seconds(),
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}
	if hs.collector != nil {
		stats := hs.collector.Collect()
		runtimeInfo["memory_alloc_mb"] = stats.MemoryAllocMB
		runtimeInfo["gc_count"] = stats.GCCount
	}

	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime:   runtimeInfo,
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      info.Version,
		"stage":        info.Stage,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"api_version":  info.APIVersion,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}

	if hs.paths != nil {
		filepath.Walk(hs.paths.ReportsDir, func(path string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() {
				stats.ReportFiles++
				stats.ReportBytes += info.Size()
			}
			return nil
		})
	}
	if hs.webSocketHub != nil {
		hubStats := hs.webSocketHub.Stats()
		stats.WebSocket = &hubStats
		stats.WebSocketClients = hubStats.ActiveClients
	}
	if hs.analysis != nil {
		session := hs.analysis.Status()
		stats.Session = &session
	}
	if hs.collector != nil {
		rt := hs.collector.Collect()
		stats.Runtime = &rt
	}
	return stats, nil
}

func (hs *HealthService) checkAnalysisHealth() ServiceHealth {
	if hs.analysis == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "analysis service not initialized",
		}
	}
	st := hs.analysis.Status()
	msg := "no data loaded"
	if st.DataLoaded {
		msg = fmt.Sprintf("%d wells x %d frames loaded", st.Wells, st.Frames)
	}
	return ServiceHealth{
		Status:  "ready",
		Message: msg,
	}
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.webSocketHub == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "WebSocket hub not initialized",
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.webSocketHub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkStorageHealth verifies the reports and layouts directories are writable.
func (hs *HealthService) checkStorageHealth() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "paths not configured",
		}
	}

	for _, dir := range []string{hs.paths.ReportsDir, hs.paths.LayoutsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return ServiceHealth{
				Status:  "not_ready",
				Message: fmt.Sprintf("Cannot create %s: %v", dir, err),
			}
		}
		probe, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return ServiceHealth{
				Status:  "not_ready",
				Message: fmt.Sprintf("Cannot write to %s: %v", dir, err),
			}
		}
		probe.Close()
		os.Remove(probe.Name())
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "Storage is writable",
	}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	stats, _ := hs.SystemStats(ctx)

	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"version":   hs.Version(),
		"stats":     stats,
	}
}
