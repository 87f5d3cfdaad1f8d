package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeStats is a point-in-time snapshot reported by the health endpoint.
type RuntimeStats struct {
	GoRoutines    int           `json:"goroutines"`
	MemoryAllocMB uint64        `json:"memory_alloc_mb"`
	MemorySysMB   uint64        `json:"memory_sys_mb"`
	GCCount       uint32        `json:"gc_count"`
	CPUCount      int           `json:"cpu_count"`
	Uptime        time.Duration `json:"-"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Timestamp     time.Time     `json:"timestamp"`
}

// SystemMetricsCollector samples Go runtime statistics and exports them as
// observable gauges.
type SystemMetricsCollector struct {
	startTime time.Time
}

// NewSystemMetricsCollector registers runtime gauges on meter.
func NewSystemMetricsCollector(meter metric.Meter) (*SystemMetricsCollector, error) {
	c := &SystemMetricsCollector{startTime: time.Now()}

	goroutines, err := meter.Int64ObservableGauge("system_goroutines",
		metric.WithDescription("Number of active goroutines"))
	if err != nil {
		return nil, err
	}
	memory, err := meter.Int64ObservableGauge("system_memory_alloc_bytes",
		metric.WithDescription("Bytes of allocated heap objects"), metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	uptime, err := meter.Float64ObservableGauge("system_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"), metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := c.Collect()
		o.ObserveInt64(goroutines, int64(stats.GoRoutines))
		o.ObserveInt64(memory, int64(stats.MemoryAllocMB*1024*1024))
		o.ObserveFloat64(uptime, stats.UptimeSeconds)
		return nil
	}, goroutines, memory, uptime)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Collect samples the runtime now.
func (c *SystemMetricsCollector) Collect() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	up := time.Since(c.startTime)
	return RuntimeStats{
		GoRoutines:    runtime.NumGoroutine(),
		MemoryAllocMB: mem.Alloc / 1024 / 1024,
		MemorySysMB:   mem.Sys / 1024 / 1024,
		GCCount:       mem.NumGC,
		CPUCount:      runtime.NumCPU(),
		Uptime:        up,
		UptimeSeconds: up.Seconds(),
		Timestamp:     time.Now(),
	}
}

// StartTime returns when the collector was created.
func (c *SystemMetricsCollector) StartTime() time.Time {
	return c.startTime
}
