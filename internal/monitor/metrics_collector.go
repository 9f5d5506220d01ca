package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// SystemStats is a point-in-time snapshot of host resource usage.
type SystemStats struct {
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	CollectedAt time.Time `json:"collected_at"`
}

// MetricsCollector samples system metrics on a fixed interval and keeps the
// latest snapshot for the health endpoint.
type MetricsCollector struct {
	logger   *zap.Logger
	interval time.Duration
	mu       sync.RWMutex
	latest   SystemStats
	stop     chan struct{}
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(interval time.Duration, logger *zap.Logger) *MetricsCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &MetricsCollector{
		logger:   logger.Named("metrics-collector"),
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start starts the collection loop.
func (c *MetricsCollector) Start(ctx context.Context) {
	c.logger.Info("Starting metrics collector", zap.Duration("interval", c.interval))

	c.collectMetrics()
	go c.collectLoop(ctx)
}

// Stop stops the metrics collector.
func (c *MetricsCollector) Stop() {
	c.logger.Info("Stopping metrics collector")
	close(c.stop)
}

// Snapshot returns the most recent sample.
func (c *MetricsCollector) Snapshot() SystemStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

func (c *MetricsCollector) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.collectMetrics()
		}
	}
}

func (c *MetricsCollector) collectMetrics() {
	stats := SystemStats{CollectedAt: time.Now()}

	if percents, err := cpu.Percent(0, false); err != nil {
		c.logger.Error("Failed to collect CPU usage", zap.Error(err))
	} else if len(percents) > 0 {
		stats.CPUUsage = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		c.logger.Error("Failed to collect memory usage", zap.Error(err))
	} else {
		stats.MemoryUsage = vm.UsedPercent
	}

	c.mu.Lock()
	c.latest = stats
	c.mu.Unlock()
}
