package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestMetricsCollectorSnapshot(t *testing.T) {
	collector := NewMetricsCollector(time.Minute, zaptest.NewLogger(t))

	// Before Start the snapshot is zero-valued.
	assert.True(t, collector.Snapshot().CollectedAt.IsZero())

	collector.Start(context.Background())
	defer collector.Stop()

	stats := collector.Snapshot()
	assert.False(t, stats.CollectedAt.IsZero())
	assert.GreaterOrEqual(t, stats.MemoryUsage, 0.0)
	assert.LessOrEqual(t, stats.MemoryUsage, 100.0)
	assert.GreaterOrEqual(t, stats.CPUUsage, 0.0)
}

func TestMetricsCollectorDefaultInterval(t *testing.T) {
	collector := NewMetricsCollector(0, zaptest.NewLogger(t))
	assert.Equal(t, 15*time.Second, collector.interval)
}
