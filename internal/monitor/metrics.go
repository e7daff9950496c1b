// Package monitor publishes pipeline liveness metrics for operators.
package monitor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/beaconhq/alert-pipeline/internal/model"
)

const metricsSubject = "metrics.pipeline"

// StatsSource exposes the scheduler's run bookkeeping.
type StatsSource interface {
	Stats() model.RunStats
}

// MetricsCollector periodically publishes scheduler run stats together
// with host CPU and memory usage.
type MetricsCollector struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	source   StatsSource
	interval time.Duration
	stop     chan struct{}
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(js nats.JetStreamContext, source StatsSource, interval time.Duration, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		logger:   logger.Named("metrics-collector"),
		js:       js,
		source:   source,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start starts the collection loop.
func (c *MetricsCollector) Start(ctx context.Context) {
	c.logger.Info("Starting metrics collector", zap.Duration("interval", c.interval))
	go c.collectLoop(ctx)
}

// Stop stops the metrics collector
func (c *MetricsCollector) Stop() {
	c.logger.Info("Stopping metrics collector")
	close(c.stop)
}

// collectLoop runs the metrics collection loop
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

// collectMetrics collects and publishes one metrics sample.
func (c *MetricsCollector) collectMetrics() {
	cpuPercent, err := cpu.Percent(time.Second, false)
	if err != nil {
		c.logger.Error("Failed to get CPU usage", zap.Error(err))
		return
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		c.logger.Error("Failed to get memory usage", zap.Error(err))
		return
	}

	stats := c.source.Stats()

	metrics := struct {
		Timestamp         time.Time `json:"timestamp"`
		CPUUsage          float64   `json:"cpu_usage"`
		MemoryUsage       float64   `json:"memory_usage"`
		Running           bool      `json:"running"`
		LastExecutionTime time.Time `json:"last_execution_time"`
		ExecutionCount    int64     `json:"execution_count"`
	}{
		Timestamp:         time.Now(),
		CPUUsage:          cpuPercent[0],
		MemoryUsage:       memInfo.UsedPercent,
		Running:           stats.Running,
		LastExecutionTime: stats.LastExecutionTime,
		ExecutionCount:    stats.ExecutionCount,
	}

	data, err := json.Marshal(metrics)
	if err != nil {
		c.logger.Error("Failed to marshal metrics", zap.Error(err))
		return
	}

	if _, err := c.js.Publish(metricsSubject, data); err != nil {
		c.logger.Error("Failed to publish metrics", zap.Error(err))
		return
	}

	c.logger.Debug("Metrics collected",
		zap.Float64("cpu_usage", metrics.CPUUsage),
		zap.Float64("memory_usage", metrics.MemoryUsage),
		zap.Int64("execution_count", metrics.ExecutionCount))
}
