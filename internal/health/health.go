// Package health aggregates backend reachability into a liveness snapshot.
package health

import (
	"context"
	"log/slog"
	"time"
)

// Prober is the probe surface of the backend client.
type Prober interface {
	HealthCheck(ctx context.Context) (time.Duration, error)
}

// Snapshot is the combined liveness report. It is always produced; a probe
// failure degrades the fields, it never fails the check itself.
type Snapshot struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	Uptime         int64     `json:"uptime"`
	BackendStatus  string    `json:"backend_status"`
	BackendLatency *float64  `json:"backend_latency"`
}

// Checker probes the backend through the client with a bounded timeout.
// It serves both the /health endpoint and process-startup diagnostics.
type Checker struct {
	prober  Prober
	version string
	timeout time.Duration
	started time.Time
	logger  *slog.Logger
}

// NewChecker creates a checker. The timeout bounds each probe.
func NewChecker(prober Prober, version string, timeout time.Duration, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		prober:  prober,
		version: version,
		timeout: timeout,
		started: time.Now(),
		logger:  logger,
	}
}

// Check probes the backend and returns the snapshot. It never fails.
func (c *Checker) Check(ctx context.Context) Snapshot {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	snap := Snapshot{
		Timestamp: time.Now().UTC(),
		Version:   c.version,
		Uptime:    int64(time.Since(c.started).Seconds()),
	}

	latency, err := c.prober.HealthCheck(probeCtx)
	if err != nil {
		c.logger.Warn("backend health probe failed", slog.String("error", err.Error()))
		snap.Status = "unhealthy"
		snap.BackendStatus = "unreachable"
		return snap
	}

	ms := float64(latency.Microseconds()) / 1000.0
	snap.Status = "healthy"
	snap.BackendStatus = "healthy"
	snap.BackendLatency = &ms
	return snap
}
