package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"optchain/internal/collector"
	"optchain/internal/infrastructure"
)

// CycleSource exposes the collector state the health checks inspect.
type CycleSource interface {
	Indices() []string
	LastReports() map[string]collector.CycleReport
}

// HealthService provides health check functionality
type HealthService struct {
	version    string
	source     CycleSource
	staleAfter time.Duration
	startTime  time.Time
	now        func() time.Time
	logger     *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents one index's collection health
type ServiceHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LastCycle time.Time `json:"last_cycle,omitempty"`
	Written   int       `json:"written"`
}

// NewHealthService creates a health service. An index is ready while its
// last cycle succeeded less than staleAfter ago.
func NewHealthService(version string, source CycleSource, staleAfter time.Duration, logger *slog.Logger) *HealthService {
	logger = infrastructure.WithComponent(infrastructure.LoggerOrDefault(logger), "health")

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.Duration("stale_after", staleAfter))

	return &HealthService{
		version:    version,
		source:     source,
		staleAfter: staleAfter,
		startTime:  time.Now(),
		now:        time.Now,
		logger:     logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: hs.now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports per-index collection health
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: hs.now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	reports := hs.source.LastReports()
	for _, index := range hs.source.Indices() {
		sh := hs.indexHealth(reports, index, status.Timestamp)
		if sh.Status != "ready" {
			status.Status = "not_ready"
		}
		status.Services[index] = sh
	}

	if status.Status != "ready" {
		hs.logger.DebugContext(ctx, "ReadinessCheck: not ready", slog.Any("services", status.Services))
	}

	return status
}

func (hs *HealthService) indexHealth(reports map[string]collector.CycleReport, index string, now time.Time) ServiceHealth {
	report, ok := reports[index]
	if !ok {
		return ServiceHealth{Status: "pending", Message: "no cycle has run yet"}
	}

	sh := ServiceHealth{Status: "ready", LastCycle: report.StartedAt, Written: report.Written}
	switch {
	case report.Error != "":
		sh.Status = "failing"
		sh.Message = report.Error
	case hs.staleAfter > 0 && now.Sub(report.StartedAt) > hs.staleAfter:
		sh.Status = "stale"
		sh.Message = "last cycle is older than " + hs.staleAfter.String()
	case report.Skipped != "":
		sh.Message = "last cycle skipped: " + report.Skipped
	}
	return sh
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: hs.now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}
