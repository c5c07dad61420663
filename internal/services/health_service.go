package services

import (
	"context"
	"log/slog"
	"time"

	"calqtrade/internal/infrastructure"
	"calqtrade/internal/sessions"
	"calqtrade/pkg/contracts"
	api "calqtrade/pkg/contracts/api/v1"
)

// HealthService reports liveness, readiness and version information
type HealthService struct {
	store     *sessions.Store
	collector *infrastructure.SystemMetricsCollector
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a health service. The collector may be nil when
// metrics are disabled.
func NewHealthService(store *sessions.Store, collector *infrastructure.SystemMetricsCollector, logger *slog.Logger) *HealthService {
	return &HealthService{
		store:     store,
		collector: collector,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// Health returns the full health report with runtime statistics
func (s *HealthService) Health(ctx context.Context) api.HealthResponse {
	resp := api.HealthResponse{
		Status:  "healthy",
		Version: contracts.Version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Checks: map[string]string{
			"session_store": "ok",
		},
	}

	if s.collector != nil {
		if stats := s.collector.GetCurrentStats(ctx); stats != nil {
			resp.Stats = stats.FormatStats()
			resp.Stats["active_sessions"] = s.store.Count()
		}
	}

	return resp
}

// Liveness is a bare process-up probe
func (s *HealthService) Liveness(ctx context.Context) api.HealthResponse {
	return api.HealthResponse{
		Status:  "alive",
		Version: contracts.Version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	}
}

// Readiness checks that the serving dependencies are available. With an
// in-memory store there is nothing external to wait for, so readiness
// follows liveness.
func (s *HealthService) Readiness(ctx context.Context) api.HealthResponse {
	resp := api.HealthResponse{
		Status:  "ready",
		Version: contracts.Version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Checks: map[string]string{
			"session_store": "ok",
		},
	}
	return resp
}

// Version returns detailed build and version information
func (s *HealthService) Version(ctx context.Context) contracts.VersionInfo {
	return contracts.GetVersionInfo()
}
