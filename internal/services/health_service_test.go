package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"calqtrade/internal/config"
	"calqtrade/internal/infrastructure"
	"calqtrade/internal/sessions"
	"calqtrade/pkg/contracts"
)

func newTestHealthService(t *testing.T) *HealthService {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := sessions.NewStore(config.SessionsConfig{
		TTL:           time.Hour,
		SweepInterval: time.Minute,
		MaxLots:       10,
	}, logger)
	t.Cleanup(store.Stop)

	collector, err := infrastructure.NewSystemMetricsCollector(noop.NewMeterProvider().Meter("test"), time.Minute)
	require.NoError(t, err)

	return NewHealthService(store, collector, logger)
}

func TestHealthService_Health(t *testing.T) {
	svc := newTestHealthService(t)

	resp := svc.Health(context.Background())

	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, contracts.Version, resp.Version)
	assert.Equal(t, "ok", resp.Checks["session_store"])
	require.NotNil(t, resp.Stats)
	assert.Contains(t, resp.Stats, "goroutines")
	assert.Equal(t, 0, resp.Stats["active_sessions"])
}

func TestHealthService_LivenessAndReadiness(t *testing.T) {
	svc := newTestHealthService(t)

	live := svc.Liveness(context.Background())
	assert.Equal(t, "alive", live.Status)

	ready := svc.Readiness(context.Background())
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "ok", ready.Checks["session_store"])
}

func TestHealthService_Version(t *testing.T) {
	svc := newTestHealthService(t)

	info := svc.Version(context.Background())
	assert.Equal(t, contracts.Version, info.Version)
	assert.Equal(t, contracts.APIVersion, info.APIVersion)
	assert.NotEmpty(t, info.GoVersion)
}
