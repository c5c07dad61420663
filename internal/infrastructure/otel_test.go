package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestDefaultOTelConfig(t *testing.T) {
	cfg := DefaultOTelConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, ServiceName, cfg.ServiceName)
	assert.Equal(t, ServiceVersion, cfg.ServiceVersion)
	assert.True(t, cfg.EnableTracing)
	assert.True(t, cfg.EnableMetrics)
	assert.Equal(t, 1.0, cfg.SampleRatio)
}

func TestCreateBusinessMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	metrics, err := CreateBusinessMetrics(meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	assert.NotNil(t, metrics.HTTPRequestsTotal)
	assert.NotNil(t, metrics.CalculationsTotal)
	assert.NotNil(t, metrics.SessionsActive)
	assert.NotNil(t, metrics.ExportsTotal)
	assert.NotNil(t, metrics.WebSocketClients)
}

func TestRecordCalculationMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, err := CreateBusinessMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()

	// Must not panic with or without an error, or with nil metrics.
	RecordCalculationMetrics(ctx, metrics, "single_trade", 5*time.Millisecond, nil)
	RecordCalculationMetrics(ctx, metrics, "intraday", time.Millisecond, assert.AnError)
	RecordCalculationMetrics(ctx, nil, "position", time.Millisecond, nil)
}

func TestRecordExportMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, err := CreateBusinessMetrics(meter)
	require.NoError(t, err)

	RecordExportMetrics(context.Background(), metrics, "csv", time.Millisecond)
	RecordExportMetrics(context.Background(), nil, "xlsx", time.Millisecond)
}

func TestSystemMetricsCollector(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	collector, err := NewSystemMetricsCollector(meter, time.Minute)
	require.NoError(t, err)

	stats := collector.GetCurrentStats(context.Background())
	require.NotNil(t, stats)
	assert.Positive(t, stats.GoRoutines)
	assert.Positive(t, stats.MemoryUsage)

	formatted := stats.FormatStats()
	assert.Contains(t, formatted, "goroutines")
	assert.Contains(t, formatted, "uptime_seconds")
}
