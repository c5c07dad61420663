package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "calqtrade"
	ServiceVersion = "1.2.0"
	MeterName      = "calqtrade"
)

// OTelConfig selects exporters and sampling for the process
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders bundles the installed tracer and meter providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig enables stdout tracing and Prometheus metrics,
// sampling everything
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0,
	}
}

// InitializeOTel builds the tracer and meter providers and installs
// them as the process globals.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res := newResource(cfg)
	providers := &OTelProviders{Logger: logger}

	if cfg.EnableTracing {
		if err := providers.setupTracing(ctx, cfg, res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}
	if cfg.EnableMetrics {
		if err := providers.setupMetrics(ctx, cfg, res); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

func newResource(cfg *OTelConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", instanceID()),
	)
}

func (p *OTelProviders) setupTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource) error {
	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)
	p.TracerProvider = tp
	p.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	p.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))
	return nil
}

func (p *OTelProviders) setupMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource) error {
	switch cfg.MetricExporter {
	case "prometheus":
		// The exporter registers with the default Prometheus registry,
		// which promhttp.Handler serves.
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		p.PrometheusHTTP = promhttp.Handler()

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		p.MeterProvider = mp
		p.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)
	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	p.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))
	return nil
}

// BusinessMetrics holds the domain instruments recorded across the
// request, calculation, session, export and websocket paths.
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	CalculationsTotal   metric.Int64Counter
	CalculationDuration metric.Float64Histogram
	CalculationErrors   metric.Int64Counter

	SessionsActive    metric.Int64UpDownCounter
	SessionsCreated   metric.Int64Counter
	SessionsExpired   metric.Int64Counter
	SessionLotsAdded  metric.Int64Counter
	SessionRecomputes metric.Int64Counter

	ExportsTotal   metric.Int64Counter
	ExportDuration metric.Float64Histogram

	WebSocketClients  metric.Int64UpDownCounter
	WebSocketMessages metric.Int64Counter
}

// CreateBusinessMetrics registers the domain instruments on the meter.
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	bm := &BusinessMetrics{}

	var err error
	if bm.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("HTTP requests served"),
	); err != nil {
		return nil, err
	}
	if bm.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("Wall time spent serving HTTP requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if bm.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("HTTP requests currently in flight"),
	); err != nil {
		return nil, err
	}

	if bm.CalculationsTotal, err = meter.Int64Counter(
		"calc_requests_total",
		metric.WithDescription("Total number of fee calculations performed"),
	); err != nil {
		return nil, err
	}
	if bm.CalculationDuration, err = meter.Float64Histogram(
		"calc_duration_seconds",
		metric.WithDescription("Fee calculation duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if bm.CalculationErrors, err = meter.Int64Counter(
		"calc_errors_total",
		metric.WithDescription("Total number of failed fee calculations"),
	); err != nil {
		return nil, err
	}

	if bm.SessionsActive, err = meter.Int64UpDownCounter(
		"sessions_active",
		metric.WithDescription("Number of live calculation sessions"),
	); err != nil {
		return nil, err
	}
	if bm.SessionsCreated, err = meter.Int64Counter(
		"sessions_created_total",
		metric.WithDescription("Total number of calculation sessions created"),
	); err != nil {
		return nil, err
	}
	if bm.SessionsExpired, err = meter.Int64Counter(
		"sessions_expired_total",
		metric.WithDescription("Total number of calculation sessions expired by the sweeper"),
	); err != nil {
		return nil, err
	}
	if bm.SessionLotsAdded, err = meter.Int64Counter(
		"session_lots_added_total",
		metric.WithDescription("Total number of trade lots recorded into sessions"),
	); err != nil {
		return nil, err
	}
	if bm.SessionRecomputes, err = meter.Int64Counter(
		"session_recomputes_total",
		metric.WithDescription("Total number of session position recomputations"),
	); err != nil {
		return nil, err
	}

	if bm.ExportsTotal, err = meter.Int64Counter(
		"exports_total",
		metric.WithDescription("Total number of report exports"),
	); err != nil {
		return nil, err
	}
	if bm.ExportDuration, err = meter.Float64Histogram(
		"export_duration_seconds",
		metric.WithDescription("Report export duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if bm.WebSocketClients, err = meter.Int64UpDownCounter(
		"websocket_clients",
		metric.WithDescription("Number of connected WebSocket clients"),
	); err != nil {
		return nil, err
	}
	if bm.WebSocketMessages, err = meter.Int64Counter(
		"websocket_messages_total",
		metric.WithDescription("Total number of WebSocket messages sent"),
	); err != nil {
		return nil, err
	}

	return bm, nil
}

// Shutdown flushes and stops both providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext returns the active span's trace ID, or empty when
// no sampled span is present.
func TraceIDFromContext(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// AddSpanEvent attaches a named event with attributes to the active span
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, anyAttribute(k, v))
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError marks the active span failed and records the error on it
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes copies the given attributes onto the active span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	for k, v := range attributes {
		span.SetAttributes(anyAttribute(k, v))
	}
}

func anyAttribute(k string, v interface{}) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(k, val)
	case int:
		return attribute.Int(k, val)
	case int64:
		return attribute.Int64(k, val)
	case float64:
		return attribute.Float64(k, val)
	case bool:
		return attribute.Bool(k, val)
	default:
		return attribute.String(k, fmt.Sprintf("%v", val))
	}
}

// RecordCalculationMetrics records one fee calculation on the business
// meters. Safe to call with nil metrics, as tests construct services
// without instrumentation.
func RecordCalculationMetrics(ctx context.Context, metrics *BusinessMetrics, kind string, duration time.Duration, err error) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("calc.kind", kind)}
	metrics.CalculationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	statusAttr := attribute.String("status", "success")
	if err != nil {
		statusAttr = attribute.String("status", "failure")
		errorAttrs := append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))
		metrics.CalculationErrors.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
	}
	metrics.CalculationDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(append(attrs, statusAttr)...))
}

// RecordExportMetrics records one report export on the business meters
func RecordExportMetrics(ctx context.Context, metrics *BusinessMetrics, format string, duration time.Duration) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("export.format", format)}
	metrics.ExportsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.ExportDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
