package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"calqtrade/internal/config"
)

type contextKey string

// traceIDKey carries the request's trace ID through the context so the
// handler wrapper can stamp it onto every record.
const traceIDKey contextKey = "trace_id"

var (
	processLogger *slog.Logger
	loggerOnce    sync.Once

	logFileMu sync.Mutex
	logFile   *os.File
)

// InitializeLogger builds the process-wide slog logger from configuration
// and installs it as the slog default. Safe to call more than once; only
// the first call takes effect.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	loggerOnce.Do(func() {
		processLogger, err = buildLogger(cfg)
		if processLogger != nil {
			slog.SetDefault(processLogger)
		}
	})
	return processLogger, err
}

// GetLogger returns the process logger, falling back to slog's default
// before InitializeLogger has run.
func GetLogger() *slog.Logger {
	if processLogger != nil {
		return processLogger
	}
	return slog.Default()
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	sink, err := openSink(cfg)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLogLevel(cfg.Level),
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(sink, opts)
	default:
		handler = slog.NewJSONHandler(sink, opts)
	}

	return slog.New(&traceHandler{Handler: handler}), nil
}

// openSink resolves the configured output: stdout, a log file, or both.
func openSink(cfg config.LoggingConfig) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "file":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		logFile = file
		return file, nil
	case "both":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		logFile = file
		return io.MultiWriter(os.Stdout, file), nil
	default:
		return os.Stdout, nil
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

// traceHandler decorates every record with the trace_id held in the
// context, so handlers never need to pass it explicitly.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithTraceID attaches a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID reads the trace ID from the context, or "".
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// CloseLogFile closes the log file when one was opened. Called on
// shutdown and between tests.
func CloseLogFile() error {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ResetLoggerForTesting clears the singleton so tests can reinitialize
// with their own configuration.
func ResetLoggerForTesting() {
	CloseLogFile()
	processLogger = nil
	loggerOnce = sync.Once{}
}
