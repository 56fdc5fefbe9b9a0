package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger defines the interface used throughout the engine for structured
// logging. It is passed explicitly via EngineContext rather than held in
// any package-level variable.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// WithFields/WithField return a Logger that attaches the given
	// key/value pairs to every subsequent call.
	WithFields(fields map[string]interface{}) Logger
	WithField(key string, value interface{}) Logger

	StartOperation(name string) OperationLogger
}

// OperationLogger tracks timing for a single named operation.
type OperationLogger interface {
	Update(msg string, args ...any)
	Complete(msg string, args ...any)
	Fail(msg string, args ...any)
}

type logger struct {
	slog *slog.Logger
}

type operationLogger struct {
	name      string
	startTime time.Time
	parent    *logger
}

func levelFromString(level string) slog.Level {
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

func handlerFor(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// New creates a logger writing to stdout in the given level/format.
func New(level, format string) Logger {
	opts := &slog.HandlerOptions{Level: levelFromString(level)}
	return &logger{slog: slog.New(handlerFor(format, os.Stdout, opts))}
}

// FileLogger creates a logger that writes to both stdout and filename.
func FileLogger(level, format, filename string) (Logger, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	opts := &slog.HandlerOptions{Level: levelFromString(level)}
	w := io.MultiWriter(os.Stdout, file)
	return &logger{slog: slog.New(handlerFor(format, w, opts))}, nil
}

func (l *logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &logger{slog: l.slog.With(args...)}
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{slog: l.slog.With(key, value)}
}

func (l *logger) StartOperation(name string) OperationLogger {
	return &operationLogger{name: name, startTime: time.Now(), parent: l}
}

func (ol *operationLogger) Update(msg string, args ...any) {
	elapsed := time.Since(ol.startTime)
	ol.parent.Info(fmt.Sprintf("[%s] %s", ol.name, msg), append(args, "elapsed", elapsed.String())...)
}

func (ol *operationLogger) Complete(msg string, args ...any) {
	elapsed := time.Since(ol.startTime)
	ol.parent.Info(fmt.Sprintf("[%s] COMPLETED: %s", ol.name, msg), append(args, "duration", formatDuration(elapsed))...)
}

func (ol *operationLogger) Fail(msg string, args ...any) {
	elapsed := time.Since(ol.startTime)
	ol.parent.Error(fmt.Sprintf("[%s] FAILED: %s", ol.name, msg), append(args, "duration", formatDuration(elapsed))...)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm %ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	}
}
