package core

import (
	"log/slog"
	"os"
)

// Logger interface for structured logging
// Implementations can provide custom logging behavior (e.g. integration with
// an application-wide slog, zap, etc.)
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// DefaultLogger logs through log/slog so output integrates with whatever
// handler the host application has installed.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a DefaultLogger on slog's default logger.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{logger: slog.Default()}
}

// NewTextLogger creates a DefaultLogger with a text handler on stderr at the
// given level.
func NewTextLogger(level slog.Level) *DefaultLogger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &DefaultLogger{logger: slog.New(handler)}
}

// NewSlogLogger wraps an existing slog.Logger.
func NewSlogLogger(logger *slog.Logger) *DefaultLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultLogger{logger: logger}
}

func (l *DefaultLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, attrs(fields)...)
}

func (l *DefaultLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, attrs(fields)...)
}

func (l *DefaultLogger) Warn(msg string, fields ...Field) {
	l.logger.Warn(msg, attrs(fields)...)
}

func (l *DefaultLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, attrs(fields)...)
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

// NoOpLogger is a logger that discards all log messages
// Useful for tests or when logging is not desired
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}
