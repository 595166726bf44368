// Package logging provides structured logging for assetforge built on slog.
//
// Every subsystem and plugin obtains a scoped logger via WithScope so that
// log lines can always be traced back to the component that produced them.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// LogLevel represents different log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a LogLevel, defaulting to info.
func ParseLevel(name string) LogLevel {
	switch name {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the structured logging interface carried by the BuildContext.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(err error, msg string, fields ...interface{})
	Error(err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithScope(scope string) Logger
}

// ForgeLogger implements structured logging for assetforge
type ForgeLogger struct {
	logger *slog.Logger
	level  LogLevel
	scope  string
}

// Config holds logger configuration
type Config struct {
	Level  LogLevel
	Format string // "json" or "text"
	Output io.Writer
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// NewLogger creates a new structured logger
func NewLogger(config *Config) *ForgeLogger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Output == nil {
		config.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel(config.Level),
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &ForgeLogger{
		logger: slog.New(handler),
		level:  config.Level,
	}
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a debug message
func (l *ForgeLogger) Debug(msg string, fields ...interface{}) {
	if l.level > LevelDebug {
		return
	}
	l.log(slog.LevelDebug, nil, msg, fields...)
}

// Info logs an info message
func (l *ForgeLogger) Info(msg string, fields ...interface{}) {
	if l.level > LevelInfo {
		return
	}
	l.log(slog.LevelInfo, nil, msg, fields...)
}

// Warn logs a warning, optionally carrying an underlying error
func (l *ForgeLogger) Warn(err error, msg string, fields ...interface{}) {
	if l.level > LevelWarn {
		return
	}
	l.log(slog.LevelWarn, err, msg, fields...)
}

// Error logs an error message with its underlying cause
func (l *ForgeLogger) Error(err error, msg string, fields ...interface{}) {
	l.log(slog.LevelError, err, msg, fields...)
}

func (l *ForgeLogger) log(level slog.Level, err error, msg string, fields ...interface{}) {
	attrs := make([]interface{}, 0, len(fields)+4)
	if l.scope != "" {
		attrs = append(attrs, "scope", l.scope)
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	attrs = append(attrs, fields...)
	l.logger.Log(context.Background(), level, msg, attrs...)
}

// With returns a logger with additional fields attached to every line
func (l *ForgeLogger) With(fields ...interface{}) Logger {
	return &ForgeLogger{
		logger: l.logger.With(fields...),
		level:  l.level,
		scope:  l.scope,
	}
}

// WithScope returns a logger tagged with the given subsystem or plugin name
func (l *ForgeLogger) WithScope(scope string) Logger {
	return &ForgeLogger{
		logger: l.logger,
		level:  l.level,
		scope:  scope,
	}
}

// Nop returns a logger that discards everything, for tests.
func Nop() Logger {
	return &ForgeLogger{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:  LevelError + 1,
	}
}
