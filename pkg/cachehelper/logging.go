package cachehelper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LogLevel defines the severity level for logging
type LogLevel int

const (
	// LogLevelDebug enables all log messages including detailed debugging
	LogLevelDebug LogLevel = iota

	// LogLevelInfo enables informational messages and above
	LogLevelInfo

	// LogLevelWarn enables warning messages and above
	LogLevelWarn

	// LogLevelError enables only error messages
	LogLevelError

	// LogLevelNone disables all logging
	LogLevelNone
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelError + 4
	}
}

// Logger defines the interface for memoizer logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F is a convenience function to create a logging field
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// DefaultLogger implements Logger on top of log/slog
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a text logger on stdout with the specified level
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	return NewDefaultLoggerTo(os.Stdout, level)
}

// NewDefaultLoggerTo creates a text logger writing to w
func NewDefaultLoggerTo(w io.Writer, level LogLevel) *DefaultLogger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.slogLevel()})
	return NewSlogLogger(slog.New(handler).With("component", "cachehelper"))
}

// NewSlogLogger adapts an existing slog logger
func NewSlogLogger(logger *slog.Logger) *DefaultLogger {
	return &DefaultLogger{logger: logger}
}

// Debug logs a debug message
func (dl *DefaultLogger) Debug(msg string, fields ...Field) {
	dl.log(slog.LevelDebug, msg, fields)
}

// Info logs an info message
func (dl *DefaultLogger) Info(msg string, fields ...Field) {
	dl.log(slog.LevelInfo, msg, fields)
}

// Warn logs a warning message
func (dl *DefaultLogger) Warn(msg string, fields ...Field) {
	dl.log(slog.LevelWarn, msg, fields)
}

// Error logs an error message
func (dl *DefaultLogger) Error(msg string, fields ...Field) {
	dl.log(slog.LevelError, msg, fields)
}

// With creates a new logger with additional fields
func (dl *DefaultLogger) With(fields ...Field) Logger {
	return &DefaultLogger{logger: dl.logger.With(attrsOf(fields)...)}
}

func (dl *DefaultLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !dl.logger.Enabled(ctx, level) {
		return
	}
	dl.logger.Log(ctx, level, msg, attrsOf(fields)...)
}

func attrsOf(fields []Field) []any {
	attrs := make([]any, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

// NoOpLogger is a logger that does nothing - useful for disabling logging
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that discards all messages
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (nol *NoOpLogger) Debug(string, ...Field) {}
func (nol *NoOpLogger) Info(string, ...Field)  {}
func (nol *NoOpLogger) Warn(string, ...Field)  {}
func (nol *NoOpLogger) Error(string, ...Field) {}
func (nol *NoOpLogger) With(...Field) Logger   { return nol }

// LoggingConfig defines which memoization events are logged
type LoggingConfig struct {
	Logger Logger

	// LogHits enables logging of cache hit events
	LogHits bool

	// LogMisses enables logging of cache miss events
	LogMisses bool

	// LogInvalidations enables logging of invalidation events
	LogInvalidations bool

	// LogKeyErrors enables logging of key derivation failures
	LogKeyErrors bool

	// IncludeValues determines whether cached values are included in hit logs
	IncludeValues bool

	// MaxValueLength limits the length of values included in logs
	MaxValueLength int
}

// NewDefaultLoggingConfig creates a logging configuration that logs every event
func NewDefaultLoggingConfig(level LogLevel) *LoggingConfig {
	return &LoggingConfig{
		Logger:           NewDefaultLogger(level),
		LogHits:          true,
		LogMisses:        true,
		LogInvalidations: true,
		LogKeyErrors:     true,
		MaxValueLength:   100,
	}
}

// LoggingHooks creates hooks that turn memoization events into log lines
func LoggingHooks(config *LoggingConfig) *Hooks {
	hooks := &Hooks{}
	if config == nil || config.Logger == nil {
		return hooks
	}
	logger := config.Logger

	if config.LogHits {
		hooks.AddOnHit(func(_ context.Context, key string, value any, args []any) {
			fields := []Field{F("key", key), F("event", "cache_hit"), F("args_count", len(args))}
			if config.IncludeValues {
				fields = append(fields, F("value", truncateValue(fmt.Sprintf("%v", value), config.MaxValueLength)))
			}
			logger.Debug("Cache hit", fields...)
		})
	}

	if config.LogMisses {
		hooks.AddOnMiss(func(_ context.Context, key string, args []any) {
			logger.Info("Cache miss", F("key", key), F("event", "cache_miss"), F("args_count", len(args)))
		})
	}

	if config.LogInvalidations {
		hooks.AddOnInvalidate(func(_ context.Context, key string, _ []any) {
			logger.Info("Cache invalidation", F("key", key), F("event", "cache_invalidate"))
		})
	}

	if config.LogKeyErrors {
		hooks.AddOnKeyError(func(_ context.Context, function string, err error, _ []any) {
			logger.Warn("Cache key derivation failed", F("function", function), F("event", "key_error"), F("error", err))
		})
	}

	return hooks
}

// LoggingHookBuilder provides a fluent interface for creating logging hooks
type LoggingHookBuilder struct {
	config *LoggingConfig
}

// NewLoggingHookBuilder creates a new logging hook builder
func NewLoggingHookBuilder() *LoggingHookBuilder {
	return &LoggingHookBuilder{
		config: &LoggingConfig{
			Logger:         NewNoOpLogger(),
			MaxValueLength: 100,
		},
	}
}

// WithLogger sets the logger to use
func (lhb *LoggingHookBuilder) WithLogger(logger Logger) *LoggingHookBuilder {
	lhb.config.Logger = logger
	return lhb
}

// WithLevel sets the logging level (creates a default logger)
func (lhb *LoggingHookBuilder) WithLevel(level LogLevel) *LoggingHookBuilder {
	lhb.config.Logger = NewDefaultLogger(level)
	return lhb
}

// EnableHitLogging enables cache hit logging
func (lhb *LoggingHookBuilder) EnableHitLogging() *LoggingHookBuilder {
	lhb.config.LogHits = true
	return lhb
}

// EnableMissLogging enables cache miss logging
func (lhb *LoggingHookBuilder) EnableMissLogging() *LoggingHookBuilder {
	lhb.config.LogMisses = true
	return lhb
}

// EnableInvalidationLogging enables invalidation logging
func (lhb *LoggingHookBuilder) EnableInvalidationLogging() *LoggingHookBuilder {
	lhb.config.LogInvalidations = true
	return lhb
}

// EnableKeyErrorLogging enables logging of key derivation failures
func (lhb *LoggingHookBuilder) EnableKeyErrorLogging() *LoggingHookBuilder {
	lhb.config.LogKeyErrors = true
	return lhb
}

// EnableAllLogging enables all types of event logging
func (lhb *LoggingHookBuilder) EnableAllLogging() *LoggingHookBuilder {
	lhb.config.LogHits = true
	lhb.config.LogMisses = true
	lhb.config.LogInvalidations = true
	lhb.config.LogKeyErrors = true
	return lhb
}

// IncludeValues enables including cached values in hit logs
func (lhb *LoggingHookBuilder) IncludeValues(maxLength int) *LoggingHookBuilder {
	lhb.config.IncludeValues = true
	lhb.config.MaxValueLength = maxLength
	return lhb
}

// Build creates the hooks configured by this builder
func (lhb *LoggingHookBuilder) Build() *Hooks {
	return LoggingHooks(lhb.config)
}

func truncateValue(value string, maxLength int) string {
	if maxLength <= 3 || len(value) <= maxLength {
		return value
	}
	return value[:maxLength-3] + "..."
}
