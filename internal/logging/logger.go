// Package logging provides the structured, leveled logger used across assetplug.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	clog "github.com/charmbracelet/log"
)

// Level represents the severity level of a log message.
type Level int

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() clog.Level {
	switch l {
	case LevelDebug:
		return clog.DebugLevel
	case LevelWarn:
		return clog.WarnLevel
	case LevelError:
		return clog.ErrorLevel
	default:
		return clog.InfoLevel
	}
}

// ParseLevel parses a level name. Matching is case-insensitive and
// "warning" is accepted for LevelWarn.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Format selects how records are rendered.
type Format string

const (
	// FormatText renders human readable key=value lines.
	FormatText Format = "text"
	// FormatJSON renders one JSON object per line.
	FormatJSON Format = "json"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q", s)
	}
}

// Config configures the logger.
type Config struct {
	// Level is the minimum log level to output.
	Level Level
	// Format selects text or JSON output.
	Format Format
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Prefix is prepended to all log messages.
	Prefix string
	// Timestamps enables the time field on every record.
	Timestamps bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     os.Stderr,
		Prefix:     "assetplug",
		Timestamps: true,
	}
}

// Logger provides structured logging. Messages take alternating key/value
// pairs after the message:
//
//	logger.Info("plugin loaded", "name", name, "version", version)
type Logger struct {
	mu       sync.Mutex
	base     *clog.Logger
	level    Level
	disabled bool
}

// New creates a new logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	formatter := clog.TextFormatter
	if cfg.Format == FormatJSON {
		formatter = clog.JSONFormatter
	}

	base := clog.NewWithOptions(cfg.Output, clog.Options{
		Level:           cfg.Level.charm(),
		Prefix:          cfg.Prefix,
		ReportTimestamp: cfg.Timestamps,
		Formatter:       formatter,
	})

	return &Logger{
		base:  base,
		level: cfg.Level,
	}
}

// WithField returns a new logger with the given field added.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.with(key, value)
}

// WithFields returns a new logger with the given fields added.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	keyvals := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		keyvals = append(keyvals, k, v)
	}
	return l.with(keyvals...)
}

// WithComponent returns a new logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

func (l *Logger) with(keyvals ...any) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	return &Logger{
		base:     l.base.With(keyvals...),
		level:    l.level,
		disabled: l.disabled,
	}
}

// Level returns the minimum log level.
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.base.SetLevel(level.charm())
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base.SetOutput(w)
}

// SetFormat switches between text and JSON output.
func (l *Logger) SetFormat(f Format) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f == FormatJSON {
		l.base.SetFormatter(clog.JSONFormatter)
		return
	}
	l.base.SetFormatter(clog.TextFormatter)
}

// Disable disables all logging.
func (l *Logger) Disable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disabled = true
}

// Enable enables logging.
func (l *Logger) Enable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disabled = false
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, keyvals ...any) {
	l.log(LevelDebug, msg, keyvals...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, keyvals ...any) {
	l.log(LevelInfo, msg, keyvals...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, keyvals ...any) {
	l.log(LevelWarn, msg, keyvals...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, keyvals ...any) {
	l.log(LevelError, msg, keyvals...)
}

func (l *Logger) log(level Level, msg string, keyvals ...any) {
	if l == nil {
		return
	}

	l.mu.Lock()
	disabled := l.disabled || level < l.level
	base := l.base
	l.mu.Unlock()

	if disabled || base == nil {
		return
	}

	switch level {
	case LevelDebug:
		base.Debug(msg, keyvals...)
	case LevelInfo:
		base.Info(msg, keyvals...)
	case LevelWarn:
		base.Warn(msg, keyvals...)
	default:
		base.Error(msg, keyvals...)
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{base: clog.New(io.Discard), disabled: true}
}

var (
	defaultLogger     *Logger
	defaultLoggerOnce sync.Once
	defaultLoggerMu   sync.RWMutex
)

// Default returns the process-wide logger.
// Creates a logger from DefaultConfig on first call if not set.
func Default() *Logger {
	defaultLoggerOnce.Do(func() {
		defaultLoggerMu.Lock()
		if defaultLogger == nil {
			defaultLogger = New(DefaultConfig())
		}
		defaultLoggerMu.Unlock()
	})

	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
// Should be called early in application startup.
func SetDefault(l *Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = l
}
