// Package log configures structured logging for the haybase binaries
// and carries the request-scoped logger through the HTTP stack.
package log

import (
	"log/slog"
	"os"
)

// Logger wraps slog with a component name that is stamped onto every
// record, so logs from the server, the worker, and the admin tool can
// be told apart in a shared sink.
type Logger struct {
	*slog.Logger
	component string
}

// Config holds logger configuration.
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

// DefaultConfig returns the configuration used when a binary does not
// override anything: text handler on stdout at info level.
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
	}
}

// New creates a logger from the given configuration.
func New(config Config) *Logger {
	component := config.Component
	if component == "" {
		component = ComponentApp
	}

	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.Level,
		})
	}

	return &Logger{
		Logger:    slog.New(handler),
		component: component,
	}
}

// Info logs at info level with the component attached.
func (l *Logger) Info(msg string, args ...any) {
	l.Logger.Info(msg, append(args, FieldComponent, l.component)...)
}

// Warn logs at warn level with the component attached.
func (l *Logger) Warn(msg string, args ...any) {
	l.Logger.Warn(msg, append(args, FieldComponent, l.component)...)
}

// Error logs at error level with the component attached.
func (l *Logger) Error(msg string, args ...any) {
	l.Logger.Error(msg, append(args, FieldComponent, l.component)...)
}

// SetDefault installs the logger's handler as the process-wide slog
// default, so packages logging through slog directly share one sink.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
