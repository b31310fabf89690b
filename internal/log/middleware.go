package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

var loggerKey = contextKey{}

// Middleware injects the logger into each request's context so deeper
// layers can log without carrying a logger through every signature.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), loggerKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the logger injected by Middleware, or a default
// logger when the context carries none.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: ComponentApp}
}

// StructuredLogger emits the fixed-shape events the HTTP layer records:
// one line per finished request and one per accepted mutation.
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a structured logger wrapper.
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPEnd logs the completion of an HTTP request.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP, requestID string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery).
		WithHTTPResponse(statusCode, durationMs).
		WithClientIP(clientIP).
		WithRequestID(requestID).
		WithComponent(ComponentHTTP)

	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogMutation logs an accepted write against the ledger.
func (sl *StructuredLogger) LogMutation(ctx context.Context, userID, entity, verb string) {
	fields := NewFields().
		WithUser(userID).
		WithMutation(entity, verb).
		WithComponent(ComponentLedger)

	sl.logger.Logger.InfoContext(ctx, "Mutation applied", fields.ToSlice()...)
}
