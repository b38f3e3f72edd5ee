// Package logger is the structured logger shared by every module. It wraps
// log/slog: human-readable text in development, JSON everywhere else.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

// Context keys read by WithContext.
const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
)

type Logger struct {
	*slog.Logger
}

func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter picks the handler from env. Development also lowers the level to debug.
func NewWithWriter(env string, w io.Writer) *Logger {
	if strings.EqualFold(env, "development") {
		return &Logger{Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	}
	return &Logger{Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))}
}

func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *Logger) with(attrs ...any) *Logger {
	return &Logger{Logger: l.Logger.With(attrs...)}
}

// WithContext attaches the request and user ids placed on ctx by the HTTP middleware.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	out := l
	if id, _ := ctx.Value(RequestIDKey).(string); id != "" {
		out = out.WithRequestID(id)
	}
	if id, _ := ctx.Value(UserIDKey).(string); id != "" {
		out = out.WithUserID(id)
	}
	return out
}

func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.with(slog.String("request_id", requestID))
}

func (l *Logger) WithUserID(userID string) *Logger {
	return l.with(slog.String("user_id", userID))
}

func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError records the error gin collected for a 5xx response.
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Any("error", err),
		slog.String("client_ip", clientIP),
	)
}

// AuthEvent records a login, refresh or lockout. Failures go out at warn with a reason.
func (l *Logger) AuthEvent(event, username string, success bool, reason string) {
	attrs := []any{
		slog.String("event", event),
		slog.String("username", username),
		slog.Bool("success", success),
	}
	if success {
		l.Info("auth_event", attrs...)
		return
	}
	l.Warn("auth_event", append(attrs, slog.String("reason", reason))...)
}

// Transition records a committed workflow operation.
func (l *Logger) Transition(op string, attrs ...any) {
	l.Info("workflow_transition", append([]any{slog.String("op", op)}, attrs...)...)
}

func (l *Logger) RateLimitExceeded(key, path string) {
	l.Warn("rate_limit_exceeded", slog.String("key", key), slog.String("path", path))
}
