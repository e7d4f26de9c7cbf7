package logger

import (
	"context"
	"log/slog"
)

// Context keys for structured logging
type contextKey string

const (
	ContextKeyPeerID contextKey = "peer_id"
	ContextKeyTaskID contextKey = "task_id"
)

// WithContext returns a logger with common fields extracted from ctx.
func WithContext(ctx context.Context) *slog.Logger {
	l := Slog()

	if peerID := ctx.Value(ContextKeyPeerID); peerID != nil {
		l = l.With("peer_id", peerID)
	}
	if taskID := ctx.Value(ContextKeyTaskID); taskID != nil {
		l = l.With("task_id", taskID)
	}

	return l
}

// InfoContext logs an info message with context fields.
func InfoContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

// ErrorContext logs an error with context fields.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}

// DebugContext logs debug info with context fields.
func DebugContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}
