package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey string

// CycleIDContextKey is the context key holding the collection cycle ID.
const CycleIDContextKey contextKey = "cycle_id"

// WithCycleID returns ctx carrying cycleID.
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, CycleIDContextKey, cycleID)
}

// GetCycleID returns the collection cycle ID in ctx, or "".
func GetCycleID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(CycleIDContextKey).(string)
	return id
}

// GenerateCycleID creates a new unique collection cycle ID using UUID v4
func GenerateCycleID() string {
	return uuid.New().String()
}

// EnsureCycleID ensures the context has a cycle ID, generating one if needed
func EnsureCycleID(ctx context.Context) context.Context {
	if GetCycleID(ctx) == "" {
		return WithCycleID(ctx, GenerateCycleID())
	}
	return ctx
}

// LoggerOrDefault returns logger, or the global logger when nil.
func LoggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return GetLogger()
	}
	return logger
}

// WithComponent creates a logger with a component field
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return LoggerOrDefault(logger).With("component", component)
}
