// Package events carries structured domain events (for example expiry
// fabrication) to external consumers such as log-based alerting and
// trace backends.
package events

import (
	"context"
	"log/slog"
	"sort"

	"optchain/internal/infrastructure"
)

// Event names
const (
	ExpiriesFabricated = "provider.expiries.fabricated"
)

// Sink receives structured events. Implementations must not block and
// must tolerate a nil or empty attribute map.
type Sink interface {
	Emit(ctx context.Context, name string, attrs map[string]any)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, name string, attrs map[string]any)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, name string, attrs map[string]any) {
	f(ctx, name, attrs)
}

// Nop discards every event.
var Nop Sink = SinkFunc(func(context.Context, string, map[string]any) {})

// LogSink writes each event as a structured log record at info level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log-backed sink; nil logger means the global one.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: infrastructure.LoggerOrDefault(logger)}
}

// Emit implements Sink
func (s *LogSink) Emit(ctx context.Context, name string, attrs map[string]any) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(keys)+1)
	args = append(args, slog.String("event", name))
	for _, k := range keys {
		args = append(args, slog.Any(k, attrs[k]))
	}
	s.logger.InfoContext(ctx, "domain event", args...)
}

// SpanSink records each event on the span active in ctx.
type SpanSink struct{}

// Emit implements Sink
func (SpanSink) Emit(ctx context.Context, name string, attrs map[string]any) {
	infrastructure.AddSpanEvent(ctx, name, attrs)
}

// MultiSink fans an event out to every sink in order.
type MultiSink []Sink

// Emit implements Sink
func (m MultiSink) Emit(ctx context.Context, name string, attrs map[string]any) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, name, attrs)
		}
	}
}
