package testutil

import (
	"context"
	"log/slog"
	"testing"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("test message", slog.String("key", "value"))
		logger.Error("error message", slog.Int("code", 500))

		if got := len(handler.GetRecords()); got != 2 {
			t.Errorf("Expected 2 records, got %d", got)
		}
		if !handler.ContainsMessage("test message") {
			t.Error("Expected to find 'test message'")
		}
		if !handler.ContainsAttr("key", "value") {
			t.Error("Expected to find attribute key=value")
		}
	})

	t.Run("child loggers share the buffer", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With("component", "resolver").Warn("child warning")

		AssertLogContains(t, handler, slog.LevelWarn, "child warning")
		if !handler.ContainsAttr("component", "resolver") {
			t.Error("Expected WithAttrs attribute to be captured")
		}
	})

	t.Run("counts by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Warn("repeat")
		logger.Warn("repeat")
		logger.Info("repeat")

		if got := handler.CountMessage(slog.LevelWarn, "repeat"); got != 2 {
			t.Errorf("Expected 2 warn records, got %d", got)
		}

		handler.Clear()
		if len(handler.GetRecords()) != 0 {
			t.Error("Expected Clear to drop records")
		}
		AssertNoErrors(t, handler)
	})
}

func TestEventRecorder(t *testing.T) {
	var rec EventRecorder
	attrs := map[string]any{"index": "NIFTY"}

	rec.Emit(context.Background(), "a", attrs)
	rec.Emit(context.Background(), "b", nil)
	attrs["index"] = "mutated"

	if got := len(rec.Events()); got != 2 {
		t.Fatalf("Expected 2 events, got %d", got)
	}
	named := rec.Named("a")
	if len(named) != 1 || named[0].Attrs["index"] != "NIFTY" {
		t.Errorf("unexpected events: %+v", named)
	}
}
