package metrics

import (
	"fmt"
	"log/slog"
	"strconv"

	apperrors "optchain/internal/errors"
	"optchain/internal/infrastructure"
)

// Registry resolves a metric name to a handle. A nil handle means the
// metric is not available.
type Registry interface {
	Lookup(name string) any
}

// Adder is implemented by counter-like handles.
type Adder interface {
	Add(v float64)
}

// Setter is implemented by gauge-like handles.
type Setter interface {
	Set(v float64)
}

// Labeled is implemented by handles that must be bound to label values
// before use.
type Labeled interface {
	With(labels map[string]string) (any, error)
}

// Tracker reports domain events to an optional registry. Every method is
// safe on a nil Tracker and never propagates a failure.
type Tracker struct {
	handles map[Kind]any
	logger  *slog.Logger
}

// NewTracker resolves a handle for every Definition once. A nil registry
// yields a tracker that does nothing.
func NewTracker(reg Registry, logger *slog.Logger) *Tracker {
	t := &Tracker{
		handles: make(map[Kind]any, len(Definitions)),
		logger:  infrastructure.WithComponent(infrastructure.LoggerOrDefault(logger), "metrics"),
	}
	if reg == nil {
		return t
	}
	for _, d := range Definitions {
		if h := reg.Lookup(d.Name); h != nil {
			t.handles[d.Kind] = h
		}
	}
	return t
}

// Enabled reports whether any metric handle was resolved.
func (t *Tracker) Enabled() bool {
	return t != nil && len(t.handles) > 0
}

// Inc adds amount to the counter for kind.
func (t *Tracker) Inc(kind Kind, amount float64, labels map[string]string) {
	t.apply(kind, labels, "inc", func(h any) bool {
		a, ok := h.(Adder)
		if ok {
			a.Add(amount)
		}
		return ok
	})
}

// Set sets the gauge for kind to value.
func (t *Tracker) Set(kind Kind, value float64, labels map[string]string) {
	t.apply(kind, labels, "set", func(h any) bool {
		s, ok := h.(Setter)
		if ok {
			s.Set(value)
		}
		return ok
	})
}

func (t *Tracker) apply(kind Kind, labels map[string]string, op string, fn func(h any) bool) {
	if t == nil {
		return
	}
	h, ok := t.handles[kind]
	if !ok {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			t.debug(kind, op, apperrors.NewMetricsError(fmt.Sprintf("metric %s panicked: %v", op, p), nil))
		}
	}()

	if lh, ok := h.(Labeled); ok && labels != nil {
		child, err := lh.With(labels)
		if err != nil {
			t.debug(kind, op, apperrors.NewMetricsError("label binding failed", err))
			return
		}
		h = child
	}

	// A handle without the capability is tolerated silently.
	fn(h)
}

func (t *Tracker) debug(kind Kind, op string, err error) {
	t.logger.Debug("metric update failed",
		slog.String("metric", kind.String()),
		slog.String("op", op),
		slog.String("error", err.Error()))
}

// RecordRowWritten counts one row appended to a primary chain file.
func (t *Tracker) RecordRowWritten(index, expiryCode string) {
	t.Inc(RowsWritten, 1, map[string]string{"index": index, "expiry_code": expiryCode})
}

// RecordBatchFlush counts one batched append of rows rows.
func (t *Tracker) RecordBatchFlush(index string, rows int) {
	labels := map[string]string{"index": index}
	t.Inc(BatchFlushes, 1, labels)
	t.Inc(BatchRows, float64(rows), labels)
}

// RecordDuplicateSuppressed counts one row skipped as already stored.
func (t *Tracker) RecordDuplicateSuppressed(index string) {
	t.Inc(DuplicatesSuppressed, 1, map[string]string{"index": index})
}

// RecordJunkFiltered counts one row diverted as junk.
func (t *Tracker) RecordJunkFiltered(index, reason string) {
	t.Inc(JunkFiltered, 1, map[string]string{"index": index, "reason": reason})
}

// RecordQuarantineWrite counts rows appended to a quarantine file.
func (t *Tracker) RecordQuarantineWrite(index string, rows int) {
	t.Inc(QuarantineWrites, float64(rows), map[string]string{"index": index})
}

// RecordOverviewWrite counts one overview row.
func (t *Tracker) RecordOverviewWrite(index string) {
	t.Inc(OverviewWrites, 1, map[string]string{"index": index})
}

// RecordAggregationUpdate counts one aggregation bookkeeping update.
func (t *Tracker) RecordAggregationUpdate(index, expiryCode string) {
	t.Inc(AggregationUpdates, 1, map[string]string{"index": index, "expiry_code": expiryCode})
}

// UpdateExpiryDailyStats publishes the number of rows stored for an
// index, trading date and expiry code.
func (t *Tracker) UpdateExpiryDailyStats(index, date, expiryCode string, rows int) {
	t.Set(ExpiryDailyRows, float64(rows), map[string]string{
		"index":       index,
		"date":        date,
		"expiry_code": expiryCode,
	})
}

// checkLabels rejects label sets whose keys differ from the definition.
func checkLabels(keys []string, labels map[string]string) error {
	if len(labels) != len(keys) {
		return fmt.Errorf("expected %d labels, got %d", len(keys), len(labels))
	}
	for _, k := range keys {
		if _, ok := labels[k]; !ok {
			return fmt.Errorf("missing label %s", strconv.Quote(k))
		}
	}
	return nil
}
