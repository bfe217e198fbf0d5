package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"optchain/internal/config"
	apperrors "optchain/internal/errors"
	"optchain/internal/exporter"
	"optchain/internal/expiry"
	"optchain/internal/files"
	"optchain/internal/metrics"
	"optchain/internal/provider"
	"optchain/internal/shared/testutil"
	"optchain/internal/sink"
	"optchain/internal/transform"
)

var cycleTime = time.Date(2024, 1, 1, 10, 0, 0, 0, config.MarketLocation())

type fakeProvider struct {
	prices   map[string]float64
	expiries map[string][]time.Time
	quotes   map[string]map[string]transform.Quote
	quoteErr error
}

func (f *fakeProvider) Instruments(context.Context) ([]expiry.Instrument, error) {
	return nil, nil
}

func (f *fakeProvider) ExpiryDates(_ context.Context, index string) ([]time.Time, error) {
	return f.expiries[index], nil
}

func (f *fakeProvider) IndexPrice(_ context.Context, index string) (float64, error) {
	p, ok := f.prices[index]
	if !ok {
		return 0, apperrors.NewUpstreamError("no price", nil)
	}
	return p, nil
}

func (f *fakeProvider) Quotes(_ context.Context, index string, _ time.Time) (provider.Chain, error) {
	if f.quoteErr != nil {
		return provider.Chain{}, f.quoteErr
	}
	return provider.Chain{Timestamp: cycleTime, Quotes: f.quotes[index]}, nil
}

type recordingWriter struct {
	mu    sync.Mutex
	snaps []sink.Snapshot
	err   error
}

func (w *recordingWriter) WriteChain(_ context.Context, snap sink.Snapshot) (sink.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snaps = append(w.snaps, snap)
	return sink.Result{Written: len(snap.Offsets)}, w.err
}

func chainQuotes(prefix string, strikes ...float64) map[string]transform.Quote {
	out := make(map[string]transform.Quote)
	for _, k := range strikes {
		for _, side := range []string{"CE", "PE"} {
			sym := prefix + transform.ParseOffsetLabel(int(k)) + side
			out[sym] = transform.Quote{"strike": k, "option_type": side, "ltp": 10.0}
		}
	}
	return out
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		prices: map[string]float64{"NIFTY": 18012.35, "BANKNIFTY": 48333},
		expiries: map[string][]time.Time{
			"NIFTY": {
				time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC),
			},
			"BANKNIFTY": {time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
		},
		quotes: map[string]map[string]transform.Quote{
			"NIFTY":     chainQuotes("NIFTY", 17950, 18000, 18050),
			"BANKNIFTY": chainQuotes("BANKNIFTY", 48200, 48300, 48400),
		},
	}
}

func newTestCollector(t *testing.T, p provider.Provider, w Writer, indices ...string) (*Collector, *tracetest.SpanRecorder) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	resolver := expiry.NewResolver(expiry.WithLogger(logger), expiry.WithClock(func() time.Time { return cycleTime }))
	c := New(p, resolver, w, Options{
		Indices:     indices,
		OffsetRange: 1,
		MaxExpiries: 2,
		Tracer:      tp.Tracer("test"),
		Logger:      logger,
		Now:         func() time.Time { return cycleTime },
	})
	return c, recorder
}

func TestOffsets(t *testing.T) {
	assert.Equal(t, []int{0}, Offsets(0))
	assert.Equal(t, []int{-2, -1, 0, 1, 2}, Offsets(2))
}

func TestCollector_RunCycle(t *testing.T) {
	w := &recordingWriter{}
	c, spans := newTestCollector(t, newFakeProvider(), w, "nifty")

	report, err := c.RunCycle(context.Background(), "nifty")
	require.NoError(t, err)

	assert.Equal(t, "NIFTY", report.Index)
	assert.NotEmpty(t, report.CycleID)
	assert.Equal(t, 18000.0, report.ATM)
	assert.Equal(t, string(expiry.SourceDirect), report.ExpirySource)
	assert.Equal(t, []string{"2024-01-04", "2024-01-11"}, report.Expiries)
	assert.Equal(t, 6, report.Written)

	require.Len(t, w.snaps, 2)
	snap := w.snaps[0]
	assert.Equal(t, 50.0, snap.Interval)
	assert.Equal(t, []int{-1, 0, 1}, snap.Offsets)
	assert.Len(t, snap.Groups, 3)
	assert.Equal(t, 3, snap.Requested.Len())
	assert.True(t, snap.Timestamp.Equal(cycleTime))

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "collector.cycle", ended[0].Name())

	assert.Equal(t, report, c.LastReports()["NIFTY"])
}

func TestCollector_RunCycleUsesNearestExpiries(t *testing.T) {
	p := newFakeProvider()
	p.expiries["NIFTY"] = []time.Time{
		time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
	}
	w := &recordingWriter{}
	c, _ := newTestCollector(t, p, w, "NIFTY")

	report, err := c.RunCycle(context.Background(), "NIFTY")
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-04", "2024-01-11"}, report.Expiries)
	require.Len(t, w.snaps, 2)
	assert.Equal(t, 4, w.snaps[0].Expiry.Day())
}

func TestCollector_DegradesOnUpstreamFailures(t *testing.T) {
	t.Run("no index price", func(t *testing.T) {
		w := &recordingWriter{}
		c, _ := newTestCollector(t, newFakeProvider(), w, "SENSEX")

		report, err := c.RunCycle(context.Background(), "SENSEX")
		require.NoError(t, err)
		assert.Equal(t, "no_index_price", report.Skipped)
		assert.Empty(t, w.snaps)
	})

	t.Run("no expiries", func(t *testing.T) {
		p := newFakeProvider()
		p.prices["FINNIFTY"] = 20000
		w := &recordingWriter{}
		c, _ := newTestCollector(t, p, w, "FINNIFTY")

		report, err := c.RunCycle(context.Background(), "FINNIFTY")
		require.NoError(t, err)
		assert.Equal(t, "no_expiries", report.Skipped)
		assert.Equal(t, string(expiry.SourceEmpty), report.ExpirySource)
	})

	t.Run("quote failure", func(t *testing.T) {
		p := newFakeProvider()
		p.quoteErr = errors.New("timeout")
		w := &recordingWriter{}
		c, _ := newTestCollector(t, p, w, "NIFTY")

		report, err := c.RunCycle(context.Background(), "NIFTY")
		require.NoError(t, err)
		assert.Empty(t, w.snaps)
		assert.Zero(t, report.Written)
	})
}

func TestCollector_StorageErrorReturned(t *testing.T) {
	w := &recordingWriter{err: apperrors.NewStorageError("disk full", nil)}
	c, _ := newTestCollector(t, newFakeProvider(), w, "NIFTY", "BANKNIFTY")

	reports, err := c.RunAll(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))

	// Both indices still ran.
	require.Len(t, reports, 2)
	assert.NotEmpty(t, reports[0].Error)
	assert.NotEmpty(t, reports[1].Error)
	assert.Len(t, w.snaps, 3)
}

func TestCollector_RunAllWritesDisjointFiles(t *testing.T) {
	dir := t.TempDir()
	logger, _ := testutil.NewTestLogger(t)
	paths := &config.Paths{BaseDir: dir}

	pr, err := metrics.NewPromRegistry(prometheus.NewRegistry(), "optchain")
	require.NoError(t, err)
	writer := exporter.NewCSVWriter(paths, logger)
	manager := files.NewManager(paths, logger)
	s := sink.NewCSVSink(writer, manager, metrics.NewTracker(pr, logger), logger)

	c, _ := newTestCollector(t, newFakeProvider(), s, "NIFTY", "BANKNIFTY")

	reports, err := c.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 6, reports[0].Written)
	assert.Equal(t, 3, reports[1].Written)

	assert.Equal(t, []string{"W0_+1.csv", "W0_-1.csv", "W0_ATM.csv", "W1_+1.csv", "W1_-1.csv", "W1_ATM.csv"},
		manager.ListFilesInDir("NIFTY/2024-01-01", ""))
	assert.Equal(t, []string{"W0_+1.csv", "W0_-1.csv", "W0_ATM.csv"},
		manager.ListFilesInDir("BANKNIFTY/2024-01-01", ""))

	// Same snapshot timestamp: the second round only finds duplicates.
	again, err := c.RunAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again[0].Written)
	assert.Equal(t, 6, again[0].Duplicates)
}

func TestCollector_RunStopsOnCancel(t *testing.T) {
	w := &recordingWriter{}
	c, _ := newTestCollector(t, newFakeProvider(), w, "NIFTY")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, time.Hour) }()

	require.Eventually(t, func() bool {
		_, ok := c.LastReports()["NIFTY"]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
