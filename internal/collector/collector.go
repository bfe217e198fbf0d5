package collector

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"optchain/internal/config"
	apperrors "optchain/internal/errors"
	"optchain/internal/expiry"
	"optchain/internal/infrastructure"
	"optchain/internal/provider"
	"optchain/internal/sink"
	"optchain/internal/strikes"
	"optchain/internal/transform"
)

// Writer persists one chain snapshot.
type Writer interface {
	WriteChain(ctx context.Context, snap sink.Snapshot) (sink.Result, error)
}

// Options configures a Collector.
type Options struct {
	Indices     []string
	OffsetRange int
	// MaxExpiries caps how many resolved expiries are collected per
	// index. Zero collects all of them.
	MaxExpiries int
	Tracer      trace.Tracer
	Logger      *slog.Logger
	Now         func() time.Time
}

// Collector runs collection cycles: resolve expiries, fetch quotes, group
// them by strike and hand them to the writer.
type Collector struct {
	provider provider.Provider
	resolver *expiry.Resolver
	writer   Writer

	indices     []string
	offsetRange int
	maxExpiries int
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time

	mu     sync.RWMutex
	status map[string]CycleReport
}

// New creates a collector.
func New(p provider.Provider, resolver *expiry.Resolver, writer Writer, opts Options) *Collector {
	c := &Collector{
		provider:    p,
		resolver:    resolver,
		writer:      writer,
		offsetRange: opts.OffsetRange,
		maxExpiries: opts.MaxExpiries,
		tracer:      opts.Tracer,
		logger:      infrastructure.WithComponent(infrastructure.LoggerOrDefault(opts.Logger), "collector"),
		now:         opts.Now,
		status:      make(map[string]CycleReport),
	}
	for _, idx := range opts.Indices {
		c.indices = append(c.indices, strings.ToUpper(strings.TrimSpace(idx)))
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(infrastructure.ServiceName)
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// CycleReport summarizes one RunCycle call.
type CycleReport struct {
	Index        string        `json:"index"`
	CycleID      string        `json:"cycle_id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	ATM          float64       `json:"atm"`
	ExpirySource string        `json:"expiry_source"`
	Expiries     []string      `json:"expiries"`
	Written      int           `json:"written"`
	Duplicates   int           `json:"duplicates"`
	Quarantined  int           `json:"quarantined"`
	Skipped      string        `json:"skipped,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Offsets returns the signed strike offsets -n..n.
func Offsets(n int) []int {
	out := make([]int, 0, 2*n+1)
	for k := -n; k <= n; k++ {
		out = append(out, k)
	}
	return out
}

// RunCycle collects every resolved expiry of index once. Upstream and
// parsing failures are logged and end the cycle early without an error;
// storage failures are returned.
func (c *Collector) RunCycle(ctx context.Context, index string) (report CycleReport, err error) {
	index = strings.ToUpper(strings.TrimSpace(index))
	ctx = infrastructure.EnsureCycleID(ctx)
	ctx, span := infrastructure.StartCycleSpan(ctx, c.tracer, index)
	defer span.End()

	started := c.now()
	report = CycleReport{Index: index, CycleID: infrastructure.GetCycleID(ctx), StartedAt: started}
	logger := c.logger.With(slog.String("index", index))

	defer func() {
		report.Duration = c.now().Sub(started)
		if err != nil {
			report.Error = err.Error()
			infrastructure.RecordError(ctx, err)
		}
		c.record(report)
		logger.InfoContext(ctx, "Cycle finished",
			slog.Int("written", report.Written),
			slog.Int("duplicates", report.Duplicates),
			slog.Int("quarantined", report.Quarantined),
			slog.String("skipped", report.Skipped),
			slog.Duration("duration", report.Duration))
	}()

	price, perr := c.provider.IndexPrice(ctx, index)
	if perr != nil {
		if !apperrors.IsDegradable(perr) {
			perr = apperrors.NewUpstreamError("index price lookup failed", perr)
		}
		logger.WarnContext(ctx, "Skipping cycle, no index price", slog.String("error", perr.Error()))
		report.Skipped = "no_index_price"
		return report, nil
	}

	interval := config.StrikeIntervalFor(index)
	atm := transform.ComputeATMStrike(index, price)
	report.ATM = atm

	resolution := c.resolver.ResolveDetailed(ctx, index, expiry.Sources{
		Instruments: c.provider.Instruments,
		ExpiryDates: func(ctx context.Context) ([]time.Time, error) {
			return c.provider.ExpiryDates(ctx, index)
		},
		ATM: func(context.Context, string) (float64, error) { return atm, nil },
	})
	report.ExpirySource = string(resolution.Source)

	dates := expiry.Ascending(resolution.Dates)
	if c.maxExpiries > 0 && len(dates) > c.maxExpiries {
		dates = dates[:c.maxExpiries]
	}
	if len(dates) == 0 {
		logger.WarnContext(ctx, "Skipping cycle, no expiries resolved")
		report.Skipped = "no_expiries"
		return report, nil
	}

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"atm":           atm,
		"expiry_source": string(resolution.Source),
		"expiry_count":  len(dates),
	})

	offsets := Offsets(c.offsetRange)
	requestedStrikes := make([]float64, 0, len(offsets))
	for _, k := range offsets {
		requestedStrikes = append(requestedStrikes, atm+float64(k)*interval)
	}
	requested := strikes.Build(requestedStrikes)

	var storageErrs []error
	for _, exp := range dates {
		expKey := transform.FormatDateKey(exp)
		report.Expiries = append(report.Expiries, expKey)

		chain, qerr := c.provider.Quotes(ctx, index, exp)
		if qerr != nil {
			logger.WarnContext(ctx, "Quote fetch failed",
				slog.String("expiry", expKey),
				slog.String("error", qerr.Error()))
			continue
		}

		ts := chain.Timestamp
		if ts.IsZero() {
			ts = c.now()
		}

		groups := transform.GroupByStrike(chain.Quotes)
		realized := transform.SortedStrikes(groups)
		diff := requested.Diff(realized)
		if len(diff.Missing) > 0 {
			desc := requested.Describe(6)
			logger.DebugContext(ctx, "Requested strikes missing from chain",
				slog.String("expiry", expKey),
				slog.Any("missing", diff.Missing),
				slog.Int("extra", len(diff.Extra)),
				slog.Float64("coverage", requested.RealizedCoverage(realized)),
				slog.Any("ladder", desc.Sample))
		}

		res, werr := c.writer.WriteChain(ctx, sink.Snapshot{
			Index:      index,
			Timestamp:  ts,
			Expiry:     exp,
			IndexPrice: price,
			ATM:        atm,
			Interval:   interval,
			Offsets:    offsets,
			Groups:     groups,
			Requested:  requested,
		})
		report.Written += res.Written
		report.Duplicates += res.Duplicates
		report.Quarantined += res.Quarantined

		if werr != nil {
			logger.ErrorContext(ctx, "Chain write failed",
				slog.String("expiry", expKey),
				slog.String("error", werr.Error()))
			storageErrs = append(storageErrs, werr)
		}
	}

	if len(storageErrs) > 0 {
		return report, storageErrs[0]
	}
	return report, nil
}

// RunAll runs one cycle for every configured index concurrently. Each
// index writes to its own files. The first storage error is returned
// after every index has finished.
func (c *Collector) RunAll(ctx context.Context) ([]CycleReport, error) {
	reports := make([]CycleReport, len(c.indices))

	var g errgroup.Group
	for i, index := range c.indices {
		g.Go(func() error {
			report, err := c.RunCycle(ctx, index)
			reports[i] = report
			return err
		})
	}

	err := g.Wait()
	return reports, err
}

// Run calls RunAll immediately and then every interval until ctx is
// done. Cycle errors are logged and do not stop the loop.
func (c *Collector) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := c.RunAll(ctx); err != nil {
			c.logger.ErrorContext(ctx, "Collection round failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Collector stopping")
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Collector) record(report CycleReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[report.Index] = report
}

// LastReports returns the most recent report of every index that has run.
func (c *Collector) LastReports() map[string]CycleReport {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]CycleReport, len(c.status))
	for k, v := range c.status {
		out[k] = v
	}
	return out
}

// Indices returns the configured index symbols.
func (c *Collector) Indices() []string {
	return append([]string(nil), c.indices...)
}
