package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"optchain/internal/config"
	apperrors "optchain/internal/errors"
	"optchain/internal/events"
	"optchain/internal/infrastructure"
)

// InstrumentsFunc returns the provider's instrument master.
type InstrumentsFunc func(ctx context.Context) ([]Instrument, error)

// ExpiryDatesFunc returns authoritative expiry dates for an index.
type ExpiryDatesFunc func(ctx context.Context) ([]time.Time, error)

// ATMFunc returns the current ATM strike for an index.
type ATMFunc func(ctx context.Context, index string) (float64, error)

// Sources groups the collaborator calls used by Resolve. Instruments is
// required; ExpiryDates and ATM are optional.
type Sources struct {
	Instruments InstrumentsFunc
	ExpiryDates ExpiryDatesFunc
	ATM         ATMFunc
}

// Source identifies which path produced a resolution.
type Source string

const (
	SourceCache      Source = "cache"
	SourceDirect     Source = "direct"
	SourceExtracted  Source = "extracted"
	SourceFabricated Source = "fabricated"
	SourceEmpty      Source = "empty"
)

// Resolution is the detailed result of ResolveDetailed.
type Resolution struct {
	Index  string
	Dates  []time.Time
	Source Source
}

// entry is one cached candidate set. It is replaced as a whole, never
// merged.
type entry struct {
	candidates []time.Time
	fetchedAt  time.Time
}

func (e entry) isFresh(now time.Time, ttl time.Duration) bool {
	return !e.fetchedAt.IsZero() && now.Sub(e.fetchedAt) < ttl
}

// Resolver resolves and caches the relevant expiry dates per index.
type Resolver struct {
	mu     sync.RWMutex
	cache  map[string]entry
	flight singleflight.Group

	ttl          time.Duration
	strikeWindow float64
	now          func() time.Time
	logger       *slog.Logger
	sink         events.Sink
	warn         rate.Sometimes
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTL sets how long a cached entry is served without re-fetching.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = infrastructure.LoggerOrDefault(logger)
	}
}

// WithEventSink sets where fabrication events go.
func WithEventSink(sink events.Sink) Option {
	return func(r *Resolver) {
		if sink != nil {
			r.sink = sink
		}
	}
}

// WithStrikeWindow sets the distance from ATM within which instruments
// are considered during extraction.
func WithStrikeWindow(window float64) Option {
	return func(r *Resolver) {
		if window > 0 {
			r.strikeWindow = window
		}
	}
}

// NewResolver creates a resolver with an empty cache.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		cache:        make(map[string]entry),
		ttl:          config.DefaultExpiryTTL,
		strikeWindow: config.DefaultStrikeWindow,
		now:          time.Now,
		logger:       slog.Default(),
		sink:         events.Nop,
		warn:         rate.Sometimes{Interval: config.ExpiryWarnInterval},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = infrastructure.WithComponent(r.logger, "expiry_resolver")
	return r
}

// Resolve returns the relevant expiry dates for index.
func (r *Resolver) Resolve(ctx context.Context, index string, src Sources) []time.Time {
	return r.ResolveDetailed(ctx, index, src).Dates
}

// ResolveDetailed is Resolve plus the path that produced the dates.
// Concurrent calls for the same index share one upstream fetch; calls for
// different indices proceed independently.
func (r *Resolver) ResolveDetailed(ctx context.Context, index string, src Sources) Resolution {
	key := normalizeIndex(index)

	if dates, ok := r.fresh(key); ok {
		return Resolution{Index: key, Dates: dates, Source: SourceCache}
	}

	v, _, _ := r.flight.Do(key, func() (interface{}, error) {
		if dates, ok := r.fresh(key); ok {
			return Resolution{Index: key, Dates: dates, Source: SourceCache}, nil
		}
		return r.refresh(ctx, key, src), nil
	})

	res := v.(Resolution)
	res.Dates = copyDates(res.Dates)
	return res
}

func (r *Resolver) fresh(key string) ([]time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.cache[key]
	if !ok || !e.isFresh(r.now(), r.ttl) {
		return nil, false
	}
	return copyDates(e.candidates), true
}

func (r *Resolver) refresh(ctx context.Context, index string, src Sources) Resolution {
	logger := r.logger.With("index", index)

	if src.ExpiryDates != nil {
		dates, err := r.fetchExpiryDates(ctx, src.ExpiryDates)
		if err != nil {
			logger.DebugContext(ctx, "direct expiry fetch failed", "error", err)
		} else if len(dates) > 0 {
			r.store(index, dates)
			return Resolution{Index: index, Dates: dates, Source: SourceDirect}
		}
	}

	instruments, err := r.fetchInstruments(ctx, src.Instruments)
	if err != nil {
		logger.DebugContext(ctx, "instrument fetch failed", "error", err)
		instruments = nil
	}

	var atm *float64
	if src.ATM != nil {
		strike, err := r.fetchATM(ctx, index, src.ATM)
		if err != nil {
			logger.DebugContext(ctx, "atm lookup failed", "error", err)
		} else {
			atm = &strike
		}
	}

	today := r.now().In(config.MarketLocation())
	dates := Extract(index, instruments, ExtractOptions{
		ATMStrike:    atm,
		StrikeWindow: r.strikeWindow,
		Today:        today,
	})

	switch {
	case len(dates) > 0:
		r.store(index, dates)
		return Resolution{Index: index, Dates: dates, Source: SourceExtracted}

	case len(instruments) > 0:
		dates = Fabricate(today)
		r.warn.Do(func() {
			logger.WarnContext(ctx, "no expiries extractable from instruments, fabricating weekly anchors",
				"instrument_count", len(instruments),
				"fabricated_count", len(dates))
		})
		r.sink.Emit(ctx, events.ExpiriesFabricated, map[string]any{
			"index": index,
			"count": len(dates),
		})
		r.store(index, dates)
		return Resolution{Index: index, Dates: dates, Source: SourceFabricated}

	default:
		r.warn.Do(func() {
			logger.WarnContext(ctx, "no instruments available for expiry resolution")
		})
		r.store(index, nil)
		return Resolution{Index: index, Dates: []time.Time{}, Source: SourceEmpty}
	}
}

func (r *Resolver) store(index string, dates []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[index] = entry{candidates: copyDates(dates), fetchedAt: r.now()}
}

func (r *Resolver) fetchExpiryDates(ctx context.Context, fn ExpiryDatesFunc) (dates []time.Time, err error) {
	defer recoverUpstream("expiry dates fetch", &err)

	dates, err = fn(ctx)
	if err != nil {
		return nil, apperrors.NewUpstreamError("expiry dates fetch failed", err)
	}
	return dates, nil
}

func (r *Resolver) fetchInstruments(ctx context.Context, fn InstrumentsFunc) (instruments []Instrument, err error) {
	if fn == nil {
		return nil, nil
	}
	defer recoverUpstream("instrument fetch", &err)

	instruments, err = fn(ctx)
	if err != nil {
		return nil, apperrors.NewUpstreamError("instrument fetch failed", err)
	}
	return instruments, nil
}

func (r *Resolver) fetchATM(ctx context.Context, index string, fn ATMFunc) (strike float64, err error) {
	defer recoverUpstream("atm lookup", &err)

	strike, err = fn(ctx, index)
	if err != nil {
		return 0, apperrors.NewUpstreamError("atm lookup failed", err).WithContext("index", index)
	}
	return strike, nil
}

func recoverUpstream(op string, err *error) {
	if p := recover(); p != nil {
		*err = apperrors.NewUpstreamError(fmt.Sprintf("%s panicked: %v", op, p), nil)
	}
}

// ListExpiries returns a copy of the cached dates for index, empty if
// nothing has been resolved yet.
func (r *Resolver) ListExpiries(index string) []time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.cache[normalizeIndex(index)]
	if !ok {
		return []time.Time{}
	}
	return copyDates(e.candidates)
}

// Weekly returns the two earliest cached dates, ascending.
func (r *Resolver) Weekly(index string) []time.Time {
	dates := Ascending(r.ListExpiries(index))
	if len(dates) > 2 {
		dates = dates[:2]
	}
	return dates
}

// Monthly returns the last cached date of each calendar month, in month
// order.
func (r *Resolver) Monthly(index string) []time.Time {
	dates := r.ListExpiries(index)

	type month struct {
		year int
		mon  time.Month
	}
	latest := make(map[month]time.Time)
	order := make([]month, 0)

	for _, d := range dates {
		k := month{d.Year(), d.Month()}
		cur, ok := latest[k]
		if !ok {
			order = append(order, k)
		}
		if !ok || d.After(cur) {
			latest[k] = d
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].year != order[j].year {
			return order[i].year < order[j].year
		}
		return order[i].mon < order[j].mon
	})

	out := make([]time.Time, 0, len(order))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out
}

func normalizeIndex(index string) string {
	return strings.ToUpper(strings.TrimSpace(index))
}

// Ascending returns a sorted copy of dates. Direct provider dates are
// cached in the order the provider gave them.
func Ascending(dates []time.Time) []time.Time {
	out := copyDates(dates)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func copyDates(dates []time.Time) []time.Time {
	out := make([]time.Time, len(dates))
	copy(out, dates)
	return out
}
