package sink

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"optchain/internal/config"
	"optchain/internal/exporter"
	"optchain/internal/files"
	"optchain/internal/infrastructure"
	"optchain/internal/metrics"
	"optchain/internal/strikes"
	"optchain/internal/transform"
)

// Snapshot is one cycle's chain for an index and expiry.
type Snapshot struct {
	Index      string
	Timestamp  time.Time
	Expiry     time.Time
	IndexPrice float64
	ATM        float64
	Interval   float64
	Offsets    []int
	Groups     map[float64]*transform.StrikeGroup
	// Requested is the ladder the offsets were derived from. Nil skips
	// coverage in the overview row.
	Requested *strikes.Ladder
}

// Result summarizes one WriteChain call.
type Result struct {
	Paths       []string
	Written     int
	Duplicates  int
	Quarantined int
	Overview    bool
}

type aggKey struct {
	index string
	date  string
	code  transform.ExpiryCode
}

// CSVSink writes cleaned chain rows to the CSV store with duplicate
// suppression, junk quarantine, an overview row per cycle and per-day
// aggregation counts. Different indices may be written concurrently; a
// single index must not be.
type CSVSink struct {
	writer    *exporter.CSVWriter
	discovery *files.Discovery
	tracker   *metrics.Tracker
	logger    *slog.Logger

	mu      sync.Mutex
	seen    map[string]map[string]struct{}
	counts  map[aggKey]int
	scanned map[string]struct{}
}

// NewCSVSink creates a sink. tracker may be nil.
func NewCSVSink(writer *exporter.CSVWriter, manager *files.Manager, tracker *metrics.Tracker, logger *slog.Logger) *CSVSink {
	return &CSVSink{
		writer:    writer,
		discovery: files.NewDiscovery(manager),
		tracker:   tracker,
		logger:    infrastructure.WithComponent(infrastructure.LoggerOrDefault(logger), "csv_sink"),
		seen:      make(map[string]map[string]struct{}),
		counts:    make(map[aggKey]int),
		scanned:   make(map[string]struct{}),
	}
}

type pending struct {
	rows [][]string
	keys []string
}

// WriteChain writes one row per requested offset. Storage failures are
// returned after every batch has been attempted.
func (s *CSVSink) WriteChain(ctx context.Context, snap Snapshot) (Result, error) {
	loc := config.MarketLocation()
	ts := snap.Timestamp.In(loc)
	stamp := ts.Format(time.RFC3339)
	date := transform.FormatDateKey(ts)
	expiry := transform.FormatDateKey(snap.Expiry)
	code := transform.DetermineExpiryCode(snap.Expiry, ts)
	dayWidth := transform.ComputeDayWidth(expiry, ts)

	logger := s.logger.With(
		slog.String("index", snap.Index),
		slog.String("expiry", expiry),
		slog.String("expiry_code", string(code)))

	var result Result
	var errs []error

	if err := s.rescan(snap.Index, date); err != nil {
		logger.WarnContext(ctx, "aggregation rescan failed", slog.String("error", err.Error()))
	}

	byStrike := make(map[int64]*transform.StrikeGroup, len(snap.Groups))
	for strike, g := range snap.Groups {
		byStrike[strikes.Key(strike)] = g
	}

	// Expiries sharing a code share files, so rows are keyed by expiry too.
	rowKey := dedupeKey(stamp, expiry)
	batches := make(map[string]*pending)
	var quarantine [][]string

	for _, offset := range snap.Offsets {
		label := transform.ParseOffsetLabel(offset)
		strike := snap.ATM + float64(offset)*snap.Interval
		group := byStrike[strikes.Key(strike)]
		strikeCell := exporter.FormatPrice(strike)

		if reason := classify(group); reason != "" {
			s.tracker.RecordJunkFiltered(snap.Index, reason)
			quarantine = append(quarantine, []string{
				stamp, snap.Index, expiry, string(code), label, strikeCell, reason, payload(group),
			})
			continue
		}

		rel := files.ChainPath(snap.Index, date, code, label)
		dup, err := s.isDuplicate(rel, rowKey)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if dup {
			result.Duplicates++
			s.tracker.RecordDuplicateSuppressed(snap.Index)
			continue
		}

		row := []string{
			stamp, snap.Index, expiry, string(code), label, strikeCell,
			exporter.FormatPrice(snap.ATM), exporter.FormatPrice(snap.IndexPrice),
			strconv.FormatFloat(dayWidth, 'f', 4, 64),
		}
		row = append(row, sideCells(group.CE)...)
		row = append(row, sideCells(group.PE)...)

		b, ok := batches[rel]
		if !ok {
			b = &pending{}
			batches[rel] = b
		}
		b.rows = append(b.rows, row)
		b.keys = append(b.keys, rowKey)
	}

	paths := make([]string, 0, len(batches))
	for rel := range batches {
		paths = append(paths, rel)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		b := batches[rel]
		if err := s.writer.AppendManyRows(rel, b.rows, ChainHeader); err != nil {
			errs = append(errs, err)
			continue
		}
		s.markSeen(rel, b.keys)
		s.tracker.RecordBatchFlush(snap.Index, len(b.rows))
		for range b.rows {
			s.tracker.RecordRowWritten(snap.Index, string(code))
		}
		result.Written += len(b.rows)
		result.Paths = append(result.Paths, rel)
	}

	if result.Written > 0 {
		total := s.addCount(aggKey{snap.Index, date, code}, result.Written)
		s.tracker.RecordAggregationUpdate(snap.Index, string(code))
		s.tracker.UpdateExpiryDailyStats(snap.Index, date, string(code), total)
	}

	if len(quarantine) > 0 {
		rel := path.Join(config.QuarantineSubdir, snap.Index, date+".csv")
		if err := s.writer.AppendManyRows(rel, quarantine, QuarantineHeader); err != nil {
			errs = append(errs, err)
		} else {
			result.Quarantined = len(quarantine)
			s.tracker.RecordQuarantineWrite(snap.Index, len(quarantine))
		}
	}

	written, err := s.writeOverview(snap, stamp, date, expiry, code, dayWidth)
	if err != nil {
		errs = append(errs, err)
	}
	result.Overview = written

	logger.DebugContext(ctx, "Chain written",
		slog.Int("written", result.Written),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("quarantined", result.Quarantined),
		slog.Bool("overview", result.Overview))

	return result, stderrors.Join(errs...)
}

func (s *CSVSink) writeOverview(snap Snapshot, stamp, date, expiry string, code transform.ExpiryCode, dayWidth float64) (bool, error) {
	rel := path.Join(config.OverviewSubdir, snap.Index, date+".csv")
	key := dedupeKey(stamp, expiry)

	dup, err := s.isDuplicate(rel, key)
	if err != nil || dup {
		return false, err
	}

	realized := transform.SortedStrikes(snap.Groups)
	requested, coverage, missing, extra := 0, 0.0, 0, 0
	if snap.Requested != nil {
		diff := snap.Requested.Diff(realized)
		requested = snap.Requested.Len()
		coverage = snap.Requested.RealizedCoverage(realized)
		missing, extra = len(diff.Missing), len(diff.Extra)
	}

	row := []string{
		stamp, snap.Index, expiry, string(code),
		exporter.FormatPrice(snap.ATM), exporter.FormatPrice(snap.IndexPrice),
		strconv.FormatFloat(dayWidth, 'f', 4, 64),
		strconv.Itoa(requested), strconv.Itoa(len(realized)),
		strconv.FormatFloat(coverage, 'f', 4, 64),
		strconv.Itoa(missing), strconv.Itoa(extra),
	}
	if err := s.writer.AppendRow(rel, row, OverviewHeader); err != nil {
		return false, err
	}

	s.markSeen(rel, []string{key})
	s.tracker.RecordOverviewWrite(snap.Index)
	return true, nil
}

// isDuplicate reports whether key was already stored in rel, seeding the
// seen-set from disk on first use.
func (s *CSVSink) isDuplicate(rel, key string) (bool, error) {
	s.mu.Lock()
	set, ok := s.seen[rel]
	s.mu.Unlock()

	if !ok {
		records, err := s.writer.ReadCSV(rel)
		if err != nil {
			return false, err
		}
		set = make(map[string]struct{}, len(records))
		for _, r := range records {
			set[dedupeKey(r["timestamp"], r["expiry"])] = struct{}{}
		}

		s.mu.Lock()
		if existing, ok := s.seen[rel]; ok {
			set = existing
		} else {
			s.seen[rel] = set
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, dup := set[key]
	return dup, nil
}

func dedupeKey(stamp, expiry string) string {
	return stamp + "|" + expiry
}

func (s *CSVSink) markSeen(rel string, keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.seen[rel]
	if !ok {
		set = make(map[string]struct{}, len(keys))
		s.seen[rel] = set
	}
	for _, k := range keys {
		set[k] = struct{}{}
	}
}

func (s *CSVSink) addCount(k aggKey, n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[k] += n
	return s.counts[k]
}

// rescan seeds the aggregation counts for index and date from the files
// already on disk. It runs once per index and date.
func (s *CSVSink) rescan(index, date string) error {
	scanKey := index + "/" + date

	s.mu.Lock()
	if _, done := s.scanned[scanKey]; done {
		s.mu.Unlock()
		return nil
	}
	s.scanned[scanKey] = struct{}{}
	s.mu.Unlock()

	var errs []error
	for _, f := range s.discovery.ChainFiles(index, date) {
		records, err := s.writer.ReadCSV(f.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Path, err))
			continue
		}
		if len(records) == 0 {
			continue
		}
		total := s.addCount(aggKey{index, date, f.ExpiryCode}, len(records))
		s.tracker.UpdateExpiryDailyStats(index, date, string(f.ExpiryCode), total)
	}
	return stderrors.Join(errs...)
}

// DailyCount returns the number of rows stored for index, date and code.
func (s *CSVSink) DailyCount(index, date string, code transform.ExpiryCode) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[aggKey{index, date, code}]
}
