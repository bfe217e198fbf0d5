package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	apperrors "optchain/internal/errors"
	"optchain/internal/expiry"
	"optchain/internal/infrastructure"
	"optchain/internal/transform"
)

// snapshotDoc is the on-disk replay format:
//
//	{
//	  "timestamp": "2024-01-01T10:00:00+05:30",
//	  "instruments": [{"segment": "NFO-OPT", "tradingsymbol": "...", "strike": 18000, "expiry": "2024-01-04"}],
//	  "indices": {
//	    "NIFTY": {
//	      "price": 18012.35,
//	      "expiries": ["2024-01-04"],
//	      "chains": {"2024-01-04": {"NIFTY24JAN18000CE": {"strike": 18000, "option_type": "CE", "ltp": 101.5}}}
//	    }
//	  }
//	}
type snapshotDoc struct {
	Timestamp   time.Time                `json:"timestamp"`
	Instruments []expiry.Instrument      `json:"instruments"`
	Indices     map[string]indexSnapshot `json:"indices"`
}

type indexSnapshot struct {
	Price    float64                                `json:"price"`
	Expiries []string                               `json:"expiries"`
	Chains   map[string]map[string]transform.Quote `json:"chains"`
}

// SnapshotFile replays a JSON snapshot. The file is re-read whenever its
// modification time changes, so an external scraper can keep replacing
// it between cycles.
type SnapshotFile struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	doc     snapshotDoc
	modTime time.Time
}

var _ Provider = (*SnapshotFile)(nil)

// NewSnapshotFile loads path. The file must exist and parse.
func NewSnapshotFile(path string, logger *slog.Logger) (*SnapshotFile, error) {
	s := &SnapshotFile{
		path:   path,
		logger: infrastructure.WithComponent(infrastructure.LoggerOrDefault(logger), "snapshot_provider"),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// reload re-reads the file if it changed since the last successful load.
func (s *SnapshotFile) reload() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return apperrors.NewUpstreamError("snapshot file unavailable", err).WithContext("path", s.path)
	}

	s.mu.RLock()
	unchanged := !s.modTime.IsZero() && info.ModTime().Equal(s.modTime)
	s.mu.RUnlock()
	if unchanged {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return apperrors.NewUpstreamError("failed to read snapshot file", err).WithContext("path", s.path)
	}

	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return apperrors.NewParsingError("failed to decode snapshot file", err).WithContext("path", s.path)
	}

	normalized := make(map[string]indexSnapshot, len(doc.Indices))
	for k, v := range doc.Indices {
		normalized[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	doc.Indices = normalized

	s.mu.Lock()
	s.doc = doc
	s.modTime = info.ModTime()
	s.mu.Unlock()

	s.logger.Info("Snapshot loaded",
		slog.String("path", s.path),
		slog.Int("instruments", len(doc.Instruments)),
		slog.Int("indices", len(doc.Indices)))

	return nil
}

// current returns the latest document. A failed reload keeps serving the
// previous one.
func (s *SnapshotFile) current(ctx context.Context) snapshotDoc {
	if err := s.reload(); err != nil {
		s.logger.WarnContext(ctx, "snapshot reload failed, serving previous snapshot",
			slog.String("error", err.Error()))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

func (s *SnapshotFile) index(ctx context.Context, index string) (indexSnapshot, time.Time, error) {
	doc := s.current(ctx)
	snap, ok := doc.Indices[strings.ToUpper(strings.TrimSpace(index))]
	if !ok {
		return indexSnapshot{}, doc.Timestamp, apperrors.NewUpstreamError("index not present in snapshot", nil).
			WithContext("index", index)
	}
	return snap, doc.Timestamp, nil
}

// Instruments implements Provider.
func (s *SnapshotFile) Instruments(ctx context.Context) ([]expiry.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := s.current(ctx)
	out := make([]expiry.Instrument, len(doc.Instruments))
	copy(out, doc.Instruments)
	return out, nil
}

// ExpiryDates implements Provider. Unparseable entries are skipped.
func (s *SnapshotFile) ExpiryDates(ctx context.Context, index string) ([]time.Time, error) {
	snap, _, err := s.index(ctx, index)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, len(snap.Expiries))
	for _, raw := range snap.Expiries {
		key := transform.FormatDateKey(raw)
		d, err := time.Parse(time.DateOnly, key)
		if err != nil {
			s.logger.DebugContext(ctx, "skipping malformed expiry", slog.String("value", raw))
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// IndexPrice implements Provider.
func (s *SnapshotFile) IndexPrice(ctx context.Context, index string) (float64, error) {
	snap, _, err := s.index(ctx, index)
	if err != nil {
		return 0, err
	}
	if snap.Price <= 0 {
		return 0, apperrors.NewUpstreamError("index price missing", nil).WithContext("index", index)
	}
	return snap.Price, nil
}

// Quotes implements Provider.
func (s *SnapshotFile) Quotes(ctx context.Context, index string, expiryDate time.Time) (Chain, error) {
	snap, ts, err := s.index(ctx, index)
	if err != nil {
		return Chain{}, err
	}

	quotes := snap.Chains[transform.FormatDateKey(expiryDate)]
	out := make(map[string]transform.Quote, len(quotes))
	for sym, q := range quotes {
		out[sym] = q
	}
	return Chain{Timestamp: ts, Quotes: out}, nil
}
