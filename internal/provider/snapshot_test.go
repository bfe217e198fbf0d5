package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "optchain/internal/errors"
	"optchain/internal/shared/testutil"
)

const sampleSnapshot = `{
  "timestamp": "2024-01-01T10:00:00+05:30",
  "instruments": [
    {"segment": "NFO-OPT", "tradingsymbol": "NIFTY24JAN18000CE", "strike": 18000, "expiry": "2024-01-04"},
    {"segment": "NFO-OPT", "tradingsymbol": "NIFTY24JAN18000PE", "strike": "18000", "expiry": "2024-01-04"}
  ],
  "indices": {
    "nifty": {
      "price": 18012.35,
      "expiries": ["2024-01-04", "not-a-date", "2024-01-11 15:30:00"],
      "chains": {
        "2024-01-04": {
          "NIFTY24JAN18000CE": {"strike": 18000, "option_type": "CE", "ltp": 101.5},
          "NIFTY24JAN18000PE": {"strike": 18000, "option_type": "PE", "ltp": 88}
        }
      }
    },
    "BANKNIFTY": {"price": 0}
  }
}`

func writeSnapshot(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestSnapshotFile(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	path := writeSnapshot(t, t.TempDir(), sampleSnapshot)

	p, err := NewSnapshotFile(path, logger)
	require.NoError(t, err)
	ctx := context.Background()

	instruments, err := p.Instruments(ctx)
	require.NoError(t, err)
	require.Len(t, instruments, 2)
	assert.True(t, instruments[0].IsOption())
	assert.Equal(t, 18000.0, instruments[0].Strike)

	dates, err := p.ExpiryDates(ctx, "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
	}, dates)

	price, err := p.IndexPrice(ctx, "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, 18012.35, price)

	chain, err := p.Quotes(ctx, "NIFTY", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, chain.Quotes, 2)
	assert.Equal(t, 101.5, chain.Quotes["NIFTY24JAN18000CE"]["ltp"])
	assert.True(t, chain.Timestamp.Equal(time.Date(2024, 1, 1, 4, 30, 0, 0, time.UTC)))

	empty, err := p.Quotes(ctx, "NIFTY", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, empty.Quotes)
}

func TestSnapshotFile_Errors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	_, err := NewSnapshotFile(filepath.Join(dir, "missing.json"), nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeUpstream))

	_, err = NewSnapshotFile(writeSnapshot(t, dir, "{not json"), nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))

	p, err := NewSnapshotFile(writeSnapshot(t, dir, sampleSnapshot), nil)
	require.NoError(t, err)

	_, err = p.IndexPrice(ctx, "BANKNIFTY")
	assert.True(t, apperrors.IsDegradable(err))

	_, err = p.IndexPrice(ctx, "SENSEX")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeUpstream))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.Instruments(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshotFile_Reload(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	dir := t.TempDir()
	path := writeSnapshot(t, dir, sampleSnapshot)

	p, err := NewSnapshotFile(path, logger)
	require.NoError(t, err)
	ctx := context.Background()

	updated := `{"indices": {"NIFTY": {"price": 18100}}}`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	price, err := p.IndexPrice(ctx, "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, 18100.0, price)

	// A broken rewrite keeps the last good snapshot.
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	evenLater := later.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, evenLater, evenLater))

	price, err = p.IndexPrice(ctx, "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, 18100.0, price)
	assert.True(t, handler.ContainsMessage("snapshot reload failed"))
}
