package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optchain/internal/config"
	"optchain/internal/files"
	"optchain/internal/shared/testutil"
)

const snapshot = `{
  "timestamp": "2024-01-01T10:00:00+05:30",
  "indices": {
    "NIFTY": {
      "price": 18012.35,
      "expiries": ["2024-01-04"],
      "chains": {
        "2024-01-04": {
          "NIFTY24JAN17950CE": {"strike": 17950, "option_type": "CE", "ltp": 120},
          "NIFTY24JAN17950PE": {"strike": 17950, "option_type": "PE", "ltp": 70},
          "NIFTY24JAN18000CE": {"strike": 18000, "option_type": "CE", "ltp": 101.5},
          "NIFTY24JAN18000PE": {"strike": 18000, "option_type": "PE", "ltp": 88},
          "NIFTY24JAN18050CE": {"strike": 18050, "option_type": "CE", "ltp": 80},
          "NIFTY24JAN18050PE": {"strike": 18050, "option_type": "PE", "ltp": 110}
        }
      }
    }
  }
}`

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0644))

	cfg := config.Default()
	cfg.Storage.BaseDir = filepath.Join(dir, "csv")
	cfg.Collector.Indices = []string{"NIFTY"}
	cfg.Collector.OffsetRange = 1
	cfg.Collector.SnapshotFile = path
	cfg.Metrics.Backend = backend
	cfg.Metrics.ListenAddr = ""
	return cfg
}

func TestApplication_RunOnce(t *testing.T) {
	for _, backend := range []string{"prometheus", "otel", "none"} {
		t.Run(backend, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			cfg := testConfig(t, backend)

			a, err := NewApplication(cfg, logger, nil)
			require.NoError(t, err)
			assert.Equal(t, backend != "none", a.Tracker.Enabled())

			reports, err := a.RunOnce(context.Background())
			require.NoError(t, err)
			require.Len(t, reports, 1)
			assert.Equal(t, "NIFTY", reports[0].Index)
			assert.Equal(t, 3, reports[0].Written)

			dates := files.NewDiscovery(files.NewManager(a.Paths, logger)).Dates("NIFTY")
			assert.Equal(t, []string{"2024-01-01"}, dates)
		})
	}
}

func TestApplication_Router(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := testConfig(t, "prometheus")
	cfg.Metrics.ListenAddr = "127.0.0.1:0"

	a, err := NewApplication(cfg, logger, nil)
	require.NoError(t, err)
	require.NotNil(t, a.Server)

	_, err = a.Collector.RunAll(context.Background())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "optchain_rows_written_total")

	rec = httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, a.Stop(context.Background()))
}

func TestNewApplication_RequiresProvider(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := testConfig(t, "none")
	cfg.Collector.SnapshotFile = ""

	_, err := NewApplication(cfg, logger, nil)
	assert.Error(t, err)
}
