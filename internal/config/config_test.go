package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults only",
			file: "logging:\n  level: info\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultExpiryTTL, cfg.Expiry.TTL)
				assert.Equal(t, DefaultStrikeWindow, cfg.Expiry.StrikeWindow)
				assert.Equal(t, []string{"NIFTY", "BANKNIFTY"}, cfg.Collector.Indices)
				assert.Equal(t, "prometheus", cfg.Metrics.Backend)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
		{
			name: "file overrides defaults",
			file: `
storage:
  base_dir: /var/lib/optchain
expiry:
  ttl: 2m
  strike_window: 800
collector:
  indices: [FINNIFTY, SENSEX]
  offset_range: 3
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/var/lib/optchain", cfg.Storage.BaseDir)
				assert.Equal(t, 2*time.Minute, cfg.Expiry.TTL)
				assert.Equal(t, 800.0, cfg.Expiry.StrikeWindow)
				assert.Equal(t, []string{"FINNIFTY", "SENSEX"}, cfg.Collector.Indices)
				assert.Equal(t, 3, cfg.Collector.OffsetRange)
			},
		},
		{
			name: "env overrides file",
			file: "expiry:\n  ttl: 2m\n",
			env: map[string]string{
				"OPTCHAIN_EXPIRY_TTL":         "30s",
				"OPTCHAIN_COLLECTOR_INDICES":  "NIFTY,MIDCPNIFTY",
				"OPTCHAIN_METRICS_BACKEND":    "otel",
				"OPTCHAIN_LOGGING_LEVEL":      "debug",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30*time.Second, cfg.Expiry.TTL)
				assert.Equal(t, []string{"NIFTY", "MIDCPNIFTY"}, cfg.Collector.Indices)
				assert.Equal(t, "otel", cfg.Metrics.Backend)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name:    "invalid metrics backend",
			file:    "metrics:\n  backend: statsd\n",
			wantErr: true,
		},
		{
			name:    "empty indices rejected",
			file:    "collector:\n  indices: []\n",
			wantErr: true,
		},
		{
			name: "market hours schedule",
			file: "collector:\n  schedule: \"*/1 9-15 * * 1-5\"\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "*/1 9-15 * * 1-5", cfg.Collector.Schedule)
			},
		},
		{
			name:    "invalid schedule rejected",
			file:    "collector:\n  schedule: every minute\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "expiry: [unterminated",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeConfigFile(t, tt.file)

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[storage]
base_dir = "/srv/optchain"

[collector]
indices = ["BANKEX"]
offset_range = 4
max_expiries = 3

[metrics]
backend = "none"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/optchain", cfg.Storage.BaseDir)
	assert.Equal(t, []string{"BANKEX"}, cfg.Collector.Indices)
	assert.Equal(t, 4, cfg.Collector.OffsetRange)
	assert.Equal(t, 3, cfg.Collector.MaxExpiries)
	assert.Equal(t, "none", cfg.Metrics.Backend)
	assert.Equal(t, DefaultExpiryTTL, cfg.Expiry.TTL)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBaseDir, cfg.Storage.BaseDir)
	assert.Equal(t, DefaultCollectInterval, cfg.Collector.Interval)
	assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
}

func TestValidate_FillsDerivedFields(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.FilePath = ""
	cfg.Metrics.Namespace = ""

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "logs/app.log", cfg.Logging.FilePath)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
}

func TestStrikeIntervalFor(t *testing.T) {
	tests := []struct {
		index string
		want  float64
	}{
		{"NIFTY", 50},
		{"BANKNIFTY", 100},
		{"FINNIFTY", 50},
		{"SENSEX", 100},
		{"BANKEX", 100},
		{"MIDCPNIFTY", 25},
		{"UNKNOWN", 50},
	}

	for _, tt := range tests {
		t.Run(tt.index, func(t *testing.T) {
			assert.Equal(t, tt.want, StrikeIntervalFor(tt.index))
		})
	}
}

func TestMarketLocation(t *testing.T) {
	loc := MarketLocation()
	require.NotNil(t, loc)

	_, offset := time.Date(2024, 1, 1, 12, 0, 0, 0, loc).Zone()
	assert.Equal(t, 5*3600+30*60, offset)
	assert.Same(t, loc, MarketLocation())
}
