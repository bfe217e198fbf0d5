package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" toml:"logging" envconfig:"LOGGING"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage" envconfig:"STORAGE"`
	Expiry    ExpiryConfig    `yaml:"expiry" toml:"expiry" envconfig:"EXPIRY"`
	Collector CollectorConfig `yaml:"collector" toml:"collector" envconfig:"COLLECTOR"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics" envconfig:"METRICS"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" toml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" toml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" toml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" toml:"file_path" envconfig:"FILE_PATH"`
}

// StorageConfig contains CSV store configuration
type StorageConfig struct {
	BaseDir string `yaml:"base_dir" toml:"base_dir" envconfig:"BASE_DIR" validate:"required"`
}

// ExpiryConfig contains expiry resolution configuration
type ExpiryConfig struct {
	TTL          time.Duration `yaml:"ttl" toml:"ttl" envconfig:"TTL" validate:"gte=0"`
	StrikeWindow float64       `yaml:"strike_window" toml:"strike_window" envconfig:"STRIKE_WINDOW" validate:"gt=0"`
}

// CollectorConfig contains collection cycle configuration
type CollectorConfig struct {
	Indices      []string      `yaml:"indices" toml:"indices" envconfig:"INDICES" validate:"required,min=1,dive,required"`
	Interval     time.Duration `yaml:"interval" toml:"interval" envconfig:"INTERVAL" validate:"gt=0"`
	OffsetRange  int           `yaml:"offset_range" toml:"offset_range" envconfig:"OFFSET_RANGE" validate:"gte=0,lte=20"`
	MaxExpiries  int           `yaml:"max_expiries" toml:"max_expiries" envconfig:"MAX_EXPIRIES" validate:"gte=0"`
	SnapshotFile string        `yaml:"snapshot_file" toml:"snapshot_file" envconfig:"SNAPSHOT_FILE"`
	// Schedule is an optional cron spec evaluated in market time. When
	// set it replaces the fixed Interval ticker.
	Schedule     string        `yaml:"schedule" toml:"schedule" envconfig:"SCHEDULE"`
}

// MetricsConfig contains metrics backend configuration
type MetricsConfig struct {
	Backend    string `yaml:"backend" toml:"backend" envconfig:"BACKEND" validate:"oneof=prometheus otel none"`
	Namespace  string `yaml:"namespace" toml:"namespace" envconfig:"NAMESPACE"`
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr" envconfig:"LISTEN_ADDR"`
}

// TelemetryConfig contains tracing configuration
type TelemetryConfig struct {
	TraceExporter string  `yaml:"trace_exporter" toml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	Environment   string  `yaml:"environment" toml:"environment" envconfig:"ENVIRONMENT"`
	SampleRatio   float64 `yaml:"sample_ratio" toml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// Load builds configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence. An empty
// filePath searches the usual locations.
func Load(filePath string) (*Config, error) {
	cfg := Default()

	if filePath == "" {
		filePath = getConfigFilePath()
	}
	if filePath != "" {
		if err := loadFromFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields carry no default tags, so unset variables leave the
	// file/default values alone.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays file contents onto cfg. A .toml extension selects
// TOML, where durations are integer nanoseconds; anything else is YAML.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(filePath), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Collector.Schedule != "" {
		if _, err := cron.ParseStandard(c.Collector.Schedule); err != nil {
			return fmt.Errorf("invalid collector schedule %q: %w", c.Collector.Schedule, err)
		}
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogsDir + "/app.log"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"config.toml",
		"configs/config.yaml",
		"configs/config.toml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: DefaultLogsDir + "/app.log",
		},
		Storage: StorageConfig{
			BaseDir: DefaultBaseDir,
		},
		Expiry: ExpiryConfig{
			TTL:          DefaultExpiryTTL,
			StrikeWindow: DefaultStrikeWindow,
		},
		Collector: CollectorConfig{
			Indices:     []string{"NIFTY", "BANKNIFTY"},
			Interval:    DefaultCollectInterval,
			OffsetRange: DefaultOffsetRange,
			MaxExpiries: DefaultMaxExpiries,
		},
		Metrics: MetricsConfig{
			Backend:    "prometheus",
			Namespace:  DefaultMetricsNamespace,
			ListenAddr: DefaultMetricsListenAddr,
		},
		Telemetry: TelemetryConfig{
			TraceExporter: "none",
			Environment:   "development",
			SampleRatio:   1.0,
		},
	}
}
