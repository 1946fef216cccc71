package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"risklab/internal/refresh"
)

// Config holds all daemon configuration.
type Config struct {
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	ClickHouse struct {
		DSN string `yaml:"dsn"`
	} `yaml:"clickhouse"`
	Feed struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"feed"`
	Refresh struct {
		Debounce             time.Duration `yaml:"debounce"`
		EligibilityThreshold float64       `yaml:"eligibility_threshold"`
		BatchSize            int           `yaml:"batch_size"`
	} `yaml:"refresh"`
	Snapshot struct {
		Cron string `yaml:"cron"`
	} `yaml:"snapshot"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Report struct {
		OutputDir string `yaml:"output_dir"`
	} `yaml:"report"`
	LogLevel string `yaml:"log_level"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error; overrides and
// defaults still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.ClickHouse.DSN = v
	}
	if v := os.Getenv("SIGNAL_WS_ENDPOINT"); v != "" {
		cfg.Feed.Endpoint = v
	}
	if v := os.Getenv("REFRESH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Refresh.Debounce = d
		}
	}
	if v := os.Getenv("SNAPSHOT_CRON"); v != "" {
		cfg.Snapshot.Cron = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Report.OutputDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Defaults
	if cfg.Refresh.Debounce == 0 {
		cfg.Refresh.Debounce = refresh.DefaultDebounceWindow
	}
	if cfg.Refresh.EligibilityThreshold == 0 {
		cfg.Refresh.EligibilityThreshold = refresh.DefaultEligibilityThreshold
	}
	if cfg.Refresh.BatchSize == 0 {
		cfg.Refresh.BatchSize = refresh.DefaultBatchSize
	}
	if cfg.Snapshot.Cron == "" {
		cfg.Snapshot.Cron = "0 0 * * * *"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Report.OutputDir == "" {
		cfg.Report.OutputDir = "output"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Validate checks that all fields are usable. Storage DSNs and the feed
// endpoint stay optional; the daemon falls back to in-memory storage and
// the stub feed.
func (c *Config) Validate() error {
	if c.Refresh.Debounce <= 0 {
		return fmt.Errorf("refresh.debounce must be positive")
	}
	if c.Refresh.EligibilityThreshold < 0 || c.Refresh.EligibilityThreshold > 1 {
		return fmt.Errorf("refresh.eligibility_threshold must be within [0, 1]")
	}
	if c.Refresh.BatchSize < 1 {
		return fmt.Errorf("refresh.batch_size must be at least 1")
	}
	if c.Snapshot.Cron == "" {
		return fmt.Errorf("snapshot.cron is required")
	}
	return nil
}
