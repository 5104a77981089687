// Package config loads service configuration from a YAML file with
// environment overrides for connection strings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Feed      FeedConfig      `yaml:"feed"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// StorageConfig selects and configures the ledger backend.
type StorageConfig struct {
	// Backend is "memory", "postgres", or "clickhouse".
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// RedisConfig configures the optional symbol-profile cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// FeedConfig configures the trade-resolution feed listener.
type FeedConfig struct {
	// URL is the WebSocket endpoint publishing resolution events; empty
	// disables the listener.
	URL string `yaml:"url"`
}

// AnalyticsConfig holds the reducer tunables.
type AnalyticsConfig struct {
	BreakevenBandPct float64 `yaml:"breakeven_band_pct"`

	Calibration struct {
		BinWidthPct   float64 `yaml:"bin_width_pct"`
		TolerancePct  float64 `yaml:"tolerance_pct"`
		MinBinSamples int     `yaml:"min_bin_samples"`
	} `yaml:"calibration"`

	Weights struct {
		Enabled           bool    `yaml:"enabled"`
		NeutralWinRatePct float64 `yaml:"neutral_win_rate_pct"`
		Sensitivity       float64 `yaml:"sensitivity"`
		DampingTrades     float64 `yaml:"damping_trades"`
		FloorWeight       float64 `yaml:"floor_weight"`
		CeilingWeight     float64 `yaml:"ceiling_weight"`
		UntestedBelow     int     `yaml:"untested_below"`
		LowBelow          int     `yaml:"low_below"`
		MediumBelow       int     `yaml:"medium_below"`
		TopN              int     `yaml:"top_n"`
	} `yaml:"weights"`

	Intel struct {
		MinCatalystSamples    int `yaml:"min_catalyst_samples"`
		MinLeaderboardSamples int `yaml:"min_leaderboard_samples"`
		TopN                  int `yaml:"top_n"`
	} `yaml:"intel"`

	Health struct {
		DegradedExpectancyPct  float64 `yaml:"degraded_expectancy_pct"`
		UnhealthyExpectancyPct float64 `yaml:"unhealthy_expectancy_pct"`
		DegradedProfitFactor   float64 `yaml:"degraded_profit_factor"`
		UnhealthyProfitFactor  float64 `yaml:"unhealthy_profit_factor"`
		MinSamples             int     `yaml:"min_samples"`
	} `yaml:"health"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.MetricsAddr = ":9090"
	cfg.Server.ReadTimeout = 10 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second
	cfg.Server.RefreshInterval = time.Hour
	cfg.Storage.Backend = "memory"
	cfg.Redis.TTL = 15 * time.Minute
	cfg.Analytics.BreakevenBandPct = 0.25
	cfg.Analytics.Calibration.BinWidthPct = 10
	cfg.Analytics.Calibration.TolerancePct = 10
	cfg.Analytics.Calibration.MinBinSamples = 5
	cfg.Analytics.Weights.Enabled = true
	cfg.Analytics.Weights.NeutralWinRatePct = 50
	cfg.Analytics.Weights.Sensitivity = 2.0
	cfg.Analytics.Weights.DampingTrades = 20
	cfg.Analytics.Weights.FloorWeight = 0.3
	cfg.Analytics.Weights.CeilingWeight = 2.0
	cfg.Analytics.Weights.UntestedBelow = 10
	cfg.Analytics.Weights.LowBelow = 30
	cfg.Analytics.Weights.MediumBelow = 100
	cfg.Analytics.Weights.TopN = 5
	cfg.Analytics.Intel.MinCatalystSamples = 3
	cfg.Analytics.Intel.MinLeaderboardSamples = 5
	cfg.Analytics.Intel.TopN = 10
	cfg.Analytics.Health.DegradedExpectancyPct = 0
	cfg.Analytics.Health.UnhealthyExpectancyPct = -1
	cfg.Analytics.Health.DegradedProfitFactor = 1.2
	cfg.Analytics.Health.UnhealthyProfitFactor = 0.9
	cfg.Analytics.Health.MinSamples = 10
	return cfg
}

// Load reads a YAML config file over the defaults. DSNs may also come from
// POSTGRES_DSN / CLICKHOUSE_DSN / REDIS_ADDR environment variables, which
// win over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage backend postgres requires postgres_dsn")
		}
	case "clickhouse":
		if c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("storage backend clickhouse requires clickhouse_dsn")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Analytics.Weights.FloorWeight <= 0 {
		return fmt.Errorf("weights floor must be > 0: signals may be dampened, never disabled")
	}
	if c.Analytics.Weights.CeilingWeight < c.Analytics.Weights.FloorWeight {
		return fmt.Errorf("weights ceiling %.2f below floor %.2f",
			c.Analytics.Weights.CeilingWeight, c.Analytics.Weights.FloorWeight)
	}
	if c.Analytics.Calibration.BinWidthPct <= 0 || c.Analytics.Calibration.BinWidthPct > 100 {
		return fmt.Errorf("calibration bin width %.1f outside (0,100]", c.Analytics.Calibration.BinWidthPct)
	}
	return nil
}
