package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete sectorpulse service configuration.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Poll      PollConfig                `yaml:"poll"`
	Heatmap   HeatmapConfig             `yaml:"heatmap"`
	Redis     RedisConfig               `yaml:"redis"`
	Postgres  PostgresConfig            `yaml:"postgres"`
	LogLevel  string                    `yaml:"log_level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// ProviderConfig holds settings for a single upstream category provider.
type ProviderConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BaseURL        string        `yaml:"base_url"`
	Priority       int           `yaml:"priority"`        // Lower value is tried first in the fallback chain
	RPS            float64       `yaml:"rps"`             // Token bucket refill rate
	Burst          int           `yaml:"burst"`           // Token bucket capacity
	RPMBudget      int           `yaml:"rpm_budget"`      // Hard requests-per-minute budget
	RequestTimeout time.Duration `yaml:"request_timeout"` // Per-request timeout
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for a provider.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"` // Trip after this many failures in a row
	MinRequests         uint32        `yaml:"min_requests"`         // Minimum requests before the failure ratio applies
	FailureRatio        float64       `yaml:"failure_ratio"`        // Trip when failures/requests exceeds this
	OpenTimeout         time.Duration `yaml:"open_timeout"`         // How long the breaker stays open
}

// PollConfig drives the background refresh loop.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"` // Per-refresh deadline
}

// HeatmapConfig holds derivation settings for the layout stage.
type HeatmapConfig struct {
	MaxSectors      int     `yaml:"max_sectors"`        // Cap on categories entering the layout
	Overscan        int     `yaml:"overscan"`           // Extra categories requested beyond the cap
	DensityFactor   float64 `yaml:"density_factor"`     // Row fill multiplier applied to proportional widths
	MinRowHeightPct float64 `yaml:"min_row_height_pct"` // Floor on row height in percent
}

// RedisConfig holds snapshot cache settings. An empty Addr disables Redis
// and falls back to the in-memory cache.
type RedisConfig struct {
	Addr string        `yaml:"addr"`
	TTL  time.Duration `yaml:"ttl"`
}

// PostgresConfig holds snapshot history settings. An empty DSN disables
// persistence entirely.
type PostgresConfig struct {
	DSN          string        `yaml:"dsn"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Providers: map[string]ProviderConfig{
			"coingecko": {
				Enabled:        true,
				BaseURL:        "https://api.coingecko.com/api/v3",
				Priority:       0,
				RPS:            0.5,
				Burst:          2,
				RPMBudget:      30,
				RequestTimeout: 10 * time.Second,
				Breaker:        defaultBreaker(),
			},
			"defillama": {
				Enabled:        true,
				BaseURL:        "https://api.llama.fi",
				Priority:       1,
				RPS:            1,
				Burst:          2,
				RPMBudget:      60,
				RequestTimeout: 10 * time.Second,
				Breaker:        defaultBreaker(),
			},
		},
		Poll: PollConfig{
			Interval: 5 * time.Minute,
			Timeout:  30 * time.Second,
		},
		Heatmap: HeatmapConfig{
			MaxSectors:      40,
			Overscan:        20,
			DensityFactor:   3.0,
			MinRowHeightPct: 15.0,
		},
		Redis: RedisConfig{
			TTL: 10 * time.Minute,
		},
		Postgres: PostgresConfig{
			QueryTimeout: 5 * time.Second,
		},
		LogLevel: "info",
	}
}

func defaultBreaker() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 3,
		MinRequests:         10,
		FailureRatio:        0.5,
		OpenTimeout:         60 * time.Second,
	}
}

// Load reads a YAML config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate ensures the configuration is consistent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.Poll.Interval)
	}
	if c.Poll.Timeout <= 0 {
		return fmt.Errorf("poll timeout must be positive, got %v", c.Poll.Timeout)
	}
	if c.Poll.Timeout >= c.Poll.Interval {
		return fmt.Errorf("poll timeout (%v) must be shorter than poll interval (%v)", c.Poll.Timeout, c.Poll.Interval)
	}
	if err := c.Heatmap.Validate(); err != nil {
		return fmt.Errorf("heatmap: %w", err)
	}

	enabled := 0
	for name, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		if p.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one provider must be enabled")
	}
	return nil
}

// Validate ensures heatmap derivation settings are usable.
func (h *HeatmapConfig) Validate() error {
	if h.MaxSectors <= 0 {
		return fmt.Errorf("max_sectors must be positive, got %d", h.MaxSectors)
	}
	if h.Overscan < 0 {
		return fmt.Errorf("overscan cannot be negative, got %d", h.Overscan)
	}
	if h.DensityFactor <= 0 {
		return fmt.Errorf("density_factor must be positive, got %f", h.DensityFactor)
	}
	if h.MinRowHeightPct <= 0 || h.MinRowHeightPct > 100 {
		return fmt.Errorf("min_row_height_pct must be in (0, 100], got %f", h.MinRowHeightPct)
	}
	return nil
}

// Validate ensures a provider configuration is usable.
func (p *ProviderConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if p.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %f", p.RPS)
	}
	if p.Burst <= 0 {
		return fmt.Errorf("burst must be positive, got %d", p.Burst)
	}
	if p.RPMBudget <= 0 {
		return fmt.Errorf("rpm_budget must be positive, got %d", p.RPMBudget)
	}
	if p.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", p.RequestTimeout)
	}
	if p.Breaker.ConsecutiveFailures == 0 {
		return fmt.Errorf("breaker consecutive_failures must be positive")
	}
	if p.Breaker.FailureRatio <= 0 || p.Breaker.FailureRatio > 1 {
		return fmt.Errorf("breaker failure_ratio must be in (0, 1], got %f", p.Breaker.FailureRatio)
	}
	if p.Breaker.OpenTimeout <= 0 {
		return fmt.Errorf("breaker open_timeout must be positive, got %v", p.Breaker.OpenTimeout)
	}
	return nil
}
