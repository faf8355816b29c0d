package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, populated from the environment.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8484"`

	// Upstream metadata provider
	UpstreamBaseURL    string `env:"UPSTREAM_BASE_URL" envDefault:"https://api.trakt.tv"`
	UpstreamAPIKey     string `env:"UPSTREAM_API_KEY"`
	UpstreamAPIVersion string `env:"UPSTREAM_API_VERSION" envDefault:"2"`

	// Document store
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/reelproxy.db"`

	// Cache freshness window in hours. Entries older than this are treated
	// as misses at read time; they are not deleted.
	CacheTTLHours int `env:"CACHE_TTL_HOURS" envDefault:"24"`

	// Optional physical compaction of expired cache rows. Off by default so
	// the store keeps its logical-expiry-only behavior unless opted in.
	CompactionEnabled  bool          `env:"COMPACTION_ENABLED" envDefault:"false"`
	CompactionInterval time.Duration `env:"COMPACTION_INTERVAL" envDefault:"6h"`

	// Per-IP rate limiting for the proxy route
	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND" envDefault:"25"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" envDefault:"50"`

	// Log file; empty means stderr only
	LogFile string `env:"LOG_FILE"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that env defaults cannot express.
func (c *Config) Validate() error {
	if c.CacheTTLHours <= 0 {
		return errors.New("CACHE_TTL_HOURS must be positive")
	}
	if c.CompactionEnabled && c.CompactionInterval < time.Minute {
		return errors.New("COMPACTION_INTERVAL must be at least 1m")
	}
	return nil
}

// CacheTTL returns the freshness window as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}
