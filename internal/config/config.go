// Package config loads the radiusd settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, e.g. RADIUSD_SECRET
const Prefix = "RADIUSD"

// Config holds the radiusd settings
type Config struct {
	AuthAddr string `envconfig:"AUTH_ADDR" default:":1812"`
	AcctAddr string `envconfig:"ACCT_ADDR" default:":1813"`
	Secret   string `envconfig:"SECRET" required:"true"`

	// Dictionary is a dictionary file; empty uses the built-in set
	Dictionary string `envconfig:"DICTIONARY"`
	// Policy is the YAML allowlist; empty rejects everyone
	Policy string `envconfig:"POLICY"`

	// RedisAddr enables accounting storage when set
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	DuplicateTTL  time.Duration `envconfig:"DUPLICATE_TTL" default:"30s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	// Audit writes one JSON line per access decision to stdout
	Audit bool `envconfig:"AUDIT" default:"false"`

	Workers int `envconfig:"WORKERS" default:"1"`
}

// Load reads the configuration from RADIUSD_* environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express
func (c *Config) Validate() error {
	if c.Secret == "" {
		return errors.New("RADIUSD_SECRET must not be empty")
	}
	if c.AuthAddr == "" && c.AcctAddr == "" {
		return errors.New("at least one of RADIUSD_AUTH_ADDR and RADIUSD_ACCT_ADDR is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("RADIUSD_WORKERS must be positive, got %d", c.Workers)
	}
	if c.DuplicateTTL <= 0 {
		return fmt.Errorf("RADIUSD_DUPLICATE_TTL must be positive, got %s", c.DuplicateTTL)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported RADIUSD_LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}
