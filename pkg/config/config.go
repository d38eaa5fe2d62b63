// Package config loads pushctl settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/brutalpush/pushclient/pkg/logging"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the client configuration.
type Config struct {
	APIURL         string        `env:"PUSH_API_URL" envDefault:"http://localhost:3000"`
	UserAgent      string        `env:"PUSH_USER_AGENT" envDefault:"pushctl/0.1.0"`
	Timeout        time.Duration `env:"PUSH_TIMEOUT" envDefault:"30s"`
	MaxRetries     int           `env:"PUSH_MAX_RETRIES" envDefault:"0"`
	CircuitBreaker bool          `env:"PUSH_CIRCUIT_BREAKER" envDefault:"false"`

	// RedisURL enables Redis-backed credentials and the response cache.
	// Empty keeps credentials in memory for the life of the process.
	RedisURL string `env:"PUSH_REDIS_URL"`

	AMQPURL   string `env:"PUSH_AMQP_URL"`
	AMQPQueue string `env:"PUSH_AMQP_QUEUE" envDefault:"push.device"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	SubscriptionsPerPage int `env:"PUSH_SUBSCRIPTIONS_PER_PAGE" envDefault:"20"`
	NotificationsPerPage int `env:"PUSH_NOTIFICATIONS_PER_PAGE" envDefault:"50"`
}

// Load reads the given .env files (".env" when none are given) without
// overriding variables already set, then parses the environment. Missing
// files are ignored.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse builds a Config from an explicit variable map instead of the process
// environment.
func Parse(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PUSH_API_URL must be an absolute http(s) url (got %q)", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("PUSH_TIMEOUT must be positive (got %s)", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("PUSH_MAX_RETRIES must be >= 0 (got %d)", c.MaxRetries)
	}
	if c.SubscriptionsPerPage < 1 {
		return fmt.Errorf("PUSH_SUBSCRIPTIONS_PER_PAGE must be >= 1 (got %d)", c.SubscriptionsPerPage)
	}
	if c.NotificationsPerPage < 1 {
		return fmt.Errorf("PUSH_NOTIFICATIONS_PER_PAGE must be >= 1 (got %d)", c.NotificationsPerPage)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Logging returns the logger configuration. Output defaults to stderr.
func (c *Config) Logging() logging.Config {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.LogPretty
	return cfg
}
