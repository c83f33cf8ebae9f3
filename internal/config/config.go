// Package config loads the proxy configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/criske/my-git-feed-server/pkg/logging"
)

// Cache backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the proxy configuration.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// Cache store
	CacheBackend    string        `env:"CACHE_BACKEND" envDefault:"redis"`
	RedisURL        string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"24h"`
	MemoryCacheSize int           `env:"MEMORY_CACHE_SIZE" envDefault:"10000"`

	// Request pipeline
	GracePeriod   time.Duration `env:"GRACE_PERIOD" envDefault:"15m"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	RetryAttempts int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	UserAgent     string        `env:"USER_AGENT" envDefault:"my-git-feed-server"`
	DNSCache      bool          `env:"DNS_CACHE" envDefault:"true"`
	RateLimit     bool          `env:"RATE_LIMIT" envDefault:"true"`

	// Provider tokens
	GitHubToken    string `env:"GH_TOKEN"`
	GitLabToken    string `env:"GL_TOKEN"`
	BitbucketToken string `env:"BB_TOKEN"`

	// Logging
	LogLevel  logging.LogLevel `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool             `env:"LOG_PRETTY" envDefault:"false"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environment map[string]string) (Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges that env tags cannot express.
func (c Config) Validate() error {
	switch c.CacheBackend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q (got %q)", BackendRedis, BackendMemory, c.CacheBackend)
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("GRACE_PERIOD must be >= 0 (got %s)", c.GracePeriod)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be > 0 (got %s)", c.HTTPTimeout)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be >= 1 (got %d)", c.RetryAttempts)
	}
	if c.CacheBackend == BackendMemory && c.MemoryCacheSize <= 0 {
		return fmt.Errorf("MEMORY_CACHE_SIZE must be > 0 (got %d)", c.MemoryCacheSize)
	}
	return nil
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	cfg.Service = "gitfeed-proxy"
	return cfg
}
