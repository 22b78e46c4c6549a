// Package config loads the service configuration from an optional YAML file
// and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/batch"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/cache"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/client"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/logging"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// APIKeyEnvVars are read in order; empty values are dropped.
var APIKeyEnvVars = []string{"ASTRO_API_KEY_1", "ASTRO_API_KEY_2", "ASTRO_API_KEY_3"}

// ErrNoAPIKeys is returned by Validate when no credential is configured.
var ErrNoAPIKeys = errors.New("no API keys configured (set ASTRO_API_KEY_1..3 or upstream.api_keys)")

// Config holds all service configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	Batch    BatchConfig    `yaml:"batch"`
	Log      LogConfig      `yaml:"log"`
	CORS     CORSConfig     `yaml:"cors"`
}

// UpstreamConfig describes the astrology API.
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKeys []string      `yaml:"api_keys"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig selects and tunes the cache backend.
type CacheConfig struct {
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	StrictKeys bool          `yaml:"strict_keys"`
	RedisAddr  string        `yaml:"redis_addr"`
	SQLitePath string        `yaml:"sqlite_path"`
}

// BatchConfig bounds batch and full-kundali fan-out.
type BatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// CORSConfig lists allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":5000",
		Upstream: UpstreamConfig{
			BaseURL: client.DefaultBaseURL,
			Timeout: client.DefaultTimeout,
		},
		Cache: CacheConfig{
			Backend:    BackendMemory,
			TTL:        cache.DefaultTTL,
			RedisAddr:  "localhost:6379",
			SQLitePath: "vedic-sage.db",
		},
		Batch: BatchConfig{
			MaxConcurrency: batch.DefaultMaxConcurrency,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads path (when non-empty) over the defaults, expanding environment
// variables in the file, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. API keys from
// ASTRO_API_KEY_1..3 replace any keys from the file when at least one is set.
func (c *Config) ApplyEnv() {
	var keys []string
	for _, name := range APIKeyEnvVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			keys = append(keys, v)
		}
	}
	if len(keys) > 0 {
		c.Upstream.APIKeys = keys
	}

	c.Upstream.BaseURL = getEnv("ASTRO_BASE_URL", c.Upstream.BaseURL)
	c.Cache.RedisAddr = getEnv("REDIS_URL", c.Cache.RedisAddr)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	if port := getEnv("PORT", ""); port != "" {
		c.Listen = ":" + port
	}
}

// Validate reports configuration the service cannot start with.
func (c *Config) Validate() error {
	if len(c.APIKeys()) == 0 {
		return ErrNoAPIKeys
	}
	switch c.Cache.Backend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown cache backend %q (want memory, redis or sqlite)", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive (got %s)", c.Cache.TTL)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive (got %s)", c.Upstream.Timeout)
	}
	if c.Batch.MaxConcurrency < 1 {
		return fmt.Errorf("batch max_concurrency must be at least 1 (got %d)", c.Batch.MaxConcurrency)
	}
	return nil
}

// APIKeys returns the configured keys with empties dropped.
func (c *Config) APIKeys() []string {
	out := make([]string, 0, len(c.Upstream.APIKeys))
	for _, k := range c.Upstream.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// KeyFunc returns the cache key derivation selected by strict_keys.
func (c *Config) KeyFunc() cache.KeyFunc {
	if c.Cache.StrictKeys {
		return cache.DeriveStrictKey
	}
	return cache.DeriveKey
}

// Logging converts the log section for logging.Setup.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.Log.Level))
	cfg.Pretty = c.Log.Pretty
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
