// Package config loads gateway configuration from config.yaml and KMSGW_
// environment variables. Configuration is read once at process start and is
// immutable thereafter.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file consulted when none is specified.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Auth      AuthConfig      `koanf:"auth"`
	Backend   BackendConfig   `koanf:"backend"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Storage   StorageConfig   `koanf:"storage"`
	Log       LogConfig       `koanf:"log"`
	Debug     bool            `koanf:"debug"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type AuthConfig struct {
	// APIKey is the static credential callers must present. Supports
	// ${VAR} substitution so the secret can live in the environment.
	APIKey string `koanf:"api_key"`
}

type BackendConfig struct {
	BaseURL     string        `koanf:"base_url"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
	BackoffBase time.Duration `koanf:"backoff_base"`
	BackoffMax  time.Duration `koanf:"backoff_max"`
}

type RateLimitConfig struct {
	PerMinute int `koanf:"per_minute"`
	// RedisAddr, when set, centralizes counters in Redis so the limit
	// holds across gateway processes.
	RedisAddr string `koanf:"redis_addr"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the config file at path (missing file is fine) and applies
// KMSGW_ environment overrides, then validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Environment variables override file config
	if err := k.Load(env.Provider("KMSGW_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "KMSGW_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	defaults := map[string]interface{}{
		"server.port":            8000,
		"server.request_timeout": "60s",
		"backend.base_url":       "http://localhost:9000",
		"backend.timeout":        "30s",
		"backend.max_retries":    3,
		"backend.backoff_base":   "500ms",
		"backend.backoff_max":    "5s",
		"ratelimit.per_minute":   100,
		"storage.type":           "memory",
		"storage.sqlite.path":    "./data/gateway.db",
		"log.level":              "info",
		"log.format":             "json",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Auth.APIKey = substituteEnvVars(cfg.Auth.APIKey)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.MaxRetries < 0 {
		return fmt.Errorf("backend.max_retries must not be negative")
	}
	if c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("ratelimit.per_minute must be positive")
	}
	switch c.Storage.Type {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("storage.type %q must be memory or sqlite", c.Storage.Type)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q must be json or text", c.Log.Format)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
