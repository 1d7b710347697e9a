package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"`
	RateBurst    int           `yaml:"rate_burst"`
}

// StorageConfig holds the optional external stores. Empty values mean the
// store is not used: evaluation falls back to CSV input and the in-process
// memo cache.
type StorageConfig struct {
	PostgresDSN string        `yaml:"postgres_dsn"`
	RedisAddr   string        `yaml:"redis_addr"`
	MemoTTL     time.Duration `yaml:"memo_ttl"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Config is the full application configuration. Rules maps rule name to
// parameter overrides; values outside a parameter's declared range clamp
// inside the rule, they never fail the load.
type Config struct {
	Server  ServerConfig                  `yaml:"server"`
	Storage StorageConfig                 `yaml:"storage"`
	Rules   map[string]map[string]float64 `yaml:"rules"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			RateLimitRPS: 20,
			RateBurst:    40,
		},
		Storage: StorageConfig{
			MemoTTL: 15 * time.Minute,
			Timeout: 5 * time.Second,
		},
		Rules: map[string]map[string]float64{},
	}
}

// Load reads YAML from path over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the non-clamping settings. Rule parameter overrides are
// deliberately not validated here: they clamp at apply time.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("rate_limit_rps must be positive, got %g", c.Server.RateLimitRPS)
	}
	if c.Server.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1, got %d", c.Server.RateBurst)
	}
	if c.Storage.MemoTTL < 0 {
		return fmt.Errorf("memo_ttl must not be negative")
	}
	return nil
}
