package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Session   SessionConfig   `yaml:"session"`
	Share     ShareConfig     `yaml:"share"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// SessionConfig controls how long idle build sessions are kept.
type SessionConfig struct {
	IdleTTL       Duration `yaml:"idle_ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// ShareConfig contains share link settings.
type ShareConfig struct {
	BaseURL string `yaml:"base_url"`
}

// RateLimitConfig limits destructive session routes per client.
type RateLimitConfig struct {
	DeletesPerSecond float64 `yaml:"deletes_per_second"`
	DeleteBurst      int     `yaml:"delete_burst"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("RIGBUILD_CONFIG_PATH", "config/rigbuild.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabaseConfig resolves only the database settings. Offline CLI
// commands use it so they work without an API key.
func LoadDatabaseConfig() (DatabaseConfig, error) {
	cfg := newDefaults()
	if err := loadYAMLFile(cfg, getEnv("RIGBUILD_CONFIG_PATH", "config/rigbuild.yaml")); err != nil {
		return DatabaseConfig{}, err
	}
	applyEnvOverrides(cfg)
	return cfg.Database, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/rigbuild.db",
		},
		Session: SessionConfig{
			IdleTTL:       Duration(30 * 24 * time.Hour),
			SweepInterval: Duration(1 * time.Hour),
		},
		Share: ShareConfig{
			BaseURL: "http://localhost:8080",
		},
		RateLimit: RateLimitConfig{
			DeletesPerSecond: 2,
			DeleteBurst:      5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty, parseable env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("RIGBUILD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	setDuration("RIGBUILD_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("RIGBUILD_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("RIGBUILD_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	if v := os.Getenv("RIGBUILD_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Auth
	if v := os.Getenv("RIGBUILD_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Session
	setDuration("RIGBUILD_SESSION_IDLE_TTL", &cfg.Session.IdleTTL)
	setDuration("RIGBUILD_SESSION_SWEEP_INTERVAL", &cfg.Session.SweepInterval)

	// Share
	if v := os.Getenv("RIGBUILD_SHARE_BASE_URL"); v != "" {
		cfg.Share.BaseURL = v
	}

	// Rate limit
	if v := os.Getenv("RIGBUILD_DELETES_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.DeletesPerSecond = f
		}
	}
	if v := os.Getenv("RIGBUILD_DELETE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.DeleteBurst = n
		}
	}

	// Log
	if v := os.Getenv("RIGBUILD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RIGBUILD_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// validate checks that required configuration values are set.
// In dev mode (RIGBUILD_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	if c.Session.IdleTTL <= 0 {
		return errors.New("session.idle_ttl must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("session.sweep_interval must be positive")
	}
	if c.RateLimit.DeletesPerSecond <= 0 || c.RateLimit.DeleteBurst < 1 {
		return errors.New("rate_limit requires positive deletes_per_second and delete_burst")
	}

	if DevMode() {
		return nil
	}
	if c.Auth.APIKey == "" {
		return errors.New("RIGBUILD_API_KEY is required")
	}
	return nil
}

// DevMode reports whether RIGBUILD_DEV_MODE is enabled.
func DevMode() bool {
	return os.Getenv("RIGBUILD_DEV_MODE") == "true"
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
