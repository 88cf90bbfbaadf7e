// Package config loads the service configuration from a YAML file with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can carry values like "30s" or
// "5m".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
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

// MarshalYAML renders the duration back to its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration
type Config struct {
	// HTTP
	ListenPort  int    `yaml:"listen_port"`
	MetricsPort int    `yaml:"metrics_port"`
	APIKey      string `yaml:"api_key"`

	// Dossier sink
	CallbackURL     string   `yaml:"callback_url"`
	CallbackTimeout Duration `yaml:"callback_timeout"`

	// Persona model (Groq, OpenAI-compatible)
	GroqKey     string `yaml:"groq_key"`
	GroqBaseURL string `yaml:"groq_base_url"`
	GroqModel   string `yaml:"groq_model"`

	// Conversation settings
	MaxTurns     int `yaml:"max_turns"`
	MinArtifacts int `yaml:"min_artifacts"`

	// Session snapshot mirror (optional)
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	SnapshotTTL   Duration `yaml:"snapshot_ttl"`

	// Idle-session eviction (optional, off when SweepInterval is zero)
	SweepInterval Duration `yaml:"sweep_interval"`
	SessionTTL    Duration `yaml:"session_ttl"`
}

// LoadConfig loads configuration from a YAML file. An empty path skips
// the file and builds the configuration from environment and defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Apply defaults
	if cfg.ListenPort == 0 {
		cfg.ListenPort = 8080
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
	if cfg.CallbackTimeout == 0 {
		cfg.CallbackTimeout = Duration(30 * time.Second)
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 10
	}
	if cfg.MinArtifacts == 0 {
		cfg.MinArtifacts = 2
	}
	if cfg.SweepInterval > 0 && cfg.SessionTTL == 0 {
		cfg.SessionTTL = Duration(time.Hour)
	}

	// Load secrets from environment if not in config
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("API_SECRET_KEY")
	}
	if cfg.GroqKey == "" {
		cfg.GroqKey = os.Getenv("GROQ_API_KEY")
	}
	if cfg.CallbackURL == "" {
		cfg.CallbackURL = os.Getenv("CALLBACK_URL")
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	if cfg.ListenPort == 8080 {
		if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 {
			cfg.ListenPort = port
		}
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.CallbackURL == "" {
		return fmt.Errorf("callback_url is required")
	}
	if c.MaxTurns < 2 {
		return fmt.Errorf("max_turns must be at least 2")
	}
	if c.MinArtifacts < 1 {
		return fmt.Errorf("min_artifacts must be at least 1")
	}
	if c.SweepInterval > 0 && c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl is required when sweep_interval is set")
	}
	return nil
}
