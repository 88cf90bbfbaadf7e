package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decoyd.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.ListenPort != 8080 {
		t.Errorf("ListenPort = %d, want 8080", cfg.ListenPort)
	}
	if cfg.MetricsPort != 9090 {
		t.Errorf("MetricsPort = %d, want 9090", cfg.MetricsPort)
	}
	if cfg.CallbackTimeout.Std() != 30*time.Second {
		t.Errorf("CallbackTimeout = %v, want 30s", cfg.CallbackTimeout.Std())
	}
	if cfg.MaxTurns != 10 {
		t.Errorf("MaxTurns = %d, want 10", cfg.MaxTurns)
	}
	if cfg.MinArtifacts != 2 {
		t.Errorf("MinArtifacts = %d, want 2", cfg.MinArtifacts)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
listen_port: 9000
api_key: file-secret
callback_url: https://sink.example/report
max_turns: 20
min_artifacts: 3
sweep_interval: 5m
session_ttl: 2h
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.ListenPort != 9000 {
		t.Errorf("ListenPort = %d, want 9000", cfg.ListenPort)
	}
	if cfg.APIKey != "file-secret" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "file-secret")
	}
	if cfg.MaxTurns != 20 || cfg.MinArtifacts != 3 {
		t.Errorf("thresholds = %d/%d, want 20/3", cfg.MaxTurns, cfg.MinArtifacts)
	}
	if cfg.SweepInterval.Std() != 5*time.Minute || cfg.SessionTTL.Std() != 2*time.Hour {
		t.Errorf("sweep = %v/%v, want 5m/2h", cfg.SweepInterval.Std(), cfg.SessionTTL.Std())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("API_SECRET_KEY", "env-secret")
	t.Setenv("CALLBACK_URL", "https://sink.example/report")
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.APIKey != "env-secret" {
		t.Errorf("APIKey = %q, want env value", cfg.APIKey)
	}
	if cfg.CallbackURL != "https://sink.example/report" {
		t.Errorf("CallbackURL = %q, want env value", cfg.CallbackURL)
	}
	if cfg.GroqKey != "gsk-test" {
		t.Errorf("GroqKey = %q, want env value", cfg.GroqKey)
	}
}

func TestLoadConfigFileBeatsEnv(t *testing.T) {
	t.Setenv("API_SECRET_KEY", "env-secret")
	path := writeConfig(t, "api_key: file-secret\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.APIKey != "file-secret" {
		t.Errorf("APIKey = %q, want file value to win", cfg.APIKey)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadConfig() error = nil, want read failure")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			APIKey:       "k",
			CallbackURL:  "https://sink.example",
			MaxTurns:     10,
			MinArtifacts: 2,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing api key", func(c *Config) { c.APIKey = "" }, true},
		{"missing callback url", func(c *Config) { c.CallbackURL = "" }, true},
		{"max turns too small", func(c *Config) { c.MaxTurns = 1 }, true},
		{"min artifacts too small", func(c *Config) { c.MinArtifacts = 0 }, true},
		{"sweep without ttl", func(c *Config) { c.SweepInterval = Duration(time.Minute) }, true},
		{"sweep with ttl", func(c *Config) { c.SweepInterval = Duration(time.Minute); c.SessionTTL = Duration(time.Hour) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
