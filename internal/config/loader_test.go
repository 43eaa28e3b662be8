package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesAndReadsDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8000" || cfg.ReconnectDelay != 3*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadAppliesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "api_base_url: https://chat.example.com\nreconnect_delay: 5s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "https://chat.example.com" {
		t.Fatalf("api_base_url = %q", cfg.APIBaseURL)
	}
	if cfg.ReconnectDelay != 5*time.Second {
		t.Fatalf("reconnect_delay = %v", cfg.ReconnectDelay)
	}
	// Untouched keys keep their defaults.
	if cfg.StreamBaseURL != "ws://localhost:8000" {
		t.Fatalf("stream_base_url = %q", cfg.StreamBaseURL)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CHATAPP_LOG_LEVEL", "debug")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level = %q, want env override", cfg.LogLevel)
	}
}
