package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds client configuration values.
type Config struct {
	APIBaseURL        string        `mapstructure:"api_base_url" yaml:"api_base_url"`
	StreamBaseURL     string        `mapstructure:"stream_base_url" yaml:"stream_base_url"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	ReconnectMaxDelay time.Duration `mapstructure:"reconnect_max_delay" yaml:"reconnect_max_delay"`
	ReconnectFactor   float64       `mapstructure:"reconnect_factor" yaml:"reconnect_factor"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		APIBaseURL:        "http://localhost:8000",
		StreamBaseURL:     "ws://localhost:8000",
		DatabasePath:      defaultDatabasePath(),
		LogLevel:          "info",
		RequestTimeout:    15 * time.Second,
		ReconnectDelay:    3 * time.Second,
		ReconnectMaxDelay: 30 * time.Second,
		ReconnectFactor:   2,
	}
}

func defaultDatabasePath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "session.db"
	}
	return filepath.Join(base, "chatapp", "session.db")
}
