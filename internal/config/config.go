package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	DatabasePath    string        `mapstructure:"database_path" yaml:"database_path"`
	HistoryLimit    int           `mapstructure:"history_limit" yaml:"history_limit"`
	LoginTimeout    time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:            ":12345",
		DatabasePath:    "data/chat.db",
		HistoryLimit:    50,
		LoginTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
	}
}
