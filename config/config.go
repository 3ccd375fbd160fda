// Package config defines the Foreman application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Foreman configuration.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	DBPath   string         `json:"db_path" yaml:"db_path"`
	LogLevel string         `json:"log_level" yaml:"log_level"`
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	Session  SessionConfig  `json:"session" yaml:"session"`
	Payment  PaymentConfig  `json:"payment" yaml:"payment"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":9090"
}

// ProviderConfig selects the generative backend.
type ProviderConfig struct {
	Name      string `json:"name" yaml:"name"` // "anthropic" or "mock"
	Model     string `json:"model,omitempty" yaml:"model"`
	APIKeyEnv string `json:"api_key_env" yaml:"api_key_env"` // env var holding the API key
}

// SessionConfig controls conversation orchestration.
type SessionConfig struct {
	StepBudget        int `json:"step_budget" yaml:"step_budget"`
	MaxSessions       int `json:"max_sessions" yaml:"max_sessions"`
	ConfirmGraceTurns int `json:"confirm_grace_turns" yaml:"confirm_grace_turns"`
}

// PaymentConfig controls the payment estimation engine.
type PaymentConfig struct {
	MaxAttempts  int `json:"max_attempts" yaml:"max_attempts"`
	HistoryLimit int `json:"history_limit" yaml:"history_limit"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":9090",
		},
		DBPath:   "./data/foreman.db",
		LogLevel: "info",
		Provider: ProviderConfig{
			Name:      "anthropic",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		Session: SessionConfig{
			StepBudget:        8,
			MaxSessions:       128,
			ConfirmGraceTurns: 1,
		},
		Payment: PaymentConfig{
			MaxAttempts:  3,
			HistoryLimit: 10,
		},
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SlogLevel maps the configured log level to a slog.Level. Unknown values
// fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
