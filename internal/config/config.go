// Package config loads and validates the sharewatch configuration and the
// watched-resource list from strict TOML files.
package config

import (
	"fmt"
	"time"
)

// Default tuning values.
const (
	defaultPollInterval  = "5m"
	defaultGraceWindow   = "24h"
	defaultChunkSize     = 10
	defaultItemPause     = "500ms"
	defaultReinvokeDelay = "5s"
	defaultDatabasePath  = "sharewatch.db"
	defaultResourcesPath = "resources.toml"
	defaultLogLevel      = "info"
)

// Config is the top-level configuration file. Durations are TOML strings
// parsed with time.ParseDuration at validation time.
type Config struct {
	APIBaseURL    string `toml:"api_base_url"`
	Token         string `toml:"token"`
	WebhookURL    string `toml:"webhook_url"`
	DatabasePath  string `toml:"database_path"`
	ResourcesPath string `toml:"resources_path"`
	LogLevel      string `toml:"log_level"`
	LogFile       string `toml:"log_file"`
	PollInterval  string `toml:"poll_interval"`
	GraceWindow   string `toml:"grace_window"`
	ChunkSize     int    `toml:"chunk_size"`
	ItemPause     string `toml:"item_pause"`
	ReinvokeDelay string `toml:"reinvoke_delay"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:  defaultDatabasePath,
		ResourcesPath: defaultResourcesPath,
		LogLevel:      defaultLogLevel,
		PollInterval:  defaultPollInterval,
		GraceWindow:   defaultGraceWindow,
		ChunkSize:     defaultChunkSize,
		ItemPause:     defaultItemPause,
		ReinvokeDelay: defaultReinvokeDelay,
	}
}

// Durations holds the parsed duration fields of a validated Config.
type Durations struct {
	PollInterval  time.Duration
	GraceWindow   time.Duration
	ItemPause     time.Duration
	ReinvokeDelay time.Duration
}

// Validate checks a Config for consistency and parses its duration fields.
func Validate(cfg *Config) (*Durations, error) {
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("config: api_base_url is required")
	}

	if cfg.ChunkSize < 1 {
		return nil, fmt.Errorf("config: chunk_size must be at least 1, got %d", cfg.ChunkSize)
	}

	d := &Durations{}

	fields := []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{"poll_interval", cfg.PollInterval, &d.PollInterval},
		{"grace_window", cfg.GraceWindow, &d.GraceWindow},
		{"item_pause", cfg.ItemPause, &d.ItemPause},
		{"reinvoke_delay", cfg.ReinvokeDelay, &d.ReinvokeDelay},
	}

	for _, f := range fields {
		dur, err := time.ParseDuration(f.value)
		if err != nil {
			return nil, fmt.Errorf("config: parsing %s %q: %w", f.name, f.value, err)
		}

		if dur < 0 {
			return nil, fmt.Errorf("config: %s must not be negative", f.name)
		}

		*f.dest = dur
	}

	return d, nil
}
