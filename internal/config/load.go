package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config plus its parsed durations. Unknown keys are fatal —
// silently ignoring a typo in a config file leads to hard-to-debug behavior.
func Load(path string) (*Config, *Durations, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md, path); err != nil {
		return nil, nil, err
	}

	durations, err := Validate(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, durations, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values. Supports the zero-config first
// run — though api_base_url still has to come from somewhere before any
// command that talks to the API.
func LoadOrDefault(path string) (*Config, *Durations, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()

		durations, vErr := parseDurationsLenient(cfg)
		if vErr != nil {
			return nil, nil, vErr
		}

		return cfg, durations, nil
	}

	return Load(path)
}

// parseDurationsLenient parses durations without requiring api_base_url,
// for the defaults-only path where no file exists yet.
func parseDurationsLenient(cfg *Config) (*Durations, error) {
	saved := cfg.APIBaseURL
	cfg.APIBaseURL = "unset"

	durations, err := Validate(cfg)

	cfg.APIBaseURL = saved

	return durations, err
}

// checkUnknownKeys rejects keys the Config struct did not decode.
func checkUnknownKeys(md *toml.MetaData, path string) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	keys := make([]string, 0, len(undecoded))
	for _, k := range undecoded {
		keys = append(keys, k.String())
	}

	return fmt.Errorf("config file %s contains unknown keys: %s", path, strings.Join(keys, ", "))
}
