// Package config loads kanachord settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds settings read from KANACHORD_* variables. Command-line flags
// override them.
type Config struct {
	// OutputDir replaces the host engine's complex modification directory.
	OutputDir string `env:"KANACHORD_OUTPUT_DIR"`
	// StateDB is the build history database; empty means the default
	// location under the user config directory.
	StateDB string `env:"KANACHORD_STATE_DB"`

	ChordWindowMS   int `env:"KANACHORD_CHORD_WINDOW_MS"   envDefault:"50"`
	StickyTimeoutMS int `env:"KANACHORD_STICKY_TIMEOUT_MS" envDefault:"1000"`
	WatchDebounceMS int `env:"KANACHORD_WATCH_DEBOUNCE_MS" envDefault:"300"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads Config from the environment and checks the timing values.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects timing values the host engine cannot honor.
func (c Config) Validate() error {
	if c.ChordWindowMS <= 0 {
		return fmt.Errorf("KANACHORD_CHORD_WINDOW_MS must be positive, got %d", c.ChordWindowMS)
	}
	if c.StickyTimeoutMS <= 0 {
		return fmt.Errorf("KANACHORD_STICKY_TIMEOUT_MS must be positive, got %d", c.StickyTimeoutMS)
	}
	if c.WatchDebounceMS < 0 {
		return fmt.Errorf("KANACHORD_WATCH_DEBOUNCE_MS must not be negative, got %d", c.WatchDebounceMS)
	}
	return nil
}
