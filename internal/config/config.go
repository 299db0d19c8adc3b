// Package config loads journeysim settings from defaults, an optional YAML
// file and JOURNEYSIM_ environment variables, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/roach88/journeysim/internal/timeline"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels: JOURNEYSIM_SIMULATION__MAX_STEPS.
const EnvPrefix = "JOURNEYSIM_"

// Config represents the top-level configuration for journeysim.
type Config struct {
	Seed      int64            `koanf:"seed"`
	StartDate string           `koanf:"start_date"`
	Database  DatabaseConfig   `koanf:"database"`
	Sim       SimulationConfig `koanf:"simulation"`
	Triggers  TriggersConfig   `koanf:"triggers"`
	Log       LogConfig        `koanf:"log"`
}

// DatabaseConfig holds the SQLite store settings.
type DatabaseConfig struct {
	Path string `koanf:"path"` // empty disables persistence
}

// SimulationConfig holds runner settings.
type SimulationConfig struct {
	MaxSteps            int  `koanf:"max_steps"`
	Workers             int  `koanf:"workers"`
	HorizonDays         int  `koanf:"horizon_days"`
	SkippedPlaceholders bool `koanf:"skipped_placeholders"`
}

// TriggersConfig selects the trigger set.
type TriggersConfig struct {
	Defaults bool     `koanf:"defaults"` // register the built-in cross-product triggers
	Files    []string `koanf:"files"`    // extra trigger definitions (.cue)
}

// LogConfig holds slog handler settings.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

// Start parses StartDate. Validate guarantees it succeeds.
func (c *Config) Start() time.Time {
	d, _ := timeline.ParseDate(c.StartDate)
	return d
}

// Horizon returns the last simulated day for the configured start date.
func (c *Config) Horizon() time.Time {
	return c.Start().AddDate(0, 0, c.Sim.HorizonDays)
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := timeline.ParseDate(c.StartDate); err != nil {
		return fmt.Errorf("invalid start_date %q (want YYYY-MM-DD): %w", c.StartDate, err)
	}
	if c.Sim.MaxSteps <= 0 {
		return fmt.Errorf("simulation.max_steps must be > 0")
	}
	if c.Sim.Workers <= 0 {
		return fmt.Errorf("simulation.workers must be > 0")
	}
	if c.Sim.HorizonDays < 0 {
		return fmt.Errorf("simulation.horizon_days must be >= 0")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (must be debug, info, warn or error)", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q (must be text or json)", c.Log.Format)
	}
	return nil
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		"seed":                            42,
		"start_date":                      "2025-01-01",
		"database.path":                   "",
		"simulation.max_steps":            1000,
		"simulation.workers":              4,
		"simulation.horizon_days":         365,
		"simulation.skipped_placeholders": false,
		"triggers.defaults":               true,
		"triggers.files":                  []string{},
		"log.level":                       "info",
		"log.format":                      "text",
	}
}

// Load loads the configuration from the given file path and environment
// variables. An empty path skips the file layer.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	// 2. File
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps JOURNEYSIM_SIMULATION__MAX_STEPS to simulation.max_steps.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}
