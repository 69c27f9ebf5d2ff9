// Package config loads simulation settings from a YAML file with
// environment overrides. Every field has a usable default, so a missing
// config file starts a standard city.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-economy/internal/engine"
)

// Config is the full set of tunables for one simulation run.
type Config struct {
	// Seed drives all world randomness. 0 means draw one at startup.
	Seed int64 `yaml:"seed"`

	Residents    int     `yaml:"residents"`
	ResidentCash float64 `yaml:"resident_cash"`
	CompanyCash  float64 `yaml:"company_cash"`
	BankReserves float64 `yaml:"bank_reserves"`

	Cadence engine.Cadence `yaml:"cadence"`

	// TickMillis is the wall-clock interval per tick at speed 1.
	TickMillis int `yaml:"tick_millis"`

	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`

	// Strict halts the run on a conservation violation instead of
	// logging and rebaselining.
	Strict bool `yaml:"strict"`
}

// Default returns the standard city configuration.
func Default() Config {
	return Config{
		Seed:         42,
		Residents:    200,
		ResidentCash: 100,
		CompanyCash:  2000,
		BankReserves: 50000,
		Cadence:      engine.DefaultCadence(),
		TickMillis:   1000,
		Port:         8080,
		DBPath:       "data/economy.db",
		Strict:       false,
	}
}

// Load reads the config file at path, falling back to defaults when it
// does not exist, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Cadence.Valid(); err != nil {
		return cfg, err
	}
	if cfg.Residents <= 0 {
		return cfg, fmt.Errorf("config: residents must be positive")
	}
	if cfg.TickMillis <= 0 {
		return cfg, fmt.Errorf("config: tick_millis must be positive")
	}
	return cfg, nil
}

// applyEnv lets deploy environments override file settings.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("ECONSIM_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ECONSIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}
	if v := os.Getenv("ECONSIM_STRICT"); v != "" {
		cfg.Strict = v == "1" || v == "true"
	}
}
