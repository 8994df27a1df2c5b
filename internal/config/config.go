// Package config loads service configuration by layering defaults, an
// optional YAML file, and NUDGE_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store backend names.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `koanf:"addr"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Store selects the event-store backend: memory or sqlite.
	Store string `koanf:"store"`

	// DataDir holds the SQLite database and the trained weights file.
	DataDir string `koanf:"data_dir"`

	// RetentionDays is the maximum age of stored events and audit records.
	RetentionDays int `koanf:"retention_days"`

	// PruneIntervalSeconds sets how often the background prune worker runs.
	PruneIntervalSeconds int `koanf:"prune_interval_seconds"`

	// APIKeys is a comma-separated list of accepted X-API-Key values.
	// Empty leaves every endpoint open (development mode).
	APIKeys string `koanf:"api_keys"`

	// PIISecret keys the HMAC used to hash PII meta fields. Empty falls
	// back to an unkeyed hash.
	PIISecret string `koanf:"pii_secret"`

	// HashWindowTitles replaces window titles with a hash of their first
	// 100 characters instead of a truncated copy.
	HashWindowTitles bool `koanf:"hash_window_titles"`

	// AutoExecuteConfidence is the minimum confidence for automatic
	// execution.
	AutoExecuteConfidence float64 `koanf:"auto_execute_confidence"`

	// StatisticalInsights selects the statistical classifier over the
	// heuristic fallback for the enrichment rule.
	StatisticalInsights bool `koanf:"statistical_insights"`
}

func defaults() Config {
	return Config{
		Addr:                  "127.0.0.1:4800",
		LogLevel:              "info",
		Store:                 StoreMemory,
		DataDir:               defaultDataDir(),
		RetentionDays:         30,
		PruneIntervalSeconds:  3600,
		HashWindowTitles:      true,
		AutoExecuteConfidence: 0.9,
		StatisticalInsights:   true,
	}
}

// Load builds a Config by layering defaults, an optional YAML file, and
// environment variables. Order of precedence (low -> high):
//  1. defaults
//  2. file (YAML) if NUDGE_CONFIG is set
//  3. env (prefix NUDGE_, e.g. NUDGE_STORE, NUDGE_RETENTION_DAYS)
func Load() (Config, error) {
	cfg := defaults()

	k := koanf.New(".")

	if path := os.Getenv("NUDGE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("NUDGE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "NUDGE_"))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.Store != StoreMemory && c.Store != StoreSQLite {
		return fmt.Errorf("store must be %q or %q, got %q", StoreMemory, StoreSQLite, c.Store)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive, got %d", c.RetentionDays)
	}
	if c.PruneIntervalSeconds <= 0 {
		return fmt.Errorf("prune_interval_seconds must be positive, got %d", c.PruneIntervalSeconds)
	}
	if c.AutoExecuteConfidence < 0 || c.AutoExecuteConfidence > 1 {
		return fmt.Errorf("auto_execute_confidence must be in [0,1], got %g", c.AutoExecuteConfidence)
	}
	return nil
}

// Retention returns the retention window as a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// PruneInterval returns the prune cadence as a duration.
func (c Config) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalSeconds) * time.Second
}

// Keys splits APIKeys into the accepted key list, dropping empty entries.
func (c Config) Keys() []string {
	var keys []string
	for _, k := range strings.Split(c.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nudge"
	}
	return filepath.Join(home, ".nudge")
}
