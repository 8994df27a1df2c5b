package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:4800" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("store = %q, want memory", cfg.Store)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("retention_days = %d, want 30", cfg.RetentionDays)
	}
	if !cfg.HashWindowTitles {
		t.Error("hash_window_titles should default on")
	}
	if !cfg.StatisticalInsights {
		t.Error("statistical_insights should default on")
	}
	if cfg.AutoExecuteConfidence != 0.9 {
		t.Errorf("auto_execute_confidence = %g, want 0.9", cfg.AutoExecuteConfidence)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NUDGE_STORE", "sqlite")
	t.Setenv("NUDGE_RETENTION_DAYS", "7")
	t.Setenv("NUDGE_API_KEYS", "key-a, key-b,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StoreSQLite {
		t.Errorf("store = %q, want sqlite", cfg.Store)
	}
	if cfg.RetentionDays != 7 {
		t.Errorf("retention_days = %d, want 7", cfg.RetentionDays)
	}
	keys := cfg.Keys()
	if len(keys) != 2 || keys[0] != "key-a" || keys[1] != "key-b" {
		t.Errorf("keys = %v", keys)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nudge.yaml")
	content := "addr: \"0.0.0.0:9900\"\nretention_days: 14\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NUDGE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "0.0.0.0:9900" {
		t.Errorf("addr = %q, want file value", cfg.Addr)
	}
	if cfg.RetentionDays != 14 {
		t.Errorf("retention_days = %d, want 14", cfg.RetentionDays)
	}
}

// TestEnvBeatsFile layers both sources and verifies precedence.
func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nudge.yaml")
	if err := os.WriteFile(path, []byte("retention_days: 14\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NUDGE_CONFIG", path)
	t.Setenv("NUDGE_RETENTION_DAYS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RetentionDays != 3 {
		t.Errorf("retention_days = %d, want env to win", cfg.RetentionDays)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad store", "NUDGE_STORE", "postgres"},
		{"negative retention", "NUDGE_RETENTION_DAYS", "-1"},
		{"confidence above one", "NUDGE_AUTO_EXECUTE_CONFIDENCE", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected validation error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Config{RetentionDays: 2, PruneIntervalSeconds: 90}
	if got := cfg.Retention(); got != 48*time.Hour {
		t.Errorf("Retention() = %v", got)
	}
	if got := cfg.PruneInterval(); got != 90*time.Second {
		t.Errorf("PruneInterval() = %v", got)
	}
}
