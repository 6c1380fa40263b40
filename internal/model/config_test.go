package model

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Archive.AfterDays != 5 {
		t.Errorf("AfterDays = %d, want 5", cfg.Archive.AfterDays)
	}
	if cfg.Habits.SubmitAt != "00:00" {
		t.Errorf("SubmitAt = %q, want 00:00", cfg.Habits.SubmitAt)
	}
	if cfg.Sync.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Sync.MaxAttempts)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := &AppConfig{
		Gateway: GatewayConfig{BaseURL: "http://proxy.test", TimeoutSec: 7, ProbeIntervalSec: 9},
		Store:   StoreConfig{Path: "/tmp/efficio.db"},
		Sync:    SyncConfig{MaxAttempts: 2, BaseBackoffSec: 1, MaxBackoffSec: 8},
		Archive: ArchiveConfig{AfterDays: 10},
		Habits:  HabitsConfig{SubmitAt: "23:30"},
	}
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Gateway.BaseURL != "http://proxy.test" || got.Archive.AfterDays != 10 || got.Sync.MaxAttempts != 2 {
		t.Errorf("round-tripped config = %+v", got)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("EFFICIO_GATEWAY_BASE_URL", "http://from-env")

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("EFFICIO_ARCHIVE_AFTER_DAYS=8\n"), 0o600); err != nil {
		t.Fatalf("writing .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("EFFICIO_ARCHIVE_AFTER_DAYS") })

	cfg, err := LoadConfig(filepath.Join(dir, "none.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Gateway.BaseURL != "http://from-env" {
		t.Errorf("BaseURL = %q, want env override", cfg.Gateway.BaseURL)
	}
	if cfg.Archive.AfterDays != 8 {
		t.Errorf("AfterDays = %d, want 8 from .env", cfg.Archive.AfterDays)
	}
}
