package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHomePrecedence(t *testing.T) {
	t.Cleanup(func() { SetConfigDir("") })

	t.Setenv("MMAPURL_HOME", "/env/mmapurl")
	SetConfigDir("")
	if got := Home(); got != "/env/mmapurl" {
		t.Errorf("Home() = %q, want %q", got, "/env/mmapurl")
	}

	SetConfigDir("/flag/mmapurl")
	if got := Home(); got != "/flag/mmapurl" {
		t.Errorf("Home() = %q, want %q", got, "/flag/mmapurl")
	}
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()
	SetConfigDir(tmpDir)
	t.Cleanup(func() { SetConfigDir("") })

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	want := Defaults()
	if *cfg != want {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, want)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	SetConfigDir(tmpDir)
	t.Cleanup(func() { SetConfigDir("") })

	cfg := Defaults()
	cfg.Workers = 4
	if err := Save(&cfg); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "config.toml")); err != nil {
		t.Fatalf("expected config.toml to exist: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Workers != 4 {
		t.Errorf("Workers = %d, want 4", got.Workers)
	}
}

func TestEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	SetConfigDir(tmpDir)
	t.Cleanup(func() { SetConfigDir("") })
	t.Setenv("MMAPURL_WORKERS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 7 {
		t.Errorf("Workers = %d, want 7 (env override)", cfg.Workers)
	}
}

func TestGetSetUnknownKey(t *testing.T) {
	tmpDir := t.TempDir()
	SetConfigDir(tmpDir)
	t.Cleanup(func() { SetConfigDir("") })

	if _, err := Get("not_a_key"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := Set("not_a_key", "1"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestGetSet(t *testing.T) {
	tmpDir := t.TempDir()
	SetConfigDir(tmpDir)
	t.Cleanup(func() { SetConfigDir("") })

	if err := Set("max_resident_pages", "1000"); err != nil {
		t.Fatal(err)
	}
	got, err := Get("max_resident_pages")
	if err != nil {
		t.Fatal(err)
	}
	if got != "1000" {
		t.Errorf("Get(max_resident_pages) = %q, want %q", got, "1000")
	}
}
