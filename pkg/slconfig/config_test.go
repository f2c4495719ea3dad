package slconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewHasSaneDefaults(t *testing.T) {
	cfg := New()
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default logging level info, got %q", cfg.Logging.Level)
	}
	if cfg.Loader.FetchTimeoutMS != 30_000 {
		t.Fatalf("expected default fetch timeout 30000ms, got %d", cfg.Loader.FetchTimeoutMS)
	}
	if cfg.Capability.RateLimitPerSecond != 10 {
		t.Fatalf("expected default rate limit 10/s, got %v", cfg.Capability.RateLimitPerSecond)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slipway.yaml")
	yamlBody := "loader:\n  registry_templates:\n    - \"https://registry.example/{publisher}/{name}/{version}.tar.gz\"\ncapability:\n  font_dir: /fonts\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		t.Fatalf("loadFromFile returned error: %v", err)
	}
	if len(cfg.Loader.RegistryTemplates) != 1 {
		t.Fatalf("expected one registry template, got %v", cfg.Loader.RegistryTemplates)
	}
	if cfg.Capability.FontDir != "/fonts" {
		t.Fatalf("expected font dir override, got %q", cfg.Capability.FontDir)
	}
}

func TestLoadFromFileMissingIsNotAnError(t *testing.T) {
	cfg := New()
	if err := loadFromFile(filepath.Join(t.TempDir(), "missing.yaml"), cfg); err != nil {
		t.Fatalf("expected missing config file to be silently ignored, got %v", err)
	}
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	t.Setenv("SLIPWAY_FONT_DIR", "/env-fonts")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Capability.FontDir != "/env-fonts" {
		t.Fatalf("expected env override to win, got %q", cfg.Capability.FontDir)
	}
}
