package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(options{set: map[string]bool{}})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != "http://localhost:3001" || cfg.Suite != "responsive" || cfg.Browser.Driver != "rod" {
		t.Errorf("defaults: %s %s %s", cfg.BaseURL, cfg.Suite, cfg.Browser.Driver)
	}
	if len(cfg.Devices) != 6 || len(cfg.Pages) != 6 {
		t.Errorf("matrix: %d × %d", len(cfg.Devices), len(cfg.Pages))
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewcheck.yaml")
	yaml := "base_url: http://localhost:3000/\nsuite: all\nstrict: true\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(options{
		configPath: path,
		suite:      "functional",
		driver:     "playwright",
		set:        map[string]bool{"suite": true, "driver": true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != "http://localhost:3000" {
		t.Errorf("BaseURL: %q", cfg.BaseURL)
	}
	if cfg.Suite != "functional" || cfg.Browser.Driver != "playwright" || !cfg.Strict {
		t.Errorf("overrides: %+v", cfg)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	if _, err := loadConfig(options{suite: "visual", set: map[string]bool{"suite": true}}); err == nil {
		t.Error("unknown suite accepted")
	}
	if _, err := loadConfig(options{baseURL: "localhost:3001", set: map[string]bool{"base-url": true}}); err == nil {
		t.Error("schemeless base url accepted")
	}
	if _, err := loadConfig(options{configPath: "/nonexistent/viewcheck.yaml", set: map[string]bool{}}); err == nil {
		t.Error("missing file accepted")
	}
}
