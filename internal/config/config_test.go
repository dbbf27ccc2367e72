package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/evidencelab/heatgrid/internal/domain/grid"
)

func writeConfig(t *testing.T, dir, env, content string) {
	t.Helper()
	cfgDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, env+".yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "test", `
http:
  port: 8080
backend:
  base_url: http://localhost:9200
`)
	chdir(t, dir)

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.ReadTimeoutSec != 10 || cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("http defaults = %+v", cfg.HTTP)
	}
	if cfg.Backend.TimeoutSec != 30 {
		t.Errorf("backend.timeout_sec = %d", cfg.Backend.TimeoutSec)
	}
	if cfg.Grid.BatchSize != 4 || cfg.Grid.BatchIntervalMS != 500 {
		t.Errorf("grid batch defaults = %+v", cfg.Grid)
	}
	if cfg.Grid.CutoffPercentile != 0.20 {
		t.Errorf("cutoff_percentile = %v", cfg.Grid.CutoffPercentile)
	}
	if cfg.Grid.MaxAxisValues != 40 || cfg.Grid.ResultsPerCell != grid.DefaultResultsPerCell {
		t.Errorf("grid axis defaults = %+v", cfg.Grid)
	}
	if cfg.Cache.CatalogTTLSec != 900 {
		t.Errorf("cache.catalog_ttl_sec = %d", cfg.Cache.CatalogTTLSec)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "test", `
http:
  port: ${HEATGRID_TEST_PORT:-8080}
backend:
  base_url: ${HEATGRID_TEST_BACKEND}
`)
	chdir(t, dir)
	t.Setenv("HEATGRID_TEST_BACKEND", "https://search.internal:8443")

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("port = %d, want the fallback default", cfg.HTTP.Port)
	}
	if cfg.Backend.BaseURL != "https://search.internal:8443" {
		t.Errorf("base_url = %q", cfg.Backend.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.HTTP.Port = 0 }, true},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }, true},
		{"missing backend url", func(c *Config) { c.Backend.BaseURL = "" }, true},
		{"bad backend scheme", func(c *Config) { c.Backend.BaseURL = "localhost:9200" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				HTTP:    HTTPConfig{Port: 8080},
				Backend: BackendConfig{BaseURL: "http://localhost:9200"},
			}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load("nope"); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
