package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Test default configuration
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load default config: %v", err)
	}

	if cfg.Carbon.Port != 2003 {
		t.Errorf("Expected default carbon port to be 2003, got %d", cfg.Carbon.Port)
	}

	if cfg.Carbon.PicklePort != 2004 {
		t.Errorf("Expected default pickle port to be 2004, got %d", cfg.Carbon.PicklePort)
	}

	if cfg.Collector.Period != 60*time.Second {
		t.Errorf("Expected default period to be 60s, got %s", cfg.Collector.Period)
	}

	if cfg.Mesos.Workers != 10 {
		t.Errorf("Expected default workers to be 10, got %d", cfg.Mesos.Workers)
	}

	if cfg.Singularity.Workers != 10 {
		t.Errorf("Expected default singularity workers to be 10, got %d", cfg.Singularity.Workers)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level to be 'info', got '%s'", cfg.Logging.Level)
	}
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv("MESOS_MASTER", "http://m1:5050, m2 ,")
	t.Setenv("CARBON_HOST", "carbon.local")
	t.Setenv("CARBON_PORT", "2013")
	t.Setenv("CARBON_PICKLE", "True")
	t.Setenv("GRAPHITE_PREFIX", "mesos.prod")
	t.Setenv("SINGULARITY_HOST", "singularity.local")
	t.Setenv("DRY_RUN", "False")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MESOS_STATS_PERIOD", "30")
	t.Setenv("MESOS_STATS_WORKERS", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config with env vars: %v", err)
	}

	if len(cfg.Mesos.Masters) != 2 || cfg.Mesos.Masters[0] != "http://m1:5050" || cfg.Mesos.Masters[1] != "m2" {
		t.Errorf("Expected masters [http://m1:5050 m2], got %v", cfg.Mesos.Masters)
	}
	if cfg.Carbon.Host != "carbon.local" || cfg.Carbon.Port != 2013 {
		t.Errorf("Expected carbon carbon.local:2013, got %s:%d", cfg.Carbon.Host, cfg.Carbon.Port)
	}
	if !cfg.Carbon.Pickle {
		t.Error("Expected pickle to be enabled")
	}
	if cfg.Carbon.DryRun {
		t.Error("Expected dry run to be disabled")
	}
	if cfg.Carbon.Prefix != "mesos.prod" {
		t.Errorf("Expected prefix 'mesos.prod', got '%s'", cfg.Carbon.Prefix)
	}
	if cfg.Singularity.Host != "singularity.local" {
		t.Errorf("Expected singularity host 'singularity.local', got '%s'", cfg.Singularity.Host)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level to be 'debug', got '%s'", cfg.Logging.Level)
	}
	if cfg.Collector.Period != 30*time.Second {
		t.Errorf("Expected period 30s, got %s", cfg.Collector.Period)
	}
	if cfg.Mesos.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Mesos.Workers)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected env config to validate, got %v", err)
	}
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	tests := map[string]string{
		"CARBON_PORT":        "carbon",
		"DRY_RUN":            "maybe",
		"MESOS_STATS_PERIOD": "soon",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%q", key, value)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
mesos:
  masters: ["m1:5050", "m2:5050"]
carbon:
  host: carbon.file
  prefix: mesos.file
  chunk_size: 100
collector:
  period: 2m
mapper:
  request_tree: true
admin:
  addr: 127.0.0.1:9100
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("CARBON_HOST", "carbon.env")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if len(cfg.Mesos.Masters) != 2 {
		t.Errorf("Expected 2 masters from file, got %v", cfg.Mesos.Masters)
	}
	if cfg.Carbon.Host != "carbon.env" {
		t.Errorf("Expected environment to override file carbon host, got '%s'", cfg.Carbon.Host)
	}
	if cfg.Carbon.ChunkSize != 100 {
		t.Errorf("Expected chunk size 100, got %d", cfg.Carbon.ChunkSize)
	}
	if cfg.Carbon.Port != 2003 {
		t.Errorf("Expected default carbon port to survive file merge, got %d", cfg.Carbon.Port)
	}
	if cfg.Collector.Period != 2*time.Minute {
		t.Errorf("Expected period 2m, got %s", cfg.Collector.Period)
	}
	if cfg.Collector.Margin != time.Second {
		t.Errorf("Expected default margin 1s, got %s", cfg.Collector.Margin)
	}
	if !cfg.Mapper.RequestTree {
		t.Error("Expected request tree to be enabled")
	}
	if cfg.Admin.Addr != "127.0.0.1:9100" {
		t.Errorf("Expected admin addr from file, got '%s'", cfg.Admin.Addr)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func validConfig() Config {
	cfg := *defaults()
	cfg.Mesos.Masters = []string{"m1:5050"}
	cfg.Carbon.Host = "carbon"
	cfg.Carbon.Prefix = "mesos"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{
			name:      "valid config",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "no masters",
			mutate:    func(c *Config) { c.Mesos.Masters = nil },
			wantError: true,
		},
		{
			name:      "no carbon host",
			mutate:    func(c *Config) { c.Carbon.Host = "" },
			wantError: true,
		},
		{
			name:      "no prefix",
			mutate:    func(c *Config) { c.Carbon.Prefix = "" },
			wantError: true,
		},
		{
			name: "dry run without carbon",
			mutate: func(c *Config) {
				c.Carbon.DryRun = true
				c.Carbon.Host = ""
				c.Carbon.Prefix = ""
			},
			wantError: false,
		},
		{
			name:      "zero period",
			mutate:    func(c *Config) { c.Collector.Period = 0 },
			wantError: true,
		},
		{
			name:      "margin not below period",
			mutate:    func(c *Config) { c.Collector.Margin = c.Collector.Period },
			wantError: true,
		},
		{
			name:      "zero workers",
			mutate:    func(c *Config) { c.Mesos.Workers = 0 },
			wantError: true,
		},
		{
			name:      "zero chunk size",
			mutate:    func(c *Config) { c.Carbon.ChunkSize = 0 },
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantError: true,
		},
		{
			name:      "invalid log format",
			mutate:    func(c *Config) { c.Logging.Format = "xml" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}
