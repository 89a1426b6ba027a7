package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/mesos-stats/internal/carbon"
	"github.com/aaronlmathis/mesos-stats/internal/collector"
	"github.com/aaronlmathis/mesos-stats/internal/fetch"
	"github.com/aaronlmathis/mesos-stats/internal/mapper"
	"github.com/aaronlmathis/mesos-stats/internal/mesos"
	"github.com/aaronlmathis/mesos-stats/internal/singularity"
	"github.com/aaronlmathis/mesos-stats/internal/timeseries"
)

// Config represents the application configuration
type Config struct {
	Mesos       mesos.Config       `yaml:"mesos"`
	Singularity singularity.Config `yaml:"singularity"`
	Carbon      carbon.Config      `yaml:"carbon"`
	Fetch       fetch.Config       `yaml:"fetch"`
	Mapper      mapper.Config      `yaml:"mapper"`
	Collector   collector.Config   `yaml:"collector"`
	Queue       timeseries.Config  `yaml:"queue"`
	Logging     LoggingConfig      `yaml:"logging"`
	Admin       AdminConfig        `yaml:"admin"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AdminConfig represents the optional admin HTTP endpoint. An empty Addr
// disables it.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// Load loads configuration from environment variables over the defaults
func Load() (*Config, error) {
	return loadWithDefaults("")
}

// LoadFromFile loads configuration from a YAML file, then applies
// environment overrides
func LoadFromFile(configPath string) (*Config, error) {
	return loadWithDefaults(configPath)
}

func loadWithDefaults(configPath string) (*Config, error) {
	config := defaults()

	if configPath != "" {
		if err := loadFromYAMLFile(configPath, config); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

func defaults() *Config {
	return &Config{
		Mesos:       mesos.DefaultConfig(),
		Singularity: singularity.DefaultConfig(),
		Carbon:      carbon.DefaultConfig(),
		Fetch:       fetch.DefaultConfig(),
		Collector:   collector.DefaultConfig(),
		Queue:       timeseries.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a boolean", key, value)
	}
	return parsed, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return parsed, nil
}

// getEnvDuration accepts a Go duration ("90s") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a duration", key, value)
	}
	return parsed, nil
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// loadFromYAMLFile decodes a YAML file over config. Keys missing from the
// file keep their current values.
func loadFromYAMLFile(configPath string, config *Config) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return nil
}

// applyEnv overrides config with environment variables. Variables that are
// unset leave the file or default value in place.
func applyEnv(c *Config) error {
	var err error

	c.Mesos.Masters = getEnvStringSlice("MESOS_MASTER", c.Mesos.Masters)
	c.Singularity.Host = getEnv("SINGULARITY_HOST", c.Singularity.Host)
	c.Carbon.Host = getEnv("CARBON_HOST", c.Carbon.Host)
	c.Carbon.Prefix = getEnv("GRAPHITE_PREFIX", c.Carbon.Prefix)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Admin.Addr = getEnv("MESOS_STATS_ADMIN_ADDR", c.Admin.Addr)

	if c.Carbon.Port, err = getEnvInt("CARBON_PORT", c.Carbon.Port); err != nil {
		return err
	}
	if c.Carbon.PicklePort, err = getEnvInt("CARBON_PICKLE_PORT", c.Carbon.PicklePort); err != nil {
		return err
	}
	if c.Carbon.Pickle, err = getEnvBool("CARBON_PICKLE", c.Carbon.Pickle); err != nil {
		return err
	}
	if c.Carbon.DryRun, err = getEnvBool("DRY_RUN", c.Carbon.DryRun); err != nil {
		return err
	}
	if c.Mesos.Workers, err = getEnvInt("MESOS_STATS_WORKERS", c.Mesos.Workers); err != nil {
		return err
	}
	if c.Collector.Period, err = getEnvDuration("MESOS_STATS_PERIOD", c.Collector.Period); err != nil {
		return err
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Mesos.Masters) == 0 {
		return fmt.Errorf("at least one mesos master is required (MESOS_MASTER)")
	}

	if !c.Carbon.DryRun {
		if c.Carbon.Host == "" {
			return fmt.Errorf("carbon host is required unless dry run is enabled (CARBON_HOST)")
		}
		if c.Carbon.Prefix == "" {
			return fmt.Errorf("graphite prefix is required unless dry run is enabled (GRAPHITE_PREFIX)")
		}
	}

	if c.Collector.Period <= 0 {
		return fmt.Errorf("collection period must be positive, got %s", c.Collector.Period)
	}
	if c.Collector.Margin < 0 || c.Collector.Margin >= c.Collector.Period {
		return fmt.Errorf("collection margin %s must be between 0 and the period %s", c.Collector.Margin, c.Collector.Period)
	}
	if c.Mesos.Workers <= 0 {
		return fmt.Errorf("mesos workers must be positive, got %d", c.Mesos.Workers)
	}
	if c.Carbon.ChunkSize <= 0 {
		return fmt.Errorf("carbon chunk size must be positive, got %d", c.Carbon.ChunkSize)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be one of debug, info, warn, error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logging.Format)
	}

	return nil
}

// Summary returns the effective settings worth logging at startup
func (c *Config) Summary() map[string]interface{} {
	return map[string]interface{}{
		"masters":     c.Mesos.Masters,
		"workers":     c.Mesos.Workers,
		"carbon":      c.Carbon.Host,
		"prefix":      c.Carbon.Prefix,
		"pickle":      c.Carbon.Pickle,
		"singularity": c.Singularity.Host,
		"dryRun":      c.Carbon.DryRun,
		"period":      c.Collector.Period.String(),
		"admin":       c.Admin.Addr,
	}
}
