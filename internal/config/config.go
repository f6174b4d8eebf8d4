// Package config loads and validates the sessmaint TOML configuration.
// Defaults live in one place here; every component receives its
// configuration explicitly, there is no process-wide mutable state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the full configuration surface.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Backup    BackupConfig    `toml:"backup"`
	Policy    PolicyConfig    `toml:"policy"`
	Optimizer OptimizerConfig `toml:"optimizer"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Schedule  ScheduleConfig  `toml:"schedule"`
}

// StoreConfig locates the session store file.
type StoreConfig struct {
	Path string `toml:"path"`
}

// BackupConfig controls where snapshots land. An empty dir keeps them next
// to the store file.
type BackupConfig struct {
	Dir string `toml:"dir"`
}

// PolicyConfig holds the eviction thresholds in hours.
type PolicyConfig struct {
	MaxSessionAgeHours  int64 `toml:"max_session_age_hours"`
	MaxInactiveAgeHours int64 `toml:"max_inactive_age_hours"`
}

// OptimizerConfig holds the compaction caps and the acceptance threshold.
type OptimizerConfig struct {
	SessionSizeThresholdBytes int     `toml:"session_size_threshold_bytes"`
	MaxProductQuantities      int     `toml:"max_product_quantities"`
	ProductQuantitiesRetain   int     `toml:"product_quantities_retain"`
	MaxCartItems              int     `toml:"max_cart_items"`
	CartItemsRetain           int     `toml:"cart_items_retain"`
	AcceptancePercent         float64 `toml:"compression_acceptance_percent"`
}

// LoggingConfig mirrors the logger package configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// MetricsConfig controls the prometheus endpoint of the serve command.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

// ScheduleConfig controls periodic cleanup in serve mode.
type ScheduleConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a TOML config file, fills defaults and expands paths.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandPaths(&cfg)
	return &cfg, nil
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errors []error

	if c.Store.Path == "" {
		errors = append(errors, fmt.Errorf("store.path is required"))
	}

	if c.Policy.MaxSessionAgeHours <= 0 {
		errors = append(errors, fmt.Errorf("policy.max_session_age_hours must be positive"))
	}
	if c.Policy.MaxInactiveAgeHours <= 0 {
		errors = append(errors, fmt.Errorf("policy.max_inactive_age_hours must be positive"))
	}

	if c.Optimizer.SessionSizeThresholdBytes <= 0 {
		errors = append(errors, fmt.Errorf("optimizer.session_size_threshold_bytes must be positive"))
	}
	if c.Optimizer.ProductQuantitiesRetain > c.Optimizer.MaxProductQuantities {
		errors = append(errors, fmt.Errorf("optimizer.product_quantities_retain cannot exceed optimizer.max_product_quantities"))
	}
	if c.Optimizer.CartItemsRetain > c.Optimizer.MaxCartItems {
		errors = append(errors, fmt.Errorf("optimizer.cart_items_retain cannot exceed optimizer.max_cart_items"))
	}
	if c.Optimizer.AcceptancePercent < 0 || c.Optimizer.AcceptancePercent > 100 {
		errors = append(errors, fmt.Errorf("optimizer.compression_acceptance_percent must be within [0, 100]"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}
	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errors = append(errors, fmt.Errorf("metrics.listen_addr is required when metrics are enabled"))
	}
	if c.Schedule.Enabled && c.Schedule.Cron == "" {
		errors = append(errors, fmt.Errorf("schedule.cron is required when the schedule is enabled"))
	}

	return errors
}

func applyDefaults(c *Config) {
	if c.Store.Path == "" {
		c.Store.Path = "~/.sessmaint/sessions.json"
	}

	if c.Policy.MaxSessionAgeHours == 0 {
		c.Policy.MaxSessionAgeHours = 7 * 24
	}
	if c.Policy.MaxInactiveAgeHours == 0 {
		c.Policy.MaxInactiveAgeHours = 24
	}

	if c.Optimizer.SessionSizeThresholdBytes == 0 {
		c.Optimizer.SessionSizeThresholdBytes = 10 * 1024
	}
	if c.Optimizer.MaxProductQuantities == 0 {
		c.Optimizer.MaxProductQuantities = 50
	}
	if c.Optimizer.ProductQuantitiesRetain == 0 {
		c.Optimizer.ProductQuantitiesRetain = 20
	}
	if c.Optimizer.MaxCartItems == 0 {
		c.Optimizer.MaxCartItems = 20
	}
	if c.Optimizer.CartItemsRetain == 0 {
		c.Optimizer.CartItemsRetain = 20
	}
	if c.Optimizer.AcceptancePercent == 0 {
		c.Optimizer.AcceptancePercent = 10
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = "127.0.0.1:9190"
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 3 * * *"
	}
}

func expandPaths(c *Config) {
	c.Store.Path = expandHome(expandEnv(c.Store.Path))
	c.Backup.Dir = expandHome(expandEnv(c.Backup.Dir))
	if out := strings.ToLower(c.Logging.Output); out != "stdout" && out != "stderr" {
		c.Logging.Output = expandHome(expandEnv(c.Logging.Output))
	}
}

// expandEnv expands a ${VAR:default} reference.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}
	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}
	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		if val := os.Getenv(parts[0]); val != "" {
			return val
		}
		return parts[1]
	}
	return os.Getenv(content)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
