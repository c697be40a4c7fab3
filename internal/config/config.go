// Package config loads the agent configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the host-supplied configuration surface consumed by the engine
// and its collaborators.
type Config struct {
	BaseURL  string `yaml:"base_url"`
	TenantID string `yaml:"tenant_id"`
	DBPath   string `yaml:"db_path"`

	MaxBatchSize   int `yaml:"max_batch_size"`
	MaxRetries     int `yaml:"max_retries"`
	BaseDelayMs    int `yaml:"base_delay_ms"`
	MaxDelayMs     int `yaml:"max_delay_ms"`
	PullIntervalMs int `yaml:"pull_interval_ms"`
	TimeoutMs      int `yaml:"timeout_ms"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Default returns the configuration defaults. The database lives under the
// user cache directory unless overridden.
func Default() Config {
	dbPath := "posd.db"
	if homeDir, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(homeDir, ".cache", "posd", "queue.db")
	}
	return Config{
		DBPath:         dbPath,
		MaxBatchSize:   50,
		MaxRetries:     5,
		BaseDelayMs:    1000,
		MaxDelayMs:     300000,
		PullIntervalMs: 60000,
		TimeoutMs:      30000,
		LogLevel:       "info",
	}
}

// Load reads a YAML config file and overlays it on the defaults. A missing
// file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields that have no usable default.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	return nil
}

// BaseDelay returns the backoff base delay as a duration.
func (c Config) BaseDelay() time.Duration { return time.Duration(c.BaseDelayMs) * time.Millisecond }

// MaxDelay returns the backoff delay cap as a duration.
func (c Config) MaxDelay() time.Duration { return time.Duration(c.MaxDelayMs) * time.Millisecond }

// PullInterval returns the pull loop interval as a duration.
func (c Config) PullInterval() time.Duration {
	return time.Duration(c.PullIntervalMs) * time.Millisecond
}

// Timeout returns the per-request network timeout as a duration.
func (c Config) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }
