// Package config provides configuration management for the note crawler.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"notecrawl/pkg/utils"
)

// Configuration validation errors.
var (
	ErrInvalidMaxAttempts     = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidRetryDelay      = errors.New("retry.delay_ms must be non-negative")
	ErrInvalidTimeout         = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidInterval        = errors.New("pacing.request_interval_ms must be non-negative")
	ErrInvalidMaxPages        = errors.New("pacing.max_pages must be at least 1")
	ErrInvalidMaxBatches      = errors.New("pacing.max_batches must be at least 1")
	ErrInvalidPageSize        = errors.New("pacing.page_size must be at least 1")
	ErrInvalidCheckpointEvery = errors.New("checkpoint.every must be at least 1")
	ErrMissingEndpoint        = errors.New("api endpoint is required")
	ErrInvalidEndpoint        = errors.New("api endpoint must be an absolute http(s) URL")
	ErrMissingOutputPath      = errors.New("output.base_path is required")
	ErrInvalidRegistryBackend = errors.New("registry.backend must be 'csv' or 'sqlite'")
	ErrInvalidLogLevel        = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("logging.format must be 'text' or 'json'")
)

// Registry backends.
const (
	RegistryCSV    = "csv"
	RegistrySQLite = "sqlite"
)

// Config represents the complete crawler configuration.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Output     OutputConfig     `yaml:"output"`
	Registry   RegistryConfig   `yaml:"registry"`
	Logging    LoggingConfig    `yaml:"logging"`
	Retry      RetryPolicy      `yaml:"retry"`
	Pacing     PacingConfig     `yaml:"pacing"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

// APIConfig holds the remote endpoints.
type APIConfig struct {
	SearchURL  string `yaml:"search_url"`
	NoteURL    string `yaml:"note_url"`
	CreatorURL string `yaml:"creator_url"`
	UserAgent  string `yaml:"user_agent"`
}

// RetryPolicy defines retry behavior. Delay between attempts is fixed.
type RetryPolicy struct {
	MaxAttempts int `yaml:"max_attempts"`
	DelayMs     int `yaml:"delay_ms"`
	TimeoutSec  int `yaml:"timeout_sec"`
}

// PacingConfig bounds pagination and rate-limits successful calls.
type PacingConfig struct {
	RequestIntervalMs int `yaml:"request_interval_ms"`
	MaxPages          int `yaml:"max_pages"`
	MaxBatches        int `yaml:"max_batches"`
	PageSize          int `yaml:"page_size"`
}

// CheckpointConfig controls periodic progress snapshots.
type CheckpointConfig struct {
	Every           int  `yaml:"every"`
	ClearOnComplete bool `yaml:"clear_on_complete"`
}

// OutputConfig defines where run artifacts are written.
type OutputConfig struct {
	BasePath string `yaml:"base_path"`
}

// RegistryConfig selects the query key registry backend.
type RegistryConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the settings the crawler ships with.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			SearchURL:  "https://note.com/api/v3/searches",
			NoteURL:    "https://note.com/api/v3/notes",
			CreatorURL: "https://note.com/api/v2/creators",
			UserAgent:  "notecrawl/1.0",
		},
		Retry: RetryPolicy{
			MaxAttempts: 5,
			DelayMs:     5000,
			TimeoutSec:  10,
		},
		Pacing: PacingConfig{
			RequestIntervalMs: 1000,
			MaxPages:          10000,
			MaxBatches:        10000,
			PageSize:          50,
		},
		Checkpoint: CheckpointConfig{
			Every:           10,
			ClearOnComplete: true,
		},
		Output: OutputConfig{
			BasePath: "data",
		},
		Registry: RegistryConfig{
			Backend: RegistryCSV,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	endpoints := []struct {
		name  string
		value string
	}{
		{"api.search_url", c.API.SearchURL},
		{"api.note_url", c.API.NoteURL},
		{"api.creator_url", c.API.CreatorURL},
	}

	for _, ep := range endpoints {
		if ep.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingEndpoint, ep.name)
		}

		u, err := url.Parse(ep.value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s", ErrInvalidEndpoint, ep.name)
		}
	}

	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.DelayMs < 0 {
		return ErrInvalidRetryDelay
	}

	if c.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Pacing.RequestIntervalMs < 0 {
		return ErrInvalidInterval
	}

	if c.Pacing.MaxPages < 1 {
		return ErrInvalidMaxPages
	}

	if c.Pacing.MaxBatches < 1 {
		return ErrInvalidMaxBatches
	}

	if c.Pacing.PageSize < 1 {
		return ErrInvalidPageSize
	}

	if c.Checkpoint.Every < 1 {
		return ErrInvalidCheckpointEvery
	}

	if c.Output.BasePath == "" {
		return ErrMissingOutputPath
	}

	if c.Registry.Backend != RegistryCSV && c.Registry.Backend != RegistrySQLite {
		return ErrInvalidRegistryBackend
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// RetryDelay returns the fixed wait between attempts.
func (rp *RetryPolicy) RetryDelay() time.Duration {
	return time.Duration(rp.DelayMs) * time.Millisecond
}

// GetTimeout returns the per-request timeout.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// RequestInterval returns the wait between successful calls.
func (p *PacingConfig) RequestInterval() time.Duration {
	return time.Duration(p.RequestIntervalMs) * time.Millisecond
}

// QueryDir follows structure: {base_path}/{query}.
func (c *Config) QueryDir(query string) string {
	return filepath.Join(c.Output.BasePath, utils.NewStringHelper().PathSegment(query))
}

// RegistryPath returns the configured registry location, defaulting to a
// file under base_path named after the backend.
func (c *Config) RegistryPath() string {
	if c.Registry.Path != "" {
		return c.Registry.Path
	}

	if c.Registry.Backend == RegistrySQLite {
		return filepath.Join(c.Output.BasePath, "query_key.db")
	}

	return filepath.Join(c.Output.BasePath, "query_key.csv")
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{MaxAttempts: %d, RetryDelay: %s, Interval: %s, MaxPages: %d, MaxBatches: %d, Registry: %s}",
		c.Retry.MaxAttempts,
		c.Retry.RetryDelay(),
		c.Pacing.RequestInterval(),
		c.Pacing.MaxPages,
		c.Pacing.MaxBatches,
		c.Registry.Backend,
	)
}
