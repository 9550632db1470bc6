// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > embedded > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "100ms", "1s", "2s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all monitor configuration.
type Config struct {
	Sampling SamplingConfig `yaml:"sampling"`
	Mailbox  MailboxConfig  `yaml:"mailbox"`
	Logging  LoggingConfig  `yaml:"logging"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Render   RenderConfig   `yaml:"render"`
	Status   StatusConfig   `yaml:"status"`
}

// SamplingConfig controls the Reader.
type SamplingConfig struct {
	Interval      Duration `yaml:"interval"`
	FirstInterval Duration `yaml:"first_interval"`
	Source        string   `yaml:"source"`
	ProcStatPath  string   `yaml:"proc_stat_path"`
	// MaxEntries bounds the records of one snapshot. Zero sizes it from the
	// host's CPU count.
	MaxEntries int `yaml:"max_entries"`
}

// MailboxConfig controls the stage handoffs.
type MailboxConfig struct {
	TakeTimeout Duration `yaml:"take_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level        string   `yaml:"level"`
	Format       string   `yaml:"format"`
	File         string   `yaml:"file"`
	QueueSlots   int      `yaml:"queue_slots"`
	InlineBytes  int      `yaml:"inline_bytes"`
	DrainTimeout Duration `yaml:"drain_timeout"`
}

// WatchdogConfig holds liveness supervision settings.
type WatchdogConfig struct {
	Enabled    bool            `yaml:"enabled"`
	Interval   Duration        `yaml:"interval"`
	Threshold  Duration        `yaml:"threshold"`
	MaxThreads int             `yaml:"max_threads"`
	Workers    map[string]bool `yaml:"workers"`
}

// Watches reports whether the named worker reports to the watchdog. Workers
// missing from the map are watched.
func (w WatchdogConfig) Watches(name string) bool {
	if !w.Enabled {
		return false
	}
	on, ok := w.Workers[name]
	return !ok || on
}

// RenderConfig holds terminal output settings.
type RenderConfig struct {
	Terminal bool `yaml:"terminal"`
	Columns  int  `yaml:"columns"`
}

// StatusConfig holds the HTTP status API settings.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Sampling: SamplingConfig{
			Interval:      Duration{time.Second},
			FirstInterval: Duration{100 * time.Millisecond},
			Source:        "auto",
			ProcStatPath:  "/proc/stat",
		},
		Mailbox: MailboxConfig{
			TakeTimeout: Duration{time.Second},
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			File:         "log.txt",
			QueueSlots:   5,
			InlineBytes:  511,
			DrainTimeout: Duration{time.Second},
		},
		Watchdog: WatchdogConfig{
			Enabled:    true,
			Interval:   Duration{time.Second},
			Threshold:  Duration{2 * time.Second},
			MaxThreads: 10,
		},
		Render: RenderConfig{
			Terminal: true,
			Columns:  3,
		},
		Status: StatusConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9100",
		},
	}
}

// LoadFromBytes parses YAML configuration from a byte slice and merges with defaults.
// Environment variables take highest precedence and override values from the byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config data: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Load reads configuration from a YAML file and merges with defaults.
// If path is empty or the file does not exist, only defaults and environment
// variables are used.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromBytes(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		return LoadFromBytes(nil)
	}

	return LoadFromBytes(data)
}

// CLIOverrides holds values from command-line flags.
// Empty strings and false are treated as "not set" and skipped.
type CLIOverrides struct {
	LogLevel   string
	Source     string
	Status     string
	NoWatchdog bool
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value  → use that path ("" means no external file)
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	var filePath string
	if len(configPath) > 0 {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		case len(configPath) > 0 && !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.Source != "" {
		cfg.Sampling.Source = cli.Source
	}
	if cli.Status != "" {
		cfg.Status.Enabled = true
		cfg.Status.Listen = cli.Status
	}
	if cli.NoWatchdog {
		cfg.Watchdog.Enabled = false
	}

	return cfg, nil
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("CPUMON_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if file := os.Getenv("CPUMON_LOG_FILE"); file != "" {
		cfg.Logging.File = file
	}
	if listen := os.Getenv("CPUMON_STATUS_LISTEN"); listen != "" {
		cfg.Status.Enabled = true
		cfg.Status.Listen = listen
	}
	if source := os.Getenv("CPUMON_SOURCE"); source != "" {
		cfg.Sampling.Source = source
	}
}

// Validate checks that the configuration can drive the pipeline. Every wait a
// supervised worker performs between two heartbeats must be shorter than the
// watchdog threshold, or healthy workers would be reported as hung.
func (c *Config) Validate() error {
	if c.Sampling.Interval.Duration <= 0 || c.Sampling.FirstInterval.Duration <= 0 {
		return fmt.Errorf("sampling intervals must be positive")
	}
	switch c.Sampling.Source {
	case "auto", "procstat", "gopsutil":
	default:
		return fmt.Errorf("unknown counter source %q", c.Sampling.Source)
	}
	if c.Sampling.MaxEntries < 0 {
		return fmt.Errorf("sampling.max_entries must not be negative")
	}
	if c.Mailbox.TakeTimeout.Duration <= 0 {
		return fmt.Errorf("mailbox.take_timeout must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	if c.Logging.File == "" {
		return fmt.Errorf("logging.file is required")
	}
	if c.Logging.QueueSlots < 1 || c.Logging.InlineBytes < 1 {
		return fmt.Errorf("logging.queue_slots and logging.inline_bytes must be at least 1")
	}
	if c.Logging.DrainTimeout.Duration <= 0 {
		return fmt.Errorf("logging.drain_timeout must be positive")
	}

	if c.Render.Columns < 1 {
		return fmt.Errorf("render.columns must be at least 1")
	}
	if c.Status.Enabled && c.Status.Listen == "" {
		return fmt.Errorf("status.listen is required when the status API is enabled")
	}

	if !c.Watchdog.Enabled {
		return nil
	}
	w := c.Watchdog
	if w.Interval.Duration <= 0 || w.Threshold.Duration <= 0 {
		return fmt.Errorf("watchdog intervals must be positive")
	}
	if w.Interval.Duration >= w.Threshold.Duration {
		return fmt.Errorf("watchdog.interval (%v) must be below watchdog.threshold (%v)", w.Interval.Duration, w.Threshold.Duration)
	}
	if w.MaxThreads < 1 {
		return fmt.Errorf("watchdog.max_threads must be at least 1")
	}
	for name, d := range map[string]time.Duration{
		"sampling.interval":     c.Sampling.Interval.Duration,
		"mailbox.take_timeout":  c.Mailbox.TakeTimeout.Duration,
		"logging.drain_timeout": c.Logging.DrainTimeout.Duration,
	} {
		if d >= w.Threshold.Duration {
			return fmt.Errorf("%s (%v) must be below watchdog.threshold (%v)", name, d, w.Threshold.Duration)
		}
	}
	return nil
}
