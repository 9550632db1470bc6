package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadLayered_CLIOverridesEverything(t *testing.T) {
	embedded := []byte("logging:\n  level: warn\nsampling:\n  source: procstat")
	t.Setenv("CPUMON_LOG_LEVEL", "error")
	cli := CLIOverrides{LogLevel: "debug", Source: "gopsutil", Status: "127.0.0.1:9200", NoWatchdog: true}

	cfg, err := LoadLayered(cli, embedded, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want CLI override", cfg.Logging.Level)
	}
	if cfg.Sampling.Source != "gopsutil" {
		t.Errorf("Source = %q, want CLI override", cfg.Sampling.Source)
	}
	if !cfg.Status.Enabled || cfg.Status.Listen != "127.0.0.1:9200" {
		t.Errorf("Status = %+v, want enabled on CLI address", cfg.Status)
	}
	if cfg.Watchdog.Enabled {
		t.Error("watchdog still enabled with -no-watchdog")
	}
}

func TestLoadLayered_EnvOverridesEmbed(t *testing.T) {
	embedded := []byte("logging:\n  level: warn\n  file: embedded.log")
	t.Setenv("CPUMON_LOG_LEVEL", "error")

	cfg, err := LoadLayered(CLIOverrides{}, embedded, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Level = %q, want env override", cfg.Logging.Level)
	}
	if cfg.Logging.File != "embedded.log" {
		t.Errorf("File = %q, want embedded value", cfg.Logging.File)
	}
}

func TestLoadLayered_FileOverridesEmbed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpumon.yaml")
	data := "sampling:\n  interval: 500ms\nwatchdog:\n  workers:\n    printer: false\n"
	if err := os.WriteFile(path, []byte(data), 0640); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadLayered(CLIOverrides{}, []byte("sampling:\n  interval: 1500ms"), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sampling.Interval.Duration != 500*time.Millisecond {
		t.Errorf("Interval = %v, want 500ms from file", cfg.Sampling.Interval.Duration)
	}
	if cfg.Watchdog.Watches("printer") {
		t.Error("printer watched despite the per-worker toggle")
	}
	if !cfg.Watchdog.Watches("reader") {
		t.Error("reader not watched by default")
	}
}

func TestLoadLayered_DefaultsWhenEmpty(t *testing.T) {
	cfg, err := LoadLayered(CLIOverrides{}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sampling.Interval.Duration != time.Second {
		t.Errorf("Interval = %v, want 1s default", cfg.Sampling.Interval.Duration)
	}
	if cfg.Watchdog.Threshold.Duration != 2*time.Second {
		t.Errorf("Threshold = %v, want 2s default", cfg.Watchdog.Threshold.Duration)
	}
	if cfg.Logging.File != "log.txt" {
		t.Errorf("File = %q, want log.txt", cfg.Logging.File)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"interval above threshold", func(c *Config) { c.Watchdog.Interval = Duration{3 * time.Second} }, "watchdog.interval"},
		{"take timeout too long", func(c *Config) { c.Mailbox.TakeTimeout = Duration{2 * time.Second} }, "mailbox.take_timeout"},
		{"sampling too slow", func(c *Config) { c.Sampling.Interval = Duration{5 * time.Second} }, "sampling.interval"},
		{"slow sampling without watchdog", func(c *Config) {
			c.Sampling.Interval = Duration{5 * time.Second}
			c.Watchdog.Enabled = false
		}, ""},
		{"no queue slots", func(c *Config) { c.Logging.QueueSlots = 0 }, "queue_slots"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"bad source", func(c *Config) { c.Sampling.Source = "wmi" }, "counter source"},
		{"no columns", func(c *Config) { c.Render.Columns = 0 }, "columns"},
		{"no threads", func(c *Config) { c.Watchdog.MaxThreads = 0 }, "max_threads"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteConfig_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Logging.File = "/var/log/cpumon.txt"

	if err := WriteConfig(cfg, path); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Logging.File != "/var/log/cpumon.txt" {
		t.Errorf("File = %q after reload", got.Logging.File)
	}
	if got.Watchdog.Interval.Duration != time.Second {
		t.Errorf("Watchdog interval = %v after reload", got.Watchdog.Interval.Duration)
	}
}
