package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Scheduler.TargetConcurrency != 1000 {
		t.Errorf("Scheduler.TargetConcurrency = %d, want 1000", cfg.Scheduler.TargetConcurrency)
	}
	if cfg.Scheduler.Concurrency != 0 {
		t.Errorf("Scheduler.Concurrency = %d, want 0", cfg.Scheduler.Concurrency)
	}
	if cfg.Scheduler.ReservedClass != "research" {
		t.Errorf("Scheduler.ReservedClass = %q, want %q", cfg.Scheduler.ReservedClass, "research")
	}
	if cfg.Scheduler.ReservedShare != 0.3 {
		t.Errorf("Scheduler.ReservedShare = %v, want 0.3", cfg.Scheduler.ReservedShare)
	}
	if cfg.Scheduler.DefaultPriority != 5 {
		t.Errorf("Scheduler.DefaultPriority = %d, want 5", cfg.Scheduler.DefaultPriority)
	}
	if cfg.Snapshot.Backend != "file" {
		t.Errorf("Snapshot.Backend = %q, want file", cfg.Snapshot.Backend)
	}
	if cfg.Feeders.Forex.Enabled {
		t.Error("Feeders.Forex.Enabled should be false by default")
	}
	if cfg.Tracing.Enabled {
		t.Error("Tracing.Enabled should be false by default")
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"dispatch", cfg.Scheduler.DispatchInterval(), 50 * time.Millisecond},
		{"replenish", cfg.Scheduler.ReplenishInterval(), 5 * time.Second},
		{"starvation", cfg.Scheduler.StarvationThreshold(), 30 * time.Second},
		{"stream", cfg.Server.StreamInterval(), 250 * time.Millisecond},
		{"forex", cfg.Feeders.Forex.Interval(), 10 * time.Second},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s interval = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	cfg.Scheduler.ReplenishIntervalMs = 0
	if got := cfg.Scheduler.ReplenishInterval(); got >= 0 {
		t.Errorf("ReplenishInterval() with 0 ms = %v, want negative (disabled)", got)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/fleetcore" {
			t.Errorf("ConfigDir() = %q, want %q", got, "/custom/config/fleetcore")
		}
		if got := ConfigFile(); got != "/custom/config/fleetcore/config.yaml" {
			t.Errorf("ConfigFile() = %q, want %q", got, "/custom/config/fleetcore/config.yaml")
		}
	})

	t.Run("falls back to home", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory")
		}
		want := filepath.Join(home, ".config", "fleetcore")
		if got := ConfigDir(); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestLoadFrom(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		v := viper.New()
		for key, value := range defaultSettings(t) {
			v.SetDefault(key, value)
		}
		cfg, err := LoadFrom(v)
		if err != nil {
			t.Fatalf("LoadFrom() error = %v", err)
		}
		if cfg.Scheduler.TargetConcurrency != 1000 {
			t.Errorf("TargetConcurrency = %d, want 1000", cfg.Scheduler.TargetConcurrency)
		}
	})

	t.Run("yaml file overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "scheduler:\n  concurrency: 40\n  reserved_share: 0.25\nfeeders:\n  forex:\n    enabled: true\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		v := viper.New()
		for key, value := range defaultSettings(t) {
			v.SetDefault(key, value)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig() error = %v", err)
		}

		cfg, err := LoadFrom(v)
		if err != nil {
			t.Fatalf("LoadFrom() error = %v", err)
		}
		if cfg.Scheduler.Concurrency != 40 || cfg.Scheduler.ReservedShare != 0.25 {
			t.Errorf("Scheduler = %+v, want concurrency 40 share 0.25", cfg.Scheduler)
		}
		if !cfg.Feeders.Forex.Enabled || cfg.Feeders.Forex.IntervalMs != 10000 {
			t.Errorf("Feeders.Forex = %+v, want enabled with default interval", cfg.Feeders.Forex)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		v := viper.New()
		for key, value := range defaultSettings(t) {
			v.SetDefault(key, value)
		}
		v.Set("scheduler.reserved_share", 1.5)

		_, err := LoadFrom(v)
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("LoadFrom() error = %v, want ValidationErrors", err)
		}
		if verrs[0].Field != "scheduler.reserved_share" {
			t.Errorf("Field = %q, want scheduler.reserved_share", verrs[0].Field)
		}
	})
}

// defaultSettings captures SetDefaults on the global viper and restores it.
func defaultSettings(t *testing.T) map[string]any {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	settings := make(map[string]any)
	for _, key := range viper.AllKeys() {
		settings[key] = viper.Get(key)
	}
	return settings
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative target", func(c *Config) { c.Scheduler.TargetConcurrency = -1 }, "scheduler.target_concurrency"},
		{"negative concurrency", func(c *Config) { c.Scheduler.Concurrency = -5 }, "scheduler.concurrency"},
		{"empty reserved class", func(c *Config) { c.Scheduler.ReservedClass = " " }, "scheduler.reserved_class"},
		{"share of one", func(c *Config) { c.Scheduler.ReservedShare = 1 }, "scheduler.reserved_share"},
		{"negative share", func(c *Config) { c.Scheduler.ReservedShare = -0.1 }, "scheduler.reserved_share"},
		{"zero dispatch", func(c *Config) { c.Scheduler.DispatchIntervalMs = 0 }, "scheduler.dispatch_interval_ms"},
		{"negative replenish", func(c *Config) { c.Scheduler.ReplenishIntervalMs = -1 }, "scheduler.replenish_interval_ms"},
		{"zero starvation", func(c *Config) { c.Scheduler.StarvationThresholdMs = 0 }, "scheduler.starvation_threshold_ms"},
		{"zero priority", func(c *Config) { c.Scheduler.DefaultPriority = 0 }, "scheduler.default_priority"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"zero stream", func(c *Config) { c.Server.StreamIntervalMs = 0 }, "server.stream_interval_ms"},
		{"bad level", func(c *Config) { c.Logging.Level = "INFO" }, "logging.level"},
		{"bad backend", func(c *Config) { c.Snapshot.Backend = "redis" }, "snapshot.backend"},
		{"file without dir", func(c *Config) { c.Snapshot.Dir = "" }, "snapshot.dir"},
		{"sqlite without path", func(c *Config) {
			c.Snapshot.Backend = "sqlite"
			c.Snapshot.SQLitePath = ""
		}, "snapshot.sqlite_path"},
		{"zero audit buffer", func(c *Config) { c.Audit.BufferSize = 0 }, "audit.buffer_size"},
		{"bad nats url", func(c *Config) { c.Audit.NATSURL = "not a url" }, "audit.nats_url"},
		{"nats without subject", func(c *Config) {
			c.Audit.NATSURL = "nats://localhost:4222"
			c.Audit.NATSSubject = ""
		}, "audit.nats_subject"},
		{"negative exploration", func(c *Config) { c.Advisor.Exploration = -1 }, "advisor.exploration"},
		{"enabled feeder without interval", func(c *Config) {
			c.Feeders.Forex.Enabled = true
			c.Feeders.Forex.IntervalMs = 0
		}, "feeders.forex.interval_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()

			found := false
			for _, err := range errs {
				if err.Field == tt.field {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want error for %s", errs, tt.field)
			}
		})
	}
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("Default config should be valid, got errors: %v", errs)
	}
}

func TestConfig_Validate_ValidAlternatives(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Backend = "sqlite"
	cfg.Audit.NATSURL = "nats://127.0.0.1:4222"
	cfg.Scheduler.ReplenishIntervalMs = 0
	cfg.Scheduler.ReservedShare = 0
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}
