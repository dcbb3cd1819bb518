package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete FleetCore configuration
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot" yaml:"snapshot"`
	Audit     AuditConfig     `mapstructure:"audit" yaml:"audit"`
	Advisor   AdvisorConfig   `mapstructure:"advisor" yaml:"advisor"`
	Feeders   FeedersConfig   `mapstructure:"feeders" yaml:"feeders"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
}

// SchedulerConfig sizes and paces the orchestrator
type SchedulerConfig struct {
	// TargetConcurrency is the nominal load the pool is planned for. The
	// pool size is derived from it unless Concurrency is set.
	TargetConcurrency int `mapstructure:"target_concurrency" yaml:"target_concurrency"`
	// Concurrency pins the pool size (0 = derive from target_concurrency)
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// ReservedClass is the task class that owns the reserved slots
	ReservedClass string `mapstructure:"reserved_class" yaml:"reserved_class"`
	// ReservedShare is the fraction of the pool held back for the reserved class
	ReservedShare float64 `mapstructure:"reserved_share" yaml:"reserved_share"`
	// DispatchIntervalMs paces the dispatch tick
	DispatchIntervalMs int `mapstructure:"dispatch_interval_ms" yaml:"dispatch_interval_ms"`
	// ReplenishIntervalMs paces the reserved-lane replenishment loop (0 = disabled)
	ReplenishIntervalMs int `mapstructure:"replenish_interval_ms" yaml:"replenish_interval_ms"`
	// StarvationThresholdMs is the queue age after which a task is served first
	StarvationThresholdMs int `mapstructure:"starvation_threshold_ms" yaml:"starvation_threshold_ms"`
	// DefaultPriority applies to submissions without a priority
	DefaultPriority int `mapstructure:"default_priority" yaml:"default_priority"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	// Addr is the listen address (e.g. ":8080")
	Addr string `mapstructure:"addr" yaml:"addr"`
	// StreamIntervalMs is the minimum gap between streamed metrics snapshots
	StreamIntervalMs int `mapstructure:"stream_interval_ms" yaml:"stream_interval_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where fleetcore.log is written (empty = stderr)
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SnapshotConfig selects where advisor state is persisted
type SnapshotConfig struct {
	// Backend is "file" or "sqlite"
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Dir holds one JSON file per key for the file backend
	Dir string `mapstructure:"dir" yaml:"dir"`
	// SQLitePath is the database file for the sqlite backend
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// AuditConfig controls where audit records go
type AuditConfig struct {
	// BufferSize is the number of records kept in memory
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
	// NATSURL enables publishing audit records to NATS when set
	NATSURL string `mapstructure:"nats_url" yaml:"nats_url"`
	// NATSSubject is the subject prefix; the event name is appended
	NATSSubject string `mapstructure:"nats_subject" yaml:"nats_subject"`
}

// AdvisorConfig tunes the scoring advisor
type AdvisorConfig struct {
	// Exploration is the UCB exploration constant
	Exploration float64 `mapstructure:"exploration" yaml:"exploration"`
}

// FeedersConfig declares the periodic submitters
type FeedersConfig struct {
	Forex FeederConfig `mapstructure:"forex" yaml:"forex"`
}

// FeederConfig enables and paces one feeder
type FeederConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	IntervalMs int  `mapstructure:"interval_ms" yaml:"interval_ms"`
}

// TracingConfig toggles OpenTelemetry task spans
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			TargetConcurrency:     1000,
			Concurrency:           0, // Derived from target_concurrency
			ReservedClass:         "research",
			ReservedShare:         0.3,
			DispatchIntervalMs:    50,
			ReplenishIntervalMs:   5000,
			StarvationThresholdMs: 30000,
			DefaultPriority:       5,
		},
		Server: ServerConfig{
			Addr:             ":8080",
			StreamIntervalMs: 250,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
		Snapshot: SnapshotConfig{
			Backend:    "file",
			Dir:        filepath.Join(DataDir(), "snapshots"),
			SQLitePath: filepath.Join(DataDir(), "snapshots.db"),
		},
		Audit: AuditConfig{
			BufferSize:  1024,
			NATSURL:     "", // Disabled by default
			NATSSubject: "fleetcore.audit",
		},
		Advisor: AdvisorConfig{
			Exploration: 2,
		},
		Feeders: FeedersConfig{
			Forex: FeederConfig{
				Enabled:    false,
				IntervalMs: 10000,
			},
		},
		Tracing: TracingConfig{
			Enabled: false,
		},
	}
}

// DispatchInterval returns the dispatch interval as a time.Duration
func (c *SchedulerConfig) DispatchInterval() time.Duration {
	return time.Duration(c.DispatchIntervalMs) * time.Millisecond
}

// ReplenishInterval returns the replenish interval as a time.Duration. A
// zero setting disables the loop and maps to a negative duration.
func (c *SchedulerConfig) ReplenishInterval() time.Duration {
	if c.ReplenishIntervalMs == 0 {
		return -1
	}
	return time.Duration(c.ReplenishIntervalMs) * time.Millisecond
}

// StarvationThreshold returns the starvation threshold as a time.Duration
func (c *SchedulerConfig) StarvationThreshold() time.Duration {
	return time.Duration(c.StarvationThresholdMs) * time.Millisecond
}

// StreamInterval returns the stream interval as a time.Duration
func (c *ServerConfig) StreamInterval() time.Duration {
	return time.Duration(c.StreamIntervalMs) * time.Millisecond
}

// Interval returns the feeder interval as a time.Duration
func (c *FeederConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Scheduler defaults
	viper.SetDefault("scheduler.target_concurrency", defaults.Scheduler.TargetConcurrency)
	viper.SetDefault("scheduler.concurrency", defaults.Scheduler.Concurrency)
	viper.SetDefault("scheduler.reserved_class", defaults.Scheduler.ReservedClass)
	viper.SetDefault("scheduler.reserved_share", defaults.Scheduler.ReservedShare)
	viper.SetDefault("scheduler.dispatch_interval_ms", defaults.Scheduler.DispatchIntervalMs)
	viper.SetDefault("scheduler.replenish_interval_ms", defaults.Scheduler.ReplenishIntervalMs)
	viper.SetDefault("scheduler.starvation_threshold_ms", defaults.Scheduler.StarvationThresholdMs)
	viper.SetDefault("scheduler.default_priority", defaults.Scheduler.DefaultPriority)

	// Server defaults
	viper.SetDefault("server.addr", defaults.Server.Addr)
	viper.SetDefault("server.stream_interval_ms", defaults.Server.StreamIntervalMs)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// Snapshot defaults
	viper.SetDefault("snapshot.backend", defaults.Snapshot.Backend)
	viper.SetDefault("snapshot.dir", defaults.Snapshot.Dir)
	viper.SetDefault("snapshot.sqlite_path", defaults.Snapshot.SQLitePath)

	// Audit defaults
	viper.SetDefault("audit.buffer_size", defaults.Audit.BufferSize)
	viper.SetDefault("audit.nats_url", defaults.Audit.NATSURL)
	viper.SetDefault("audit.nats_subject", defaults.Audit.NATSSubject)

	viper.SetDefault("advisor.exploration", defaults.Advisor.Exploration)

	viper.SetDefault("feeders.forex.enabled", defaults.Feeders.Forex.Enabled)
	viper.SetDefault("feeders.forex.interval_ms", defaults.Feeders.Forex.IntervalMs)

	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load for an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fleetcore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fleetcore"
	}
	return filepath.Join(home, ".config", "fleetcore")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns where snapshots are kept by default
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "fleetcore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fleetcore"
	}
	return filepath.Join(home, ".local", "share", "fleetcore")
}

// ValidSnapshotBackends returns the list of valid snapshot backends
func ValidSnapshotBackends() []string {
	return []string{"file", "sqlite"}
}
