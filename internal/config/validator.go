package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "scheduler.reserved_share")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateScheduler()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateSnapshot()...)
	errors = append(errors, c.validateAudit()...)

	if c.Advisor.Exploration < 0 {
		errors = append(errors, ValidationError{
			Field:   "advisor.exploration",
			Value:   c.Advisor.Exploration,
			Message: "must be non-negative",
		})
	}

	if c.Feeders.Forex.Enabled && c.Feeders.Forex.IntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "feeders.forex.interval_ms",
			Value:   c.Feeders.Forex.IntervalMs,
			Message: "must be positive when the feeder is enabled",
		})
	}

	return errors
}

// validateScheduler validates the SchedulerConfig
func (c *Config) validateScheduler() []ValidationError {
	var errors []ValidationError
	s := c.Scheduler

	if s.TargetConcurrency < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.target_concurrency",
			Value:   s.TargetConcurrency,
			Message: "must be non-negative",
		})
	}

	if s.Concurrency < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.concurrency",
			Value:   s.Concurrency,
			Message: "must be non-negative (0 derives it from target_concurrency)",
		})
	}

	if strings.TrimSpace(s.ReservedClass) == "" {
		errors = append(errors, ValidationError{
			Field:   "scheduler.reserved_class",
			Value:   s.ReservedClass,
			Message: "must not be empty",
		})
	}

	// A share of 1 would leave no general capacity at all
	if s.ReservedShare < 0 || s.ReservedShare >= 1 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.reserved_share",
			Value:   s.ReservedShare,
			Message: "must be in [0, 1)",
		})
	}

	if s.DispatchIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.dispatch_interval_ms",
			Value:   s.DispatchIntervalMs,
			Message: "must be positive",
		})
	}

	if s.ReplenishIntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.replenish_interval_ms",
			Value:   s.ReplenishIntervalMs,
			Message: "must be non-negative (0 disables replenishment)",
		})
	}

	if s.StarvationThresholdMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.starvation_threshold_ms",
			Value:   s.StarvationThresholdMs,
			Message: "must be positive",
		})
	}

	if s.DefaultPriority < 1 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.default_priority",
			Value:   s.DefaultPriority,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Server.Addr) == "" {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Value:   c.Server.Addr,
			Message: "must not be empty",
		})
	}

	if c.Server.StreamIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.stream_interval_ms",
			Value:   c.Server.StreamIntervalMs,
			Message: "must be positive",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validateSnapshot validates the SnapshotConfig
func (c *Config) validateSnapshot() []ValidationError {
	var errors []ValidationError

	switch c.Snapshot.Backend {
	case "file":
		if c.Snapshot.Dir == "" {
			errors = append(errors, ValidationError{
				Field:   "snapshot.dir",
				Value:   c.Snapshot.Dir,
				Message: "must be set for the file backend",
			})
		}
	case "sqlite":
		if c.Snapshot.SQLitePath == "" {
			errors = append(errors, ValidationError{
				Field:   "snapshot.sqlite_path",
				Value:   c.Snapshot.SQLitePath,
				Message: "must be set for the sqlite backend",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "snapshot.backend",
			Value:   c.Snapshot.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSnapshotBackends(), ", ")),
		})
	}

	return errors
}

// validateAudit validates the AuditConfig
func (c *Config) validateAudit() []ValidationError {
	var errors []ValidationError

	if c.Audit.BufferSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "audit.buffer_size",
			Value:   c.Audit.BufferSize,
			Message: "must be positive",
		})
	}

	if c.Audit.NATSURL != "" {
		u, err := url.Parse(c.Audit.NATSURL)
		if err != nil || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "audit.nats_url",
				Value:   c.Audit.NATSURL,
				Message: "must be a URL such as nats://localhost:4222",
			})
		}
		if strings.TrimSpace(c.Audit.NATSSubject) == "" {
			errors = append(errors, ValidationError{
				Field:   "audit.nats_subject",
				Value:   c.Audit.NATSSubject,
				Message: "must not be empty when nats_url is set",
			})
		}
	}

	return errors
}
