package config

import (
	"log/slog"
	"time"

	"github.com/evan-idocoding/zsup/ops"
	"github.com/evan-idocoding/zsup/rt/task"
)

// Config holds the supervisor daemon configuration.
type Config struct {
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Ops        OpsConfig        `mapstructure:"ops"`
	Log        LogConfig        `mapstructure:"log"`

	// ShutdownTimeout bounds the graceful shutdown of tasks and the ops server.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// SupervisorConfig configures the task registry.
type SupervisorConfig struct {
	// ValidateNameUniqueness rejects an explicit task name that is already registered.
	ValidateNameUniqueness bool          `mapstructure:"validate_name_uniqueness"`
	PollInterval           time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

// OpsConfig configures the operational HTTP server.
type OpsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr" validate:"required_if=Enable true,omitempty,hostname_port"`
	// Token, when set, is required on mutating ops requests.
	Token string `mapstructure:"token"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// RegistryOptions converts the supervisor section to registry options.
func (c *Config) RegistryOptions() []task.RegistryOption {
	return []task.RegistryOption{
		task.WithValidateNameUniqueness(c.Supervisor.ValidateNameUniqueness),
		task.WithPollInterval(c.Supervisor.PollInterval),
	}
}

// SlogLevel returns the configured level; validation guarantees it parses.
func (c *Config) SlogLevel() slog.Level {
	l, _ := ops.ParseLevel(c.Log.Level)
	return l
}
