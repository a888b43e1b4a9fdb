package task

import (
	"log/slog"
	"time"

	"github.com/evan-idocoding/zsup/rt/safego"
)

// DefaultPollInterval is the supervisor tick used unless WithPollInterval overrides it.
const DefaultPollInterval = 100 * time.Millisecond

type taskConfig struct {
	name      string
	keepAlive bool
}

// Option configures a single Add call.
type Option func(*taskConfig)

// WithName sets the task's display name.
//
// An empty name means "derive one from the unit". Only explicit names take part in
// uniqueness validation.
func WithName(name string) Option {
	return func(c *taskConfig) { c.name = name }
}

// WithKeepAlive marks the task for relaunch after every execution. Default is false.
func WithKeepAlive(v bool) Option {
	return func(c *taskConfig) { c.keepAlive = v }
}

type registryConfig struct {
	validateNames bool
	pollInterval  time.Duration
	logger        *slog.Logger

	onRunStart  []func(info RunStartInfo)
	onRunFinish []func(info RunFinishInfo)

	onError safego.ErrorHandler
	onPanic safego.PanicHandler
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		validateNames: true,
		pollInterval:  DefaultPollInterval,
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

// WithValidateNameUniqueness enables or disables ErrDuplicateName on Add. Default is true.
func WithValidateNameUniqueness(v bool) RegistryOption {
	return func(c *registryConfig) { c.validateNames = v }
}

// WithPollInterval sets the supervisor tick. If d <= 0, NewRegistry panics.
func WithPollInterval(d time.Duration) RegistryOption {
	return func(c *registryConfig) { c.pollInterval = d }
}

// WithLogger sets the registry logger. nil means slog.Default().
func WithLogger(l *slog.Logger) RegistryOption {
	return func(c *registryConfig) { c.logger = l }
}

// WithOnRunStart adds a hook observing execution starts.
//
// Hooks run synchronously on the execution goroutine, before the unit. They must be fast.
// Multiple hooks run in registration order.
func WithOnRunStart(fn func(info RunStartInfo)) RegistryOption {
	return func(c *registryConfig) {
		if fn != nil {
			c.onRunStart = append(c.onRunStart, fn)
		}
	}
}

// WithOnRunFinish adds a hook observing execution finishes.
//
// The hook runs before the task reports not running, so a caller that waits for
// IsRunning to turn false has observed every finish hook of that execution.
func WithOnRunFinish(fn func(info RunFinishInfo)) RegistryOption {
	return func(c *registryConfig) {
		if fn != nil {
			c.onRunFinish = append(c.onRunFinish, fn)
		}
	}
}

// WithErrorHandler sets the handler for unit failures. If not set, failures are logged.
func WithErrorHandler(h safego.ErrorHandler) RegistryOption {
	return func(c *registryConfig) { c.onError = h }
}

// WithPanicHandler sets the handler for unit panics. If not set, panics are logged.
func WithPanicHandler(h safego.PanicHandler) RegistryOption {
	return func(c *registryConfig) { c.onPanic = h }
}
