package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ZSUP_SUPERVISOR_POLL_INTERVAL.
const EnvPrefix = "ZSUP"

// Defaults.
const (
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultOpsAddr         = "127.0.0.1:8089"
	DefaultShutdownTimeout = 10 * time.Second
)

// keys lists every configuration key so env overrides work without a config file.
var keys = []string{
	"supervisor.validate_name_uniqueness",
	"supervisor.poll_interval",
	"ops.enable",
	"ops.addr",
	"ops.token",
	"log.level",
	"log.format",
	"shutdown_timeout",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("supervisor.validate_name_uniqueness", true)
	v.SetDefault("supervisor.poll_interval", DefaultPollInterval)
	v.SetDefault("ops.enable", true)
	v.SetDefault("ops.addr", DefaultOpsAddr)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)
}

// Load reads configuration from defaults, an optional YAML file and ZSUP_* environment
// variables, in increasing precedence, and validates the result.
//
// An empty path skips the file. A path that does not exist is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("config: binding env for %s: %w", k, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration Load produces with no file and no environment.
func Default() *Config {
	return &Config{
		Supervisor: SupervisorConfig{ValidateNameUniqueness: true, PollInterval: DefaultPollInterval},
		Ops:        OpsConfig{Enable: true, Addr: DefaultOpsAddr},
		Log:        LogConfig{Level: "info", Format: "text"},

		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

var validate = validator.New()

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: validation failed")

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
