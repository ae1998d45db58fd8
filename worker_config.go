package workerctl

import (
	"fmt"
	"strings"
)

// WorkerConfig is the resolved configuration for one lifecycle operation.
// It is read fresh from the Store for every operation.
type WorkerConfig struct {
	// Env is the environment name passed to sidekiq with -e
	Env string
	// SidekiqCmd is the sidekiq launcher, e.g. [bundle exec sidekiq]
	SidekiqCmd []string
	// SidekiqctlCmd is the sidekiqctl control tool, e.g. [bundle exec sidekiqctl]
	SidekiqctlCmd []string
	// ProcessCount is the number of worker processes, at least 1
	ProcessCount int
	// BasePIDPath is the PID file of instance 0; instance k uses BasePIDPath-k
	BasePIDPath string
	// ConfigPaths assigns a config file per instance index, in order
	ConfigPaths []string
	// DefaultConfigPath is used by instances ConfigPaths does not cover
	DefaultConfigPath string
	// Concurrency is the per-process thread count; nil leaves it to the config file
	Concurrency *int
	// LogPath is the worker log; empty launches without -L
	LogPath string
	// TimeoutSeconds bounds a stop before sidekiqctl kills the worker
	TimeoutSeconds int
	// User runs the systemd unit as this user when set
	User string
	// InitSystem selects the control strategy
	InitSystem InitSystem
	// WorkDir is the release directory direct commands run in
	WorkDir string
	// UnitName is the systemd unit name
	UnitName string
	// ServiceName is the upstart service name
	ServiceName string
	// UnitDir is the directory the systemd unit file is installed into
	UnitDir string
	// Application and AppName describe the app in the unit file
	Application string
	AppName     string
	// DeployTo is the deploy root
	DeployTo string
}

// LoadWorkerConfig resolves a WorkerConfig from s. The first setting that
// cannot be resolved aborts the load with a *ConfigError naming it.
func LoadWorkerConfig(s *Store) (WorkerConfig, error) {
	var (
		cfg WorkerConfig
		err error
	)

	tag, err := s.FetchOr(KeyInitSystem, nil)
	if err != nil {
		return cfg, err
	}
	tagStr, err := toString(tag)
	if err != nil {
		return cfg, &ConfigError{Key: KeyInitSystem, Err: err}
	}
	cfg.InitSystem = ParseInitSystem(tagStr)

	if cfg.Env, err = s.RequiredString(KeyRailsEnv); err != nil {
		return cfg, err
	}
	if cfg.DeployTo, err = s.RequiredString(KeyDeployTo); err != nil {
		return cfg, err
	}
	if cfg.WorkDir, err = s.RequiredString(KeyCurrentPath); err != nil {
		return cfg, err
	}
	if cfg.SidekiqCmd, err = commandSetting(s, KeySidekiq); err != nil {
		return cfg, err
	}
	if cfg.SidekiqctlCmd, err = commandSetting(s, KeySidekiqctl); err != nil {
		return cfg, err
	}
	if cfg.ProcessCount, err = s.Int(KeyProcesses); err != nil {
		return cfg, err
	}
	if cfg.BasePIDPath, err = s.RequiredString(KeyPID); err != nil {
		return cfg, err
	}
	if cfg.ConfigPaths, err = s.Strings(KeyConfigs); err != nil {
		return cfg, err
	}
	if cfg.DefaultConfigPath, err = s.RequiredString(KeyConfig); err != nil {
		return cfg, err
	}
	if cfg.Concurrency, err = s.OptionalInt(KeyConcurrency); err != nil {
		return cfg, err
	}
	if cfg.LogPath, err = s.String(KeyLog); err != nil {
		return cfg, err
	}
	if cfg.TimeoutSeconds, err = s.Int(KeyTimeout); err != nil {
		return cfg, err
	}
	if cfg.User, err = optionalString(s, KeyUser); err != nil {
		return cfg, err
	}
	if cfg.UnitName, err = optionalString(s, KeyServiceUnitName); err != nil {
		return cfg, err
	}
	if cfg.ServiceName, err = optionalString(s, KeyUpstartServiceName); err != nil {
		return cfg, err
	}
	if cfg.UnitDir, err = optionalString(s, KeyServiceUnitPath); err != nil {
		return cfg, err
	}
	if cfg.UnitDir == "" {
		cfg.UnitDir = DefaultUnitDir
	}
	if cfg.Application, err = optionalString(s, KeyApplication); err != nil {
		return cfg, err
	}
	if cfg.AppName, err = optionalString(s, KeyAppName); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the WorkerConfig invariants
func (c WorkerConfig) Validate() error {
	if c.ProcessCount < 1 {
		return &ConfigError{Key: KeyProcesses, Err: fmt.Errorf("%w: process count %d, want at least 1", ErrInvalidConfig, c.ProcessCount)}
	}
	if c.TimeoutSeconds < 0 {
		return &ConfigError{Key: KeyTimeout, Err: fmt.Errorf("%w: negative timeout %d", ErrInvalidConfig, c.TimeoutSeconds)}
	}
	if c.Concurrency != nil && *c.Concurrency < 1 {
		return &ConfigError{Key: KeyConcurrency, Err: fmt.Errorf("%w: concurrency %d, want at least 1", ErrInvalidConfig, *c.Concurrency)}
	}
	return nil
}

func optionalString(s *Store, key string) (string, error) {
	v, err := s.FetchOr(key, nil)
	if err != nil {
		return "", err
	}
	str, err := toString(v)
	if err != nil {
		return "", &ConfigError{Key: key, Err: err}
	}
	return str, nil
}

// commandSetting splits a command setting like "bundle exec sidekiq" into argv
func commandSetting(s *Store, key string) ([]string, error) {
	str, err := s.RequiredString(key)
	if err != nil {
		return nil, err
	}
	argv := strings.Fields(str)
	if len(argv) == 0 {
		return nil, missing(key)
	}
	return argv, nil
}
