package workerctl

import (
	"fmt"
	"strings"
)

// InitSystem represents the init system a deploy is configured for
type InitSystem int

const (
	// InitSystemNone means workers are controlled directly through PID files
	InitSystemNone InitSystem = iota
	// InitSystemSystemd represents a systemd unit
	InitSystemSystemd
	// InitSystemUpstart represents an upstart job
	InitSystemUpstart
)

// InitSystem string constants
const (
	initSystemNoneStr    = "none"
	initSystemSystemdStr = "systemd"
	initSystemUpstartStr = "upstart"
)

// ParseInitSystem maps a setting value to an InitSystem. Anything other than
// systemd or upstart (including "") is InitSystemNone. A leading ':' is
// ignored so symbol-style values like ":systemd" work.
func ParseInitSystem(tag string) InitSystem {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), ":")) {
	case initSystemSystemdStr:
		return InitSystemSystemd
	case initSystemUpstartStr:
		return InitSystemUpstart
	default:
		return InitSystemNone
	}
}

// String returns the string representation of InitSystem
func (i InitSystem) String() string {
	switch i {
	case InitSystemSystemd:
		return initSystemSystemdStr
	case InitSystemUpstart:
		return initSystemUpstartStr
	case InitSystemNone:
		fallthrough
	default:
		return initSystemNoneStr
	}
}

// StrategyKind selects how lifecycle commands are issued
type StrategyKind int

const (
	// StrategyDirect drives each worker through sidekiq/sidekiqctl and its PID file
	StrategyDirect StrategyKind = iota
	// StrategySystemd drives a single systemd unit
	StrategySystemd
	// StrategyUpstart drives a single upstart service
	StrategyUpstart
)

// String returns the string representation of StrategyKind
func (k StrategyKind) String() string {
	switch k {
	case StrategySystemd:
		return "systemd"
	case StrategyUpstart:
		return "upstart"
	default:
		return "direct"
	}
}

// Strategy is the control strategy for one lifecycle operation.
// Name is the unit name for systemd and the service name for upstart.
type Strategy struct {
	Kind StrategyKind
	Name string
}

// Direct returns the PID-file control strategy
func Direct() Strategy {
	return Strategy{Kind: StrategyDirect}
}

// Systemd returns the strategy for the named systemd unit
func Systemd(unit string) Strategy {
	return Strategy{Kind: StrategySystemd, Name: unit}
}

// Upstart returns the strategy for the named upstart service
func Upstart(service string) Strategy {
	return Strategy{Kind: StrategyUpstart, Name: service}
}

// String returns a human-readable description of the strategy
func (s Strategy) String() string {
	if s.Kind == StrategyDirect {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Name)
}

// SelectStrategy picks the control strategy for cfg. Systemd and upstart need
// a unit/service name; an empty one is a configuration error.
func SelectStrategy(cfg WorkerConfig) (Strategy, error) {
	switch cfg.InitSystem {
	case InitSystemSystemd:
		if cfg.UnitName == "" {
			return Strategy{}, missing(KeyServiceUnitName)
		}
		return Systemd(cfg.UnitName), nil
	case InitSystemUpstart:
		if cfg.ServiceName == "" {
			return Strategy{}, missing(KeyUpstartServiceName)
		}
		return Upstart(cfg.ServiceName), nil
	default:
		return Direct(), nil
	}
}
