package workerctl

import "time"

// Binary paths with defaults that can be overridden
const (
	// DefaultShellPath is the shell used by ShellSink to run command scripts
	DefaultShellPath = "/bin/sh"

	// DefaultSystemctlPath is the default path to the systemctl binary
	DefaultSystemctlPath = "systemctl"

	// DefaultSudoCommand is the privilege escalation command used for upstart
	DefaultSudoCommand = "sudo"

	// DefaultServiceCommand is the upstart/SysV service wrapper
	DefaultServiceCommand = "service"

	// DefaultTailPath is the default path to the tail binary
	DefaultTailPath = "tail"
)

// Worker defaults
const (
	// DefaultTimeoutSeconds bounds how long sidekiqctl waits before killing a worker
	DefaultTimeoutSeconds = 11

	// DefaultProcessCount is the number of worker processes launched
	DefaultProcessCount = 1

	// DefaultUnitDir is where the systemd unit file is installed
	DefaultUnitDir = "/usr/lib/systemd/user"

	// DefaultUpstartServiceName is the upstart job name
	DefaultUpstartServiceName = "sidekiq"

	// DefaultPIDPollInterval re-checks PID files in case a watch event was missed
	DefaultPIDPollInterval = 250 * time.Millisecond
)

// File modes
const (
	// FileMode is the default mode for created files
	FileMode = 0o644
)

// Intent tags what a command is meant to achieve
type Intent int

const (
	// IntentUnknown represents an unknown intent
	IntentUnknown Intent = iota
	// IntentQuiet stops workers from fetching new jobs
	IntentQuiet
	// IntentStop stops workers, waiting up to the configured timeout
	IntentStop
	// IntentStart launches workers
	IntentStart
	// IntentInstall installs the init system unit
	IntentInstall
	// IntentUninstall removes the init system unit
	IntentUninstall
	// IntentTail streams the worker log
	IntentTail
	// IntentStatus reports whether workers are running
	IntentStatus
	// IntentCheck verifies the host is ready before an operation
	IntentCheck
)

// Intent string constants
const (
	intentUnknownStr   = "unknown"
	intentQuietStr     = "quiet"
	intentStopStr      = "stop"
	intentStartStr     = "start"
	intentInstallStr   = "install"
	intentUninstallStr = "uninstall"
	intentTailStr      = "tail"
	intentStatusStr    = "status"
	intentCheckStr     = "check"
)

// String returns the string representation of the intent
func (i Intent) String() string {
	switch i {
	case IntentQuiet:
		return intentQuietStr
	case IntentStop:
		return intentStopStr
	case IntentStart:
		return intentStartStr
	case IntentInstall:
		return intentInstallStr
	case IntentUninstall:
		return intentUninstallStr
	case IntentTail:
		return intentTailStr
	case IntentStatus:
		return intentStatusStr
	case IntentCheck:
		return intentCheckStr
	case IntentUnknown:
		fallthrough
	default:
		return intentUnknownStr
	}
}
