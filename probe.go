package workerctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidPID is returned when a PID file does not hold a positive integer
var ErrInvalidPID = errors.New("invalid PID in file")

// Prober evaluates PID guards on this side of the sink. A Manager with a
// Prober runs guarded commands only for live workers and reports the rest as
// skips, instead of shipping the guard to the host.
type Prober interface {
	// Alive reports whether pidFile exists and names a running process.
	// A missing file is (false, nil).
	Alive(ctx context.Context, pidFile string) (bool, error)
}

// LocalProber checks PID files on the local filesystem
type LocalProber struct {
	// RemoveStale deletes PID files whose process is gone
	RemoveStale bool
}

// Alive reads pidFile and checks the process with signal 0
func (p *LocalProber) Alive(_ context.Context, pidFile string) (bool, error) {
	pid, err := ReadPIDFile(pidFile)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	alive, err := processAlive(pid)
	if err != nil {
		return false, fmt.Errorf("checking pid %d from %s: %w", pid, pidFile, err)
	}
	if !alive && p.RemoveStale {
		if err := os.Remove(pidFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("removing stale pid file: %w", err)
		}
	}
	return alive, nil
}

// ReadPIDFile reads the PID stored in path
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPID, pidStr)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	return pid, nil
}
