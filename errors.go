package workerctl

import (
	"errors"
	"fmt"
)

// Common errors returned by lifecycle operations
var (
	// ErrConfigurationMissing indicates a required setting could not be resolved
	ErrConfigurationMissing = errors.New("workerctl: configuration missing")

	// ErrInvalidConfig indicates a resolved setting violates a WorkerConfig invariant
	ErrInvalidConfig = errors.New("workerctl: invalid configuration")

	// ErrInstanceUnreachable indicates a worker instance failed its PID liveness guard.
	// It is never returned from an operation; skipped instances are reported instead.
	ErrInstanceUnreachable = errors.New("workerctl: instance unreachable")

	// ErrResolveCycle indicates a setting resolver (directly or indirectly) fetched itself
	ErrResolveCycle = errors.New("workerctl: setting resolves itself")
)

// ConfigError names the setting that could not be resolved or validated
type ConfigError struct {
	// Key is the setting key
	Key string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *ConfigError) Error() string {
	return fmt.Sprintf("setting %q: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func missing(key string) error {
	return &ConfigError{Key: key, Err: ErrConfigurationMissing}
}

// OpError represents a command the sink failed to execute
type OpError struct {
	// Intent is the lifecycle intent of the failed command
	Intent Intent
	// Target is the PID file, unit or path the command acted on
	Target string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Intent, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Intent, e.Target, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// MultiError aggregates the failures of one lifecycle operation
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred, first: %v", len(m.Errors), m.Errors[0])
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
