package workerctl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// Sink executes lifecycle commands on a host. Run returns nil when the
// command succeeded; output is the sink's business.
type Sink interface {
	Run(ctx context.Context, cmd Command) error
}

// ShellSink runs commands on the local host through /bin/sh
type ShellSink struct {
	// Shell is the shell binary commands are passed to with -c
	Shell string
	// Stdout receives command output (default: os.Stdout)
	Stdout io.Writer
	// Stderr receives command errors (default: os.Stderr)
	Stderr io.Writer
	// Env is appended to the current environment of each command
	Env []string
	// WaitDelay bounds how long output is drained after a cancelled command exits
	WaitDelay time.Duration
}

// NewShellSink creates a ShellSink writing to the process's stdout and stderr
func NewShellSink() *ShellSink {
	return &ShellSink{
		Shell:     DefaultShellPath,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		WaitDelay: time.Second,
	}
}

// Run executes cmd. Dir becomes the working directory of the shell and is
// left untouched for the caller. File commands are written atomically.
func (s *ShellSink) Run(ctx context.Context, cmd Command) error {
	switch {
	case cmd.File != nil:
		return s.writeFile(cmd)
	case cmd.IsSkip():
		_, err := fmt.Fprintln(s.stdout(), cmd.Skip)
		return err
	}

	c := exec.CommandContext(ctx, s.shell(), "-c", cmd.Script())
	c.Dir = cmd.Dir
	if len(s.Env) > 0 {
		c.Env = append(os.Environ(), s.Env...)
	}
	c.WaitDelay = s.WaitDelay

	var stderr bytes.Buffer
	c.Stdout = s.stdout()
	c.Stderr = io.MultiWriter(s.stderr(), &stderr)

	if err := c.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w (stderr: %s)", err, msg)
		}
		return err
	}
	return nil
}

func (s *ShellSink) writeFile(cmd Command) error {
	path := cmd.File.Path
	if !filepath.IsAbs(path) && cmd.Dir != "" {
		path = filepath.Join(cmd.Dir, path)
	}
	if err := renameio.WriteFile(path, cmd.File.Content, cmd.File.FileMode()); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (s *ShellSink) shell() string {
	if s.Shell == "" {
		return DefaultShellPath
	}
	return s.Shell
}

func (s *ShellSink) stdout() io.Writer {
	if s.Stdout == nil {
		return io.Discard
	}
	return s.Stdout
}

func (s *ShellSink) stderr() io.Writer {
	if s.Stderr == nil {
		return io.Discard
	}
	return s.Stderr
}

// Recorder is a Sink that records commands instead of running them. It backs
// dry runs and tests.
type Recorder struct {
	// Commands holds every command passed to Run, in order
	Commands []Command
	// Out, when set, receives each command's shell form
	Out io.Writer
	// Fail, when set, decides the result of each command
	Fail func(Command) error
}

// Run records cmd
func (r *Recorder) Run(_ context.Context, cmd Command) error {
	r.Commands = append(r.Commands, cmd)
	if r.Out != nil {
		if _, err := fmt.Fprintln(r.Out, cmd.String()); err != nil {
			return err
		}
	}
	if r.Fail != nil {
		return r.Fail(cmd)
	}
	return nil
}

// Scripts returns the shell form of every recorded command
func (r *Recorder) Scripts() []string {
	out := make([]string, 0, len(r.Commands))
	for _, cmd := range r.Commands {
		out = append(out, cmd.String())
	}
	return out
}

// Reset forgets recorded commands
func (r *Recorder) Reset() {
	r.Commands = nil
}
