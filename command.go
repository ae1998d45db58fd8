package workerctl

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"
)

// heredocDelimiter terminates file content in serialized File commands
const heredocDelimiter = "WORKERCTL_EOF"

// Command is a single lifecycle step kept as data until a Sink serializes it.
// At most one of Guard, File and Skip is set.
type Command struct {
	// Intent tags what the command is meant to achieve
	Intent Intent
	// Args is the program and its arguments
	Args []string
	// Dir is the working directory the command runs in; empty keeps the sink's
	Dir string
	// Guard makes Args conditional on a live process behind a PID file
	Guard *Guard
	// File writes content to a path instead of running Args
	File *FileSpec
	// Skip is an informational message emitted instead of running anything
	Skip string
	// Subject names what the command acts on: an instance PID file, a unit
	// or service name, or a file path
	Subject string
}

// Guard runs a command only if PIDFile exists and names a live process
type Guard struct {
	// PIDFile is the PID file checked before running the command
	PIDFile string
	// SkipMessage is reported when the check fails
	SkipMessage string
}

// FileSpec describes a file a command writes
type FileSpec struct {
	// Path is the destination file
	Path string
	// Content is the full file content
	Content []byte
	// Mode is the file mode; zero means FileMode
	Mode fs.FileMode
}

// FileMode returns the mode to write the file with
func (f *FileSpec) FileMode() fs.FileMode {
	if f.Mode == 0 {
		return FileMode
	}
	return f.Mode
}

// IsSkip reports whether the command only carries an informational message
func (c Command) IsSkip() bool {
	return c.Skip != "" && c.File == nil && len(c.Args) == 0
}

// Target names what the command acts on, for logs and errors. Subject wins
// when set.
func (c Command) Target() string {
	switch {
	case c.Subject != "":
		return c.Subject
	case c.Guard != nil:
		return c.Guard.PIDFile
	case c.File != nil:
		return c.File.Path
	case len(c.Args) > 0:
		return c.Args[len(c.Args)-1]
	default:
		return ""
	}
}

// Unguarded returns a copy of c without its guard, for callers that have
// already evaluated it
func (c Command) Unguarded() Command {
	c.Guard = nil
	return c
}

// Skipped returns the informational command reported when c's guard fails
func (c Command) Skipped() Command {
	msg := c.Skip
	if c.Guard != nil {
		msg = c.Guard.SkipMessage
	}
	return Command{Intent: c.Intent, Dir: c.Dir, Skip: msg, Subject: c.Target()}
}

// Script serializes the command as a POSIX shell script, without changing
// directory
func (c Command) Script() string {
	switch {
	case c.File != nil:
		content := string(c.File.Content)
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		delim := heredocFor(content)
		return fmt.Sprintf("cat > %s <<'%s'\n%s%s", shellQuote(c.File.Path), delim, content, delim)
	case c.IsSkip():
		return "echo " + shellQuote(c.Skip)
	case c.Guard != nil:
		pid := shellQuote(c.Guard.PIDFile)
		return fmt.Sprintf("if [ -f %s ] && kill -0 `cat %s` > /dev/null 2>&1; then %s; else echo %s; fi",
			pid, pid, joinArgs(c.Args), shellQuote(c.Guard.SkipMessage))
	default:
		return joinArgs(c.Args)
	}
}

// String serializes the command as a shell script run in Dir
func (c Command) String() string {
	if c.Dir == "" {
		return c.Script()
	}
	return "cd " + shellQuote(c.Dir) + " && " + c.Script()
}

// heredocFor returns a heredoc delimiter that does not occur as a line of content
func heredocFor(content string) string {
	lines := make(map[string]struct{})
	for _, line := range strings.Split(content, "\n") {
		lines[line] = struct{}{}
	}

	delim := heredocDelimiter
	for n := 1; ; n++ {
		if _, taken := lines[delim]; !taken {
			return delim
		}
		delim = heredocDelimiter + "_" + strconv.Itoa(n)
	}
}

func joinArgs(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, shellQuote(arg))
	}
	return strings.Join(quoted, " ")
}

// shellQuote escapes a string for safe use in shell scripts
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}

	if !needsShellQuoting(s) {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// needsShellQuoting checks if a string contains characters that require shell quoting
func needsShellQuoting(s string) bool {
	const specialChars = " \t\n'\"\\$`!*?[](){}<>|&;~#="

	for _, r := range s {
		if strings.ContainsRune(specialChars, r) {
			return true
		}
	}
	return false
}
