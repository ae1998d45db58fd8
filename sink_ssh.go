package workerctl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHSink runs commands on a remote host, one SSH session per command.
// The connection is opened on first use and reused until Close.
type SSHSink struct {
	// Addr is the host:port to connect to; a bare host uses port 22
	Addr string
	// Config is the SSH client configuration
	Config *ssh.ClientConfig
	// Stdout receives remote command output (default: os.Stdout)
	Stdout io.Writer
	// Stderr receives remote command errors (default: os.Stderr)
	Stderr io.Writer

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHSink creates an SSHSink for addr
func NewSSHSink(addr string, config *ssh.ClientConfig) *SSHSink {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}
	return &SSHSink{
		Addr:   addr,
		Config: config,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// SSHClientConfig builds a client configuration authenticating user with the
// private key at identityFile and verifying the host against knownHostsFile
func SSHClientConfig(user, identityFile, knownHostsFile string, timeout time.Duration) (*ssh.ClientConfig, error) {
	pem, err := os.ReadFile(identityFile)
	if err != nil {
		return nil, fmt.Errorf("reading identity: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("parsing identity %s: %w", identityFile, err)
	}

	hostKeys, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("loading known hosts: %w", err)
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}, nil
}

// Run executes cmd remotely. Dir is entered with cd for this command only.
// Cancelling ctx signals the remote command and closes its session.
func (s *SSHSink) Run(ctx context.Context, cmd Command) error {
	if cmd.IsSkip() {
		_, err := fmt.Fprintln(s.out(s.Stdout), cmd.Skip)
		return err
	}

	client, err := s.connect()
	if err != nil {
		return err
	}

	sess, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	script := cmd.String()
	if cmd.File != nil {
		script = fileScript(cmd)
		sess.Stdin = bytes.NewReader(cmd.File.Content)
	}

	var stderr bytes.Buffer
	sess.Stdout = s.out(s.Stdout)
	sess.Stderr = io.MultiWriter(s.out(s.Stderr), &stderr)

	if err := sess.Start(script); err != nil {
		return fmt.Errorf("starting remote command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- sess.Wait()
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w (stderr: %s)", err, msg)
		}
		return err
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGTERM)
		_ = sess.Close()
		return ctx.Err()
	}
}

// Close closes the SSH connection if one is open
func (s *SSHSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *SSHSink) connect() (*ssh.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	if s.Config == nil {
		return nil, fmt.Errorf("ssh %s: no client configuration", s.Addr)
	}

	client, err := ssh.Dial("tcp", s.Addr, s.Config)
	if err != nil {
		return nil, fmt.Errorf("ssh %s: %w", s.Addr, err)
	}
	s.client = client
	return client, nil
}

func (s *SSHSink) out(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// fileScript streams stdin into the file, replacing it only once fully written
func fileScript(cmd Command) string {
	path := shellQuote(cmd.File.Path)
	tmp := shellQuote(cmd.File.Path + ".workerctl-tmp")
	script := fmt.Sprintf("cat > %s && chmod %04o %s && mv -f %s %s",
		tmp, cmd.File.FileMode().Perm(), tmp, tmp, path)
	if cmd.Dir == "" {
		return script
	}
	return "cd " + shellQuote(cmd.Dir) + " && " + script
}
