// Command workerctl quiets, stops, starts and restarts Sidekiq workers on a
// deploy host, tails their log and installs their systemd unit.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/axondata/go-workerctl"
)

type flagOptions struct {
	Settings     []string      `long:"settings" short:"s" description:"YAML settings file, applied in order (repeatable)"`
	Set          []string      `long:"set" description:"override a setting as key=value (repeatable)"`
	Host         string        `long:"host" description:"run commands on this host over SSH instead of locally"`
	SSHUser      string        `long:"ssh-user" default:"deploy" description:"SSH user"`
	Identity     string        `long:"identity" short:"i" description:"SSH private key (default: ~/.ssh/id_ed25519)"`
	KnownHosts   string        `long:"known-hosts" description:"known_hosts file (default: ~/.ssh/known_hosts)"`
	DryRun       bool          `long:"dry-run" short:"n" description:"print the commands instead of running them"`
	LocalProbe   bool          `long:"local-probe" description:"check PID files from this process instead of on the host"`
	RemoveStale  bool          `long:"remove-stale" description:"with --local-probe, delete PID files of dead workers"`
	Wait         time.Duration `long:"wait" description:"with --local-probe, wait this long for started workers to write their PID files"`
	Precondition string        `long:"precondition" description:"shell snippet run on the host before every operation; a failure aborts it"`
	LogLevel     string        `long:"log-level" default:"info" description:"debug, info, warn or error"`
	LogFormat    string        `long:"log-format" default:"console" choice:"console" choice:"json" description:"log encoding"`
}

type operation func(*workerctl.Manager, context.Context) (*workerctl.Report, error)

type opCommand struct {
	opts *flagOptions
	name string
	op   operation
}

func (c *opCommand) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := workerctl.NewLogger(workerctl.LogConfig{
		Level:  c.opts.LogLevel,
		Format: c.opts.LogFormat,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := loadStore(c.opts)
	if err != nil {
		return err
	}

	sink, closeSink, err := newSink(c.opts)
	if err != nil {
		return err
	}
	defer closeSink()

	mopts := []workerctl.ManagerOption{workerctl.WithLogger(logger)}
	if c.opts.LocalProbe {
		mopts = append(mopts,
			workerctl.WithProber(&workerctl.LocalProber{RemoveStale: c.opts.RemoveStale}),
			workerctl.WithWaitTimeout(c.opts.Wait),
		)
	}
	if c.opts.Precondition != "" {
		mopts = append(mopts, workerctl.WithPrecondition(workerctl.SinkPrecondition(sink, c.opts.Precondition)))
	}
	mgr := workerctl.NewManager(store, sink, mopts...)

	report, err := c.op(mgr, ctx)
	if report != nil {
		logger.Info("done",
			zap.String("operation", c.name),
			zap.Stringer("strategy", report.Strategy),
			zap.Int("issued", report.Issued()),
			zap.Int("skipped", report.Skipped()),
			zap.Int("failed", report.Failed()),
		)
	}
	return err
}

type versionCommand struct{}

func (versionCommand) Execute(_ []string) error {
	info := workerctl.GetVersion()
	fmt.Printf("workerctl %s (init systems: %s)\n", info.Version, strings.Join(info.InitSystems, ", "))
	return nil
}

func loadStore(opts *flagOptions) (*workerctl.Store, error) {
	store := workerctl.NewDefaultStore()
	for _, path := range opts.Settings {
		if err := store.LoadFile(path); err != nil {
			return nil, err
		}
	}
	for _, assignment := range opts.Set {
		if err := store.SetAssignment(assignment); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newSink(opts *flagOptions) (workerctl.Sink, func(), error) {
	noop := func() {}

	if opts.DryRun {
		return &workerctl.Recorder{Out: os.Stdout}, noop, nil
	}
	if opts.Host == "" {
		return workerctl.NewShellSink(), noop, nil
	}
	if opts.LocalProbe {
		return nil, noop, errors.New("--local-probe cannot check PID files on a remote --host")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, noop, err
	}
	identity := opts.Identity
	if identity == "" {
		identity = filepath.Join(home, ".ssh", "id_ed25519")
	}
	knownHosts := opts.KnownHosts
	if knownHosts == "" {
		knownHosts = filepath.Join(home, ".ssh", "known_hosts")
	}

	config, err := workerctl.SSHClientConfig(opts.SSHUser, identity, knownHosts, 10*time.Second)
	if err != nil {
		return nil, noop, err
	}
	sink := workerctl.NewSSHSink(opts.Host, config)
	return sink, func() { _ = sink.Close() }, nil
}

func main() {
	var opts flagOptions
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)

	commands := []struct {
		name, short string
		op          operation
	}{
		{"quiet", "Quiet sidekiq (stop accepting new work)", (*workerctl.Manager).Quiet},
		{"stop", "Stop sidekiq", (*workerctl.Manager).Stop},
		{"start", "Start sidekiq", (*workerctl.Manager).Start},
		{"restart", "Restart sidekiq", (*workerctl.Manager).Restart},
		{"log", "Tail log from server", (*workerctl.Manager).Tail},
		{"status", "Show whether sidekiq is running", (*workerctl.Manager).Status},
		{"install", "Install and enable the systemd unit", (*workerctl.Manager).Install},
		{"uninstall", "Disable and remove the systemd unit", (*workerctl.Manager).Uninstall},
	}
	for _, c := range commands {
		cmd := &opCommand{opts: &opts, name: c.name, op: c.op}
		if _, err := parser.AddCommand(c.name, c.short, c.short, cmd); err != nil {
			fmt.Fprintf(os.Stderr, "workerctl: %v\n", err)
			os.Exit(1)
		}
	}

	if _, err := parser.AddCommand("version", "Print the version", "Print the version", versionCommand{}); err != nil {
		fmt.Fprintf(os.Stderr, "workerctl: %v\n", err)
		os.Exit(1)
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "workerctl: %v\n", err)
		os.Exit(1)
	}
}
