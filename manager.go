package workerctl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Manager runs lifecycle operations: it resolves a fresh WorkerConfig from
// its Store, selects the control strategy, plans the commands and issues them
// one at a time through its Sink.
type Manager struct {
	// Store holds the deploy settings
	Store *Store
	// Sink executes commands
	Sink Sink
	// Logger receives one entry per command issued or skipped
	Logger *zap.Logger
	// Prober, when set, evaluates PID guards before the sink is involved
	Prober Prober
	// WaitTimeout, when positive and a Prober is set, makes direct starts wait
	// for every PID file to appear
	WaitTimeout time.Duration
	// Precondition runs before every operation, e.g. to check the host is ready
	Precondition func(context.Context) error
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		m.Logger = logger
	}
}

// WithProber evaluates PID guards locally with p
func WithProber(p Prober) ManagerOption {
	return func(m *Manager) {
		m.Prober = p
	}
}

// WithWaitTimeout makes direct starts wait up to d for PID files
func WithWaitTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.WaitTimeout = d
	}
}

// WithPrecondition sets a check run before every operation
func WithPrecondition(fn func(context.Context) error) ManagerOption {
	return func(m *Manager) {
		m.Precondition = fn
	}
}

// SinkPrecondition returns a precondition that runs script through sink, so
// the check happens on the same host as the operation. A failing script
// aborts the operation.
func SinkPrecondition(sink Sink, script string) func(context.Context) error {
	return func(ctx context.Context) error {
		return sink.Run(ctx, Command{
			Intent:  IntentCheck,
			Args:    []string{"sh", "-c", script},
			Subject: script,
		})
	}
}

// NewManager creates a Manager reading settings from store and issuing
// commands through sink
func NewManager(store *Store, sink Sink, opts ...ManagerOption) *Manager {
	m := &Manager{
		Store:  store,
		Sink:   sink,
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.Logger == nil {
		m.Logger = zap.NewNop()
	}

	return m
}

// Result is the outcome of one planned command
type Result struct {
	// Command is the command issued, or the skip reported in its place
	Command Command
	// Skipped is true when the command's guard failed and nothing ran
	Skipped bool
	// Reason explains a skip that came from a failed liveness check
	Reason error
	// Err is the execution failure, if any
	Err error
}

// Report collects the results of one lifecycle operation
type Report struct {
	// Strategy is the control strategy the operation used
	Strategy Strategy
	// Results holds one entry per planned command, in issue order
	Results []Result
}

// Issued returns the number of commands handed to the sink
func (r *Report) Issued() int {
	n := 0
	for _, res := range r.Results {
		if !res.Skipped {
			n++
		}
	}
	return n
}

// Skipped returns the number of commands skipped
func (r *Report) Skipped() int {
	return len(r.Results) - r.Issued()
}

// Failed returns the number of commands the sink reported as failed
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Quiet makes workers stop fetching new jobs
func (m *Manager) Quiet(ctx context.Context) (*Report, error) {
	cfg, st, err := m.prepare(ctx, IntentQuiet)
	if err != nil {
		return nil, err
	}
	report := &Report{Strategy: st}
	return report, m.execute(ctx, report, PlanQuiet(cfg, st))
}

// Stop stops workers
func (m *Manager) Stop(ctx context.Context) (*Report, error) {
	cfg, st, err := m.prepare(ctx, IntentStop)
	if err != nil {
		return nil, err
	}
	report := &Report{Strategy: st}
	return report, m.execute(ctx, report, PlanStop(cfg, st))
}

// Start launches workers
func (m *Manager) Start(ctx context.Context) (*Report, error) {
	cfg, st, err := m.prepare(ctx, IntentStart)
	if err != nil {
		return nil, err
	}
	report := &Report{Strategy: st}
	return report, m.start(ctx, report, cfg, st)
}

// Restart stops then starts workers using one resolved configuration.
// Start is not attempted when any stop command failed.
func (m *Manager) Restart(ctx context.Context) (*Report, error) {
	cfg, st, err := m.prepare(ctx, IntentStop)
	if err != nil {
		return nil, err
	}
	report := &Report{Strategy: st}
	if err := m.execute(ctx, report, PlanStop(cfg, st)); err != nil {
		m.Logger.Error("stop failed, not starting", zap.Error(err))
		return report, fmt.Errorf("restart: stop: %w", err)
	}
	if err := m.start(ctx, report, cfg, st); err != nil {
		return report, fmt.Errorf("restart: start: %w", err)
	}
	return report, nil
}

// Tail streams the worker log until ctx is cancelled. Cancellation is the
// normal way for Tail to end and is not reported as an error.
func (m *Manager) Tail(ctx context.Context) (*Report, error) {
	cfg, st, err := m.prepare(ctx, IntentTail)
	if err != nil {
		return nil, err
	}
	cmds, err := PlanTail(cfg)
	if err != nil {
		return nil, err
	}
	report := &Report{Strategy: st}
	err = m.execute(ctx, report, cmds)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return report, nil
	}
	return report, err
}

// Status reports whether workers are running
func (m *Manager) Status(ctx context.Context) (*Report, error) {
	cfg, st, err := m.prepare(ctx, IntentStatus)
	if err != nil {
		return nil, err
	}
	report := &Report{Strategy: st}
	return report, m.execute(ctx, report, PlanStatus(cfg, st))
}

// Install writes, registers and enables the systemd unit. It does nothing
// for other init systems.
func (m *Manager) Install(ctx context.Context) (*Report, error) {
	cfg, st, err := m.prepare(ctx, IntentInstall)
	if err != nil {
		return nil, err
	}
	report := &Report{Strategy: st}
	cmds := PlanInstall(cfg, st)
	if len(cmds) == 0 {
		m.Logger.Info("no unit to install", zap.Stringer("strategy", st))
		return report, nil
	}
	return report, m.execute(ctx, report, cmds)
}

// Uninstall disables and removes the systemd unit. It does nothing for
// other init systems.
func (m *Manager) Uninstall(ctx context.Context) (*Report, error) {
	cfg, st, err := m.prepare(ctx, IntentUninstall)
	if err != nil {
		return nil, err
	}
	report := &Report{Strategy: st}
	cmds := PlanUninstall(cfg, st)
	if len(cmds) == 0 {
		m.Logger.Info("no unit to uninstall", zap.Stringer("strategy", st))
		return report, nil
	}
	return report, m.execute(ctx, report, cmds)
}

// prepare runs the precondition and resolves configuration and strategy.
// Any failure here aborts the operation before a command is issued.
func (m *Manager) prepare(ctx context.Context, intent Intent) (WorkerConfig, Strategy, error) {
	if m.Precondition != nil {
		if err := m.Precondition(ctx); err != nil {
			return WorkerConfig{}, Strategy{}, fmt.Errorf("%s: precondition: %w", intent, err)
		}
	}

	cfg, err := LoadWorkerConfig(m.Store)
	if err != nil {
		return cfg, Strategy{}, fmt.Errorf("%s: %w", intent, err)
	}

	st, err := SelectStrategy(cfg)
	if err != nil {
		return cfg, st, fmt.Errorf("%s: %w", intent, err)
	}

	m.Logger.Debug("resolved configuration",
		zap.Stringer("intent", intent),
		zap.Stringer("strategy", st),
		zap.Int("processes", cfg.ProcessCount),
	)
	return cfg, st, nil
}

func (m *Manager) start(ctx context.Context, report *Report, cfg WorkerConfig, st Strategy) error {
	if err := m.execute(ctx, report, PlanStart(cfg, st)); err != nil {
		return err
	}
	if st.Kind != StrategyDirect || m.Prober == nil || m.WaitTimeout <= 0 {
		return nil
	}

	instances := Enumerate(cfg)
	pidFiles := make([]string, 0, len(instances))
	for _, inst := range instances {
		pidFiles = append(pidFiles, inst.PIDFile)
	}
	if err := WaitForPIDFiles(ctx, pidFiles, m.WaitTimeout); err != nil {
		return err
	}
	m.Logger.Info("workers started", zap.Strings("pid_files", pidFiles))
	return nil
}

// execute issues cmds in order. A failed command does not stop the rest;
// failures are collected into a *MultiError. Cancelling ctx stops issuing.
func (m *Manager) execute(ctx context.Context, report *Report, cmds []Command) error {
	merr := &MultiError{}
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			merr.Add(err)
			break
		}

		res := m.run(ctx, cmd)
		report.Results = append(report.Results, res)
		merr.Add(res.Err)
	}
	return merr.Err()
}

func (m *Manager) run(ctx context.Context, cmd Command) Result {
	if cmd.Guard != nil && m.Prober != nil {
		alive, err := m.Prober.Alive(ctx, cmd.Guard.PIDFile)
		if err != nil || !alive {
			res := Result{Command: cmd.Skipped(), Skipped: true}
			if err != nil {
				res.Reason = fmt.Errorf("%w: %w", ErrInstanceUnreachable, err)
			}
			m.Logger.Info("skip",
				zap.Stringer("intent", cmd.Intent),
				zap.String("pid_file", cmd.Guard.PIDFile),
				zap.String("message", cmd.Guard.SkipMessage),
				zap.NamedError("reason", res.Reason),
			)
			return res
		}
		cmd = cmd.Unguarded()
	}

	if cmd.IsSkip() {
		m.Logger.Info("skip", zap.Stringer("intent", cmd.Intent), zap.String("message", cmd.Skip))
		return Result{Command: cmd, Skipped: true}
	}

	m.Logger.Info("run",
		zap.Stringer("intent", cmd.Intent),
		zap.String("command", cmd.String()),
	)
	if err := m.Sink.Run(ctx, cmd); err != nil {
		opErr := &OpError{Intent: cmd.Intent, Target: cmd.Target(), Err: err}
		if ctx.Err() == nil {
			m.Logger.Error("command failed",
				zap.Stringer("intent", cmd.Intent),
				zap.String("target", opErr.Target),
				zap.Error(err),
			)
		}
		return Result{Command: cmd, Err: opErr}
	}
	return Result{Command: cmd}
}
