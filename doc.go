// Package workerctl controls the lifecycle of Sidekiq worker processes on a
// deploy host: quiet, stop, start, restart, status, log tail, and the install
// and removal of a systemd unit.
//
// Every operation resolves a fresh WorkerConfig from a Store of deploy
// settings, picks a control strategy from the configured init system and
// plans a list of Commands:
//
//	store := workerctl.NewDefaultStore()
//	store.Set(workerctl.KeyDeployTo, "/srv/app")
//	store.Set(workerctl.KeyProcesses, 2)
//
//	mgr := workerctl.NewManager(store, workerctl.NewShellSink())
//	report, err := mgr.Restart(context.Background())
//
// # Strategies
//
// With init_system set to systemd or upstart, each operation is a single
// systemctl or service command against the configured unit. Otherwise workers
// are driven directly: sidekiq is launched once per process index and
// sidekiqctl quiets or stops each worker through its PID file. Direct quiet
// and stop are guarded by a liveness check of the PID file, so workers that
// were never started are skipped rather than failing the operation.
//
// # Commands as data
//
// Planning functions (PlanQuiet, PlanStop, PlanStart, PlanRestart, PlanTail,
// PlanStatus, PlanInstall, PlanUninstall) are pure. Commands keep their
// arguments as a list and are turned into shell text only by a Sink:
// ShellSink runs them locally, SSHSink on a remote host, and Recorder just
// records them for dry runs and tests.
package workerctl
