package workerctl

import "strconv"

// Skip messages reported when a worker's PID guard fails
const (
	SkipQuietMessage  = "Skip quiet command (no pid file found)"
	SkipStopMessage   = "Skip stopping sidekiq (no pid file found)"
	SkipStatusMessage = "Sidekiq is not running (no pid file found)"
)

// PlanQuiet returns the commands that make workers stop fetching new jobs
// while finishing the ones in flight.
func PlanQuiet(cfg WorkerConfig, st Strategy) []Command {
	if cmd, ok := unitCommand(IntentQuiet, st, "reload"); ok {
		return []Command{cmd}
	}

	cmds := make([]Command, 0, cfg.ProcessCount)
	for _, inst := range Enumerate(cfg) {
		args := append(append([]string(nil), cfg.SidekiqctlCmd...), "quiet", inst.PIDFile)
		cmds = append(cmds, Command{
			Intent: IntentQuiet,
			Args:   args,
			Dir:     cfg.WorkDir,
			Guard:   &Guard{PIDFile: inst.PIDFile, SkipMessage: SkipQuietMessage},
			Subject: inst.PIDFile,
		})
	}
	return cmds
}

// PlanStop returns the commands that stop workers. Direct stops hand
// cfg.TimeoutSeconds to sidekiqctl, which kills a worker still running after it.
func PlanStop(cfg WorkerConfig, st Strategy) []Command {
	if cmd, ok := unitCommand(IntentStop, st, "stop"); ok {
		return []Command{cmd}
	}

	timeout := strconv.Itoa(cfg.TimeoutSeconds)
	cmds := make([]Command, 0, cfg.ProcessCount)
	for _, inst := range Enumerate(cfg) {
		args := append(append([]string(nil), cfg.SidekiqctlCmd...), "stop", inst.PIDFile, timeout)
		cmds = append(cmds, Command{
			Intent: IntentStop,
			Args:   args,
			Dir:     cfg.WorkDir,
			Guard:   &Guard{PIDFile: inst.PIDFile, SkipMessage: SkipStopMessage},
			Subject: inst.PIDFile,
		})
	}
	return cmds
}

// PlanStart returns the commands that launch workers
func PlanStart(cfg WorkerConfig, st Strategy) []Command {
	if cmd, ok := unitCommand(IntentStart, st, "start"); ok {
		return []Command{cmd}
	}

	cmds := make([]Command, 0, cfg.ProcessCount)
	for _, inst := range Enumerate(cfg) {
		cmds = append(cmds, Command{
			Intent:  IntentStart,
			Args:    startArgs(cfg, inst),
			Dir:     cfg.WorkDir,
			Subject: inst.PIDFile,
		})
	}
	return cmds
}

// PlanRestart is PlanStop followed by PlanStart
func PlanRestart(cfg WorkerConfig, st Strategy) []Command {
	return append(PlanStop(cfg, st), PlanStart(cfg, st)...)
}

// PlanTail returns the command following the worker log. It never finishes
// on its own; the sink's context ends it.
func PlanTail(cfg WorkerConfig) ([]Command, error) {
	if cfg.LogPath == "" {
		return nil, missing(KeyLog)
	}
	return []Command{{
		Intent:  IntentTail,
		Args:    []string{DefaultTailPath, "-f", cfg.LogPath},
		Subject: cfg.LogPath,
	}}, nil
}

// PlanStatus returns the commands reporting whether workers run. Direct
// status prints each live worker's PID.
func PlanStatus(cfg WorkerConfig, st Strategy) []Command {
	if cmd, ok := unitCommand(IntentStatus, st, "status"); ok {
		return []Command{cmd}
	}

	cmds := make([]Command, 0, cfg.ProcessCount)
	for _, inst := range Enumerate(cfg) {
		cmds = append(cmds, Command{
			Intent: IntentStatus,
			Args:   []string{"cat", inst.PIDFile},
			Dir:     cfg.WorkDir,
			Guard:   &Guard{PIDFile: inst.PIDFile, SkipMessage: SkipStatusMessage},
			Subject: inst.PIDFile,
		})
	}
	return cmds
}

// startArgs builds:
//
//	<sidekiq> -d -e <env> [-c <concurrency>] -C <config> -i <index> -P <pid> [-L <log>]
func startArgs(cfg WorkerConfig, inst Instance) []string {
	args := make([]string, 0, len(cfg.SidekiqCmd)+13)
	args = append(args, cfg.SidekiqCmd...)
	args = append(args, "-d", "-e", cfg.Env)
	if cfg.Concurrency != nil {
		args = append(args, "-c", strconv.Itoa(*cfg.Concurrency))
	}
	args = append(args,
		"-C", inst.ConfigFile,
		"-i", strconv.Itoa(inst.Index),
		"-P", inst.PIDFile,
	)
	if cfg.LogPath != "" {
		args = append(args, "-L", cfg.LogPath)
	}
	return args
}

// unitCommand returns the single init system command for a unit strategy.
// ok is false for StrategyDirect.
func unitCommand(intent Intent, st Strategy, verb string) (Command, bool) {
	switch st.Kind {
	case StrategySystemd:
		return Command{Intent: intent, Args: []string{DefaultSystemctlPath, verb, st.Name}, Subject: st.Name}, true
	case StrategyUpstart:
		return Command{Intent: intent, Args: []string{DefaultSudoCommand, DefaultServiceCommand, st.Name, verb}, Subject: st.Name}, true
	default:
		return Command{}, false
	}
}
