package workerctl

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadTestConfig resolves a WorkerConfig for a deploy at /srv/app with the
// given overrides applied on top of the defaults
func loadTestConfig(t *testing.T, overrides map[string]any) WorkerConfig {
	t.Helper()

	s := NewDefaultStore()
	s.Set(KeyDeployTo, "/srv/app")
	s.Merge(overrides)

	cfg, err := LoadWorkerConfig(s)
	require.NoError(t, err)
	return cfg
}

func countFlag(args []string, flag string) int {
	n := 0
	for _, a := range args {
		if a == flag {
			n++
		}
	}
	return n
}

func flagValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestPlanStartDirect(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{
		KeyProcesses:   2,
		KeyConcurrency: 5,
		KeyLog:         "/var/log/w.log",
	})

	cmds := PlanStart(cfg, Direct())
	require.Len(t, cmds, 2)

	for i, cmd := range cmds {
		assert.Equal(t, IntentStart, cmd.Intent)
		assert.Nil(t, cmd.Guard)
		assert.Equal(t, "/srv/app/current", cmd.Dir)

		script := cmd.Script()
		assert.Contains(t, script, "-c 5")
		assert.Contains(t, script, fmt.Sprintf("-i %d", i))
		assert.Contains(t, script, "-L /var/log/w.log")
	}

	assert.Equal(t,
		"bundle exec sidekiq -d -e production -c 5 -C /srv/app/current/config/sidekiq.yml "+
			"-i 0 -P /srv/app/shared/pids/sidekiq.pid -L /var/log/w.log",
		cmds[0].Script())
	assert.Equal(t,
		"cd /srv/app/current && bundle exec sidekiq -d -e production -c 5 -C /srv/app/current/config/sidekiq.yml "+
			"-i 1 -P /srv/app/shared/pids/sidekiq.pid-1 -L /var/log/w.log",
		cmds[1].String())
}

func TestPlanStartConcurrencyFlag(t *testing.T) {
	unset := loadTestConfig(t, map[string]any{KeyProcesses: 3})
	for _, cmd := range PlanStart(unset, Direct()) {
		assert.Zero(t, countFlag(cmd.Args, "-c"), cmd.Script())
	}

	set := loadTestConfig(t, map[string]any{KeyProcesses: 3, KeyConcurrency: 25})
	for _, cmd := range PlanStart(set, Direct()) {
		assert.Equal(t, 1, countFlag(cmd.Args, "-c"), cmd.Script())
		assert.Equal(t, "25", flagValue(cmd.Args, "-c"))
	}
}

func TestPlanStartRequiredFlagsOnce(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{KeyProcesses: 2})

	for _, cmd := range PlanStart(cfg, Direct()) {
		for _, flag := range []string{"-d", "-e", "-C", "-i", "-P", "-L"} {
			assert.Equal(t, 1, countFlag(cmd.Args, flag), "%s in %s", flag, cmd.Script())
		}
	}
}

func TestPlanStartWithoutLog(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{KeyLog: nil})

	cmds := PlanStart(cfg, Direct())
	require.Len(t, cmds, 1)
	assert.Zero(t, countFlag(cmds[0].Args, "-L"))
}

func TestPlanStartConfigPaths(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{
		KeyProcesses: 3,
		KeyConfigs:   []any{"/cfg/a.yml"},
	})

	cmds := PlanStart(cfg, Direct())
	require.Len(t, cmds, 3)
	assert.Equal(t, "/cfg/a.yml", flagValue(cmds[0].Args, "-C"))
	assert.Equal(t, "/srv/app/current/config/sidekiq.yml", flagValue(cmds[1].Args, "-C"))
	assert.Equal(t, "/srv/app/current/config/sidekiq.yml", flagValue(cmds[2].Args, "-C"))
}

func TestPlanQuietDirect(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{KeyProcesses: 2})

	cmds := PlanQuiet(cfg, Direct())
	require.Len(t, cmds, 2)

	for i, inst := range Enumerate(cfg) {
		cmd := cmds[i]
		require.NotNil(t, cmd.Guard)
		assert.Equal(t, inst.PIDFile, cmd.Guard.PIDFile)
		assert.Equal(t, SkipQuietMessage, cmd.Guard.SkipMessage)
		assert.Equal(t, []string{"bundle", "exec", "sidekiqctl", "quiet", inst.PIDFile}, cmd.Args)
	}

	assert.Equal(t,
		"if [ -f /srv/app/shared/pids/sidekiq.pid ] && kill -0 `cat /srv/app/shared/pids/sidekiq.pid` > /dev/null 2>&1; "+
			"then bundle exec sidekiqctl quiet /srv/app/shared/pids/sidekiq.pid; "+
			"else echo 'Skip quiet command (no pid file found)'; fi",
		cmds[0].Script())
}

func TestPlanStopDirect(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{KeyTimeout: 30})

	cmds := PlanStop(cfg, Direct())
	require.Len(t, cmds, 1)
	require.NotNil(t, cmds[0].Guard)
	assert.Equal(t, SkipStopMessage, cmds[0].Guard.SkipMessage)
	assert.Equal(t,
		[]string{"bundle", "exec", "sidekiqctl", "stop", "/srv/app/shared/pids/sidekiq.pid", "30"},
		cmds[0].Args)
}

func TestPlanUnitStrategies(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{KeyProcesses: 4})
	systemd := Systemd("sidekiq-production.service")
	upstart := Upstart("sidekiq")

	tests := []struct {
		name string
		plan func(WorkerConfig, Strategy) []Command
		st   Strategy
		want string
	}{
		{"systemd quiet", PlanQuiet, systemd, "systemctl reload sidekiq-production.service"},
		{"systemd stop", PlanStop, systemd, "systemctl stop sidekiq-production.service"},
		{"systemd start", PlanStart, systemd, "systemctl start sidekiq-production.service"},
		{"systemd status", PlanStatus, systemd, "systemctl status sidekiq-production.service"},
		{"upstart quiet", PlanQuiet, upstart, "sudo service sidekiq reload"},
		{"upstart stop", PlanStop, upstart, "sudo service sidekiq stop"},
		{"upstart start", PlanStart, upstart, "sudo service sidekiq start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := tt.plan(cfg, tt.st)
			require.Len(t, cmds, 1, "unit strategies issue one command regardless of process count")
			assert.Nil(t, cmds[0].Guard)
			assert.Equal(t, tt.want, cmds[0].String())
		})
	}
}

func TestPlanStopSystemdFromSettings(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{KeyInitSystem: "systemd"})

	st, err := SelectStrategy(cfg)
	require.NoError(t, err)

	cmds := PlanStop(cfg, st)
	require.Len(t, cmds, 1)
	assert.Equal(t, "systemctl stop sidekiq-production.service", cmds[0].String())
}

func TestPlanRestartIsStopThenStart(t *testing.T) {
	configs := []map[string]any{
		{KeyProcesses: 1},
		{KeyProcesses: 3, KeyConcurrency: 10},
		{KeyInitSystem: "systemd"},
		{KeyInitSystem: "upstart"},
	}

	for _, overrides := range configs {
		cfg := loadTestConfig(t, overrides)
		st, err := SelectStrategy(cfg)
		require.NoError(t, err)

		want := append(PlanStop(cfg, st), PlanStart(cfg, st)...)
		got := PlanRestart(cfg, st)
		assert.Equal(t, want, got, "strategy %s", st)

		stops := len(PlanStop(cfg, st))
		for i, cmd := range got {
			if i < stops {
				assert.Equal(t, IntentStop, cmd.Intent)
			} else {
				assert.Equal(t, IntentStart, cmd.Intent)
			}
		}
	}
}

func TestPlanTail(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{KeyLog: "/var/log/w.log"})

	cmds, err := PlanTail(cfg)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "tail -f /var/log/w.log", cmds[0].String())

	cfg.LogPath = ""
	_, err = PlanTail(cfg)
	assert.ErrorIs(t, err, ErrConfigurationMissing)
}

func TestPlanStatusDirect(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{KeyProcesses: 2})

	cmds := PlanStatus(cfg, Direct())
	require.Len(t, cmds, 2)
	for _, cmd := range cmds {
		require.NotNil(t, cmd.Guard)
		assert.Equal(t, SkipStatusMessage, cmd.Guard.SkipMessage)
		assert.True(t, strings.HasPrefix(cmd.Script(), "if [ -f "))
	}
}

func TestPlannedCommandsNameTheirSubject(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{KeyProcesses: 2})

	for _, cmd := range PlanStart(cfg, Direct()) {
		assert.Equal(t, flagValue(cmd.Args, "-P"), cmd.Target(), "start targets its own pid file, not the shared log")
	}
	for _, plan := range [][]Command{PlanQuiet(cfg, Direct()), PlanStop(cfg, Direct()), PlanStatus(cfg, Direct())} {
		for i, inst := range Enumerate(cfg) {
			assert.Equal(t, inst.PIDFile, plan[i].Target())
		}
	}

	unit := Systemd("sidekiq-production.service")
	for _, cmd := range PlanRestart(cfg, unit) {
		assert.Equal(t, "sidekiq-production.service", cmd.Target())
	}
	for _, cmd := range PlanStart(cfg, Upstart("sidekiq")) {
		assert.Equal(t, "sidekiq", cmd.Target())
	}

	tail, err := PlanTail(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.LogPath, tail[0].Target())
}
