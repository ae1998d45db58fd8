package workerctl

import (
	"path/filepath"
	"strings"
)

// UnitSettings holds the values substituted into the systemd unit template
type UnitSettings struct {
	// Application and AppName describe the app in the unit description
	Application string
	AppName     string
	// Env is exported as RAILS_ENV and passed to sidekiq with -e
	Env string
	// WorkDir is the release directory sidekiq runs in
	WorkDir string
	// ExecStart is the sidekiq launcher
	ExecStart []string
	// User runs the service as this user when set
	User string
}

// UnitSettingsFor derives the unit template values from cfg
func UnitSettingsFor(cfg WorkerConfig) UnitSettings {
	return UnitSettings{
		Application: cfg.Application,
		AppName:     cfg.AppName,
		Env:         cfg.Env,
		WorkDir:     filepath.Join(cfg.DeployTo, "current"),
		ExecStart:   cfg.SidekiqCmd,
		User:        cfg.User,
	}
}

// RenderUnit generates the systemd unit file content. The output depends
// only on u, so re-rendering for an unchanged deploy yields identical bytes.
func RenderUnit(u UnitSettings) string {
	var unit strings.Builder

	// [Unit] section
	unit.WriteString("[Unit]\n")
	unit.WriteString("Description=sidekiq for " + u.Application + " " + u.AppName + "\n")
	unit.WriteString("After=syslog.target network.target\n")
	unit.WriteString("\n")

	// [Service] section
	unit.WriteString("[Service]\n")
	unit.WriteString("Type=simple\n")
	unit.WriteString("Environment=RAILS_ENV=" + u.Env + "\n")
	unit.WriteString("WorkingDirectory=" + u.WorkDir + "\n")
	if u.User != "" {
		unit.WriteString("User=" + u.User + "\n")
	}

	execStart := append(append([]string(nil), u.ExecStart...), "-e", u.Env)
	unit.WriteString("ExecStart=" + joinArgs(execStart) + "\n")
	unit.WriteString("ExecReload=/bin/kill -TSTP $MAINPID\n")
	unit.WriteString("ExecStop=/bin/kill -TERM $MAINPID\n")
	unit.WriteString("\n")
	unit.WriteString("RestartSec=1\n")
	unit.WriteString("Restart=on-failure\n")
	unit.WriteString("\n")
	unit.WriteString("SyslogIdentifier=sidekiq\n")
	unit.WriteString("\n")

	// [Install] section
	unit.WriteString("[Install]\n")
	unit.WriteString("WantedBy=default.target\n")

	return unit.String()
}

// PlanInstall returns the commands that write, register and enable the
// systemd unit. Every step tolerates being repeated. Other strategies have
// no unit to install and get an empty plan.
func PlanInstall(cfg WorkerConfig, st Strategy) []Command {
	if st.Kind != StrategySystemd {
		return nil
	}

	unitPath := filepath.Join(cfg.UnitDir, st.Name)
	return []Command{
		{Intent: IntentInstall, Args: []string{"mkdir", "-p", cfg.UnitDir}, Subject: cfg.UnitDir},
		{Intent: IntentInstall, File: &FileSpec{
			Path:    unitPath,
			Content: []byte(RenderUnit(UnitSettingsFor(cfg))),
			Mode:    FileMode,
		}, Subject: unitPath},
		{Intent: IntentInstall, Args: []string{DefaultSystemctlPath, "daemon-reload"}, Subject: st.Name},
		{Intent: IntentInstall, Args: []string{DefaultSystemctlPath, "enable", unitPath}, Subject: st.Name},
	}
}

// PlanUninstall returns the commands that disable and remove the systemd unit
func PlanUninstall(cfg WorkerConfig, st Strategy) []Command {
	if st.Kind != StrategySystemd {
		return nil
	}

	unitPath := filepath.Join(cfg.UnitDir, st.Name)
	return []Command{
		{Intent: IntentUninstall, Args: []string{DefaultSystemctlPath, "disable", st.Name}, Subject: st.Name},
		{Intent: IntentUninstall, Args: []string{"rm", "-f", unitPath}, Subject: unitPath},
	}
}
