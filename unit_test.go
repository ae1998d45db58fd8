package workerctl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderUnit(t *testing.T) {
	unit := RenderUnit(UnitSettings{
		Application: "shop",
		AppName:     "storefront",
		Env:         "production",
		WorkDir:     "/srv/app/current",
		ExecStart:   []string{"/usr/local/bin/bundle", "exec", "sidekiq"},
	})

	for _, line := range []string{
		"[Unit]",
		"Description=sidekiq for shop storefront",
		"[Service]",
		"Type=simple",
		"Environment=RAILS_ENV=production",
		"WorkingDirectory=/srv/app/current",
		"ExecStart=/usr/local/bin/bundle exec sidekiq -e production",
		"ExecReload=/bin/kill -TSTP $MAINPID",
		"ExecStop=/bin/kill -TERM $MAINPID",
		"Restart=on-failure",
		"[Install]",
		"WantedBy=default.target",
	} {
		assert.Contains(t, unit, line+"\n")
	}
	assert.NotContains(t, unit, "User=")

	withUser := RenderUnit(UnitSettings{Env: "production", ExecStart: []string{"sidekiq"}, User: "deploy"})
	assert.Contains(t, withUser, "User=deploy\n")
}

func TestRenderUnitDeterministic(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{KeyApplication: "shop", KeyUser: "deploy"})

	first := RenderUnit(UnitSettingsFor(cfg))
	second := RenderUnit(UnitSettingsFor(cfg))
	assert.Equal(t, first, second)
	assert.Contains(t, first, "WorkingDirectory=/srv/app/current\n")
}

func TestPlanInstall(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{KeyInitSystem: "systemd"})
	st, err := SelectStrategy(cfg)
	require.NoError(t, err)

	cmds := PlanInstall(cfg, st)
	require.Len(t, cmds, 4)

	assert.Equal(t, "mkdir -p /usr/lib/systemd/user", cmds[0].String())

	require.NotNil(t, cmds[1].File)
	assert.Equal(t, "/usr/lib/systemd/user/sidekiq-production.service", cmds[1].File.Path)
	assert.Equal(t, RenderUnit(UnitSettingsFor(cfg)), string(cmds[1].File.Content))

	assert.Equal(t, "systemctl daemon-reload", cmds[2].String())
	assert.Equal(t, "systemctl enable /usr/lib/systemd/user/sidekiq-production.service", cmds[3].String())

	for _, cmd := range cmds {
		assert.Equal(t, IntentInstall, cmd.Intent)
		assert.NotEmpty(t, cmd.Subject)
	}
	assert.Equal(t, "/usr/lib/systemd/user/sidekiq-production.service", cmds[1].Target())
}

func TestPlanUninstall(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{KeyInitSystem: "systemd", KeyServiceUnitPath: "/etc/systemd/system"})
	st, err := SelectStrategy(cfg)
	require.NoError(t, err)

	var scripts []string
	for _, cmd := range PlanUninstall(cfg, st) {
		scripts = append(scripts, cmd.String())
	}
	assert.Equal(t, []string{
		"systemctl disable sidekiq-production.service",
		"rm -f /etc/systemd/system/sidekiq-production.service",
	}, scripts)
}

func TestPlanInstallNonSystemd(t *testing.T) {
	cfg := loadTestConfig(t, nil)

	assert.Empty(t, PlanInstall(cfg, Direct()))
	assert.Empty(t, PlanUninstall(cfg, Direct()))
	assert.Empty(t, PlanInstall(cfg, Upstart("sidekiq")))
}

// TestInstallUnitFileTwice writes the planned unit file through a ShellSink
// twice and expects identical content without error.
func TestInstallUnitFileTwice(t *testing.T) {
	unitDir := filepath.Join(t.TempDir(), "systemd", "user")
	cfg := loadTestConfig(t, map[string]any{KeyInitSystem: "systemd", KeyServiceUnitPath: unitDir})
	st, err := SelectStrategy(cfg)
	require.NoError(t, err)

	sink := &ShellSink{Shell: DefaultShellPath}
	ctx := context.Background()
	unitPath := filepath.Join(unitDir, "sidekiq-production.service")

	var contents []string
	for range 2 {
		// mkdir and the file write; systemctl is not available under test.
		for _, cmd := range PlanInstall(cfg, st)[:2] {
			require.NoError(t, sink.Run(ctx, cmd))
		}
		data, err := os.ReadFile(unitPath)
		require.NoError(t, err)
		contents = append(contents, string(data))
	}

	assert.Equal(t, contents[0], contents[1])
	assert.True(t, strings.HasPrefix(contents[0], "[Unit]\n"))

	info, err := os.Stat(unitPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FileMode), info.Mode().Perm())
}
