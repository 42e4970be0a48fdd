package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bashhack/gitwatch/internal/config"
	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"github.com/bashhack/gitwatch/internal/git"
)

// TemplateName is the systemd template unit every watch is an instance of.
const TemplateName = "gitwatch@.service"

// DefaultLogLines is how many journal lines logs shows without -n.
const DefaultLogLines = 50

// UnitName returns the instance unit of the watch called name.
func UnitName(name string) string {
	return config.ServiceName(name)
}

// UnitDir returns the systemd user unit directory, honouring
// XDG_CONFIG_HOME.
func UnitDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "systemd", "user"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", gitwatchErrors.Wrap(err, "failed to resolve home directory")
	}
	return filepath.Join(home, ".config", "systemd", "user"), nil
}

// Template renders the template unit. binary is the gitwatch executable the
// unit starts; extraPath is appended to the unit's PATH so that git and
// notify-send installed per user are found.
func Template(binary, extraPath string) string {
	path := "/usr/local/bin:/usr/bin:/bin"
	if extraPath != "" {
		path += ":" + extraPath
	}
	return fmt.Sprintf(`[Unit]
Description=gitwatch for %%i configuration
After=graphical-session.target

[Service]
Type=simple
ExecStart=%s run %%i
WorkingDirectory=%%h
Restart=always
RestartSec=10
Environment=HOME=%%h
Environment=PATH=%s

StandardOutput=journal
StandardError=journal
SyslogIdentifier=gitwatch-%%i

[Install]
WantedBy=default.target
`, binary, path)
}

// State is what systemd reports about one watch.
type State struct {
	Active  bool
	Enabled bool
}

// Manager drives systemd user units through systemctl.
type Manager struct {
	executor git.CommandExecutor
	unitDir  string
}

// NewManager creates a Manager that installs units into unitDir.
func NewManager(executor git.CommandExecutor, unitDir string) *Manager {
	return &Manager{executor: executor, unitDir: unitDir}
}

// TemplatePath returns where the template unit is installed.
func (m *Manager) TemplatePath() string {
	return filepath.Join(m.unitDir, TemplateName)
}

// InstallTemplate writes the template unit unless one exists and reloads the
// user manager. An existing unit is never overwritten. When the file was
// written but the reload failed, created is true and err is set.
func (m *Manager) InstallTemplate(ctx context.Context, binary, extraPath string) (path string, created bool, err error) {
	path = m.TemplatePath()
	if _, statErr := os.Stat(path); statErr == nil {
		return path, false, nil
	}

	if err := os.MkdirAll(m.unitDir, 0o755); err != nil {
		return path, false, gitwatchErrors.Wrap(err, "failed to create systemd unit directory")
	}
	if err := os.WriteFile(path, []byte(Template(binary, extraPath)), 0o644); err != nil {
		return path, false, gitwatchErrors.Wrap(err, "failed to write systemd unit")
	}

	if err := m.systemctl(ctx, "daemon-reload"); err != nil {
		return path, true, gitwatchErrors.Wrap(err, "unit written but reloading systemd failed")
	}
	return path, true, nil
}

// Up enables and starts the watch called name.
func (m *Manager) Up(ctx context.Context, name string) error {
	unit := UnitName(name)
	if err := m.systemctl(ctx, "daemon-reload"); err != nil {
		return err
	}
	if err := m.systemctl(ctx, "enable", unit); err != nil {
		return err
	}
	return m.systemctl(ctx, "start", unit)
}

// Down stops and disables the watch called name.
func (m *Manager) Down(ctx context.Context, name string) error {
	unit := UnitName(name)
	if err := m.systemctl(ctx, "stop", unit); err != nil {
		return err
	}
	return m.systemctl(ctx, "disable", unit)
}

// State asks systemd whether the watch is running and enabled. Any failure,
// including a missing systemctl, reads as inactive and disabled.
func (m *Manager) State(ctx context.Context, name string) State {
	unit := UnitName(name)
	return State{
		Active:  m.systemctl(ctx, "is-active", "--quiet", unit) == nil,
		Enabled: m.systemctl(ctx, "is-enabled", "--quiet", unit) == nil,
	}
}

// Describe returns the output of systemctl status for the watch. systemctl
// exits non-zero for inactive units; their output is still returned.
func (m *Manager) Describe(ctx context.Context, name string) (string, error) {
	out, err := m.executor.ExecuteWithContextAndOutput(ctx, "systemctl",
		"--user", "status", UnitName(name), "--no-pager", "-l")
	if out != "" {
		return out, nil
	}
	return "", err
}

// JournalArgs returns the journalctl command line showing the watch's logs.
func JournalArgs(name string, lines int, follow bool) []string {
	if lines <= 0 {
		lines = DefaultLogLines
	}
	args := []string{"journalctl", "--user", "-u", UnitName(name), "-n", strconv.Itoa(lines)}
	if follow {
		args = append(args, "-f")
	}
	return args
}

func (m *Manager) systemctl(ctx context.Context, args ...string) error {
	return m.executor.ExecuteWithContext(ctx, "systemctl", append([]string{"--user"}, args...)...)
}
