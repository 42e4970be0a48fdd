package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bashhack/gitwatch/internal/config"
	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"github.com/bashhack/gitwatch/internal/git"
	"github.com/bashhack/gitwatch/internal/lock"
	"github.com/bashhack/gitwatch/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCreatesConfigIgnoreFileAndUnit(t *testing.T) {
	te := newTestEnv(t)

	require.NoError(t, te.run(t, "init"))

	out := te.stdout.String()
	assert.Contains(t, out, "✅ Initialized gitwatch configuration: config")
	assert.Contains(t, out, "✅ Installed systemd service template")
	assert.Contains(t, out, "gitwatch up config")

	assert.FileExists(t, filepath.Join(te.configDir, "config.yaml"))
	assert.FileExists(t, filepath.Join(te.configDir, config.GlobalIgnoreName))

	unit, err := os.ReadFile(filepath.Join(te.unitDir, service.TemplateName))
	require.NoError(t, err)
	assert.Contains(t, string(unit), "ExecStart=gitwatch run %i")
	assert.Contains(t, string(unit), filepath.Join(te.home, ".local", "bin"))

	assert.Equal(t, []string{"systemctl --user daemon-reload"}, te.executor.Calls())
}

func TestInitWithOverrides(t *testing.T) {
	te := newTestEnv(t)
	dir := t.TempDir()

	require.NoError(t, te.run(t, "init", "work", "-w", dir, "-d", "5"))

	store, err := config.NewStore(te.configDir)
	require.NoError(t, err)
	cfg, err := store.Load("work")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.WatchDir)
	assert.Equal(t, dir, cfg.RepoDir)
	assert.Equal(t, 5*time.Second, cfg.CommitDelay)
}

func TestInitKeepsExistingFiles(t *testing.T) {
	te := newTestEnv(t)
	te.writeConfig(t, "config", "commit_delay: 7\n")
	require.NoError(t, os.MkdirAll(te.unitDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(te.unitDir, service.TemplateName), []byte("custom"), 0o644))

	require.NoError(t, te.run(t, "init"))

	assert.Contains(t, te.stdout.String(), "already exists")
	assert.NotContains(t, te.stdout.String(), "Installed systemd service template")

	data, err := os.ReadFile(filepath.Join(te.configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "commit_delay: 7\n", string(data))

	unit, err := os.ReadFile(filepath.Join(te.unitDir, service.TemplateName))
	require.NoError(t, err)
	assert.Equal(t, "custom", string(unit))
	assert.Empty(t, te.executor.Calls())
}

func TestInitWarnsWhenSystemdReloadFails(t *testing.T) {
	te := newTestEnv(t)
	te.executor.Handler = func(string, []string) (string, error) {
		return "", errors.New("Failed to connect to bus")
	}

	require.NoError(t, te.run(t, "init"))
	assert.Contains(t, te.stdout.String(), "⚠️  Service file created but systemd was not reloaded")
}

func TestUp(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		te := newTestEnv(t)

		err := te.run(t, "up", "nope")
		require.Error(t, err)
		assert.True(t, gitwatchErrors.Is(err, gitwatchErrors.ErrConfigNotFound))
		assert.Contains(t, err.Error(), "gitwatch init nope")
		assert.Empty(t, te.executor.Calls())
	})

	t.Run("invalid config", func(t *testing.T) {
		te := newTestEnv(t)
		missing := filepath.Join(t.TempDir(), "gone")
		te.writeWatchConfig(t, "broken", missing)

		err := te.run(t, "up", "broken")
		require.Error(t, err)
		assert.True(t, gitwatchErrors.Is(err, gitwatchErrors.ErrInvalidConfiguration))
		assert.Contains(t, te.stdout.String(), "❌ Config 'broken' is invalid:")
		assert.Contains(t, te.stdout.String(), "watch directory does not exist")
		assert.Empty(t, te.executor.Calls())
	})

	t.Run("starts the service", func(t *testing.T) {
		te := newTestEnv(t)
		te.writeWatchConfig(t, "notes", newRepoDir(t))

		require.NoError(t, te.run(t, "up", "notes"))

		assert.Equal(t, []string{
			"systemctl --user daemon-reload",
			"systemctl --user enable gitwatch@notes.service",
			"systemctl --user start gitwatch@notes.service",
		}, te.executor.Calls())
		assert.Contains(t, te.stdout.String(), "✅ Started gitwatch service: gitwatch@notes.service")
	})

	t.Run("systemctl failure", func(t *testing.T) {
		te := newTestEnv(t)
		te.writeWatchConfig(t, "notes", newRepoDir(t))
		te.executor.Handler = func(_ string, args []string) (string, error) {
			if len(args) > 1 && args[1] == "enable" {
				return "", errors.New("unit not found")
			}
			return "", nil
		}

		err := te.run(t, "up", "notes")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to start service")
		assert.Len(t, te.executor.Calls(), 2)
	})
}

func TestDown(t *testing.T) {
	te := newTestEnv(t)

	require.NoError(t, te.run(t, "down", "notes"))

	assert.Equal(t, []string{
		"systemctl --user stop gitwatch@notes.service",
		"systemctl --user disable gitwatch@notes.service",
	}, te.executor.Calls())
	assert.Contains(t, te.stdout.String(), "✅ Stopped gitwatch service: gitwatch@notes.service")
}

func TestDownReportsFailure(t *testing.T) {
	te := newTestEnv(t)
	te.executor.Handler = func(string, []string) (string, error) {
		return "", errors.New("exit status 5")
	}

	err := te.run(t, "down")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stop service")
}

// systemdHandler answers systemctl as if the unit were enabled but stopped.
func systemdHandler(_ string, args []string) (string, error) {
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}
	switch sub {
	case "is-active":
		return "", errors.New("exit status 3")
	case "status":
		return "○ gitwatch@notes.service\n     Active: inactive (dead)\n", errors.New("exit status 3")
	}
	return "", nil
}

func TestStatus(t *testing.T) {
	te := newTestEnv(t)
	dir := newRepoDir(t)
	te.writeWatchConfig(t, "notes", dir)
	te.executor.Handler = systemdHandler

	require.NoError(t, te.run(t, "status", "notes"))

	out := te.stdout.String()
	assert.Contains(t, out, "Config: notes")
	assert.Contains(t, out, "Watch directory: "+dir)
	assert.Contains(t, out, "Service: ❌ INACTIVE")
	assert.Contains(t, out, "Enabled: ✅ YES")
	assert.NotContains(t, out, "Running: PID")
	assert.Contains(t, out, "Systemd status:\n○ gitwatch@notes.service")
}

func TestStatusShowsLockHolder(t *testing.T) {
	te := newTestEnv(t)
	dir := newRepoDir(t)
	te.writeWatchConfig(t, "notes", dir)

	locker, err := lock.New(dir)
	require.NoError(t, err)
	require.NoError(t, locker.Acquire())
	t.Cleanup(func() { _ = locker.Release() })

	require.NoError(t, te.run(t, "status", "notes"))
	assert.Contains(t, te.stdout.String(), fmt.Sprintf("Running: PID %d", os.Getpid()))
}

func TestStatusOfMissingConfig(t *testing.T) {
	te := newTestEnv(t)

	err := te.run(t, "status", "nope")
	assert.True(t, gitwatchErrors.Is(err, gitwatchErrors.ErrConfigNotFound))
}

func TestLs(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		te := newTestEnv(t)

		require.NoError(t, te.run(t, "ls"))
		assert.Contains(t, te.stdout.String(), "No configurations found.")
		assert.Empty(t, te.executor.Calls())
	})

	t.Run("lists every configuration", func(t *testing.T) {
		te := newTestEnv(t)
		dir := newRepoDir(t)
		te.writeWatchConfig(t, "alpha", dir)
		te.writeConfig(t, "beta", "commit_delay: [oops\n")
		te.executor.Handler = systemdHandler

		require.NoError(t, te.run(t, "ls"))

		out := te.stdout.String()
		assert.Contains(t, out, "Available configurations:")
		assert.Contains(t, out, fmt.Sprintf("  %-15s ❌ INACTIVE (enabled)", "alpha"))
		assert.Contains(t, out, "    Watch: "+dir)
		assert.Contains(t, out, fmt.Sprintf("  %-15s ❌ INACTIVE (enabled)", "beta"))
		assert.Contains(t, out, "    Error: ")
		assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, "beta"))
	})
}

func TestLogs(t *testing.T) {
	tests := map[string]struct {
		args []string
		want string
	}{
		"defaults": {
			args: []string{"logs"},
			want: "journalctl --user -u gitwatch@config.service -n 50",
		},
		"follow with line count": {
			args: []string{"logs", "notes", "-f", "-n", "10"},
			want: "journalctl --user -u gitwatch@notes.service -n 10 -f",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			te := newTestEnv(t)

			require.NoError(t, te.run(t, tc.args...))
			assert.Equal(t, []string{tc.want}, te.attachedCalls())
		})
	}
}

func TestLogsFailure(t *testing.T) {
	te := newTestEnv(t)
	te.Attached = func(context.Context, string, ...string) error {
		return errors.New("journalctl: not found")
	}

	err := te.run(t, "logs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to show logs")
}

func TestLogsInterruptedIsNotAnError(t *testing.T) {
	te := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	te.Ctx = ctx
	te.Attached = func(context.Context, string, ...string) error {
		cancel()
		return errors.New("signal: interrupt")
	}

	assert.NoError(t, te.run(t, "logs", "-f"))
}

func TestEditConfig(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		te := newTestEnv(t)

		err := te.run(t, "edit-config", "nope")
		assert.True(t, gitwatchErrors.Is(err, gitwatchErrors.ErrConfigNotFound))
		assert.Empty(t, te.attachedCalls())
	})

	t.Run("opens the editor", func(t *testing.T) {
		te := newTestEnv(t)
		te.writeConfig(t, "notes", "commit_delay: 5\n")
		te.Getenv = func(key string) string {
			if key == "EDITOR" {
				return "vim"
			}
			return ""
		}

		require.NoError(t, te.run(t, "edit-config", "notes"))
		assert.Equal(t, []string{"vim " + filepath.Join(te.configDir, "notes.yaml")}, te.attachedCalls())
	})

	t.Run("editor failure", func(t *testing.T) {
		te := newTestEnv(t)
		te.writeConfig(t, "config", "commit_delay: 5\n")
		te.Attached = func(context.Context, string, ...string) error {
			return errors.New("exit status 1")
		}

		err := te.run(t, "edit-config")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open")
	})
}

func TestEditIgnoreCreatesTheFile(t *testing.T) {
	te := newTestEnv(t)

	require.NoError(t, te.run(t, "edit-ignore"))

	path := filepath.Join(te.configDir, config.GlobalIgnoreName)
	assert.FileExists(t, path)
	assert.Equal(t, []string{service.FallbackEditors[0] + " " + path}, te.attachedCalls())
}

func TestTestIgnore(t *testing.T) {
	tests := map[string]struct {
		path    string
		ignored bool
		matched string
	}{
		"config pattern": {
			path:    "build/out.log",
			ignored: true,
			matched: "  - config: *.log",
		},
		"global pattern": {
			path:    "notes/todo.md.swp",
			ignored: true,
			matched: "  - global: *.swp",
		},
		"not ignored": {
			path: "notes/todo.md",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			te := newTestEnv(t)
			te.writeWatchConfig(t, "notes", newRepoDir(t),
				"respect_gitignore: false",
				"ignore_patterns:",
				"  - \"*.log\"",
			)
			require.NoError(t, te.run(t, "edit-ignore"))
			te.stdout.Reset()

			require.NoError(t, te.run(t, "test-ignore", tc.path, "notes"))

			out := te.stdout.String()
			assert.Contains(t, out, "File: "+tc.path)
			assert.Contains(t, out, "Config: notes")
			if !tc.ignored {
				assert.Contains(t, out, "Result: ✅ NOT IGNORED")
				return
			}
			assert.Contains(t, out, "Result: ❌ IGNORED")
			assert.Contains(t, out, "Matched by:")
			assert.Contains(t, out, tc.matched)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid with warnings", func(t *testing.T) {
		te := newTestEnv(t)
		missing := filepath.Join(t.TempDir(), "extra-ignore")
		te.writeWatchConfig(t, "notes", newRepoDir(t),
			"ignore_files:",
			"  - "+missing,
		)

		require.NoError(t, te.run(t, "validate", "notes"))

		out := te.stdout.String()
		assert.Contains(t, out, "⚠️  Ignore file does not exist: "+missing)
		assert.Contains(t, out, "✅ Config 'notes' is valid")
	})

	t.Run("lists every problem", func(t *testing.T) {
		te := newTestEnv(t)
		dir := t.TempDir()
		te.writeWatchConfig(t, "notes", dir, "git_timeout: 0")

		err := te.run(t, "validate", "notes")
		require.Error(t, err)

		out := te.stdout.String()
		assert.Contains(t, out, "❌ Config 'notes' is invalid:")
		assert.Contains(t, out, "not a git repository")
		assert.Contains(t, out, "git_timeout must be positive")
		assert.NotContains(t, out, "is valid")
	})
}

func TestVersion(t *testing.T) {
	te := newTestEnv(t)

	require.NoError(t, te.run(t, "version"))
	assert.Equal(t, "gitwatch 1.2.3 (abc123) built on 2026-01-01\n", te.stdout.String())
}

func TestRunRejectsMissingConfig(t *testing.T) {
	te := newTestEnv(t)

	err := te.run(t, "run", "nope")
	assert.True(t, gitwatchErrors.Is(err, gitwatchErrors.ErrConfigNotFound))
}

// Compile-time check that the mock satisfies what Env needs.
var _ git.CommandExecutor = (*git.MockCommandExecutor)(nil)
