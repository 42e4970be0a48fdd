package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/bashhack/gitwatch/internal/config"
	"github.com/bashhack/gitwatch/internal/git"
	"github.com/bashhack/gitwatch/internal/logger"
	"github.com/stretchr/testify/require"
)

// testEnv is an Env whose outside world lives in temp directories.
type testEnv struct {
	*Env
	stdout    *bytes.Buffer
	executor  *git.MockCommandExecutor
	configDir string
	unitDir   string
	home      string

	mu       sync.Mutex
	attached []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	for _, key := range []string{
		config.EnvConfigDir, config.EnvCommitDelay, config.EnvFetchInterval,
		config.EnvAutoPush, config.EnvNotifications,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	te := &testEnv{
		stdout:    &bytes.Buffer{},
		executor:  git.NewMockCommandExecutor(nil),
		configDir: filepath.Join(home, "gitwatch-config"),
		unitDir:   filepath.Join(home, "units"),
		home:      home,
	}
	te.Env = &Env{
		Ctx:      context.Background(),
		Version:  VersionInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-01-01"},
		Stdout:   te.stdout,
		Stderr:   &bytes.Buffer{},
		Executor: te.executor,
		Attached: func(_ context.Context, name string, args ...string) error {
			te.mu.Lock()
			defer te.mu.Unlock()
			te.attached = append(te.attached, strings.Join(append([]string{name}, args...), " "))
			return nil
		},
		Getenv:     func(string) string { return "" },
		LookPath:   func(file string) (string, error) { return "/usr/bin/" + file, nil },
		Executable: func() (string, error) { return "", errors.New("no executable in tests") },
		UnitDir:    func() (string, error) { return te.unitDir, nil },
	}
	return te
}

// run parses args the way main does and runs the selected command.
func (te *testEnv) run(t *testing.T, args ...string) error {
	t.Helper()

	var cli CLI
	parser, err := NewParser(&cli,
		kong.Exit(func(int) { t.Fatalf("kong exited while parsing %v", args) }),
		kong.Writers(te.stdout, te.stdout),
	)
	require.NoError(t, err)

	args = append([]string{"--config-dir", te.configDir}, args...)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)

	te.Globals = &cli.Globals
	return kctx.Run(te.Env)
}

func (te *testEnv) attachedCalls() []string {
	te.mu.Lock()
	defer te.mu.Unlock()
	return append([]string(nil), te.attached...)
}

// newRepoDir creates a directory that passes validation without needing git.
func newRepoDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	return dir
}

// writeConfig writes a configuration file by hand.
func (te *testEnv) writeConfig(t *testing.T, name, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(te.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(te.configDir, name+".yaml"), []byte(content), 0o644))
}

// writeWatchConfig writes a configuration watching dir, followed by extra
// YAML lines.
func (te *testEnv) writeWatchConfig(t *testing.T, name, dir string, extra ...string) {
	t.Helper()

	lines := append([]string{
		"name: " + name,
		"watch_directory: " + dir,
		"repo_directory: " + dir,
		"commit_delay: 5",
	}, extra...)
	te.writeConfig(t, name, strings.Join(lines, "\n")+"\n")
}

// MockLocker implements Locker for testing
type MockLocker struct {
	AcquireErr    error
	ReleaseErr    error
	AcquireCalled bool
	ReleaseCalled bool
}

func (m *MockLocker) Acquire() error {
	m.AcquireCalled = true
	return m.AcquireErr
}

func (m *MockLocker) Release() error {
	m.ReleaseCalled = true
	return m.ReleaseErr
}

// MockWatcher implements Watcher for testing
type MockWatcher struct {
	RunErr         error
	RunCalled      bool
	SummaryPrinted bool
}

func (m *MockWatcher) Run(ctx context.Context) error {
	m.RunCalled = true
	return m.RunErr
}

func (m *MockWatcher) PrintSummary() {
	m.SummaryPrinted = true
}

// closeErrLogger is a discarding logger whose Close fails.
type closeErrLogger struct {
	logger.Logger
	err error
}

func (l closeErrLogger) Close() error { return l.err }
