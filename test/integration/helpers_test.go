//go:build integration
// +build integration

package integration

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/bashhack/gitwatch/internal/gittest"
)

func requireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("GITWATCH_INTEGRATION_TESTS") != "1" {
		t.Skip("Skipping integration test. Set GITWATCH_INTEGRATION_TESTS=1 to run")
	}
	gittest.RequireGit(t)
}

// buildGitwatch compiles the command into a temporary directory.
func buildGitwatch(t *testing.T) string {
	t.Helper()

	bin := filepath.Join(t.TempDir(), "gitwatch")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/gitwatch")
	cmd.Dir = filepath.Join("..", "..")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build gitwatch: %v\n%s", err, out)
	}
	return bin
}

// writeConfig writes a configuration named name watching repo and returns
// the configuration directory.
func writeConfig(t *testing.T, name, repo string, commitDelay float64) string {
	t.Helper()

	dir := t.TempDir()
	content := strings.Join([]string{
		"name: " + name,
		"watch_directory: " + repo,
		"repo_directory: " + repo,
		"commit_delay: " + strconv.FormatFloat(commitDelay, 'f', -1, 64),
		"fetch_interval: 0",
		"enable_notifications: false",
		"auto_push: false",
		"commit_existing_on_start: false",
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return dir
}

// syncBuffer collects process output written from another goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// process is a running gitwatch run.
type process struct {
	cmd    *exec.Cmd
	stdout *syncBuffer
	stderr *syncBuffer
	done   chan error
	err    error
	exited bool
}

func startRun(t *testing.T, bin, configDir, name string) *process {
	t.Helper()

	p := &process{
		cmd:    exec.Command(bin, "--config-dir", configDir, "run", name),
		stdout: &syncBuffer{},
		stderr: &syncBuffer{},
		done:   make(chan error, 1),
	}
	p.cmd.Stdout = p.stdout
	p.cmd.Stderr = p.stderr
	p.cmd.Env = append(os.Environ(), "XDG_DATA_HOME="+t.TempDir())

	if err := p.cmd.Start(); err != nil {
		t.Fatalf("Failed to start gitwatch: %v", err)
	}
	go func() { p.done <- p.cmd.Wait() }()

	t.Cleanup(func() {
		if !p.exited {
			_ = p.cmd.Process.Kill()
			<-p.done
		}
	})
	return p
}

// wait waits for the process to exit on its own.
func (p *process) wait(t *testing.T, timeout time.Duration) error {
	t.Helper()

	if p.exited {
		return p.err
	}
	select {
	case p.err = <-p.done:
		p.exited = true
		return p.err
	case <-time.After(timeout):
		t.Fatalf("gitwatch did not exit within %v\nstdout:\n%s\nstderr:\n%s",
			timeout, p.stdout.String(), p.stderr.String())
		return nil
	}
}

// waitReady waits until the watcher reports the directories it registered.
func (p *process) waitReady(t *testing.T) {
	t.Helper()
	eventually(t, 10*time.Second, "gitwatch to start watching", func() bool {
		return strings.Contains(p.stdout.String(), "Watching")
	})
}

// stop sends sig and waits for the process to exit.
func (p *process) stop(t *testing.T, sig syscall.Signal) error {
	t.Helper()

	if err := p.cmd.Process.Signal(sig); err != nil {
		t.Fatalf("Failed to signal gitwatch: %v", err)
	}
	return p.wait(t, 15*time.Second)
}

func eventually(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}
