// Package gittest holds helpers for tests that drive a real git binary.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireGit skips the test when git is not installed.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
}

// NewRepo initializes a repository in a temporary directory with a test
// identity and one initial commit, and returns its path.
func NewRepo(t testing.TB) string {
	t.Helper()
	RequireGit(t)

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	Run(t, dir, "init", "--quiet")
	Configure(t, dir)
	WriteFile(t, dir, "initial.txt", "Initial content")
	Run(t, dir, "add", "initial.txt")
	Run(t, dir, "commit", "--quiet", "-m", "Initial commit")

	return dir
}

// NewBareRemote creates a bare repository, wires it as origin of dir and
// pushes the current branch with upstream tracking. It returns the bare path.
func NewBareRemote(t testing.TB, dir string) string {
	t.Helper()

	bare := filepath.Join(t.TempDir(), "origin.git")
	Run(t, "", "init", "--quiet", "--bare", bare)
	Run(t, dir, "remote", "add", "origin", bare)
	branch := Run(t, dir, "branch", "--show-current")
	Run(t, dir, "push", "--quiet", "-u", "origin", branch)

	return bare
}

// Clone clones src into a fresh temporary directory with a test identity.
func Clone(t testing.TB, src string) string {
	t.Helper()

	dst := filepath.Join(t.TempDir(), "clone")
	Run(t, "", "clone", "--quiet", src, dst)
	Configure(t, dst)
	return dst
}

// Configure sets a local test identity on the repository.
func Configure(t testing.TB, dir string) {
	t.Helper()
	Run(t, dir, "config", "user.email", "test@example.com")
	Run(t, dir, "config", "user.name", "Test User")
	Run(t, dir, "config", "commit.gpgsign", "false")
}

// Run executes git in dir (or the current directory when dir is empty) and
// returns trimmed stdout. The test fails on a non-zero exit.
func Run(t testing.TB, dir string, args ...string) string {
	t.Helper()

	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}
	cmd := exec.Command("git", args...)
	cmd.Env = append(os.Environ(), "GIT_CONFIG_NOSYSTEM=1", "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

// WriteFile writes content to dir/rel, creating parent directories.
func WriteFile(t testing.TB, dir, rel, content string) {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// CommitCount returns the number of commits reachable from HEAD.
func CommitCount(t testing.TB, dir string) int {
	t.Helper()

	n, err := strconv.Atoi(Run(t, dir, "rev-list", "--count", "HEAD"))
	require.NoError(t, err)
	return n
}

// LastMessage returns the subject and body of the HEAD commit.
func LastMessage(t testing.TB, dir string) string {
	t.Helper()
	return Run(t, dir, "log", "-1", "--format=%B")
}

// AddSubmodule adds the repository at src as a submodule of parent at rel,
// commits it, and gives the checked-out submodule a test identity. It
// returns the submodule's working tree.
func AddSubmodule(t testing.TB, parent, src, rel string) string {
	t.Helper()

	Run(t, parent, "-c", "protocol.file.allow=always", "submodule", "add", "--quiet", src, rel)
	Run(t, parent, "commit", "--quiet", "-m", "Add "+rel+" submodule")

	dir := filepath.Join(parent, filepath.FromSlash(rel))
	Configure(t, dir)
	return dir
}
