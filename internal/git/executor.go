package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
)

// DefaultTimeout bounds a single git invocation when no timeout is configured.
const DefaultTimeout = 2 * time.Minute

// CommandExecutor defines an interface for executing commands
type CommandExecutor interface {
	// Execute runs a prepared command
	Execute(ctx context.Context, cmd *exec.Cmd) error

	// ExecuteWithOutput runs a prepared command and returns its stdout
	ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error)

	// ExecuteWithContext builds and runs a command bounded by the executor's timeout
	ExecuteWithContext(ctx context.Context, name string, args ...string) error

	// ExecuteWithContextAndOutput builds and runs a command bounded by the
	// executor's timeout and returns its stdout
	ExecuteWithContextAndOutput(ctx context.Context, name string, args ...string) (string, error)
}

// ExecExecutor is the default implementation of CommandExecutor
// that delegates to the os/exec package
type ExecExecutor struct {
	// Timeout bounds every command started through ExecuteWithContext and
	// ExecuteWithContextAndOutput. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewExecExecutor creates a new ExecExecutor with the given per-command timeout
func NewExecExecutor(timeout time.Duration) *ExecExecutor {
	return &ExecExecutor{Timeout: timeout}
}

// Execute implements CommandExecutor.Execute
func (e *ExecExecutor) Execute(ctx context.Context, cmd *exec.Cmd) error {
	_, err := e.ExecuteWithOutput(ctx, cmd)
	return err
}

// ExecuteWithOutput implements CommandExecutor.ExecuteWithOutput
func (e *ExecExecutor) ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), commandError(ctx, cmd, err, stderr.String())
	}

	return stdout.String(), nil
}

// ExecuteWithContext implements CommandExecutor.ExecuteWithContext
func (e *ExecExecutor) ExecuteWithContext(ctx context.Context, name string, args ...string) error {
	_, err := e.ExecuteWithContextAndOutput(ctx, name, args...)
	return err
}

// ExecuteWithContextAndOutput implements CommandExecutor.ExecuteWithContextAndOutput
func (e *ExecExecutor) ExecuteWithContextAndOutput(ctx context.Context, name string, args ...string) (string, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	return e.ExecuteWithOutput(ctx, cmd)
}

// commandError converts a failed run into a GitError for git commands and a
// wrapped error for anything else.
func commandError(ctx context.Context, cmd *exec.Cmd, runErr error, stderr string) error {
	exitCode := -1
	var exitErr *exec.ExitError
	if gitwatchErrors.As(runErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	cause := fmt.Errorf("%w: %w", gitwatchErrors.ErrGitOperationFailed, runErr)
	if ctx.Err() == context.DeadlineExceeded {
		exitCode = -1
		cause = fmt.Errorf("%w: %w", gitwatchErrors.ErrGitTimeout, runErr)
	}

	if len(cmd.Args) == 0 || !isGit(cmd.Args[0]) {
		line := strings.Join(cmd.Args, " ")
		if trimmed := strings.TrimSpace(stderr); trimmed != "" {
			return gitwatchErrors.Wrapf(runErr, "%s failed: %s", line, trimmed)
		}
		return gitwatchErrors.Wrapf(runErr, "%s failed", line)
	}

	dir, operation, rest := splitGitArgs(cmd.Args[1:])
	if dir == "" {
		dir = cmd.Dir
	}
	return gitwatchErrors.NewGitError(operation, rest, dir, exitCode, stderr, cause)
}

func isGit(name string) bool {
	return name == "git" || strings.HasSuffix(name, "/git")
}

// splitGitArgs separates the global options gitwatch passes (-C dir, -c k=v)
// from the subcommand and its arguments.
func splitGitArgs(args []string) (dir, operation string, rest []string) {
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-C":
			if i+1 < len(args) {
				dir = args[i+1]
			}
			i += 2
			continue
		case "-c":
			i += 2
			continue
		}
		break
	}
	if i >= len(args) {
		return dir, "", nil
	}
	return dir, args[i], args[i+1:]
}
