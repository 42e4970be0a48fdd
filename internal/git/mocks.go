package git

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
)

// MockCommandExecutor is a CommandExecutor for tests. It records every call
// and answers through Handler, which receives the program name and its
// arguments exactly as they would be passed to exec.
type MockCommandExecutor struct {
	mu    sync.Mutex
	calls [][]string

	// Handler decides the outcome of each call. A nil Handler succeeds with
	// empty output.
	Handler func(name string, args []string) (string, error)
}

// NewMockCommandExecutor creates a mock executor answering with handler
func NewMockCommandExecutor(handler func(name string, args []string) (string, error)) *MockCommandExecutor {
	return &MockCommandExecutor{Handler: handler}
}

// Execute implements the CommandExecutor interface
func (m *MockCommandExecutor) Execute(ctx context.Context, cmd *exec.Cmd) error {
	_, err := m.ExecuteWithOutput(ctx, cmd)
	return err
}

// ExecuteWithOutput implements the CommandExecutor interface
func (m *MockCommandExecutor) ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error) {
	if len(cmd.Args) == 0 {
		return "", nil
	}
	return m.ExecuteWithContextAndOutput(ctx, cmd.Args[0], cmd.Args[1:]...)
}

// ExecuteWithContext implements the CommandExecutor interface
func (m *MockCommandExecutor) ExecuteWithContext(ctx context.Context, name string, args ...string) error {
	_, err := m.ExecuteWithContextAndOutput(ctx, name, args...)
	return err
}

// ExecuteWithContextAndOutput implements the CommandExecutor interface
func (m *MockCommandExecutor) ExecuteWithContextAndOutput(ctx context.Context, name string, args ...string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string{name}, args...))
	handler := m.Handler
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if handler == nil {
		return "", nil
	}
	return handler(name, args)
}

// Calls returns every recorded command line joined with spaces.
func (m *MockCommandExecutor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := make([]string, len(m.calls))
	for i, c := range m.calls {
		lines[i] = strings.Join(c, " ")
	}
	return lines
}

// GitSubcommand strips the global -C/-c options and returns the git
// subcommand with its arguments. It is meant for Handler implementations.
func GitSubcommand(args []string) []string {
	_, op, rest := splitGitArgs(args)
	if op == "" {
		return nil
	}
	return append([]string{op}, rest...)
}

// MockExitError builds the error a real git run exiting with code would produce.
func MockExitError(operation string, code int, stderr string) error {
	return gitwatchErrors.NewGitError(operation, nil, "", code, stderr, gitwatchErrors.ErrGitOperationFailed)
}
