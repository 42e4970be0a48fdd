package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors that can be used with errors.Is() for error type checking
var (
	// ErrNotGitRepository indicates the target path is not a git repository
	ErrNotGitRepository = errors.New("not a git repository")

	// ErrLockAcquisitionFailure indicates a lock file could not be acquired
	ErrLockAcquisitionFailure = errors.New("failed to acquire lock")

	// ErrAlreadyRunning indicates another gitwatch instance is watching this repo
	ErrAlreadyRunning = errors.New("another gitwatch instance is already running for this repository")

	// ErrGitOperationFailed indicates a git command returned an error
	ErrGitOperationFailed = errors.New("git operation failed")

	// ErrGitTimeout indicates a git command exceeded its time budget
	ErrGitTimeout = errors.New("git operation timed out")

	// ErrInvalidConfiguration indicates an invalid or conflicting user configuration
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrConfigNotFound indicates the named configuration file does not exist
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrPushFailed indicates a push was rejected or could not reach the remote
	ErrPushFailed = errors.New("push failed")

	// ErrFetchFailed indicates a fetch of the remote failed
	ErrFetchFailed = errors.New("fetch failed")

	// ErrSchedulerClosed indicates a change was recorded after shutdown began
	ErrSchedulerClosed = errors.New("scheduler is closed")
)

// New creates a new error with the given message.
// This is a convenience function that wraps errors.New.
func New(message string) error {
	return errors.New(message)
}

// Errorf creates a new formatted error.
// This is a convenience function that wraps fmt.Errorf.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Wrap wraps an error with a message for better context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message for better context.
func Wrapf(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether target is in err's chain.
// This is a convenience function that wraps errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience function that wraps errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors, discarding nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// GitError represents a failed git invocation. It carries enough detail to
// reproduce the command: the subcommand, its arguments, the working tree it
// ran in, the exit code (-1 when the process never produced one) and the
// captured stderr.
type GitError struct {
	Operation string
	Args      []string
	Dir       string
	ExitCode  int
	Stderr    string
	Err       error
}

// Error implements the error interface with a detailed, user-friendly error message.
func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s failed", e.Operation)
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s (exit %d)", msg, e.ExitCode)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, stderr)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *GitError) Unwrap() error {
	return e.Err
}

// Command returns the command line that failed, for logging.
func (e *GitError) Command() string {
	parts := append([]string{"git", e.Operation}, e.Args...)
	return strings.Join(parts, " ")
}

// NewGitError creates a new GitError with the given parameters.
func NewGitError(operation string, args []string, dir string, exitCode int, stderr string, err error) *GitError {
	return &GitError{
		Operation: operation,
		Args:      args,
		Dir:       dir,
		ExitCode:  exitCode,
		Stderr:    stderr,
		Err:       err,
	}
}

// PushError wraps a failed push. The local commit it follows is never rolled back.
type PushError struct {
	Repo string
	Err  error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push failed for %s: %v", e.Repo, e.Err)
}

func (e *PushError) Unwrap() []error {
	return []error{ErrPushFailed, e.Err}
}

// NewPushError creates a new PushError.
func NewPushError(repo string, err error) *PushError {
	return &PushError{Repo: repo, Err: err}
}

// FetchError wraps a failed fetch or remote comparison.
type FetchError struct {
	Repo string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.Repo, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// NewFetchError creates a new FetchError.
func NewFetchError(repo string, err error) *FetchError {
	return &FetchError{Repo: repo, Err: err}
}

// IgnoreSourceError reports an ignore file that could not be read. The layer
// it belongs to is treated as empty.
type IgnoreSourceError struct {
	Layer string
	Path  string
	Err   error
}

func (e *IgnoreSourceError) Error() string {
	return fmt.Sprintf("cannot read %s ignore file %s: %v", e.Layer, e.Path, e.Err)
}

func (e *IgnoreSourceError) Unwrap() error {
	return e.Err
}

// NewIgnoreSourceError creates a new IgnoreSourceError.
func NewIgnoreSourceError(layer, path string, err error) *IgnoreSourceError {
	return &IgnoreSourceError{Layer: layer, Path: path, Err: err}
}

// LockError represents an error that occurred when interacting with file locks.
// It includes the lock file path, process ID if available, and underlying error.
type LockError struct {
	LockFile string
	PID      int
	Err      error
}

// Error implements the error interface with details about the lock file and process.
func (e *LockError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("lock error with file %s (PID: %d): %v", e.LockFile, e.PID, e.Err)
	}
	return fmt.Sprintf("lock error with file %s: %v", e.LockFile, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *LockError) Unwrap() error {
	return e.Err
}

// NewLockError creates a new LockError with the given parameters.
func NewLockError(lockFile string, pid int, err error) *LockError {
	return &LockError{
		LockFile: lockFile,
		PID:      pid,
		Err:      err,
	}
}

// ConfigError represents an error in the application configuration.
// It includes the parameter name, its value if available, and the underlying error.
type ConfigError struct {
	Parameter string
	Value     interface{}
	Err       error
}

// Error implements the error interface with details about the invalid configuration.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("configuration error for %s = %v: %v", e.Parameter, e.Value, e.Err)
	}
	return fmt.Sprintf("configuration error for %s: %v", e.Parameter, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError with the given parameters.
func NewConfigError(parameter string, value interface{}, err error) *ConfigError {
	return &ConfigError{
		Parameter: parameter,
		Value:     value,
		Err:       err,
	}
}
