// Package errors provides the error taxonomy shared by every gitwatch package.
//
// Runtime failures are recovered where they happen and logged; only startup
// conditions are fatal. The types here make those failures inspectable with
// errors.Is and errors.As:
//
//   - GitError: a git subprocess exited non-zero or timed out
//   - PushError: a push failed after a successful local commit
//   - FetchError: the periodic fetch or remote comparison failed
//   - IgnoreSourceError: an ignore file could not be read
//   - LockError and ConfigError: startup problems
//
// # Usage
//
//	if err := repo.Commit(ctx, msg); err != nil {
//	    var gitErr *errors.GitError
//	    if errors.As(err, &gitErr) {
//	        log.Error("commit failed", "exit_code", gitErr.ExitCode, "stderr", gitErr.Stderr)
//	    }
//	}
//
// PushError and FetchError unwrap to both their sentinel (ErrPushFailed,
// ErrFetchFailed) and the underlying cause.
package errors
