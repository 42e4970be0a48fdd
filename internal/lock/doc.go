// Package lock keeps a single gitwatch daemon per repository.
//
// A Locker takes an exclusive flock(2) on a PID file in the temp directory:
//
//	/tmp/gitwatch-<repo-hash>.lock
//
// where <repo-hash> is derived from the cleaned repository path. A second
// daemon for the same repository fails with a LockError wrapping
// ErrAlreadyRunning. A file left behind by a process that is no longer alive
// is treated as stale and replaced.
//
//	locker, err := lock.New(repoDir)
//	if err != nil {
//	    return err
//	}
//	if err := locker.Acquire(); err != nil {
//	    return err
//	}
//	defer locker.Release()
//
// Holder lets the status command report the PID of a running daemon without
// touching the lock.
//
// A Locker is not safe for concurrent use.
package lock
