package lock

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"golang.org/x/sys/unix"
)

// Locker keeps two gitwatch daemons from watching the same repository. The
// lock is an flock(2) on a PID file in the temp directory named after a hash
// of the repository path.
type Locker struct {
	path     string
	file     *os.File
	pid      int
	acquired bool
}

// New creates a Locker for repoPath with its lock file in os.TempDir().
func New(repoPath string) (*Locker, error) {
	return NewInDir(os.TempDir(), repoPath)
}

// NewInDir creates a Locker whose lock file lives in dir.
func NewInDir(dir, repoPath string) (*Locker, error) {
	if runtime.GOOS == "windows" {
		return nil, gitwatchErrors.NewLockError("", 0,
			gitwatchErrors.Wrap(gitwatchErrors.ErrLockAcquisitionFailure,
				"gitwatch relies on flock(2) and only runs on Unix-like systems"))
	}

	return &Locker{
		path: filepath.Join(dir, FileName(repoPath)),
		pid:  os.Getpid(),
	}, nil
}

// FileName returns the lock file name used for repoPath.
func FileName(repoPath string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(repoPath)))
	return fmt.Sprintf("gitwatch-%x.lock", sum[:8])
}

// Path returns the lock file path.
func (l *Locker) Path() string {
	return l.path
}

// Acquired reports whether this Locker currently holds the lock.
func (l *Locker) Acquired() bool {
	return l.acquired
}

// Acquire takes the lock. A lock file left behind by a dead process is
// replaced; a live holder yields a LockError wrapping ErrAlreadyRunning.
func (l *Locker) Acquire() error {
	err := l.create()
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		return l.takeExisting()
	}
	return err
}

// create makes a fresh lock file. An os.IsExist error is passed through
// unwrapped so Acquire can tell it apart.
func (l *Locker) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0666)
	if err != nil {
		if os.IsExist(err) {
			return err
		}
		return gitwatchErrors.NewLockError(l.path, 0,
			gitwatchErrors.Wrap(err, "failed to create lock file"))
	}
	l.file = f

	if err := l.flock(); err != nil {
		l.closeFile()
		return gitwatchErrors.NewLockError(l.path, 0,
			gitwatchErrors.Wrap(err, "failed to lock newly created lock file"))
	}

	return l.finish(l.writePid(), "failed to write PID")
}

func (l *Locker) takeExisting() error {
	f, err := os.OpenFile(l.path, os.O_RDWR, 0666)
	if err != nil {
		return gitwatchErrors.NewLockError(l.path, 0,
			gitwatchErrors.Wrap(err, "failed to open existing lock file"))
	}
	l.file = f

	if err := l.flock(); err != nil {
		l.closeFile()

		// Some systems report a held flock as EAGAIN, others as EWOULDBLOCK.
		if gitwatchErrors.Is(err, unix.EWOULDBLOCK) || gitwatchErrors.Is(err, unix.EAGAIN) {
			return l.blocked()
		}
		return gitwatchErrors.NewLockError(l.path, 0,
			gitwatchErrors.Wrap(err, "failed to lock existing lock file"))
	}

	// The previous holder exited without removing its file.
	if err := l.file.Truncate(0); err != nil {
		return l.finish(gitwatchErrors.NewLockError(l.path, l.pid,
			gitwatchErrors.Wrap(err, "failed to truncate lock file")), "failed to reset lock file")
	}
	return l.finish(l.writePid(), "failed to reset lock file")
}

// blocked runs when another descriptor holds the flock.
func (l *Locker) blocked() error {
	holder, err := ReadPid(l.path)
	if err != nil {
		return gitwatchErrors.NewLockError(l.path, 0,
			gitwatchErrors.Wrap(err, "another gitwatch instance holds the lock, but its PID is unreadable"))
	}

	if ProcessRunning(holder) {
		return gitwatchErrors.NewLockError(l.path, holder, gitwatchErrors.ErrAlreadyRunning)
	}
	return l.replaceStale(holder)
}

func (l *Locker) replaceStale(holder int) error {
	if err := os.Remove(l.path); err != nil {
		return gitwatchErrors.NewLockError(l.path, holder,
			gitwatchErrors.Wrap(err, fmt.Sprintf("failed to remove stale lock file of PID %d", holder)))
	}

	err := l.create()
	if os.IsExist(err) {
		return gitwatchErrors.NewLockError(l.path, 0,
			gitwatchErrors.Wrap(err, "another gitwatch instance took the lock after the stale file was removed"))
	}
	return err
}

// finish marks the lock as held when err is nil and otherwise releases it.
func (l *Locker) finish(err error, what string) error {
	if err == nil {
		l.acquired = true
		return nil
	}
	if releaseErr := l.Release(); releaseErr != nil {
		return gitwatchErrors.Wrap(err, fmt.Sprintf("%s and failed to release lock: %v", what, releaseErr))
	}
	return err
}

func (l *Locker) flock() error {
	return unix.Flock(int(l.file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func (l *Locker) writePid() error {
	if _, err := l.file.WriteAt([]byte(strconv.Itoa(l.pid)), 0); err != nil {
		return gitwatchErrors.NewLockError(l.path, l.pid,
			gitwatchErrors.Wrap(err, "failed to write PID to lock file"))
	}
	return nil
}

func (l *Locker) closeFile() {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

// Release unlocks, closes and removes the lock file. It is safe to call when
// the lock was never acquired. Every step is attempted and the first failure
// is returned.
func (l *Locker) Release() error {
	if l.file == nil {
		return nil
	}

	var err error
	fd := int(l.file.Fd())

	var stat unix.Stat_t
	if statErr := unix.Fstat(fd, &stat); statErr != nil {
		err = gitwatchErrors.NewLockError(l.path, l.pid,
			gitwatchErrors.Wrap(statErr, "lock file descriptor is invalid"))
	} else if flockErr := unix.Flock(fd, unix.LOCK_UN); flockErr != nil {
		err = gitwatchErrors.NewLockError(l.path, l.pid,
			gitwatchErrors.Wrap(flockErr, "failed to release lock"))
	}

	if closeErr := l.file.Close(); closeErr != nil && err == nil {
		err = gitwatchErrors.NewLockError(l.path, l.pid,
			gitwatchErrors.Wrap(closeErr, "failed to close lock file"))
	}
	l.file = nil
	l.acquired = false

	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) && err == nil {
		err = gitwatchErrors.NewLockError(l.path, l.pid,
			gitwatchErrors.Wrap(removeErr, "failed to remove lock file"))
	}

	return err
}

// ReadPid parses the PID stored in a lock file.
func ReadPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, gitwatchErrors.Wrap(err, "failed to read lock file")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, gitwatchErrors.Wrap(err, "invalid PID in lock file")
	}
	return pid, nil
}

// Holder returns the PID of the live process holding the lock at path, or 0
// when the file is missing, unreadable or stale.
func Holder(path string) int {
	pid, err := ReadPid(path)
	if err != nil || !ProcessRunning(pid) {
		return 0
	}
	return pid
}

// ProcessRunning probes pid with signal 0. EPERM means the process exists
// but belongs to someone else.
func ProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || gitwatchErrors.Is(err, unix.EPERM)
}
