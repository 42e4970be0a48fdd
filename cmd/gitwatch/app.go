package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/bashhack/gitwatch/internal/config"
	"github.com/bashhack/gitwatch/internal/daemon"
	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"github.com/bashhack/gitwatch/internal/git"
	"github.com/bashhack/gitwatch/internal/lock"
	"github.com/bashhack/gitwatch/internal/logger"
)

// Watcher runs one watch until its context is cancelled
type Watcher interface {
	PrintSummary()
	Run(ctx context.Context) error
}

// Locker manages file locking
type Locker interface {
	Acquire() error
	Release() error
}

// AppOptions contains the configuration and dependencies of a run.
// Optional dependencies left nil get defaults during Initialize.
type AppOptions struct {
	// Config is the loaded watch configuration (required).
	Config *config.WatchConfig

	// Debug enables structured logging to LogFile.
	Debug bool
	// LogFile overrides the log file of the configuration.
	LogFile string
	// Verbose shows warnings on the terminal.
	Verbose bool

	Logger  logger.Logger
	Locker  Locker
	Watcher Watcher

	Stdout io.Writer
	Stderr io.Writer

	// ExecLookPath is used to find git in PATH (defaults to exec.LookPath).
	ExecLookPath func(file string) (string, error)

	// IsRepository checks the repository path (defaults to git.IsRepository).
	IsRepository func(string) (bool, error)
}

// App runs a single watch in the foreground. It is what the systemd unit
// starts through gitwatch run.
type App struct {
	Config *config.WatchConfig

	Logger  logger.Logger
	Locker  Locker
	Watcher Watcher

	Stdout io.Writer
	Stderr io.Writer

	debug   bool
	logFile string
	verbose bool

	execLookPath func(file string) (string, error)
	isRepository func(string) (bool, error)
}

// NewApp creates an App. It panics if opts.Config is nil.
func NewApp(opts AppOptions) *App {
	if opts.Config == nil {
		panic("Config is required in AppOptions")
	}

	app := &App{
		Config:       opts.Config,
		Logger:       opts.Logger,
		Locker:       opts.Locker,
		Watcher:      opts.Watcher,
		Stdout:       opts.Stdout,
		Stderr:       opts.Stderr,
		debug:        opts.Debug,
		logFile:      opts.LogFile,
		verbose:      opts.Verbose,
		execLookPath: opts.ExecLookPath,
		isRepository: opts.IsRepository,
	}

	if app.Stdout == nil {
		app.Stdout = os.Stdout
	}
	if app.Stderr == nil {
		app.Stderr = os.Stderr
	}
	if app.execLookPath == nil {
		app.execLookPath = exec.LookPath
	}
	if app.isRepository == nil {
		app.isRepository = git.IsRepository
	}
	if app.logFile == "" {
		app.logFile = opts.Config.LogFile
	}

	return app
}

// Initialize validates the configuration and sets up components not
// provided during construction
func (a *App) Initialize() error {
	warnings, err := a.Config.Validate()
	if err != nil {
		return err
	}

	if a.Logger == nil {
		log := logger.NewWithOutput(a.debug, a.logFile, a.verbose, a.Stdout, a.Stderr)
		a.Logger = log.With("watch", a.Config.Name)
	}
	for _, w := range warnings {
		a.Logger.WarningToUser("%s", w)
	}

	if a.Locker == nil {
		locker, err := lock.New(a.Config.RepoDir)
		if err != nil {
			return gitwatchErrors.Wrap(err, "failed to initialize lock")
		}
		a.Locker = locker
	}

	if a.Watcher == nil {
		d, err := daemon.New(a.Config, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create watch: %w", err)
		}
		a.Watcher = d
	}

	return nil
}

// Run verifies prerequisites, takes the repository lock and watches until
// ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(); err != nil {
		return err
	}

	// Ensure we always clean up logger / lock, even on early error paths
	defer func() {
		if err := a.Close(); err != nil {
			_, _ = fmt.Fprintf(a.Stderr, "❌ Error during cleanup: %v\n", err)
		}
	}()

	if err := a.checkRequiredCommands(); err != nil {
		_, _ = fmt.Fprintf(a.Stderr, "❌ Error: %v. Please install it and try again.\n", err)
		return err
	}

	isRepo, err := a.isRepository(a.Config.RepoDir)
	if err != nil {
		a.Logger.Warning("Failed to check if path is a git repository: %v", err)
		return gitwatchErrors.Wrap(gitwatchErrors.ErrGitOperationFailed, err.Error())
	}
	if !isRepo {
		return gitwatchErrors.ErrNotGitRepository
	}
	a.Logger.Info("Git repository verified")

	if err := a.Locker.Acquire(); err != nil {
		if gitwatchErrors.Is(err, gitwatchErrors.ErrAlreadyRunning) {
			return err
		}
		return gitwatchErrors.Wrap(gitwatchErrors.ErrLockAcquisitionFailure, err.Error())
	}

	return a.Watcher.Run(ctx)
}

// checkRequiredCommands verifies git is available in PATH
func (a *App) checkRequiredCommands() error {
	if _, err := a.execLookPath("git"); err != nil {
		return fmt.Errorf("git is not found in PATH")
	}
	return nil
}

// Close releases resources held by the App. It is safe to call more than
// once.
func (a *App) Close() error {
	var errs []error

	if a.Locker != nil {
		if err := a.Locker.Release(); err != nil {
			if a.Logger != nil {
				a.Logger.Error("Failed to release lock during cleanup: %v", err)
			} else {
				_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to release lock during cleanup: %v\n", err)
			}
			errs = append(errs, err)
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to close logger: %v\n", err)
			errs = append(errs, err)
		}
	}

	return gitwatchErrors.Join(errs...)
}

// CleanupOnSignal releases the lock and shows a summary when the watch did
// not stop within the grace period
func (a *App) CleanupOnSignal() {
	if err := a.Close(); err != nil {
		_, _ = fmt.Fprintf(a.Stderr, "❌ Error during cleanup: %v\n", err)
	}
	if a.Watcher != nil {
		a.Watcher.PrintSummary()
	}
}
