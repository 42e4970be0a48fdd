package daemon

import (
	"context"
	"time"

	"github.com/bashhack/gitwatch/internal/commit"
	"github.com/bashhack/gitwatch/internal/config"
	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"github.com/bashhack/gitwatch/internal/fetch"
	"github.com/bashhack/gitwatch/internal/git"
	"github.com/bashhack/gitwatch/internal/ignore"
	"github.com/bashhack/gitwatch/internal/logger"
	"github.com/bashhack/gitwatch/internal/notify"
	"github.com/bashhack/gitwatch/internal/scheduler"
	"github.com/bashhack/gitwatch/internal/watch"
	"golang.org/x/sync/errgroup"
)

// DefaultFlushTimeout bounds the final commit of pending changes on shutdown.
const DefaultFlushTimeout = 30 * time.Second

// Options carries the dependencies of a Daemon. Only Config is required.
type Options struct {
	Config *config.WatchConfig
	Logger logger.Logger

	// Executor runs git and notify-send. Defaults to an ExecExecutor bounded
	// by the configured git timeout.
	Executor git.CommandExecutor

	// Notifier overrides the desktop notifier. It is still only used when
	// notifications are enabled in the configuration.
	Notifier notify.Notifier

	// Clock drives the debounce timers. Tests substitute a manual clock.
	Clock scheduler.Clock

	FlushTimeout time.Duration
}

// Daemon runs one watch: it feeds filesystem events through the ignore
// matcher into the debounce scheduler, commits what the scheduler hands off
// and fetches the remote in the background.
type Daemon struct {
	config       *config.WatchConfig
	logger       logger.Logger
	executor     git.CommandExecutor
	notifier     notify.Notifier
	clock        scheduler.Clock
	flushTimeout time.Duration

	repo         *git.Repo
	matcher      *ignore.Matcher
	orchestrator *commit.Orchestrator
	scheduler    *scheduler.Scheduler
	fetcher      *fetch.Loop
	watcher      *watch.Watcher

	ready     chan struct{}
	startTime time.Time
}

// New creates a Daemon with default dependencies.
func New(cfg *config.WatchConfig, log logger.Logger) (*Daemon, error) {
	return NewWithDeps(Options{Config: cfg, Logger: log})
}

// NewWithDeps creates a Daemon from opts. Nothing touches the repository
// until Run.
func NewWithDeps(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, gitwatchErrors.Wrap(gitwatchErrors.ErrInvalidConfiguration, "daemon needs a configuration")
	}
	cfg := opts.Config

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	executor := opts.Executor
	if executor == nil {
		executor = git.NewExecExecutor(cfg.GitTimeout)
	}
	flushTimeout := opts.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = DefaultFlushTimeout
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.EnableNotifications {
		notifier = opts.Notifier
		if notifier == nil {
			notifier = notify.NewDesktop(executor)
		}
		notifier = notify.Logged(notifier, log)
	}

	return &Daemon{
		config:       cfg,
		logger:       log.With("watch", cfg.Name),
		executor:     executor,
		notifier:     notifier,
		clock:        opts.Clock,
		flushTimeout: flushTimeout,
		repo:         git.NewRepo(cfg.RepoDir, executor),
		ready:        make(chan struct{}),
		startTime:    time.Now(),
	}, nil
}

// Matcher returns the ignore matcher built from the configuration.
func Matcher(cfg *config.WatchConfig, log logger.Logger) *ignore.Matcher {
	return ignore.New(ignore.Options{
		Root:             cfg.RepoDir,
		GlobalFile:       cfg.GlobalIgnoreFile,
		Patterns:         cfg.IgnorePatterns,
		Files:            cfg.IgnoreFiles,
		RespectGitignore: cfg.RespectGitignore,
		Logger:           log,
	})
}

// Run watches until ctx is cancelled, then commits whatever is still
// pending. Only setup failures are returned; commit and fetch failures are
// logged and the daemon keeps going.
func (d *Daemon) Run(ctx context.Context) error {
	d.startTime = time.Now()

	if err := d.setup(ctx); err != nil {
		return err
	}
	d.displayStartupInfo()

	if d.config.CommitExistingOnStart {
		d.commitExisting(ctx)
	}

	watcher, err := watch.New(watch.Options{
		Root:     d.config.RepoDir,
		Dir:      d.config.WatchDir,
		Matcher:  d.matcher,
		Recorder: d.scheduler,
		Logger:   d.logger,
	})
	if err != nil {
		return gitwatchErrors.Wrap(err, "failed to start file watcher")
	}
	d.watcher = watcher
	d.logger.InfoToUser("Watching %d directories for changes", len(watcher.WatchedDirs()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := watcher.Run(gctx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return gitwatchErrors.New("file watcher stopped unexpectedly")
		}
		return nil
	})
	g.Go(func() error { return d.fetcher.Run(gctx) })
	close(d.ready)
	runErr := g.Wait()

	d.logger.Info("Stopping, flushing %d pending repositories", len(d.scheduler.Keys()))
	flushCtx, cancel := context.WithTimeout(context.Background(), d.flushTimeout)
	defer cancel()
	if err := d.scheduler.Close(flushCtx); err != nil {
		d.logger.Error("Final commit on shutdown failed: %v", err)
	}

	return runErr
}

// Ready is closed once the watcher is registered and events are being
// recorded.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// setup resolves the submodules and builds the commit pipeline.
func (d *Daemon) setup(ctx context.Context) error {
	registry, err := commit.LoadRegistry(ctx, d.repo)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.logger.WarningToUser("Could not list submodules, watching the main repository only: %v", err)
		registry = commit.NewRegistry(nil)
	}
	for _, root := range registry.Roots() {
		d.logger.Info("Found submodule: %s", root)
	}

	d.matcher = Matcher(d.config, d.logger)

	d.orchestrator = commit.New(commit.Options{
		Root:           d.config.RepoDir,
		Name:           d.config.Name,
		Registry:       registry,
		Executor:       d.executor,
		AutoPush:       d.config.AutoPush,
		Notifier:       d.notifier,
		NotifyOnCommit: d.config.NotifyCommits(),
		Logger:         d.logger,
	})

	d.scheduler = scheduler.New(scheduler.Options{
		Delay:     d.config.CommitDelay,
		Committer: d.orchestrator,
		Filter: func(_, relPath string) bool {
			return d.matcher.Ignored(relPath)
		},
		RequeueOnFailure: d.config.RequeueOnFailure,
		Clock:            d.clock,
		Logger:           d.logger,
	})

	var remoteNotifier notify.Notifier = notify.Nop{}
	if d.config.NotifyRemote() {
		remoteNotifier = d.notifier
	}
	d.fetcher = fetch.New(fetch.Options{
		Repo:     d.repo,
		Interval: d.config.FetchInterval,
		Name:     d.config.Name,
		Notifier: remoteNotifier,
		Logger:   d.logger,
	})

	return nil
}

func (d *Daemon) commitExisting(ctx context.Context) {
	d.logger.Info("Checking for existing changes")
	res, err := d.orchestrator.CommitExisting(ctx)
	if err != nil {
		d.logger.Error("Failed to commit existing changes: %v", err)
		return
	}
	if res.Commits() == 0 {
		d.logger.Info("No existing changes to commit")
	}
}

// displayStartupInfo outputs the active configuration to the user
func (d *Daemon) displayStartupInfo() {
	cfg := d.config
	d.logger.StatusMessage("🔄 gitwatch %s started at %s", cfg.Name, d.startTime.Format("2006-01-02 15:04:05"))
	d.logger.StatusMessage("📂 Repository: %s", cfg.RepoDir)
	if cfg.WatchDir != cfg.RepoDir {
		d.logger.StatusMessage("👀 Watching: %s", cfg.WatchDir)
	}
	if roots := d.orchestrator.Registry().Roots(); len(roots) > 0 {
		d.logger.StatusMessage("🧩 Submodules: %d", len(roots))
	}
	d.logger.StatusMessage("⏱️ Commit delay: %s", cfg.CommitDelay)
	if cfg.FetchInterval > 0 {
		d.logger.StatusMessage("📡 Fetch interval: %s", cfg.FetchInterval)
	} else {
		d.logger.StatusMessage("📡 Fetch interval: disabled")
	}
	d.logger.StatusMessage("🚀 Auto-push: %t", cfg.AutoPush)
	d.logger.StatusMessage("🔔 Notifications: %t", cfg.EnableNotifications)
	d.logger.StatusMessage("❓ Press Ctrl+C to stop and view session summary")
}

// Stats is a snapshot of what the daemon has done.
type Stats struct {
	Commit    commit.Stats
	Scheduler scheduler.Stats
	Fetches   int
	// FetchFailures counts failed fetch checks.
	FetchFailures int
	Events        int64
}

// Stats returns the counters of the current run. It is zero before Run.
func (d *Daemon) Stats() Stats {
	var s Stats
	if d.orchestrator != nil {
		s.Commit = d.orchestrator.Stats()
	}
	if d.scheduler != nil {
		s.Scheduler = d.scheduler.Stats()
	}
	if d.fetcher != nil {
		s.Fetches, s.FetchFailures = d.fetcher.Counts()
	}
	if d.watcher != nil {
		s.Events = d.watcher.Events()
	}
	return s
}

// PrintSummary prints a summary of the session
func (d *Daemon) PrintSummary() {
	d.printSummary(d.Stats())
}

func (d *Daemon) printSummary(stats Stats) {
	duration := time.Since(d.startTime)
	hours := int(duration.Hours())
	minutes := int(duration.Minutes()) % 60
	seconds := int(duration.Seconds()) % 60

	d.logger.StatusMessage("")
	d.logger.StatusMessage("---------------------------------------------")
	d.logger.StatusMessage("📊 gitwatch Session Summary")
	d.logger.StatusMessage("---------------------------------------------")
	d.logger.StatusMessage("✅ Total commits made: %d", stats.Commit.Commits)
	if d.config.AutoPush {
		d.logger.StatusMessage("🚀 Pushes: %d (%d failed)", stats.Commit.Pushes, stats.Commit.PushFailures)
	}
	if stats.Scheduler.Failures > 0 {
		d.logger.StatusMessage("⚠️  Failed commit cycles: %d", stats.Scheduler.Failures)
	}
	if stats.Scheduler.Dropped > 0 {
		d.logger.StatusMessage("🗑️  Paths dropped after failed commits: %d", stats.Scheduler.Dropped)
	}
	if stats.Fetches > 0 {
		d.logger.StatusMessage("📡 Fetches: %d (%d failed)", stats.Fetches, stats.FetchFailures)
	}
	d.logger.StatusMessage("⏱️  Session duration: %dh %dm %ds", hours, minutes, seconds)
	d.logger.StatusMessage("---------------------------------------------")
	d.logger.StatusMessage("🛑 gitwatch terminated at %s", time.Now().Format("2006-01-02 15:04:05"))
}
