package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"github.com/bashhack/gitwatch/internal/logger"
	"github.com/bashhack/gitwatch/internal/notify"
)

// Remote is the git surface the loop needs. *git.Repo satisfies it.
type Remote interface {
	Path() string
	Fetch(ctx context.Context) error
	CurrentBranch(ctx context.Context) (string, error)
	Upstream(ctx context.Context) (string, error)
	RevParse(ctx context.Context, rev string) (string, error)
	CountCommits(ctx context.Context, from, to string) (int, error)
}

// Options configures a Loop.
type Options struct {
	Repo Remote
	// Interval between fetches. Zero disables the loop.
	Interval time.Duration
	// Name labels notifications, usually the configuration name.
	Name     string
	Notifier notify.Notifier
	Logger   logger.Logger
}

// Status is the outcome of one fetch.
type Status struct {
	Ref       string
	RemoteSHA string
	Behind    int
	// Notified is set when this check produced a notification.
	Notified bool
}

// Loop periodically fetches the main repository and reports when the local
// branch is behind its remote. It never touches the index or the worktree.
type Loop struct {
	repo     Remote
	interval time.Duration
	name     string
	notifier notify.Notifier
	logger   logger.Logger

	mu           sync.Mutex
	lastNotified string
	fetches      int
	failures     int
}

// New creates a Loop.
func New(opts Options) *Loop {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Loop{
		repo:     opts.Repo,
		interval: opts.Interval,
		name:     opts.Name,
		notifier: notifier,
		logger:   log.With("repo", opts.Repo.Path()),
	}
}

// Run fetches every interval until ctx is cancelled. It returns nil on
// cancellation and immediately when the interval is zero.
func (l *Loop) Run(ctx context.Context) error {
	if l.interval <= 0 {
		l.logger.Info("Periodic fetch disabled")
		return nil
	}

	l.logger.InfoToUser("Started periodic fetch (every %s)", l.interval)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Fetch loop stopped")
			return nil
		case <-ticker.C:
			if _, err := l.Check(ctx); err != nil && ctx.Err() == nil {
				l.logger.Error("%v", err)
			}
		}
	}
}

// Check runs one fetch and compares HEAD with the tracked remote ref. A
// positive count is notified once per distinct remote commit.
func (l *Loop) Check(ctx context.Context) (Status, error) {
	l.mu.Lock()
	l.fetches++
	l.mu.Unlock()

	if err := l.repo.Fetch(ctx); err != nil {
		return Status{}, l.fail(err)
	}

	ref, err := l.trackedRef(ctx)
	if err != nil {
		return Status{}, l.fail(err)
	}
	if ref == "" {
		l.logger.Info("Detached HEAD; skipping remote comparison")
		return Status{}, nil
	}

	sha, err := l.repo.RevParse(ctx, ref)
	if err != nil {
		return Status{}, l.fail(err)
	}
	behind, err := l.repo.CountCommits(ctx, "HEAD", ref)
	if err != nil {
		return Status{}, l.fail(err)
	}

	status := Status{Ref: ref, RemoteSHA: sha, Behind: behind}
	if behind == 0 {
		return status, nil
	}

	l.mu.Lock()
	seen := l.lastNotified == sha
	l.lastNotified = sha
	l.mu.Unlock()
	if seen {
		return status, nil
	}

	body := fmt.Sprintf("Main repo: %s", CommitsMessage(behind))
	l.logger.InfoToUser("Remote %s has %s", ref, CommitsMessage(behind))
	title := fmt.Sprintf("🔄 %s Remote Changes", l.name)
	if err := l.notifier.Notify(ctx, title, body); err != nil {
		l.logger.Warning("Failed to send notification: %v", err)
	}
	status.Notified = true
	return status, nil
}

// trackedRef returns the upstream of the current branch, falling back to
// origin/<branch>. It returns "" on a detached HEAD.
func (l *Loop) trackedRef(ctx context.Context) (string, error) {
	if upstream, err := l.repo.Upstream(ctx); err == nil && upstream != "" {
		return upstream, nil
	}
	branch, err := l.repo.CurrentBranch(ctx)
	if err != nil || branch == "" {
		return "", err
	}
	return "origin/" + branch, nil
}

func (l *Loop) fail(err error) error {
	l.mu.Lock()
	l.failures++
	l.mu.Unlock()
	return gitwatchErrors.NewFetchError(l.repo.Path(), err)
}

// Counts returns how many fetches were attempted and how many failed.
func (l *Loop) Counts() (fetches, failures int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fetches, l.failures
}

// CommitsMessage renders "1 new commit" or "<n> new commits".
func CommitsMessage(n int) string {
	if n == 1 {
		return "1 new commit"
	}
	return fmt.Sprintf("%d new commits", n)
}
