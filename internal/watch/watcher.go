package watch

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"github.com/bashhack/gitwatch/internal/ignore"
	"github.com/bashhack/gitwatch/internal/logger"
	"github.com/bashhack/gitwatch/internal/scheduler"
	"github.com/fsnotify/fsnotify"
)

// Recorder receives repository-relative changes. *scheduler.Scheduler
// satisfies it.
type Recorder interface {
	RecordChange(key, relPath string, kind scheduler.Kind) error
}

// Options configures a Watcher.
type Options struct {
	// Root is the main repository root. Every event is recorded under it,
	// with paths relative to it.
	Root string
	// Dir is the directory tree to watch. It defaults to Root and must be
	// inside it.
	Dir      string
	Matcher  *ignore.Matcher
	Recorder Recorder
	Logger   logger.Logger
}

// Watcher feeds filesystem events of a directory tree to a Recorder.
type Watcher struct {
	root     string
	dir      string
	matcher  *ignore.Matcher
	recorder Recorder
	logger   logger.Logger

	fsw       *fsnotify.Watcher
	closeOnce sync.Once

	mu      sync.Mutex
	watched map[string]bool

	events atomic.Int64
}

// New creates a Watcher and registers every directory under Dir that is
// neither a .git directory nor ignored.
func New(opts Options) (*Watcher, error) {
	if opts.Recorder == nil {
		return nil, gitwatchErrors.New("watch: Recorder is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	dir := opts.Dir
	if dir == "" {
		dir = opts.Root
	}
	matcher := opts.Matcher
	if matcher == nil {
		matcher = ignore.New(ignore.Options{Root: opts.Root, Logger: log})
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, gitwatchErrors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		root:     filepath.Clean(opts.Root),
		dir:      filepath.Clean(dir),
		matcher:  matcher,
		recorder: opts.Recorder,
		logger:   log.With("repo", opts.Root),
		fsw:      fsw,
		watched:  make(map[string]bool),
	}

	if _, err := w.addTree(w.dir, false); err != nil {
		_ = fsw.Close()
		return nil, gitwatchErrors.Wrapf(err, "failed to watch %s", w.dir)
	}
	return w, nil
}

// Run delivers events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.Close() }()

	w.logger.Info("Watching %d directories under %s", len(w.WatchedDirs()), w.dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warning("fsnotify error: %v", err)
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.fsw.Close() })
	return err
}

// WatchedDirs returns the watched directories, sorted.
func (w *Watcher) WatchedDirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirs := make([]string, 0, len(w.watched))
	for d := range w.watched {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Events returns how many events were forwarded so far.
func (w *Watcher) Events() int64 {
	return w.events.Load()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	kind, ok := KindOf(ev.Op)
	if !ok {
		return
	}
	rel, ok := w.relative(ev.Name)
	if !ok || insideGitDir(rel) {
		return
	}

	if path.Base(rel) == ignore.GitignoreName {
		w.matcher.Invalidate(path.Dir(rel))
	}

	switch kind {
	case scheduler.Created:
		if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
			files, err := w.addTree(ev.Name, true)
			if err != nil {
				w.logger.Warning("Cannot watch new directory %s: %v", rel, err)
			}
			for _, f := range files {
				w.record(f, scheduler.Created)
			}
			return
		}
	case scheduler.Deleted, scheduler.Moved:
		w.forget(ev.Name)
	}

	w.record(rel, kind)
}

func (w *Watcher) record(rel string, kind scheduler.Kind) {
	w.events.Add(1)
	if err := w.recorder.RecordChange(w.root, rel, kind); err != nil {
		w.logger.Info("Change to %s not recorded: %v", rel, err)
	}
}

// addTree watches dir and every directory below it. With collect set it
// returns the repository-relative files found, for directories that
// appeared after watching started.
func (w *Watcher) addTree(dir string, collect bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			w.logger.Warning("Skipping %s: %v", p, err)
			return nil
		}
		rel, ok := w.relative(p)
		if !ok {
			return filepath.SkipDir
		}
		if d.Name() == ".git" && p != w.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if collect {
				files = append(files, rel)
			}
			return nil
		}
		if rel != "" && w.matcher.Match(rel, true).Ignored {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.logger.Warning("Cannot watch directory %s: %v", p, err)
			return nil
		}
		w.mu.Lock()
		w.watched[p] = true
		w.mu.Unlock()
		return nil
	})
	return files, err
}

// forget drops watches under a removed or renamed directory. fsnotify has
// already dropped the kernel watches; this keeps the bookkeeping in step.
func (w *Watcher) forget(p string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for d := range w.watched {
		if d == p || strings.HasPrefix(d, p+string(filepath.Separator)) {
			delete(w.watched, d)
		}
	}
}

// relative converts an absolute event path to a slash-separated path
// relative to the root ("" for the root itself).
func (w *Watcher) relative(p string) (string, bool) {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", true
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

func insideGitDir(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if part == ".git" {
			return true
		}
	}
	return false
}

// KindOf maps an fsnotify operation to a change kind. Chmod-only events are
// reported as not relevant.
func KindOf(op fsnotify.Op) (scheduler.Kind, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return scheduler.Deleted, true
	case op.Has(fsnotify.Rename):
		return scheduler.Moved, true
	case op.Has(fsnotify.Create):
		return scheduler.Created, true
	case op.Has(fsnotify.Write):
		return scheduler.Modified, true
	default:
		return 0, false
	}
}
