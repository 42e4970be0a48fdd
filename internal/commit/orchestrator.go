package commit

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"github.com/bashhack/gitwatch/internal/git"
	"github.com/bashhack/gitwatch/internal/logger"
	"github.com/bashhack/gitwatch/internal/notify"
	"github.com/bashhack/gitwatch/internal/scheduler"
)

// Repository is the git surface the orchestrator needs from one working
// tree. *git.Repo satisfies it.
type Repository interface {
	Path() string
	StageAll(ctx context.Context) error
	StagePath(ctx context.Context, relPath string) error
	Status(ctx context.Context) ([]git.StatusEntry, error)
	HasStagedChanges(ctx context.Context) (bool, error)
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context) error
}

// Opener returns the Repository for a working tree directory.
type Opener func(dir string) Repository

// Options configures an Orchestrator.
type Options struct {
	// Root is the main repository's working tree.
	Root string
	// Name labels notifications, usually the configuration name.
	Name     string
	Registry *Registry
	// Open defaults to git.NewRepo over Executor.
	Open     Opener
	Executor git.CommandExecutor
	AutoPush bool
	// Notifier receives one notification per commit when NotifyOnCommit
	// is set.
	Notifier       notify.Notifier
	NotifyOnCommit bool
	Logger         logger.Logger
}

// Result describes what one commit attempt did to one working tree and,
// recursively, to the submodules it visited first.
type Result struct {
	Repo       string
	Committed  bool
	Message    string
	Pushed     bool
	PushErr    error
	Err        error
	Submodules []*Result
}

// Commits counts the commits made by r and its submodule results.
func (r *Result) Commits() int {
	if r == nil {
		return 0
	}
	n := 0
	if r.Committed {
		n++
	}
	for _, sub := range r.Submodules {
		n += sub.Commits()
	}
	return n
}

// Stats counts the orchestrator's outcomes since it was created.
type Stats struct {
	Commits      int64
	Pushes       int64
	PushFailures int64
	Failures     int64
}

// Orchestrator turns a set of changed paths into commits: submodules first,
// in path order, then the tree that contains them. Git work on a single
// working tree is serialized; different trees proceed independently.
type Orchestrator struct {
	root           string
	name           string
	registry       *Registry
	open           Opener
	autoPush       bool
	notifier       notify.Notifier
	notifyOnCommit bool
	logger         logger.Logger

	mu    sync.Mutex
	trees map[string]*sync.Mutex

	commits      atomic.Int64
	pushes       atomic.Int64
	pushFailures atomic.Int64
	failures     atomic.Int64
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	open := opts.Open
	if open == nil {
		executor := opts.Executor
		if executor == nil {
			executor = git.NewExecExecutor(git.DefaultTimeout)
		}
		open = func(dir string) Repository { return git.NewRepo(dir, executor) }
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry(nil)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Orchestrator{
		root:           filepath.Clean(opts.Root),
		name:           opts.Name,
		registry:       registry,
		open:           open,
		autoPush:       opts.AutoPush,
		notifier:       notifier,
		notifyOnCommit: opts.NotifyOnCommit,
		logger:         log,
		trees:          make(map[string]*sync.Mutex),
	}
}

// Root returns the main repository's working tree.
func (o *Orchestrator) Root() string {
	return o.root
}

// Registry returns the submodule registry of the main repository.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// CommitChanges implements scheduler.Committer.
func (o *Orchestrator) CommitChanges(ctx context.Context, key string, changes *scheduler.ChangeSet) error {
	_, err := o.Commit(ctx, key, changes.Paths())
	return err
}

// Commit commits the changes of the repository identified by key, which is
// the main working tree or the absolute root of a registered submodule.
// paths are relative to key and only decide which submodules are visited;
// every tree visited stages all of its changes.
//
// The returned error reports a failure of key's own tree. Submodule
// failures are recorded in the result and do not stop the parent.
func (o *Orchestrator) Commit(ctx context.Context, key string, paths []string) (*Result, error) {
	key = filepath.Clean(key)
	if key == o.root {
		return o.commitTree(ctx, o.root, o.registry, paths)
	}

	rel, err := filepath.Rel(o.root, key)
	if err != nil {
		return nil, gitwatchErrors.Wrapf(err, "resolving repository key %s", key)
	}
	rel = filepath.ToSlash(rel)
	if !o.registry.Contains(rel) {
		return nil, gitwatchErrors.Errorf("%s is neither %s nor one of its submodules", key, o.root)
	}
	return o.commitSubmodule(ctx, rel, paths)
}

func (o *Orchestrator) commitTree(ctx context.Context, dir string, reg *Registry, paths []string) (*Result, error) {
	res := &Result{Repo: dir}
	log := o.treeLogger(ctx, dir)

	bySubmodule, _ := reg.Partition(paths)
	for _, sub := range sortedKeys(bySubmodule) {
		subRes, err := o.commitTree(ctx, filepath.Join(dir, filepath.FromSlash(sub)), reg.Sub(sub), bySubmodule[sub])
		if err != nil {
			subRes.Err = err
			log.Error("Submodule %s was not committed, continuing with its parent: %v", sub, err)
		}
		res.Submodules = append(res.Submodules, subRes)
	}

	unlock := o.lockTree(dir)
	defer unlock()

	repo := o.open(dir)
	if err := repo.StageAll(ctx); err != nil {
		o.failures.Add(1)
		return res, err
	}

	entries, err := repo.Status(ctx)
	if err != nil {
		o.failures.Add(1)
		return res, err
	}
	message := BuildMessage(git.StagedEntries(entries))
	if message == "" {
		log.Info("No changes to commit")
		return res, nil
	}

	return res, o.commitAndPush(ctx, repo, res, message)
}

// commitSubmodule commits a submodule addressed directly and then records
// its new pointer in the tree that contains it.
func (o *Orchestrator) commitSubmodule(ctx context.Context, rel string, paths []string) (*Result, error) {
	subDir := filepath.Join(o.root, filepath.FromSlash(rel))
	subRes, err := o.commitTree(ctx, subDir, o.registry.Sub(rel), paths)
	if err != nil {
		return subRes, err
	}

	parentRel, pointer := o.containingTree(rel)
	parentDir := filepath.Join(o.root, filepath.FromSlash(parentRel))
	res := &Result{Repo: parentDir, Submodules: []*Result{subRes}}

	unlock := o.lockTree(parentDir)
	defer unlock()

	parent := o.open(parentDir)
	if err := parent.StagePath(ctx, pointer); err != nil {
		o.failures.Add(1)
		return res, err
	}
	staged, err := parent.HasStagedChanges(ctx)
	if err != nil {
		o.failures.Add(1)
		return res, err
	}
	if !staged {
		return res, nil
	}

	return res, o.commitAndPush(ctx, parent, res, SubmoduleUpdateMessage(path.Base(rel)))
}

// CommitExisting commits whatever is already uncommitted when watching
// starts. Submodules go first, deepest first along each chain, so every
// parent commit records the submodule commits below it.
func (o *Orchestrator) CommitExisting(ctx context.Context) (*Result, error) {
	return o.commitExistingTree(ctx, o.root, o.registry, "main repo")
}

func (o *Orchestrator) commitExistingTree(ctx context.Context, dir string, reg *Registry, label string) (*Result, error) {
	res := &Result{Repo: dir}
	log := o.treeLogger(ctx, dir)

	for _, sub := range reg.Top() {
		subDir := filepath.Join(dir, filepath.FromSlash(sub))
		subRes, err := o.commitExistingTree(ctx, subDir, reg.Sub(sub), "submodule "+path.Base(sub))
		if err != nil {
			subRes.Err = err
			log.Error("Existing changes in submodule %s were not committed: %v", sub, err)
		}
		res.Submodules = append(res.Submodules, subRes)
	}

	unlock := o.lockTree(dir)
	defer unlock()

	repo := o.open(dir)
	entries, err := repo.Status(ctx)
	if err != nil {
		o.failures.Add(1)
		return res, err
	}
	if len(entries) == 0 {
		return res, nil
	}

	log.InfoToUser("Found existing changes in %s, committing...", label)
	if err := repo.StageAll(ctx); err != nil {
		o.failures.Add(1)
		return res, err
	}
	if entries, err = repo.Status(ctx); err != nil {
		o.failures.Add(1)
		return res, err
	}
	if len(git.StagedEntries(entries)) == 0 {
		return res, nil
	}

	return res, o.commitAndPush(ctx, repo, res, ExistingChangesMessage(label))
}

// commitAndPush commits the staged index of repo and pushes when enabled.
// Callers hold the tree lock.
func (o *Orchestrator) commitAndPush(ctx context.Context, repo Repository, res *Result, message string) error {
	log := o.treeLogger(ctx, repo.Path())

	if err := repo.Commit(ctx, message); err != nil {
		o.failures.Add(1)
		return err
	}
	res.Committed = true
	res.Message = message
	o.commits.Add(1)
	log.Success("Committed %s: %s", o.label(repo.Path()), message)

	if o.notifyOnCommit {
		title := fmt.Sprintf("📦 %s Commit", o.name)
		if err := o.notifier.Notify(ctx, title, message); err != nil {
			log.Warning("Failed to send notification: %v", err)
		}
	}

	if !o.autoPush {
		return nil
	}
	if err := repo.Push(ctx); err != nil {
		res.PushErr = gitwatchErrors.NewPushError(repo.Path(), err)
		o.pushFailures.Add(1)
		log.Error("%v; the local commit is kept", res.PushErr)
		return nil
	}
	res.Pushed = true
	o.pushes.Add(1)
	log.Info("Pushed %s", o.label(repo.Path()))
	return nil
}

// containingTree returns the tree (relative to the root, "" for the root
// itself) holding the pointer of the submodule at rel, and the pointer's
// path inside that tree.
func (o *Orchestrator) containingTree(rel string) (parent, pointer string) {
	for _, root := range o.registry.Roots() {
		if strings.HasPrefix(rel, root+"/") && len(root) > len(parent) {
			parent = root
		}
	}
	if parent == "" {
		return "", rel
	}
	return parent, strings.TrimPrefix(rel, parent+"/")
}

func (o *Orchestrator) lockTree(dir string) func() {
	o.mu.Lock()
	m, ok := o.trees[dir]
	if !ok {
		m = &sync.Mutex{}
		o.trees[dir] = m
	}
	o.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (o *Orchestrator) treeLogger(ctx context.Context, dir string) logger.Logger {
	log := o.logger.With("repo", dir)
	if cycle := scheduler.CycleFrom(ctx); cycle != "" {
		log = log.With("cycle", cycle)
	}
	return log
}

func (o *Orchestrator) label(dir string) string {
	if dir == o.root {
		return "main repo"
	}
	if rel, err := filepath.Rel(o.root, dir); err == nil {
		return "submodule " + filepath.ToSlash(rel)
	}
	return dir
}

// Stats returns a snapshot of the counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Commits:      o.commits.Load(),
		Pushes:       o.pushes.Load(),
		PushFailures: o.pushFailures.Load(),
		Failures:     o.failures.Load(),
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
