package commit

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"github.com/bashhack/gitwatch/internal/git"
	"github.com/bashhack/gitwatch/internal/gittest"
	"github.com/bashhack/gitwatch/internal/notify"
	"github.com/bashhack/gitwatch/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journal records git operations across fake repositories in call order.
type journal struct {
	mu    sync.Mutex
	lines []string
}

func (j *journal) add(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lines = append(j.lines, line)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.lines...)
}

func (j *journal) index(line string) int {
	for i, l := range j.all() {
		if l == line {
			return i
		}
	}
	return -1
}

type fakeRepo struct {
	name    string
	dir     string
	journal *journal

	status   []git.StatusEntry
	stageErr error
	pushErr  error
	staged   bool
}

func (f *fakeRepo) Path() string { return f.dir }

func (f *fakeRepo) StageAll(ctx context.Context) error {
	f.journal.add(f.name + " add -A")
	return f.stageErr
}

func (f *fakeRepo) StagePath(ctx context.Context, relPath string) error {
	f.journal.add(f.name + " add " + relPath)
	return f.stageErr
}

func (f *fakeRepo) Status(ctx context.Context) ([]git.StatusEntry, error) {
	f.journal.add(f.name + " status")
	return f.status, nil
}

func (f *fakeRepo) HasStagedChanges(ctx context.Context) (bool, error) {
	f.journal.add(f.name + " diff --cached")
	return f.staged, nil
}

func (f *fakeRepo) Commit(ctx context.Context, message string) error {
	f.journal.add(f.name + " commit " + message)
	return nil
}

func (f *fakeRepo) Push(ctx context.Context) error {
	f.journal.add(f.name + " push")
	return f.pushErr
}

type fakeTrees struct {
	root    string
	journal *journal
	repos   map[string]*fakeRepo
}

func newFakeTrees(root string, rels ...string) *fakeTrees {
	ft := &fakeTrees{root: root, journal: &journal{}, repos: make(map[string]*fakeRepo)}
	ft.repos[root] = &fakeRepo{name: "root", dir: root, journal: ft.journal}
	for _, rel := range rels {
		dir := filepath.Join(root, filepath.FromSlash(rel))
		ft.repos[dir] = &fakeRepo{name: rel, dir: dir, journal: ft.journal}
	}
	return ft
}

func (ft *fakeTrees) repo(rel string) *fakeRepo {
	return ft.repos[filepath.Join(ft.root, filepath.FromSlash(rel))]
}

func (ft *fakeTrees) open(dir string) Repository {
	r, ok := ft.repos[dir]
	if !ok {
		panic("unexpected tree " + dir)
	}
	return r
}

func modified(paths ...string) []git.StatusEntry {
	entries := make([]git.StatusEntry, len(paths))
	for i, p := range paths {
		entries[i] = git.StatusEntry{Index: 'M', Worktree: ' ', Path: p}
	}
	return entries
}

func TestSubmoduleCommitsBeforeParent(t *testing.T) {
	ft := newFakeTrees("/work/dotfiles", "vendor/lib", "themes")
	ft.repo("vendor/lib").status = modified("a.go")
	ft.repo("themes").status = modified("dark.css")
	ft.repo("").status = modified("README.md", "themes", "vendor/lib")

	o := New(Options{
		Root:     "/work/dotfiles",
		Registry: NewRegistry([]string{"vendor/lib", "themes"}),
		Open:     ft.open,
		AutoPush: true,
	})

	res, err := o.Commit(context.Background(), "/work/dotfiles", []string{"vendor/lib/a.go", "README.md", "themes/dark.css"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"themes add -A",
		"themes status",
		"themes commit Auto-commit: modified dark.css",
		"themes push",
		"vendor/lib add -A",
		"vendor/lib status",
		"vendor/lib commit Auto-commit: modified a.go",
		"vendor/lib push",
		"root add -A",
		"root status",
		"root commit Auto-commit: modified README.md, themes, vendor/lib",
		"root push",
	}, ft.journal.all())

	require.Len(t, res.Submodules, 2)
	assert.True(t, res.Committed)
	assert.True(t, res.Pushed)
	assert.Equal(t, 3, res.Commits())
	assert.Equal(t, Stats{Commits: 3, Pushes: 3}, o.Stats())
}

func TestOnlyTouchedSubmodulesAreVisited(t *testing.T) {
	ft := newFakeTrees("/repo", "vendor/lib", "themes")
	ft.repo("").status = modified("README.md")

	o := New(Options{Root: "/repo", Registry: NewRegistry([]string{"vendor/lib", "themes"}), Open: ft.open})

	_, err := o.Commit(context.Background(), "/repo", []string{"README.md"})
	require.NoError(t, err)
	for _, line := range ft.journal.all() {
		assert.True(t, strings.HasPrefix(line, "root "), "unexpected %q", line)
	}
}

func TestNoStatusMeansNoCommit(t *testing.T) {
	ft := newFakeTrees("/repo")
	o := New(Options{Root: "/repo", Open: ft.open, AutoPush: true})

	res, err := o.Commit(context.Background(), "/repo", []string{"gone.txt"})
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Empty(t, res.Message)
	assert.Equal(t, []string{"root add -A", "root status"}, ft.journal.all())
}

func TestUnstagedSubmoduleContentIsNotCommitted(t *testing.T) {
	ft := newFakeTrees("/repo")
	ft.repo("").status = []git.StatusEntry{{Index: ' ', Worktree: 'M', Path: "vendor/lib"}}
	o := New(Options{Root: "/repo", Open: ft.open})

	res, err := o.Commit(context.Background(), "/repo", []string{"x"})
	require.NoError(t, err)
	assert.False(t, res.Committed)
}

func TestPushFailureKeepsCommit(t *testing.T) {
	ft := newFakeTrees("/repo")
	ft.repo("").status = modified("a.txt")
	ft.repo("").pushErr = git.MockExitError("push", 1, "rejected")

	var notified []string
	o := New(Options{
		Root:     "/repo",
		Name:     "dotfiles",
		Open:     ft.open,
		AutoPush: true,
		Notifier: notify.Func(func(ctx context.Context, title, body string) error {
			notified = append(notified, title+": "+body)
			return nil
		}),
		NotifyOnCommit: true,
	})

	res, err := o.Commit(context.Background(), "/repo", []string{"a.txt"})
	require.NoError(t, err, "a push failure is not a commit failure")
	assert.True(t, res.Committed)
	assert.False(t, res.Pushed)

	var pushErr *gitwatchErrors.PushError
	require.True(t, errors.As(res.PushErr, &pushErr))
	assert.Equal(t, "/repo", pushErr.Repo)
	assert.True(t, gitwatchErrors.Is(res.PushErr, gitwatchErrors.ErrPushFailed))

	assert.Equal(t, []string{"📦 dotfiles Commit: Auto-commit: modified a.txt"}, notified)
	assert.Equal(t, Stats{Commits: 1, PushFailures: 1}, o.Stats())
	assert.Equal(t, 1, strings.Count(strings.Join(ft.journal.all(), "\n"), "push"), "pushes are never retried")
}

func TestSubmoduleFailureDoesNotStopParent(t *testing.T) {
	ft := newFakeTrees("/repo", "lib")
	ft.repo("lib").stageErr = git.MockExitError("add", 128, "index.lock exists")
	ft.repo("").status = modified("README.md")

	o := New(Options{Root: "/repo", Registry: NewRegistry([]string{"lib"}), Open: ft.open})

	res, err := o.Commit(context.Background(), "/repo", []string{"lib/x.go", "README.md"})
	require.NoError(t, err)
	require.Len(t, res.Submodules, 1)
	assert.Error(t, res.Submodules[0].Err)
	assert.False(t, res.Submodules[0].Committed)
	assert.True(t, res.Committed)
	assert.Equal(t, int64(1), o.Stats().Failures)
}

func TestParentStageFailureIsReturned(t *testing.T) {
	ft := newFakeTrees("/repo")
	ft.repo("").stageErr = git.MockExitError("add", 128, "fatal")
	o := New(Options{Root: "/repo", Open: ft.open})

	_, err := o.Commit(context.Background(), "/repo", []string{"a"})
	require.Error(t, err)
	assert.True(t, gitwatchErrors.Is(err, gitwatchErrors.ErrGitOperationFailed))
}

func TestDirectSubmoduleKeyUpdatesPointer(t *testing.T) {
	ft := newFakeTrees("/repo", "vendor/lib")
	ft.repo("vendor/lib").status = modified("a.go")
	ft.repo("").staged = true

	o := New(Options{Root: "/repo", Registry: NewRegistry([]string{"vendor/lib"}), Open: ft.open})

	res, err := o.Commit(context.Background(), "/repo/vendor/lib", []string{"a.go"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"vendor/lib add -A",
		"vendor/lib status",
		"vendor/lib commit Auto-commit: modified a.go",
		"root add vendor/lib",
		"root diff --cached",
		"root commit Update lib submodule",
	}, ft.journal.all())
	assert.Equal(t, 2, res.Commits())
}

func TestDirectSubmoduleKeyWithoutPointerChange(t *testing.T) {
	ft := newFakeTrees("/repo", "lib")
	o := New(Options{Root: "/repo", Registry: NewRegistry([]string{"lib"}), Open: ft.open})

	res, err := o.Commit(context.Background(), "/repo/lib", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Commits())
	assert.Equal(t, -1, ft.journal.index("root commit Update lib submodule"))
}

func TestNestedSubmodulePointerGoesToItsParent(t *testing.T) {
	ft := newFakeTrees("/repo", "lib", "lib/inner")
	ft.repo("lib/inner").status = modified("x")
	ft.repo("lib").staged = true

	o := New(Options{Root: "/repo", Registry: NewRegistry([]string{"lib", "lib/inner"}), Open: ft.open})

	_, err := o.Commit(context.Background(), "/repo/lib/inner", []string{"x"})
	require.NoError(t, err)
	assert.NotEqual(t, -1, ft.journal.index("lib add inner"))
	assert.NotEqual(t, -1, ft.journal.index("lib commit Update inner submodule"))
}

func TestUnknownKey(t *testing.T) {
	o := New(Options{Root: "/repo", Open: newFakeTrees("/repo").open})
	_, err := o.Commit(context.Background(), "/elsewhere", []string{"a"})
	assert.Error(t, err)
}

func TestCommitExistingFake(t *testing.T) {
	ft := newFakeTrees("/repo", "lib")
	ft.repo("lib").status = modified("dirty.go")
	ft.repo("").status = modified("lib")

	o := New(Options{Root: "/repo", Registry: NewRegistry([]string{"lib"}), Open: ft.open})
	res, err := o.CommitExisting(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Commits())
	libCommit := ft.journal.index("lib commit Auto-commit existing changes in submodule lib")
	rootCommit := ft.journal.index("root commit Auto-commit existing changes in main repo")
	require.NotEqual(t, -1, libCommit)
	require.NotEqual(t, -1, rootCommit)
	assert.Less(t, libCommit, rootCommit)
}

func TestCommitChangesAdapter(t *testing.T) {
	ft := newFakeTrees("/repo")
	ft.repo("").status = modified("a.txt")
	o := New(Options{Root: "/repo", Open: ft.open})

	changes := scheduler.NewChangeSet()
	changes.Add("a.txt", scheduler.Modified)

	var committer scheduler.Committer = o
	require.NoError(t, committer.CommitChanges(context.Background(), "/repo", changes))
	assert.Equal(t, int64(1), o.Stats().Commits)
}

func TestSameTreeIsSerialized(t *testing.T) {
	ft := newFakeTrees("/repo")
	ft.repo("").status = modified("a.txt")

	var mu sync.Mutex
	inside, maxInside := 0, 0
	slow := func(dir string) Repository {
		return &slowRepo{Repository: ft.open(dir), enter: func() {
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}}
	}
	o := New(Options{Root: "/repo", Open: slow})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = o.Commit(context.Background(), "/repo", nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}

type slowRepo struct {
	Repository
	enter func()
}

func (s *slowRepo) StageAll(ctx context.Context) error {
	s.enter()
	return s.Repository.StageAll(ctx)
}

func TestNetZeroChangesAgainstRealGit(t *testing.T) {
	dir := gittest.NewRepo(t)
	o := New(Options{Root: dir, Executor: git.NewExecExecutor(30 * time.Second)})

	gittest.WriteFile(t, dir, "scratch.txt", "one")
	gittest.WriteFile(t, dir, "scratch.txt", "two")
	require.NoError(t, removeFile(dir, "scratch.txt"))

	res, err := o.Commit(context.Background(), dir, []string{"scratch.txt"})
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Equal(t, 1, gittest.CommitCount(t, dir))
}

func TestCommitMessageAgainstRealGit(t *testing.T) {
	dir := gittest.NewRepo(t)
	o := New(Options{Root: dir, Executor: git.NewExecExecutor(30 * time.Second)})

	gittest.WriteFile(t, dir, "a.txt", "a")
	gittest.WriteFile(t, dir, "initial.txt", "changed")

	res, err := o.Commit(context.Background(), dir, []string{"a.txt", "initial.txt"})
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.Equal(t, "Auto-commit: added a.txt; modified initial.txt", gittest.LastMessage(t, dir))
	assert.Equal(t, 2, gittest.CommitCount(t, dir))
}

func TestSubmoduleAgainstRealGit(t *testing.T) {
	lib := gittest.NewRepo(t)
	libRemote := gittest.NewBareRemote(t, lib)

	parent := gittest.NewRepo(t)
	parentRemote := gittest.NewBareRemote(t, parent)
	sub := gittest.AddSubmodule(t, parent, libRemote, "vendor/lib")
	gittest.Run(t, parent, "push", "--quiet")

	executor := git.NewExecExecutor(30 * time.Second)
	reg, err := LoadRegistry(context.Background(), git.NewRepo(parent, executor))
	require.NoError(t, err)
	require.Equal(t, []string{"vendor/lib"}, reg.Roots())

	o := New(Options{Root: parent, Registry: reg, Executor: executor, AutoPush: true})

	gittest.WriteFile(t, sub, "feature.go", "package lib")
	gittest.WriteFile(t, parent, "notes.md", "# notes")

	res, err := o.Commit(context.Background(), parent, []string{"vendor/lib/feature.go", "notes.md"})
	require.NoError(t, err)
	require.Len(t, res.Submodules, 1)
	assert.True(t, res.Submodules[0].Pushed)
	assert.True(t, res.Pushed)

	assert.Equal(t, "Auto-commit: added feature.go", gittest.LastMessage(t, sub))
	assert.Equal(t, "Auto-commit: added notes.md; modified vendor/lib", gittest.LastMessage(t, parent))

	subHead := gittest.Run(t, sub, "rev-parse", "HEAD")
	assert.Equal(t, subHead, gittest.Run(t, libRemote, "rev-parse", "HEAD"), "submodule commit reached its remote")
	pointer := gittest.Run(t, parentRemote, "rev-parse", "HEAD:vendor/lib")
	assert.Equal(t, subHead, pointer, "parent records the pushed submodule commit")
}

func TestCommitExistingAgainstRealGit(t *testing.T) {
	lib := gittest.NewRepo(t)
	parent := gittest.NewRepo(t)
	sub := gittest.AddSubmodule(t, parent, lib, "lib")

	gittest.WriteFile(t, sub, "dirty.txt", "x")
	gittest.WriteFile(t, parent, "initial.txt", "edited")

	executor := git.NewExecExecutor(30 * time.Second)
	o := New(Options{Root: parent, Registry: NewRegistry([]string{"lib"}), Executor: executor})

	res, err := o.CommitExisting(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Commits())
	assert.Equal(t, "Auto-commit existing changes in submodule lib", gittest.LastMessage(t, sub))
	assert.Equal(t, "Auto-commit existing changes in main repo", gittest.LastMessage(t, parent))
	assert.Empty(t, gittest.Run(t, parent, "status", "--porcelain"))

	res, err = o.CommitExisting(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Commits())
}
