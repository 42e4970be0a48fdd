package git

import (
	"context"
	"sort"
	"strconv"
	"strings"

	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
)

// Repo runs git commands against one working tree.
type Repo struct {
	path     string
	executor CommandExecutor
}

// NewRepo returns a Repo for the working tree at path.
func NewRepo(path string, executor CommandExecutor) *Repo {
	return &Repo{path: path, executor: executor}
}

// Path returns the working tree root.
func (r *Repo) Path() string {
	return r.path
}

// StageAll stages every change in the working tree, including deletions and
// updated submodule pointers.
func (r *Repo) StageAll(ctx context.Context) error {
	return r.run(ctx, "add", "-A")
}

// StagePath stages a single path.
func (r *Repo) StagePath(ctx context.Context, relPath string) error {
	return r.run(ctx, "add", "--", relPath)
}

// Status returns the porcelain status of the working tree with untracked
// files listed individually.
func (r *Repo) Status(ctx context.Context) ([]StatusEntry, error) {
	out, err := r.output(ctx, "status", "--porcelain", "-z", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return ParsePorcelainZ(out), nil
}

// HasChanges reports whether git status shows anything at all.
func (r *Repo) HasChanges(ctx context.Context) (bool, error) {
	entries, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (r *Repo) HasStagedChanges(ctx context.Context) (bool, error) {
	err := r.run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var gitErr *gitwatchErrors.GitError
	if gitwatchErrors.As(err, &gitErr) && gitErr.ExitCode == 1 {
		return true, nil
	}
	return false, err
}

// Commit records the staged changes with the given message.
func (r *Repo) Commit(ctx context.Context, message string) error {
	return r.run(ctx, "commit", "--quiet", "-m", message)
}

// Push pushes the current branch to its upstream.
func (r *Repo) Push(ctx context.Context) error {
	return r.run(ctx, "push", "--quiet")
}

// Fetch updates remote-tracking refs from the default remote.
func (r *Repo) Fetch(ctx context.Context) error {
	return r.run(ctx, "fetch", "--quiet")
}

// CurrentBranch returns the checked-out branch, or "" on a detached HEAD.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.output(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RevParse resolves a revision to a commit SHA.
func (r *Repo) RevParse(ctx context.Context, rev string) (string, error) {
	out, err := r.output(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Upstream returns the short name of the branch's upstream, e.g. origin/main.
func (r *Repo) Upstream(ctx context.Context) (string, error) {
	out, err := r.output(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{upstream}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CountCommits returns the number of commits reachable from to but not from.
func (r *Repo) CountCommits(ctx context.Context, from, to string) (int, error) {
	out, err := r.output(ctx, "rev-list", "--count", from+".."+to)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, gitwatchErrors.Wrapf(err, "unexpected rev-list output %q", out)
	}
	return n, nil
}

// Submodules lists the checked-out submodules, nested ones included, as
// paths relative to the working tree root, sorted.
func (r *Repo) Submodules(ctx context.Context) ([]string, error) {
	out, err := r.output(ctx, "submodule", "foreach", "--quiet", "--recursive", "echo $displaypath")
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (r *Repo) run(ctx context.Context, args ...string) error {
	allArgs := append([]string{"-C", r.path}, args...)
	return r.executor.ExecuteWithContext(ctx, "git", allArgs...)
}

func (r *Repo) output(ctx context.Context, args ...string) (string, error) {
	allArgs := append([]string{"-C", r.path}, args...)
	return r.executor.ExecuteWithContextAndOutput(ctx, "git", allArgs...)
}

// IsRepository checks if the given path is inside a git working tree.
// If git exits with code 128, the path is not a repository and (false, nil)
// is returned. Other failures (git missing, permissions, DefaultTimeout
// exceeded) are returned as errors.
func IsRepository(path string) (bool, error) {
	return isRepository(context.Background(), NewExecExecutor(DefaultTimeout), path)
}

func isRepository(ctx context.Context, executor CommandExecutor, path string) (bool, error) {
	if err := executor.ExecuteWithContext(ctx, "git", "-C", path, "rev-parse", "--is-inside-work-tree"); err != nil {
		// Exit code 128 is git's generic fatal error code; for this command it
		// means the directory is not part of a repository.
		var gitErr *gitwatchErrors.GitError
		if gitwatchErrors.As(err, &gitErr) && gitErr.ExitCode == 128 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
