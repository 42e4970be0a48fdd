// Package commit turns batches of changed paths into git commits.
//
// An Orchestrator owns the git side of a watch session. Given the paths a
// debounce window collected, it finds the submodules those paths belong to
// (Registry), commits each of them first, then stages everything in the
// containing tree and commits that, so the parent commit always records the
// new submodule pointers. Commit messages are built from git status after
// staging, never from filesystem events:
//
//	Auto-commit: added a.txt, b.txt; modified c.go, d.go, e.go (+2 more); deleted old.txt
//
// When git reports nothing staged, no commit is made. Push failures are
// reported as PushError on the Result and never undo the local commit.
package commit
