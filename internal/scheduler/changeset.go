package scheduler

import "sort"

// Kind is the filesystem event kind last observed for a path. It is kept for
// diagnostics only; commit messages are built from git status.
type Kind int

const (
	Created Kind = iota
	Modified
	Deleted
	Moved
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Moved:
		return "moved"
	default:
		return "unknown"
	}
}

// ChangeSet is the set of repository-relative paths touched since the last
// commit of one repository key. It is not safe for concurrent use; the
// Scheduler owns it until it is handed to a Committer.
type ChangeSet struct {
	paths map[string]Kind
}

// NewChangeSet returns an empty set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{paths: make(map[string]Kind)}
}

// Add records path, replacing the kind of an earlier record.
func (c *ChangeSet) Add(path string, kind Kind) {
	c.paths[path] = kind
}

// Merge adds every path of older that c does not already hold, so kinds
// recorded in c win.
func (c *ChangeSet) Merge(older *ChangeSet) {
	for p, k := range older.paths {
		if _, ok := c.paths[p]; !ok {
			c.paths[p] = k
		}
	}
}

// Len returns the number of distinct paths.
func (c *ChangeSet) Len() int {
	return len(c.paths)
}

// Paths returns the paths sorted.
func (c *ChangeSet) Paths() []string {
	out := make([]string, 0, len(c.paths))
	for p := range c.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Kind returns the last observed kind for path.
func (c *ChangeSet) Kind(path string) (Kind, bool) {
	k, ok := c.paths[path]
	return k, ok
}
