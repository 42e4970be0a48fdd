package git

import "strings"

// Action is the kind of change git reports for one path.
type Action int

const (
	ActionAdded Action = iota
	ActionModified
	ActionDeleted
	ActionRenamed
)

// String returns the verb used in commit messages.
func (a Action) String() string {
	switch a {
	case ActionAdded:
		return "added"
	case ActionModified:
		return "modified"
	case ActionDeleted:
		return "deleted"
	case ActionRenamed:
		return "renamed"
	default:
		return "changed"
	}
}

// StatusEntry is one record of `git status --porcelain`.
type StatusEntry struct {
	Index    byte
	Worktree byte
	Path     string
	// OrigPath is set for renames and copies.
	OrigPath string
}

// Action classifies the entry. The index column wins when it is set, which is
// always the case after everything has been staged.
func (e StatusEntry) Action() Action {
	code := e.Index
	if code == ' ' {
		code = e.Worktree
	}
	switch code {
	case 'A', '?', 'C':
		return ActionAdded
	case 'D':
		return ActionDeleted
	case 'R':
		return ActionRenamed
	default:
		return ActionModified
	}
}

// ParsePorcelainZ parses the output of `git status --porcelain -z`.
func ParsePorcelainZ(out string) []StatusEntry {
	tokens := strings.Split(out, "\x00")
	entries := make([]StatusEntry, 0, len(tokens))

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		if len(token) < 4 || token[2] != ' ' {
			continue
		}
		entry := StatusEntry{
			Index:    token[0],
			Worktree: token[1],
			Path:     token[3:],
		}
		if entry.Index == '!' {
			continue
		}
		if entry.Index == 'R' || entry.Index == 'C' || entry.Worktree == 'R' || entry.Worktree == 'C' {
			if i+1 < len(tokens) {
				entry.OrigPath = tokens[i+1]
				i++
			}
		}
		entries = append(entries, entry)
	}

	return entries
}

// Staged reports whether the entry has a change recorded in the index.
func (e StatusEntry) Staged() bool {
	switch e.Index {
	case ' ', '?', '!':
		return false
	default:
		return true
	}
}

// StagedEntries keeps the entries with index changes. A submodule with dirty
// content that could not be committed shows up with only a worktree code and
// is dropped here.
func StagedEntries(entries []StatusEntry) []StatusEntry {
	staged := make([]StatusEntry, 0, len(entries))
	for _, e := range entries {
		if e.Staged() {
			staged = append(staged, e)
		}
	}
	return staged
}
