package commit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bashhack/gitwatch/internal/git"
)

// MaxFilesPerGroup is how many paths each action group lists before
// collapsing the rest into "(+N more)".
const MaxFilesPerGroup = 3

// MessagePrefix starts every automatic commit message.
const MessagePrefix = "Auto-commit: "

var groupOrder = []git.Action{
	git.ActionAdded,
	git.ActionModified,
	git.ActionDeleted,
	git.ActionRenamed,
}

// BuildMessage renders a commit message from git status entries, e.g.
//
//	Auto-commit: added a.txt, b.txt; modified c.go (+2 more); renamed x.md -> y.md
//
// It returns "" when entries is empty.
func BuildMessage(entries []git.StatusEntry) string {
	if len(entries) == 0 {
		return ""
	}

	groups := make(map[git.Action][]string)
	for _, e := range entries {
		label := e.Path
		if e.Action() == git.ActionRenamed && e.OrigPath != "" {
			label = e.OrigPath + " -> " + e.Path
		}
		groups[e.Action()] = append(groups[e.Action()], label)
	}

	parts := make([]string, 0, len(groupOrder))
	for _, action := range groupOrder {
		files := groups[action]
		if len(files) == 0 {
			continue
		}
		sort.Strings(files)

		shown := files
		if len(shown) > MaxFilesPerGroup {
			shown = shown[:MaxFilesPerGroup]
		}
		part := action.String() + " " + strings.Join(shown, ", ")
		if extra := len(files) - len(shown); extra > 0 {
			part += fmt.Sprintf(" (+%d more)", extra)
		}
		parts = append(parts, part)
	}

	return MessagePrefix + strings.Join(parts, "; ")
}

// SubmoduleUpdateMessage is the parent commit recording a new submodule pointer.
func SubmoduleUpdateMessage(name string) string {
	return fmt.Sprintf("Update %s submodule", name)
}

// ExistingChangesMessage is used for the commit made at startup.
func ExistingChangesMessage(label string) string {
	return "Auto-commit existing changes in " + label
}
