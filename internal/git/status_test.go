package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePorcelainZ(t *testing.T) {
	out := "A  new.txt\x00M  lib/util.go\x00 D gone.txt\x00R  docs/after.md\x00docs/before.md\x00?? notes/todo.txt\x00T  link\x00"

	entries := ParsePorcelainZ(out)
	require.Len(t, entries, 6)

	assert.Equal(t, "new.txt", entries[0].Path)
	assert.Equal(t, ActionAdded, entries[0].Action())

	assert.Equal(t, "lib/util.go", entries[1].Path)
	assert.Equal(t, ActionModified, entries[1].Action())

	assert.Equal(t, "gone.txt", entries[2].Path)
	assert.Equal(t, ActionDeleted, entries[2].Action())

	assert.Equal(t, "docs/after.md", entries[3].Path)
	assert.Equal(t, "docs/before.md", entries[3].OrigPath)
	assert.Equal(t, ActionRenamed, entries[3].Action())

	assert.Equal(t, "notes/todo.txt", entries[4].Path)
	assert.Equal(t, ActionAdded, entries[4].Action())

	assert.Equal(t, ActionModified, entries[5].Action())
}

func TestParsePorcelainZPathsWithSpaces(t *testing.T) {
	entries := ParsePorcelainZ("M  my notes/read me.txt\x00")
	require.Len(t, entries, 1)
	assert.Equal(t, "my notes/read me.txt", entries[0].Path)
}

func TestParsePorcelainZEmpty(t *testing.T) {
	assert.Empty(t, ParsePorcelainZ(""))
	assert.Empty(t, ParsePorcelainZ("\x00"))
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "added", ActionAdded.String())
	assert.Equal(t, "modified", ActionModified.String())
	assert.Equal(t, "deleted", ActionDeleted.String())
	assert.Equal(t, "renamed", ActionRenamed.String())
}

func TestStagedEntries(t *testing.T) {
	entries := ParsePorcelainZ("A  new.txt\x00 M sub\x00?? stray.txt\x00MM both.go\x00")

	staged := StagedEntries(entries)
	require.Len(t, staged, 2)
	assert.Equal(t, "new.txt", staged[0].Path)
	assert.Equal(t, "both.go", staged[1].Path)
	assert.False(t, entries[1].Staged())
}
