package service

import (
	"context"
	"os"
	"os/exec"
)

// FallbackEditors are tried in order when neither EDITOR nor VISUAL names
// an installed program.
var FallbackEditors = []string{"nano", "vim", "vi", "emacs", "code"}

// Editor picks the program used by edit-config and edit-ignore. getenv and
// lookPath are injectable for tests; nil means os.Getenv and exec.LookPath.
func Editor(getenv func(string) string, lookPath func(string) (string, error)) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	for _, key := range []string{"EDITOR", "VISUAL"} {
		if editor := getenv(key); editor != "" {
			if _, err := lookPath(editor); err == nil {
				return editor
			}
		}
	}
	for _, editor := range FallbackEditors {
		if _, err := lookPath(editor); err == nil {
			return editor
		}
	}
	return FallbackEditors[0]
}

// Attached runs a program connected to the terminal, for editors and
// journalctl -f.
type Attached func(ctx context.Context, name string, args ...string) error

// RunAttached is the default Attached.
func RunAttached(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
