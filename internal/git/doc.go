// Package git wraps the git executable for gitwatch.
//
// Every invocation goes through a CommandExecutor so tests can substitute
// MockCommandExecutor. ExecExecutor bounds each command with a timeout; a
// command that overruns is killed and reported as a GitError wrapping
// ErrGitTimeout. Non-zero exits become GitErrors carrying the subcommand,
// arguments, working tree, exit code and stderr.
//
// Repo exposes the operations the commit and fetch paths need: staging,
// porcelain status, commit, push, fetch, ref resolution and submodule
// enumeration.
package git
