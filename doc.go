// Package gitwatch turns bursts of file edits into descriptive git commits
//
// gitwatch watches one or more directories and, once a repository has been
// quiet for a configurable delay, stages the changes and commits them with a
// message listing what was added, modified, deleted and renamed. Each watch
// runs as a systemd user service, so it survives logouts and reboots.
//
// # Quick Start
//
//	# Create a configuration for ~/.dotfiles and install the unit template
//	gitwatch init
//
//	# Point it somewhere else
//	gitwatch edit-config
//
//	# Start watching
//	gitwatch up
//
//	# Follow what it does
//	gitwatch logs -f
//
// # Key Features
//
//   - Debounced Commits: One commit per quiet period, not one per save
//   - Descriptive Messages: "Auto-commit: added notes.md, modified todo.md"
//   - Submodules: Changes inside a submodule are committed there first, then
//     the parent records the new pointer
//   - Layered Ignores: A global file, inline patterns, extra files and every
//     .gitignore in the tree
//   - Remote Awareness: Periodic fetches with a desktop notification when the
//     remote moved ahead
//   - Auto-Push: Optional push after every commit
//
// # Module Structure
//
// The module is organized into these packages:
//
//   - cmd/gitwatch: Command-line interface and systemd entry point
//   - internal/config: YAML configurations, defaults and validation
//   - internal/watch: Recursive fsnotify watcher
//   - internal/ignore: Ignore layers and their matcher
//   - internal/scheduler: Per-repository debounce timers
//   - internal/commit: Commit orchestration across submodules
//   - internal/fetch: Background fetch loop
//   - internal/notify: Desktop notifications
//   - internal/service: systemd unit management
//   - internal/daemon: Wiring of one running watch
//   - internal/git: git executable wrapper
//   - internal/lock: One daemon per repository
//   - internal/logger: Logging facilities
//   - internal/errors: Error handling utilities
//
// # Configuration
//
// Configurations live in $GITWATCH_CONFIG_DIR, $XDG_CONFIG_HOME/gitwatch or
// ~/.config/gitwatch, one YAML file per watch:
//
//	name: notes
//	watch_directory: ~/notes
//	repo_directory: ~/notes
//	commit_delay: 60
//	fetch_interval: 600
//	auto_push: true
//	ignore_patterns:
//	  - "*.log"
//
// # Platform Support
//
// gitwatch runs on Linux with systemd. The foreground run command works on
// any Unix-like system with inotify or kqueue support in fsnotify.
//
// # Implementation Notes
//
// gitwatch uses the command-line git executable for everything that writes to
// a repository, so hooks, credentials and configuration behave exactly as they
// do for the user. go-git is only used to parse gitignore patterns.
package gitwatch
