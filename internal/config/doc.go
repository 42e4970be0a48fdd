// Package config loads and manages gitwatch configurations.
//
// Each watch is described by a YAML file in the configuration directory
// ($GITWATCH_CONFIG_DIR, $XDG_CONFIG_HOME/gitwatch or ~/.config/gitwatch):
//
//	name: dotfiles
//	watch_directory: ~/.dotfiles
//	repo_directory: ~/.dotfiles
//	commit_delay: 60        # seconds of quiet before committing
//	fetch_interval: 600     # seconds between fetches, 0 disables
//	git_timeout: 120
//	auto_push: true
//	respect_gitignore: true
//	enable_notifications: true
//	notify_on_commit: true
//	notify_on_remote_changes: true
//	commit_existing_on_start: true
//	requeue_on_failure: false
//	ignore_patterns: ["*.tmp", "build/"]
//	ignore_files: ["~/.config/gitwatch/extra-ignore"]
//
// Missing keys take the defaults above. Load resolves the file into an
// immutable WatchConfig; GITWATCH_COMMIT_DELAY, GITWATCH_FETCH_INTERVAL,
// GITWATCH_AUTO_PUSH and GITWATCH_NOTIFICATIONS override the file.
//
// The directory also holds the global ignore file, named "ignore", whose
// patterns apply to every configuration.
package config
