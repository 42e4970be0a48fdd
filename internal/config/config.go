package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
)

const (
	// DefaultDirectory is watched and committed when a configuration names
	// no directories.
	DefaultDirectory = "~/.dotfiles"

	// DefaultCommitDelay is how long a repository must be quiet before its
	// pending changes are committed.
	DefaultCommitDelay = 60 * time.Second

	// DefaultFetchInterval is the time between two fetches of the remote.
	// Zero disables fetching.
	DefaultFetchInterval = 600 * time.Second

	// DefaultGitTimeout bounds every git invocation.
	DefaultGitTimeout = 120 * time.Second
)

// WatchConfig is the resolved configuration of one watch. It is built once
// by Load and not modified afterwards.
type WatchConfig struct {
	// Name is the configuration name, the file name without .yaml.
	Name string
	// Path is the file the configuration was read from.
	Path string

	WatchDir string
	RepoDir  string

	CommitDelay   time.Duration
	FetchInterval time.Duration
	GitTimeout    time.Duration

	AutoPush              bool
	RespectGitignore      bool
	CommitExistingOnStart bool
	RequeueOnFailure      bool

	EnableNotifications   bool
	NotifyOnCommit        bool
	NotifyOnRemoteChanges bool

	IgnorePatterns   []string
	IgnoreFiles      []string
	GlobalIgnoreFile string

	// LogFile is where debug logs go when debug logging is on.
	LogFile string
}

// NotifyCommits reports whether commit notifications should be sent.
func (c *WatchConfig) NotifyCommits() bool {
	return c.EnableNotifications && c.NotifyOnCommit
}

// NotifyRemote reports whether remote change notifications should be sent.
func (c *WatchConfig) NotifyRemote() bool {
	return c.EnableNotifications && c.NotifyOnRemoteChanges
}

// ServiceName is the systemd instance running this configuration.
func (c *WatchConfig) ServiceName() string {
	return ServiceName(c.Name)
}

// ServiceName returns the systemd user unit instance for a configuration.
func ServiceName(name string) string {
	return fmt.Sprintf("gitwatch@%s.service", name)
}

// Validate checks the configuration against the filesystem. Problems that
// prevent watching are returned as an error joining one ConfigError per
// problem; problems that only degrade behavior are returned as warnings.
func (c *WatchConfig) Validate() (warnings []string, err error) {
	var errs []error

	if info, statErr := os.Stat(c.WatchDir); statErr != nil || !info.IsDir() {
		errs = append(errs, gitwatchErrors.NewConfigError("watch_directory", c.WatchDir,
			gitwatchErrors.Wrap(gitwatchErrors.ErrInvalidConfiguration, "watch directory does not exist")))
	}

	if info, statErr := os.Stat(c.RepoDir); statErr != nil || !info.IsDir() {
		errs = append(errs, gitwatchErrors.NewConfigError("repo_directory", c.RepoDir,
			gitwatchErrors.Wrap(gitwatchErrors.ErrInvalidConfiguration, "repository directory does not exist")))
	} else if _, statErr := os.Stat(filepath.Join(c.RepoDir, ".git")); statErr != nil {
		errs = append(errs, gitwatchErrors.NewConfigError("repo_directory", c.RepoDir,
			gitwatchErrors.Wrap(gitwatchErrors.ErrNotGitRepository, "repository directory is not a git repository")))
	}

	if !within(c.RepoDir, c.WatchDir) {
		errs = append(errs, gitwatchErrors.NewConfigError("watch_directory", c.WatchDir,
			gitwatchErrors.Wrapf(gitwatchErrors.ErrInvalidConfiguration, "watch directory must be inside %s", c.RepoDir)))
	}

	if c.CommitDelay < 0 {
		errs = append(errs, gitwatchErrors.NewConfigError("commit_delay", c.CommitDelay,
			gitwatchErrors.Wrap(gitwatchErrors.ErrInvalidConfiguration, "commit_delay must be non-negative")))
	}
	if c.FetchInterval < 0 {
		errs = append(errs, gitwatchErrors.NewConfigError("fetch_interval", c.FetchInterval,
			gitwatchErrors.Wrap(gitwatchErrors.ErrInvalidConfiguration, "fetch_interval must be non-negative")))
	}
	if c.GitTimeout <= 0 {
		errs = append(errs, gitwatchErrors.NewConfigError("git_timeout", c.GitTimeout,
			gitwatchErrors.Wrap(gitwatchErrors.ErrInvalidConfiguration, "git_timeout must be positive")))
	}

	for _, f := range c.IgnoreFiles {
		if _, statErr := os.Stat(f); statErr != nil {
			warnings = append(warnings, fmt.Sprintf("Ignore file does not exist: %s", f))
		}
	}

	return warnings, gitwatchErrors.Join(errs...)
}

// within reports whether dir is root or below it.
func within(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// expandPath expands a leading ~ and makes the path absolute.
func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}

// DefaultLogFile follows the XDG base directory layout:
// $XDG_DATA_HOME/gitwatch/logs/gitwatch-<name>-<hash>.log, where the hash is
// taken from the repository path.
func DefaultLogFile(name, repoDir string) string {
	logDir := os.Getenv("XDG_DATA_HOME")
	if logDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			logDir = filepath.Join(home, ".local", "share")
		} else {
			logDir = os.TempDir()
		}
	}

	repoHash := fmt.Sprintf("%x", sha256OfString(repoDir)[:8])
	return filepath.Join(logDir, "gitwatch", "logs", fmt.Sprintf("gitwatch-%s-%s.log", name, repoHash))
}

// sha256OfString returns the SHA256 hash of a string
func sha256OfString(input string) []byte {
	hash := sha256.Sum256([]byte(input))
	return hash[:]
}
