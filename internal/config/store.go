package config

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"gopkg.in/yaml.v3"
)

// GlobalIgnoreName is the file in the configuration directory holding
// ignore patterns shared by every configuration.
const GlobalIgnoreName = "ignore"

// DefaultGlobalIgnore is written by EnsureGlobalIgnore.
const DefaultGlobalIgnore = `# Global ignore patterns for gitwatch
# Add patterns here that should be ignored by all watchers

.git/
*.pyc
__pycache__/
*.swp
*~
`

// Overrides customizes a configuration created with Store.Create. Empty
// fields keep the defaults.
type Overrides struct {
	WatchDir    string
	RepoDir     string
	CommitDelay *float64
}

// Store reads and writes configuration files in one directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, or at DefaultDir when dir is empty.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return nil, err
		}
	}
	abs, err := expandPath(dir)
	if err != nil {
		return nil, gitwatchErrors.NewConfigError("config_dir", dir, err)
	}
	return &Store{dir: abs}, nil
}

// DefaultDir resolves $GITWATCH_CONFIG_DIR, then $XDG_CONFIG_HOME/gitwatch,
// then ~/.config/gitwatch.
func DefaultDir() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gitwatch"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", gitwatchErrors.NewConfigError("config_dir", nil, gitwatchErrors.Wrap(err, "cannot determine home directory"))
	}
	return filepath.Join(home, ".config", "gitwatch"), nil
}

// Dir returns the configuration directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file of the named configuration.
func (s *Store) Path(name string) string {
	name = strings.TrimSuffix(name, ".yaml")
	return filepath.Join(s.dir, name+".yaml")
}

// GlobalIgnorePath returns the global ignore file.
func (s *Store) GlobalIgnorePath() string {
	return filepath.Join(s.dir, GlobalIgnoreName)
}

// Exists reports whether the named configuration has a file.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// List returns the names of all configurations, sorted.
func (s *Store) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

// Load reads the named configuration, fills in defaults, applies
// environment overrides and resolves every path.
func (s *Store) Load(name string) (*WatchConfig, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	path := s.Path(name)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gitwatchErrors.NewConfigError("name", name,
				gitwatchErrors.Wrapf(gitwatchErrors.ErrConfigNotFound, "no file at %s", path))
		}
		return nil, gitwatchErrors.NewConfigError("name", name, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, gitwatchErrors.NewConfigError("name", name,
			gitwatchErrors.Wrapf(gitwatchErrors.ErrInvalidConfiguration, "cannot parse %s: %v", path, err))
	}

	cfg, err := resolve(name, fc)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	cfg.GlobalIgnoreFile = s.GlobalIgnorePath()
	cfg.LoadFromEnvironment()
	return cfg, nil
}

func resolve(name string, fc fileConfig) (*WatchConfig, error) {
	cfg := &WatchConfig{
		Name:                  name,
		CommitDelay:           seconds(fc.CommitDelay, DefaultCommitDelay),
		FetchInterval:         seconds(fc.FetchInterval, DefaultFetchInterval),
		GitTimeout:            seconds(fc.GitTimeout, DefaultGitTimeout),
		AutoPush:              orDefault(fc.AutoPush, true),
		RespectGitignore:      orDefault(fc.RespectGitignore, true),
		CommitExistingOnStart: orDefault(fc.CommitExistingOnStart, true),
		RequeueOnFailure:      orDefault(fc.RequeueOnFailure, false),
		EnableNotifications:   orDefault(fc.EnableNotifications, true),
		NotifyOnCommit:        orDefault(fc.NotifyOnCommit, true),
		NotifyOnRemoteChanges: orDefault(fc.NotifyOnRemoteChanges, true),
		IgnorePatterns:        append([]string(nil), fc.IgnorePatterns...),
	}

	var err error
	if cfg.WatchDir, err = expandPath(orDefault(fc.WatchDirectory, DefaultDirectory)); err != nil {
		return nil, gitwatchErrors.NewConfigError("watch_directory", fc.WatchDirectory, err)
	}
	if cfg.RepoDir, err = expandPath(orDefault(fc.RepoDirectory, DefaultDirectory)); err != nil {
		return nil, gitwatchErrors.NewConfigError("repo_directory", fc.RepoDirectory, err)
	}
	for _, f := range fc.IgnoreFiles {
		expanded, err := expandPath(f)
		if err != nil {
			return nil, gitwatchErrors.NewConfigError("ignore_files", f, err)
		}
		cfg.IgnoreFiles = append(cfg.IgnoreFiles, expanded)
	}

	if fc.LogFile != nil && *fc.LogFile != "" {
		if cfg.LogFile, err = expandPath(*fc.LogFile); err != nil {
			return nil, gitwatchErrors.NewConfigError("log_file", *fc.LogFile, err)
		}
	} else {
		cfg.LogFile = DefaultLogFile(name, cfg.RepoDir)
	}

	return cfg, nil
}

// Create writes a new configuration with defaults and overrides. An
// existing file is never overwritten; created reports whether a file was
// written.
func (s *Store) Create(name string, o Overrides) (path string, created bool, err error) {
	if err := checkName(name); err != nil {
		return "", false, err
	}
	path = s.Path(name)
	if s.Exists(name) {
		return path, false, nil
	}

	fc := defaultFile(name)
	if o.WatchDir != "" {
		fc.WatchDirectory = ptr(o.WatchDir)
		if o.RepoDir == "" {
			fc.RepoDirectory = ptr(o.WatchDir)
		}
	}
	if o.RepoDir != "" {
		fc.RepoDirectory = ptr(o.RepoDir)
	}
	if o.CommitDelay != nil {
		fc.CommitDelay = o.CommitDelay
	}

	var buf bytes.Buffer
	buf.WriteString("# gitwatch configuration\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fc); err != nil {
		return "", false, err
	}
	if err := enc.Close(); err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", false, gitwatchErrors.Wrapf(err, "cannot create %s", s.dir)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return path, false, nil
		}
		return "", false, err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return "", false, err
	}
	return path, true, f.Close()
}

// EnsureGlobalIgnore writes the default global ignore file unless one
// exists.
func (s *Store) EnsureGlobalIgnore() (path string, created bool, err error) {
	path = s.GlobalIgnorePath()
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", false, gitwatchErrors.Wrapf(err, "cannot create %s", s.dir)
	}
	if err := os.WriteFile(path, []byte(DefaultGlobalIgnore), 0o644); err != nil {
		return "", false, err
	}
	return path, true, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return gitwatchErrors.NewConfigError("name", name,
			gitwatchErrors.Wrap(gitwatchErrors.ErrInvalidConfiguration, "configuration names must be plain file names"))
	}
	return nil
}
