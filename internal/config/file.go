package config

import (
	"time"
)

// fileConfig mirrors the YAML file. Pointer fields distinguish "absent"
// from the zero value so defaults only fill what the user left out.
type fileConfig struct {
	Name                  string   `yaml:"name,omitempty"`
	WatchDirectory        *string  `yaml:"watch_directory,omitempty"`
	RepoDirectory         *string  `yaml:"repo_directory,omitempty"`
	CommitDelay           *float64 `yaml:"commit_delay,omitempty"`
	FetchInterval         *float64 `yaml:"fetch_interval,omitempty"`
	GitTimeout            *float64 `yaml:"git_timeout,omitempty"`
	EnableNotifications   *bool    `yaml:"enable_notifications,omitempty"`
	NotifyOnCommit        *bool    `yaml:"notify_on_commit,omitempty"`
	NotifyOnRemoteChanges *bool    `yaml:"notify_on_remote_changes,omitempty"`
	AutoPush              *bool    `yaml:"auto_push,omitempty"`
	RespectGitignore      *bool    `yaml:"respect_gitignore,omitempty"`
	CommitExistingOnStart *bool    `yaml:"commit_existing_on_start,omitempty"`
	RequeueOnFailure      *bool    `yaml:"requeue_on_failure,omitempty"`
	IgnorePatterns        []string `yaml:"ignore_patterns"`
	IgnoreFiles           []string `yaml:"ignore_files"`
	LogFile               *string  `yaml:"log_file,omitempty"`
}

// defaultFile is what Create writes for a new configuration.
func defaultFile(name string) fileConfig {
	return fileConfig{
		Name:                  name,
		WatchDirectory:        ptr(DefaultDirectory),
		RepoDirectory:         ptr(DefaultDirectory),
		CommitDelay:           ptr(DefaultCommitDelay.Seconds()),
		FetchInterval:         ptr(DefaultFetchInterval.Seconds()),
		GitTimeout:            ptr(DefaultGitTimeout.Seconds()),
		EnableNotifications:   ptr(true),
		NotifyOnCommit:        ptr(true),
		NotifyOnRemoteChanges: ptr(true),
		AutoPush:              ptr(true),
		RespectGitignore:      ptr(true),
		CommitExistingOnStart: ptr(true),
		RequeueOnFailure:      ptr(false),
		IgnorePatterns:        []string{},
		IgnoreFiles:           []string{},
	}
}

func ptr[T any](v T) *T {
	return &v
}

func orDefault[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func seconds(p *float64, def time.Duration) time.Duration {
	if p == nil {
		return def
	}
	return time.Duration(*p * float64(time.Second))
}
