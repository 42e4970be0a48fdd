package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bashhack/gitwatch/internal/config"
	"github.com/bashhack/gitwatch/internal/daemon"
	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"github.com/bashhack/gitwatch/internal/lock"
	"github.com/bashhack/gitwatch/internal/service"
)

// InitCmd creates a configuration.
type InitCmd struct {
	Name        string  `arg:"" optional:"" default:"config" help:"Configuration name."`
	WatchDir    string  `help:"Directory to watch." short:"w" placeholder:"DIR"`
	RepoDir     string  `help:"Git repository the watched directory belongs to." short:"r" placeholder:"DIR"`
	CommitDelay float64 `help:"Seconds of quiet before changes are committed." short:"d" placeholder:"SECONDS"`
}

// Run executes init
func (c *InitCmd) Run(env *Env) error {
	store, err := env.Store()
	if err != nil {
		return err
	}

	ignorePath, _, err := store.EnsureGlobalIgnore()
	if err != nil {
		return gitwatchErrors.Wrap(err, "failed to write global ignore file")
	}

	overrides := config.Overrides{WatchDir: c.WatchDir, RepoDir: c.RepoDir}
	if c.CommitDelay > 0 {
		overrides.CommitDelay = &c.CommitDelay
	}
	path, created, err := store.Create(c.Name, overrides)
	if err != nil {
		return err
	}
	if !created {
		env.printf("ℹ️  Config '%s' already exists, leaving it unchanged\n", c.Name)
	}

	if services, err := env.Services(); err != nil {
		env.printf("⚠️  Could not locate the systemd unit directory: %v\n", err)
	} else {
		unit, written, err := services.InstallTemplate(env.Ctx, env.binary(), userBinDir())
		switch {
		case err != nil && written:
			env.printf("⚠️  Service file created but systemd was not reloaded: %v\n", err)
		case err != nil:
			env.printf("⚠️  Could not install systemd service template: %v\n", err)
		case written:
			env.printf("✅ Installed systemd service template: %s\n", unit)
		}
	}

	env.printf("✅ Initialized gitwatch configuration: %s\n", c.Name)
	env.printf("   Config file: %s\n", path)
	env.printf("   Global ignore: %s\n", ignorePath)
	env.printf("\n")
	env.printf("Next steps:\n")
	env.printf("  1. Edit config: gitwatch edit-config %s\n", c.Name)
	env.printf("  2. Start watching: gitwatch up %s\n", c.Name)
	return nil
}

// RunCmd watches in the foreground.
type RunCmd struct {
	Name string `arg:"" help:"Configuration name."`
}

// Run executes run
func (c *RunCmd) Run(env *Env) error {
	store, err := env.Store()
	if err != nil {
		return err
	}
	cfg, err := store.Load(c.Name)
	if err != nil {
		return err
	}

	app := NewApp(AppOptions{
		Config:  cfg,
		Debug:   env.Globals.Debug,
		LogFile: env.Globals.LogFile,
		Verbose: env.Globals.Verbose,
		Stdout:  env.Stdout,
		Stderr:  env.Stderr,
	})
	env.OnForcedExit(app.CleanupOnSignal)

	if err := app.Run(env.Ctx); err != nil && !errors.Is(err, context.Canceled) {
		_ = app.Close()
		return err
	}

	if app.Watcher != nil {
		app.Watcher.PrintSummary()
	}
	return app.Close()
}

// UpCmd enables and starts a service.
type UpCmd struct {
	Name string `arg:"" optional:"" default:"config" help:"Configuration name."`
}

// Run executes up
func (c *UpCmd) Run(env *Env) error {
	cfg, err := env.loadExisting(c.Name)
	if err != nil {
		return err
	}
	if err := env.validate(cfg); err != nil {
		return err
	}

	services, err := env.Services()
	if err != nil {
		return err
	}
	if err := services.Up(env.Ctx, c.Name); err != nil {
		return gitwatchErrors.Wrap(err, "failed to start service")
	}

	env.printf("✅ Started gitwatch service: %s\n", service.UnitName(c.Name))
	env.printf("   View logs: gitwatch logs %s\n", c.Name)
	env.printf("   Check status: gitwatch status %s\n", c.Name)
	return nil
}

// DownCmd stops and disables a service.
type DownCmd struct {
	Name string `arg:"" optional:"" default:"config" help:"Configuration name."`
}

// Run executes down
func (c *DownCmd) Run(env *Env) error {
	services, err := env.Services()
	if err != nil {
		return err
	}
	if err := services.Down(env.Ctx, c.Name); err != nil {
		return gitwatchErrors.Wrap(err, "failed to stop service")
	}
	env.printf("✅ Stopped gitwatch service: %s\n", service.UnitName(c.Name))
	return nil
}

// StatusCmd shows one configuration.
type StatusCmd struct {
	Name string `arg:"" optional:"" default:"config" help:"Configuration name."`
}

// Run executes status
func (c *StatusCmd) Run(env *Env) error {
	cfg, err := env.loadExisting(c.Name)
	if err != nil {
		return err
	}
	services, err := env.Services()
	if err != nil {
		return err
	}
	state := services.State(env.Ctx, c.Name)

	env.printf("Config: %s\n", c.Name)
	env.printf("  Watch directory: %s\n", cfg.WatchDir)
	env.printf("  Repo directory: %s\n", cfg.RepoDir)
	env.printf("  Service: %s\n", mark(state.Active, "ACTIVE", "INACTIVE"))
	env.printf("  Enabled: %s\n", mark(state.Enabled, "YES", "NO"))
	if pid := lock.Holder(filepath.Join(os.TempDir(), lock.FileName(cfg.RepoDir))); pid > 0 {
		env.printf("  Running: PID %d\n", pid)
	}

	if out, err := services.Describe(env.Ctx, c.Name); err == nil && out != "" {
		env.printf("\nSystemd status:\n%s\n", strings.TrimRight(out, "\n"))
	}
	return nil
}

// LsCmd lists configurations.
type LsCmd struct{}

// Run executes ls
func (c *LsCmd) Run(env *Env) error {
	store, err := env.Store()
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		env.printf("No configurations found.\n")
		env.printf("Run 'gitwatch init' to create your first configuration.\n")
		return nil
	}

	services, err := env.Services()
	if err != nil {
		return err
	}

	env.printf("Available configurations:\n\n")
	for _, name := range names {
		state := services.State(env.Ctx, name)
		enabled := "disabled"
		if state.Enabled {
			enabled = "enabled"
		}
		env.printf("  %-15s %s (%s)\n", name, mark(state.Active, "ACTIVE", "INACTIVE"), enabled)

		if cfg, err := store.Load(name); err != nil {
			env.printf("    Error: %v\n", err)
		} else {
			env.printf("    Watch: %s\n", cfg.WatchDir)
		}
		env.printf("\n")
	}
	return nil
}

// LogsCmd shows the journal of a service.
type LogsCmd struct {
	Name   string `arg:"" optional:"" default:"config" help:"Configuration name."`
	Follow bool   `help:"Follow log output." short:"f"`
	Lines  int    `help:"Number of lines to show." short:"n" default:"50"`
}

// Run executes logs
func (c *LogsCmd) Run(env *Env) error {
	args := service.JournalArgs(c.Name, c.Lines, c.Follow)
	err := env.Attached(env.Ctx, args[0], args[1:]...)
	if err != nil && env.Ctx.Err() != nil {
		// Interrupting journalctl -f is the normal way out.
		return nil
	}
	if err != nil {
		return gitwatchErrors.Wrap(err, "failed to show logs")
	}
	return nil
}

// EditConfigCmd opens a configuration file in an editor.
type EditConfigCmd struct {
	Name string `arg:"" optional:"" default:"config" help:"Configuration name."`
}

// Run executes edit-config
func (c *EditConfigCmd) Run(env *Env) error {
	store, err := env.Store()
	if err != nil {
		return err
	}
	if !store.Exists(c.Name) {
		return notInitialized(c.Name)
	}
	return env.edit(store.Path(c.Name))
}

// EditIgnoreCmd opens the global ignore file in an editor.
type EditIgnoreCmd struct{}

// Run executes edit-ignore
func (c *EditIgnoreCmd) Run(env *Env) error {
	store, err := env.Store()
	if err != nil {
		return err
	}
	path, _, err := store.EnsureGlobalIgnore()
	if err != nil {
		return err
	}
	return env.edit(path)
}

// TestIgnoreCmd classifies one path.
type TestIgnoreCmd struct {
	Path string `arg:"" help:"Path to test, absolute or relative to the repository."`
	Name string `arg:"" optional:"" default:"config" help:"Configuration name."`
}

// Run executes test-ignore
func (c *TestIgnoreCmd) Run(env *Env) error {
	cfg, err := env.loadExisting(c.Name)
	if err != nil {
		return err
	}

	matcher := daemon.Matcher(cfg, nil)
	results := matcher.Explain(c.Path)

	env.printf("File: %s\n", c.Path)
	env.printf("Config: %s\n", c.Name)
	if len(results) == 0 {
		env.printf("Result: ✅ NOT IGNORED\n")
		return nil
	}
	env.printf("Result: ❌ IGNORED\n")
	env.printf("Matched by:\n")
	for _, r := range results {
		env.printf("  - %s\n", r)
	}
	return nil
}

// ValidateCmd checks a configuration.
type ValidateCmd struct {
	Name string `arg:"" optional:"" default:"config" help:"Configuration name."`
}

// Run executes validate
func (c *ValidateCmd) Run(env *Env) error {
	cfg, err := env.loadExisting(c.Name)
	if err != nil {
		return err
	}
	if err := env.validate(cfg); err != nil {
		return err
	}
	env.printf("✅ Config '%s' is valid\n", c.Name)
	return nil
}

// VersionCmd prints build information.
type VersionCmd struct{}

// Run executes version
func (c *VersionCmd) Run(env *Env) error {
	env.printf("gitwatch %s (%s) built on %s\n", env.Version.Version, env.Version.Commit, env.Version.Date)
	return nil
}

func (e *Env) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.Stdout, format, args...)
}

// loadExisting loads name, pointing at init when it does not exist.
func (e *Env) loadExisting(name string) (*config.WatchConfig, error) {
	store, err := e.Store()
	if err != nil {
		return nil, err
	}
	if !store.Exists(name) {
		return nil, notInitialized(name)
	}
	return store.Load(name)
}

// validate prints warnings and every error of cfg.
func (e *Env) validate(cfg *config.WatchConfig) error {
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		e.printf("⚠️  %s\n", w)
	}
	if err == nil {
		return nil
	}

	e.printf("❌ Config '%s' is invalid:\n", cfg.Name)
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, problem := range joined.Unwrap() {
			e.printf("   %v\n", problem)
		}
	} else {
		e.printf("   %v\n", err)
	}
	return err
}

func (e *Env) edit(path string) error {
	editor := e.Editor()
	if err := e.Attached(e.Ctx, editor, path); err != nil {
		return gitwatchErrors.Wrapf(err, "failed to open %s with %s", path, editor)
	}
	return nil
}

func notInitialized(name string) error {
	return gitwatchErrors.Wrapf(gitwatchErrors.ErrConfigNotFound,
		"config '%s' does not exist, run 'gitwatch init %s' first", name, name)
}

func mark(ok bool, yes, no string) string {
	if ok {
		return "✅ " + yes
	}
	return "❌ " + no
}

// userBinDir is added to the unit's PATH so per-user installs are found.
func userBinDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "bin")
}
