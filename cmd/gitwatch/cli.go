package main

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/bashhack/gitwatch/internal/config"
	"github.com/bashhack/gitwatch/internal/git"
	"github.com/bashhack/gitwatch/internal/service"
)

// Description is shown at the top of --help.
const Description = "Watch directories and turn bursts of edits into descriptive git commits."

// VersionInfo holds build information injected at link time.
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// Globals are the flags every command accepts.
type Globals struct {
	ConfigDir string `help:"Configuration directory (default $GITWATCH_CONFIG_DIR or ~/.config/gitwatch)." type:"path" placeholder:"DIR"`
	Debug     bool   `help:"Write structured debug logs to a file."`
	LogFile   string `help:"Debug log file (default: one per watch under ~/.local/share/gitwatch/logs)." type:"path" placeholder:"FILE"`
	Verbose   bool   `help:"Show warnings on the terminal." short:"v"`
}

// CLI is the command-line interface of gitwatch.
type CLI struct {
	Globals

	Init       InitCmd       `cmd:"" help:"Create a configuration and install the systemd unit template."`
	Run        RunCmd        `cmd:"" help:"Watch in the foreground (used by the systemd unit)."`
	Up         UpCmd         `cmd:"" help:"Enable and start the service of a configuration."`
	Down       DownCmd       `cmd:"" help:"Stop and disable the service of a configuration."`
	Status     StatusCmd     `cmd:"" help:"Show a configuration and its service state."`
	Ls         LsCmd         `cmd:"" help:"List configurations and their service state."`
	Logs       LogsCmd       `cmd:"" help:"Show the service logs of a configuration."`
	EditConfig EditConfigCmd `cmd:"" name:"edit-config" help:"Open a configuration in an editor."`
	EditIgnore EditIgnoreCmd `cmd:"" name:"edit-ignore" help:"Open the global ignore file in an editor."`
	TestIgnore TestIgnoreCmd `cmd:"" name:"test-ignore" help:"Show whether a path would be ignored."`
	Validate   ValidateCmd   `cmd:"" help:"Check a configuration without starting it."`
	Version    VersionCmd    `cmd:"" help:"Show version information."`
}

// NewParser builds the kong parser for cli.
func NewParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("gitwatch"),
		kong.Description(Description),
		kong.UsageOnError(),
	}, options...)
	return kong.New(cli, options...)
}

// Env carries what commands need from the outside world. Every field can be
// replaced in tests.
type Env struct {
	Ctx     context.Context
	Globals *Globals
	Version VersionInfo

	Stdout io.Writer
	Stderr io.Writer

	// Executor runs systemctl.
	Executor git.CommandExecutor
	// Attached runs editors and journalctl with the terminal attached.
	Attached service.Attached

	Getenv     func(string) string
	LookPath   func(string) (string, error)
	Executable func() (string, error)
	UnitDir    func() (string, error)

	mu      sync.Mutex
	cleanup func()
}

// NewEnv returns an Env wired to the real system.
func NewEnv(version VersionInfo, globals *Globals) *Env {
	return &Env{
		Ctx:        context.Background(),
		Globals:    globals,
		Version:    version,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Executor:   git.NewExecExecutor(config.DefaultGitTimeout),
		Attached:   service.RunAttached,
		Getenv:     os.Getenv,
		LookPath:   exec.LookPath,
		Executable: os.Executable,
		UnitDir:    service.UnitDir,
	}
}

// Store opens the configuration directory selected by --config-dir.
func (e *Env) Store() (*config.Store, error) {
	return config.NewStore(e.Globals.ConfigDir)
}

// Services returns a systemd manager for the user's unit directory.
func (e *Env) Services() (*service.Manager, error) {
	dir, err := e.UnitDir()
	if err != nil {
		return nil, err
	}
	return service.NewManager(e.Executor, dir), nil
}

// Editor returns the editor for edit-config and edit-ignore.
func (e *Env) Editor() string {
	return service.Editor(e.Getenv, e.LookPath)
}

// binary returns the executable the systemd unit should start.
func (e *Env) binary() string {
	if e.Executable != nil {
		if path, err := e.Executable(); err == nil {
			if resolved, err := filepath.EvalSymlinks(path); err == nil {
				return resolved
			}
			return path
		}
	}
	return "gitwatch"
}

// OnForcedExit registers what to run when a signal did not stop the
// command within the grace period.
func (e *Env) OnForcedExit(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanup = fn
}

func (e *Env) forcedExit() {
	e.mu.Lock()
	fn := e.cleanup
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}
