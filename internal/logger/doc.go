// Package logger provides logging facilities for gitwatch.
//
// It separates two audiences. Debug records go through log/slog to a log file
// when file logging is enabled; user-facing lines go to stdout and stderr with
// a short emoji prefix, which is what ends up in the systemd journal when
// gitwatch runs as a service.
//
// # Core Components
//
// - Logger: the interface every other package logs through
// - DefaultLogger: the standard implementation
//
// # Structured attributes
//
// With attaches slog key/value pairs to every record a logger writes. The
// daemon uses it to tag records with the repository and the commit cycle,
// and git failures with the command, exit code and stderr:
//
//	log := logger.New(true, "/path/to/gitwatch.log", false)
//	cycleLog := log.With("repo", repoRoot, "cycle", cycleID)
//	cycleLog.Error("commit failed: %v", err)
//
// Error lines on stderr render the attributes inline so a failure is fully
// described even without a log file.
package logger
