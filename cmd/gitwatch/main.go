package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Version information - injected at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// shutdownGrace is how long a command may take to stop after a signal
// before cleanup is forced.
const shutdownGrace = 5 * time.Second

func main() {
	var cli CLI
	env := NewEnv(VersionInfo{Version: version, Commit: commit, Date: date}, &cli.Globals)

	parser, err := NewParser(&cli)
	if err != nil {
		_, _ = fmt.Fprintf(env.Stderr, "❌ Error: %v\n", err)
		os.Exit(1)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.Ctx = ctx

	done := make(chan struct{})
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-c
		_, _ = fmt.Fprintf(env.Stdout, "\nReceived signal %v, stopping gitwatch...\n", sig)
		cancel()

		select {
		case <-done:
		case <-time.After(shutdownGrace):
			env.forcedExit()
			os.Exit(0)
		}
	}()

	err = kctx.Run(env)
	close(done)
	if err != nil {
		_, _ = fmt.Fprintf(env.Stderr, "❌ Error: %v\n", err)
		os.Exit(1)
	}
}
