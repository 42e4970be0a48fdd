// Package daemon wires one watch together: the submodule registry, the
// ignore matcher, the commit orchestrator, the debounce scheduler, the
// fsnotify watcher and the fetch loop.
//
// Run blocks until its context is cancelled. Watcher and fetch loop share an
// errgroup; when both have stopped the scheduler is closed with a bounded
// context so pending changes still get their final commit.
package daemon
