// Package watch turns fsnotify events into scheduler changes.
//
// fsnotify does not watch recursively, so a Watcher registers every
// directory of the tree at startup and every directory created later. It
// never descends into .git or into directories the ignore matcher excludes.
// Every event is recorded under the main repository root with a path
// relative to it; deciding which submodule a path belongs to is left to the
// commit orchestrator.
package watch
