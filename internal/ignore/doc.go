// Package ignore decides which changed paths gitwatch cares about.
//
// A Matcher unions four layers of gitignore-style rules: the user's global
// ignore file, inline patterns from the configuration, additional ignore
// files, and (optionally) every .gitignore from the repository root down to
// the path's directory. A path is ignored when any rule in any layer
// excludes it; layers never override one another.
//
// Pattern syntax is parsed by go-git's gitignore package: a trailing slash
// restricts a pattern to directories (and so to everything below them), a
// slash elsewhere anchors the pattern to the directory declaring it, and
// `*`, `?`, character classes and `**` behave as in git.
//
// Negated patterns (`!pattern`) are accepted but never re-include a path.
// This is a known limitation: with union semantics there is no ordering in
// which a negation could apply.
//
// Parsed .gitignore files are cached per directory; call Invalidate when one
// changes.
package ignore
