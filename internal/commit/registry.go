package commit

import (
	"context"
	"path"
	"sort"
	"strings"
)

// SubmoduleLister lists submodule roots relative to a working tree.
type SubmoduleLister interface {
	Submodules(ctx context.Context) ([]string, error)
}

// Registry holds the submodule roots of one working tree, relative to it,
// nested submodules included. It is read-only once built.
type Registry struct {
	roots []string
}

// NewRegistry builds a Registry from slash-separated relative paths.
func NewRegistry(roots []string) *Registry {
	seen := make(map[string]bool, len(roots))
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		r = path.Clean(strings.Trim(r, "/"))
		if r == "." || r == "" || seen[r] {
			continue
		}
		seen[r] = true
		clean = append(clean, r)
	}
	sort.Strings(clean)
	return &Registry{roots: clean}
}

// LoadRegistry asks git for the submodules of a working tree.
func LoadRegistry(ctx context.Context, lister SubmoduleLister) (*Registry, error) {
	roots, err := lister.Submodules(ctx)
	if err != nil {
		return nil, err
	}
	return NewRegistry(roots), nil
}

// Roots returns every registered root, sorted.
func (r *Registry) Roots() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.roots...)
}

// Top returns the roots not nested inside another registered root.
func (r *Registry) Top() []string {
	var top []string
	for _, root := range r.Roots() {
		if _, nested := r.owner(root, root); !nested {
			top = append(top, root)
		}
	}
	return top
}

// Contains reports whether root is a registered submodule root.
func (r *Registry) Contains(root string) bool {
	if r == nil {
		return false
	}
	i := sort.SearchStrings(r.roots, root)
	return i < len(r.roots) && r.roots[i] == root
}

// Owner returns the shallowest registered root containing rel, and rel made
// relative to that root ("" when rel is the root itself).
func (r *Registry) Owner(rel string) (root, inner string, ok bool) {
	rel = path.Clean(rel)
	root, ok = r.owner(rel, "")
	if !ok {
		return "", rel, false
	}
	if rel == root {
		return root, "", true
	}
	return root, strings.TrimPrefix(rel, root+"/"), true
}

// owner finds the shallowest root containing rel, skipping exclude.
func (r *Registry) owner(rel, exclude string) (string, bool) {
	if r == nil {
		return "", false
	}
	best := ""
	for _, root := range r.roots {
		if root == exclude {
			continue
		}
		if rel != root && !strings.HasPrefix(rel, root+"/") {
			continue
		}
		if best == "" || strings.Count(root, "/") < strings.Count(best, "/") {
			best = root
		}
	}
	return best, best != ""
}

// Sub returns the registry of the submodule at root: the registered roots
// below it, re-based to be relative to it.
func (r *Registry) Sub(root string) *Registry {
	var nested []string
	for _, candidate := range r.Roots() {
		if strings.HasPrefix(candidate, root+"/") {
			nested = append(nested, strings.TrimPrefix(candidate, root+"/"))
		}
	}
	return NewRegistry(nested)
}

// Partition splits paths between the submodules that own them and the tree
// itself. Every submodule touched appears as a key, even when the only path
// was the submodule root.
func (r *Registry) Partition(paths []string) (bySubmodule map[string][]string, own []string) {
	bySubmodule = make(map[string][]string)
	for _, p := range paths {
		root, inner, ok := r.Owner(p)
		if !ok {
			own = append(own, p)
			continue
		}
		if inner == "" {
			if _, seen := bySubmodule[root]; !seen {
				bySubmodule[root] = nil
			}
			continue
		}
		bySubmodule[root] = append(bySubmodule[root], inner)
	}
	return bySubmodule, own
}
