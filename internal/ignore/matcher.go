package ignore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"github.com/bashhack/gitwatch/internal/logger"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Layer names one source of ignore rules.
type Layer string

const (
	LayerGlobal     Layer = "global"
	LayerConfig     Layer = "config"
	LayerAdditional Layer = "additional"
	LayerGitignore  Layer = "gitignore"
	// LayerOutside marks paths that escape the repository root.
	LayerOutside Layer = "outside"
)

// GitignoreName is the per-directory ignore file consulted when gitignore
// support is on.
const GitignoreName = ".gitignore"

// Rule is one parsed ignore pattern.
type Rule struct {
	Pattern string
	Source  string
	// Negated rules (!pattern) are kept for diagnostics but never re-include
	// a path.
	Negated bool

	compiled gitignore.Pattern
}

// Result is the outcome of classifying one path.
type Result struct {
	Ignored bool
	Layer   Layer
	Pattern string
	Source  string
}

// String renders a match the way test-ignore prints it, e.g. "config: *.tmp".
func (r Result) String() string {
	if !r.Ignored {
		return "not ignored"
	}
	if r.Source != "" && r.Layer != LayerConfig {
		return fmt.Sprintf("%s: %s (%s)", r.Layer, r.Pattern, r.Source)
	}
	return fmt.Sprintf("%s: %s", r.Layer, r.Pattern)
}

// Options configures a Matcher.
type Options struct {
	// Root is the repository root every relative path is resolved against.
	Root string
	// GlobalFile is the user-wide ignore file. Empty disables the layer.
	GlobalFile string
	// Patterns are inline patterns from the configuration.
	Patterns []string
	// Files are additional ignore files.
	Files []string
	// RespectGitignore enables the per-directory .gitignore layer.
	RespectGitignore bool
	Logger           logger.Logger
}

type layerRules struct {
	layer Layer
	rules []Rule
}

// Matcher classifies repository-relative paths against the union of the
// global, config, additional and gitignore layers. A path is ignored iff at
// least one rule in any layer excludes it.
type Matcher struct {
	root             string
	static           []layerRules
	respectGitignore bool
	logger           logger.Logger

	mu   sync.RWMutex
	dirs map[string][]Rule
	// knownDirs remembers directories seen on disk so that a removed
	// directory is still classified as one.
	knownDirs map[string]bool
}

// New builds a Matcher, reading the global and additional files once.
// Unreadable files are reported as warnings and contribute no rules.
func New(opts Options) *Matcher {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	m := &Matcher{
		root:             opts.Root,
		respectGitignore: opts.RespectGitignore,
		logger:           log,
		dirs:             make(map[string][]Rule),
		knownDirs:        make(map[string]bool),
	}

	if opts.GlobalFile != "" {
		m.static = append(m.static, layerRules{LayerGlobal, m.readFile(LayerGlobal, opts.GlobalFile, nil)})
	}

	inline := make([]Rule, 0, len(opts.Patterns))
	for _, p := range opts.Patterns {
		if rule, ok := parseRule(p, nil, ""); ok {
			inline = append(inline, rule)
		}
	}
	m.static = append(m.static, layerRules{LayerConfig, inline})

	var additional []Rule
	for _, f := range opts.Files {
		additional = append(additional, m.readFile(LayerAdditional, f, nil)...)
	}
	m.static = append(m.static, layerRules{LayerAdditional, additional})

	return m
}

// Root returns the directory paths are resolved against.
func (m *Matcher) Root() string {
	return m.root
}

// Classify reports whether relPath is ignored. Whether the path is a
// directory is taken from the filesystem. A path that no longer exists is
// treated as a directory if the Matcher saw it as one before, and as a file
// otherwise. Absolute paths are made relative to the root first.
func (m *Matcher) Classify(relPath string) Result {
	return m.Match(relPath, m.isDir(relPath))
}

// Ignored is shorthand for Classify(relPath).Ignored.
func (m *Matcher) Ignored(relPath string) bool {
	return m.Classify(relPath).Ignored
}

// Match classifies relPath when the caller already knows whether it is a
// directory. It returns the first matching rule in layer order.
func (m *Matcher) Match(relPath string, isDir bool) Result {
	if isDir {
		m.rememberDir(relPath, true)
	}
	results := m.match(relPath, isDir, true)
	if len(results) == 0 {
		return Result{}
	}
	return results[0]
}

// Explain lists every rule that excludes relPath, across all layers.
func (m *Matcher) Explain(relPath string) []Result {
	return m.match(relPath, m.isDir(relPath), false)
}

// Invalidate forgets the cached .gitignore rules of dir (repository
// relative, "" or "." for the root). The next lookup re-reads the file.
func (m *Matcher) Invalidate(dir string) {
	key := cacheKey(dir)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dirs, key)
}

func (m *Matcher) match(relPath string, isDir bool, firstOnly bool) []Result {
	parts, ok := m.split(relPath)
	if !ok {
		return []Result{{Ignored: true, Layer: LayerOutside, Pattern: relPath}}
	}
	if len(parts) == 0 {
		return nil
	}

	var results []Result
	for _, lr := range m.static {
		for _, rule := range lr.rules {
			if excludes(rule, parts, isDir) {
				results = append(results, Result{Ignored: true, Layer: lr.layer, Pattern: rule.Pattern, Source: rule.Source})
				if firstOnly {
					return results
				}
			}
		}
	}

	if !m.respectGitignore {
		return results
	}

	for depth := 0; depth < len(parts); depth++ {
		for _, rule := range m.gitignoreRules(parts[:depth]) {
			if excludes(rule, parts, isDir) {
				results = append(results, Result{Ignored: true, Layer: LayerGitignore, Pattern: rule.Pattern, Source: rule.Source})
				if firstOnly {
					return results
				}
			}
		}
	}

	return results
}

func (m *Matcher) isDir(relPath string) bool {
	parts, ok := m.split(relPath)
	if !ok || len(parts) == 0 {
		return false
	}
	key := path.Join(parts...)
	info, err := os.Lstat(filepath.Join(m.root, filepath.FromSlash(key)))
	switch {
	case err == nil:
		m.rememberDir(key, info.IsDir())
		return info.IsDir()
	case os.IsNotExist(err):
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.knownDirs[key]
	default:
		return false
	}
}

func (m *Matcher) rememberDir(relPath string, isDir bool) {
	parts, ok := m.split(relPath)
	if !ok || len(parts) == 0 {
		return
	}
	key := path.Join(parts...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if isDir {
		m.knownDirs[key] = true
	} else {
		delete(m.knownDirs, key)
	}
}

func excludes(rule Rule, parts []string, isDir bool) bool {
	// Include results come from negated rules and are deliberately inert.
	return rule.compiled.Match(parts, isDir) == gitignore.Exclude
}

// split normalizes relPath into slash-separated components. ok is false when
// the path escapes the root.
func (m *Matcher) split(relPath string) ([]string, bool) {
	p := relPath
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(m.root, p)
		if err != nil {
			return nil, false
		}
		p = rel
	}
	p = path.Clean(filepath.ToSlash(p))
	if p == "." || p == "" {
		return []string{}, true
	}
	if p == ".." || strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/") {
		return nil, false
	}
	return strings.Split(p, "/"), true
}

// gitignoreRules returns the cached rules of the .gitignore in dir, reading
// it on first use.
func (m *Matcher) gitignoreRules(dir []string) []Rule {
	key := strings.Join(dir, "/")

	m.mu.RLock()
	rules, ok := m.dirs[key]
	m.mu.RUnlock()
	if ok {
		return rules
	}

	file := filepath.Join(m.root, filepath.FromSlash(key), GitignoreName)
	domain := append([]string(nil), dir...)
	rules = m.readFile(LayerGitignore, file, domain)

	m.mu.Lock()
	m.dirs[key] = rules
	m.mu.Unlock()

	return rules
}

// readFile parses an ignore file. A missing file yields no rules silently;
// any other read failure is logged as an IgnoreSourceError.
func (m *Matcher) readFile(layer Layer, file string, domain []string) []Rule {
	f, err := os.Open(file)
	if err != nil {
		if !os.IsNotExist(err) {
			m.warn(layer, file, err)
		}
		return nil
	}
	defer func() { _ = f.Close() }()

	rules, err := ParseRules(f, domain, file)
	if err != nil {
		m.warn(layer, file, err)
		return nil
	}
	return rules
}

func (m *Matcher) warn(layer Layer, file string, err error) {
	sourceErr := gitwatchErrors.NewIgnoreSourceError(string(layer), file, err)
	m.logger.With("layer", string(layer), "path", file).WarningToUser("%v; treating it as empty", sourceErr)
}

// ParseRules reads gitignore-formatted lines. Blank lines and comments are
// skipped. domain is the directory (as path components relative to the
// root) the rules are scoped to.
func ParseRules(r io.Reader, domain []string, source string) ([]Rule, error) {
	var rules []Rule
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if rule, ok := parseRule(scanner.Text(), domain, source); ok {
			rules = append(rules, rule)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func parseRule(line string, domain []string, source string) (Rule, bool) {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
		return Rule{}, false
	}
	return Rule{
		Pattern:  line,
		Source:   source,
		Negated:  strings.HasPrefix(line, "!"),
		compiled: gitignore.ParsePattern(line, domain),
	}, true
}

func cacheKey(dir string) string {
	dir = path.Clean(filepath.ToSlash(dir))
	if dir == "." || dir == "/" {
		return ""
	}
	return strings.TrimPrefix(dir, "/")
}
