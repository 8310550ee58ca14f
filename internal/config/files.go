package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher tests slash-separated relative paths against glob patterns.
// A leading "**/" also matches at the top level.
type Matcher struct {
	globs []glob.Glob
}

// NewMatcher compiles patterns with '/' as the separator.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		p = filepath.ToSlash(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compile glob %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
		if rest, ok := strings.CutPrefix(p, "**/"); ok {
			g, err := glob.Compile(rest, '/')
			if err != nil {
				return nil, fmt.Errorf("compile glob %q: %w", p, err)
			}
			m.globs = append(m.globs, g)
		}
	}
	return m, nil
}

// Match reports whether any pattern matches rel.
func (m *Matcher) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range m.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Empty reports whether no pattern was compiled.
func (m *Matcher) Empty() bool { return len(m.globs) == 0 }

// ResolveFiles expands lint inputs into a file list. Directories are walked
// and filtered by defaults.include and defaults.exclude relative to the
// directory; files named directly are kept unless excluded. The result
// keeps argument order and has no duplicates.
func (c *Config) ResolveFiles(inputs []string) ([]string, error) {
	include, err := NewMatcher(c.Defaults.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := NewMatcher(c.Defaults.Exclude)
	if err != nil {
		return nil, err
	}

	var result []string
	seen := make(map[string]bool)
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in, err)
		}
		if !info.IsDir() {
			if !exclude.Match(in) && !exclude.Match(filepath.Base(in)) {
				add(in)
			}
			continue
		}
		err = filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			rel, rerr := filepath.Rel(in, path)
			if rerr != nil || rel == "." {
				return nil
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") || exclude.Match(rel) || exclude.Match(rel+"/") {
					return filepath.SkipDir
				}
				return nil
			}
			if include.Match(rel) && !exclude.Match(rel) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", in, err)
		}
	}
	return result, nil
}
