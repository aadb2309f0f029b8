package filter

import (
	"path"
	"strings"
)

// DefaultExtensions are the content types mirrored when no allow-list is given.
var DefaultExtensions = []string{"txt", "md", "docx"}

// Chain decides which remote paths become sync candidates: an extension
// allow-list, exact basename exclusions, exclusion globs and optional size
// limits. All rules are pure predicates, so evaluation order is irrelevant.
type Chain struct {
	extensions map[string]struct{}
	names      map[string]struct{}
	globs      []*compiledPattern
	minSize    int64
	maxSize    int64
}

// NewChain creates a chain allowing the given extensions (with or without the
// leading dot, any case). With no arguments DefaultExtensions is used.
func NewChain(extensions ...string) *Chain {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	c := &Chain{
		extensions: make(map[string]struct{}, len(extensions)),
		names:      make(map[string]struct{}),
	}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			c.extensions[ext] = struct{}{}
		}
	}
	return c
}

// AddExclude adds an exclusion glob, matched against both the full path and
// the basename.
func (c *Chain) AddExclude(pattern string) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	c.globs = append(c.globs, cp)
	return nil
}

// AddExcludeName excludes every path whose basename is exactly name.
func (c *Chain) AddExcludeName(name string) {
	if name = strings.TrimSpace(name); name != "" {
		c.names[name] = struct{}{}
	}
}

// SetMinSize sets the minimum file size filter.
func (c *Chain) SetMinSize(n int64) {
	c.minSize = n
}

// SetMaxSize sets the maximum file size filter.
func (c *Chain) SetMaxSize(n int64) {
	c.maxSize = n
}

// Empty reports whether the chain has no exclusions and no size filters.
// The extension allow-list always applies.
func (c *Chain) Empty() bool {
	return len(c.names) == 0 && len(c.globs) == 0 && c.minSize == 0 && c.maxSize == 0
}

// Allowed reports whether relPath has an allowed extension.
func (c *Chain) Allowed(relPath string) bool {
	base := path.Base(relPath)
	ext := path.Ext(base)
	if ext == "" || ext == base {
		// ".md" is a dotfile without an extension.
		return false
	}
	_, ok := c.extensions[strings.ToLower(ext[1:])]
	return ok
}

// Excluded reports whether relPath is hit by any exclusion rule.
func (c *Chain) Excluded(relPath string) bool {
	base := path.Base(relPath)
	if _, ok := c.names[base]; ok {
		return true
	}
	for _, g := range c.globs {
		if g.match(relPath) || g.match(base) {
			return true
		}
	}
	return false
}

// Match returns true if the path should be INCLUDED. relPath is
// slash-separated and relative to the repository root.
func (c *Chain) Match(relPath string, size int64) bool {
	if !c.Allowed(relPath) {
		return false
	}
	if c.minSize > 0 && size < c.minSize {
		return false
	}
	if c.maxSize > 0 && size > c.maxSize {
		return false
	}
	return !c.Excluded(relPath)
}
