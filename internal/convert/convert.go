// Package convert renders mirrored files into HTML fragments for the site
// builder. Only formats with a registered converter are rendered; the rest
// are reported as unavailable rather than silently degraded.
package convert

import (
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ErrUnavailable is matched by every *UnavailableError.
var ErrUnavailable = errors.New("converter unavailable")

// UnavailableError reports a format with no converter.
type UnavailableError struct {
	Ext string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("no converter for %q files", e.Ext)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Converter turns one document into an HTML fragment.
type Converter interface {
	Convert(r io.Reader) (string, error)
}

// Registry maps lowercase extensions (without the dot) to converters. It is
// fixed at construction.
type Registry struct {
	converters map[string]Converter
}

// NewRegistry returns a registry with the built-in converters plus extra.
// Entries in extra override built-ins.
func NewRegistry(extra map[string]Converter) *Registry {
	r := &Registry{converters: map[string]Converter{
		"txt": TextConverter{},
	}}
	for ext, c := range extra {
		r.converters[normalizeExt(ext)] = c
	}
	return r
}

// Capabilities lists the extensions that can be rendered, sorted.
func (r *Registry) Capabilities() []string {
	exts := make([]string, 0, len(r.converters))
	for ext := range r.converters {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Lookup returns the converter for relPath's extension.
func (r *Registry) Lookup(relPath string) (Converter, error) {
	ext := normalizeExt(path.Ext(relPath))
	c, ok := r.converters[ext]
	if !ok {
		return nil, &UnavailableError{Ext: ext}
	}
	return c, nil
}

// Result is the outcome of rendering one file.
type Result struct {
	Err    error
	Path   string
	Output string
}

// RenderAll renders each path in src to "<path>.html" in dst, in order.
// A failure for one path does not stop the others.
func (r *Registry) RenderAll(src, dst billy.Filesystem, paths []string) []Result {
	results := make([]Result, 0, len(paths))
	for _, p := range paths {
		res := Result{Path: p}
		res.Output, res.Err = r.render(src, dst, p)
		results = append(results, res)
	}
	return results
}

func (r *Registry) render(src, dst billy.Filesystem, p string) (string, error) {
	c, err := r.Lookup(p)
	if err != nil {
		return "", err
	}

	f, err := src.Open(p)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	fragment, err := c.Convert(f)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", p, err)
	}

	out := p + ".html"
	if err := dst.MkdirAll(path.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", out, err)
	}
	if err := util.WriteFile(dst, out, []byte(fragment), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

