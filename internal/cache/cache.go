// Package cache persists the path → content id mapping recorded by the last
// sync. It is the only source of truth for skip/fetch decisions.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
)

// FileName is the cache file location relative to the output root.
const FileName = "cache.json"

// Mapping maps repository-relative paths to the content id last synced.
type Mapping map[string]string

// Clone returns an independent copy of m. A nil mapping clones to empty.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	maps.Copy(out, m)
	return out
}

// Equal reports whether m and o hold the same entries.
func (m Mapping) Equal(o Mapping) bool {
	return maps.Equal(m, o)
}

// LoadError reports a cache file that exists but could not be used. The
// mapping returned alongside it is empty and usable.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cache %s unusable, starting empty: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// CommitError reports a failure to persist the mapping. Nothing synced is
// wrong, but the next run will re-fetch.
type CommitError struct {
	Path string
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit cache %s: %v", e.Path, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Store reads and writes the cache file inside a filesystem rooted at the
// output directory.
type Store struct {
	fs   billy.Filesystem
	name string
}

// NewStore returns a Store for FileName in fs.
func NewStore(fs billy.Filesystem) *Store {
	return &Store{fs: fs, name: FileName}
}

// Path returns the cache file path, joined onto the filesystem root.
func (s *Store) Path() string {
	return s.fs.Join(s.fs.Root(), s.name)
}

// Load reads the mapping. It never fails hard: a missing or empty file yields
// an empty mapping and nil; an unreadable or malformed file yields an empty
// mapping and a *LoadError to be surfaced as a warning.
func (s *Store) Load() (Mapping, error) {
	data, err := util.ReadFile(s.fs, s.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Mapping{}, nil
		}
		return Mapping{}, &LoadError{Path: s.Path(), Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Mapping{}, nil
	}

	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return Mapping{}, &LoadError{Path: s.Path(), Err: err}
	}
	if m == nil {
		m = Mapping{}
	}
	return m, nil
}

// Commit replaces the persisted mapping with m. The file is written to a
// temporary sibling and renamed into place, so a crash never leaves a
// half-written cache behind.
func (s *Store) Commit(m Mapping) error {
	if m == nil {
		m = Mapping{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &CommitError{Path: s.Path(), Err: err}
	}
	data = append(data, '\n')

	dir := path.Dir(s.name)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return &CommitError{Path: s.Path(), Err: err}
	}
	tmpName := s.fs.Join(dir, fmt.Sprintf(".%s.%s.tmp", path.Base(s.name), uuid.New().String()[:8]))

	if err := s.writeTmp(tmpName, data); err != nil {
		_ = s.fs.Remove(tmpName)
		return &CommitError{Path: s.Path(), Err: err}
	}
	if err := s.fs.Rename(tmpName, s.name); err != nil {
		_ = s.fs.Remove(tmpName)
		return &CommitError{Path: s.Path(), Err: err}
	}
	return nil
}

func (s *Store) writeTmp(name string, data []byte) error {
	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create tmp %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write tmp %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close tmp %s: %w", name, err)
	}
	return nil
}
