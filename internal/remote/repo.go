package remote

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidRepo is returned when a repository identifier is not owner/name.
var ErrInvalidRepo = errors.New("invalid repository identifier")

// Repo identifies a remote repository.
type Repo struct {
	Owner string
	Name  string
}

// String returns the owner/name form.
func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo parses an "owner/name" identifier. Both parts must be non-empty
// and there must be exactly one separator.
func ParseRepo(s string) (Repo, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("%w: %q (want owner/name)", ErrInvalidRepo, s)
	}
	return Repo{Owner: parts[0], Name: parts[1]}, nil
}

// FileEntry is one blob from a remote tree listing.
type FileEntry struct {
	Path        string // repository-relative, slash-separated
	Name        string // basename of Path
	ContentID   string // blob sha
	DownloadURL string
	Size        int64
}

// Tree is a resolved, immutable listing of a branch.
type Tree struct {
	Commit  string
	TreeID  string
	Entries []FileEntry
}

// NewFileEntry builds a FileEntry, deriving Name from p.
func NewFileEntry(p, contentID string, size int64) FileEntry {
	return FileEntry{
		Path:      p,
		Name:      path.Base(p),
		ContentID: contentID,
		Size:      size,
	}
}
