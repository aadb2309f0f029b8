package engine

import (
	"github.com/go-git/go-billy/v5"

	"github.com/prolet-tools/prolet/internal/cache"
	"github.com/prolet-tools/prolet/internal/remote"
)

// Matcher decides whether a remote path is a sync candidate.
type Matcher interface {
	Match(relPath string, size int64) bool
}

// SelectCandidates returns the entries accepted by m, in input order.
func SelectCandidates(entries []remote.FileEntry, m Matcher) []remote.FileEntry {
	out := make([]remote.FileEntry, 0, len(entries))
	for _, e := range entries {
		if m.Match(e.Path, e.Size) {
			out = append(out, e)
		}
	}
	return out
}

// Plan partitions candidates by index. Satisfied candidates need no network
// action; Pending ones must be fetched this run.
type Plan struct {
	Satisfied    []int
	Pending      []int
	PendingBytes int64
}

// PlanSync classifies every candidate. A candidate is satisfied only when the
// cache records its current content id AND the local file exists; a cache
// entry pointing at a deleted file does not count.
func PlanSync(fsys billy.Filesystem, entries []remote.FileEntry, known cache.Mapping) Plan {
	var p Plan
	for i, e := range entries {
		if id, ok := known[e.Path]; ok && id == e.ContentID && localFileExists(fsys, e.Path) {
			p.Satisfied = append(p.Satisfied, i)
			continue
		}
		p.Pending = append(p.Pending, i)
		p.PendingBytes += e.Size
	}
	return p
}

func localFileExists(fsys billy.Filesystem, p string) bool {
	info, err := fsys.Stat(p)
	// Unreadable counts as missing; the fetch surfaces the real error.
	return err == nil && info.Mode().IsRegular()
}
