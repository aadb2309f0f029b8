package engine

import (
	"sync"

	"github.com/go-git/go-billy/v5"
)

// tmpRegistry tracks in-progress temporary files so a pool can remove them
// if it is closed mid-fetch.
type tmpRegistry struct {
	fs    billy.Filesystem
	mu    sync.Mutex
	paths map[string]struct{}
}

func newTmpRegistry(fs billy.Filesystem) *tmpRegistry {
	return &tmpRegistry{fs: fs, paths: make(map[string]struct{})}
}

// register adds a temporary file path.
func (r *tmpRegistry) register(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[path] = struct{}{}
}

// release forgets path and removes it; a no-op after a successful rename.
func (r *tmpRegistry) release(path string) {
	r.mu.Lock()
	delete(r.paths, path)
	r.mu.Unlock()
	_ = r.fs.Remove(path)
}

// cleanup removes all registered temporary files.
func (r *tmpRegistry) cleanup() {
	r.mu.Lock()
	paths := make([]string, 0, len(r.paths))
	for p := range r.paths {
		paths = append(paths, p)
	}
	r.paths = make(map[string]struct{})
	r.mu.Unlock()

	for _, p := range paths {
		_ = r.fs.Remove(p)
	}
}

// pending returns the number of registered paths.
func (r *tmpRegistry) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}
