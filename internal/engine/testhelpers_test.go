package engine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/prolet-tools/prolet/internal/remote"
	"github.com/prolet-tools/prolet/internal/remote/remotetest"
	"github.com/prolet-tools/prolet/internal/retry"
)

// fakeDownloader serves content keyed by download URL. Failures can be
// injected per URL, either permanently or for the first n attempts.
type fakeDownloader struct {
	mu       sync.Mutex
	content  map[string][]byte
	status   map[string]int
	failures map[string]int
	calls    map[string]int
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{
		content:  make(map[string][]byte),
		status:   make(map[string]int),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

// add registers p with content and returns its candidate entry.
func (d *fakeDownloader) add(p string, content []byte) remote.FileEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	url := "fake://" + p
	d.content[url] = content
	e := remote.NewFileEntry(p, remotetest.BlobID(content), int64(len(content)))
	e.DownloadURL = url
	return e
}

// fail makes the first n downloads of p answer with status; n < 0 fails forever.
func (d *fakeDownloader) fail(p string, status, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status["fake://"+p] = status
	d.failures["fake://"+p] = n
}

func (d *fakeDownloader) Download(_ context.Context, url string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[url]++
	if n := d.failures[url]; n != 0 {
		if n > 0 {
			d.failures[url] = n - 1
		}
		return nil, &remote.StatusError{URL: url, StatusCode: d.status[url]}
	}
	content, ok := d.content[url]
	if !ok {
		return nil, &remote.StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (d *fakeDownloader) callsFor(p string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls["fake://"+p]
}

func (d *fakeDownloader) totalCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		n += c
	}
	return n
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}
}

func readFile(t *testing.T, fsys billy.Filesystem, p string) string {
	t.Helper()
	b, err := util.ReadFile(fsys, p)
	require.NoError(t, err)
	return string(b)
}

func writeFile(t *testing.T, fsys billy.Filesystem, p, content string) {
	t.Helper()
	require.NoError(t, util.WriteFile(fsys, p, []byte(content), 0o644))
}

// tmpFiles lists leftover fetch temporaries directly inside dir.
func tmpFiles(t *testing.T, fsys billy.Filesystem, dir string) []string {
	t.Helper()
	infos, err := fsys.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, info := range infos {
		if strings.HasSuffix(info.Name(), ".prolet-tmp") {
			out = append(out, info.Name())
		}
	}
	return out
}

// lockedFS serializes filesystem-level calls on a memfs, whose internal maps
// are not safe for the worker pool's concurrent MkdirAll/OpenFile/Rename.
// Open files are owned by one worker each and need no lock.
type lockedFS struct {
	billy.Filesystem
	mu sync.Mutex
}

func newMemFS() billy.Filesystem { return &lockedFS{Filesystem: memfs.New()} }

func (l *lockedFS) Create(name string) (billy.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Filesystem.Create(name)
}

func (l *lockedFS) Open(name string) (billy.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Filesystem.Open(name)
}

func (l *lockedFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Filesystem.OpenFile(name, flag, perm)
}

func (l *lockedFS) Stat(name string) (os.FileInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Filesystem.Stat(name)
}

func (l *lockedFS) Lstat(name string) (os.FileInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Filesystem.Lstat(name)
}

func (l *lockedFS) Rename(from, to string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Filesystem.Rename(from, to)
}

func (l *lockedFS) Remove(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Filesystem.Remove(name)
}

func (l *lockedFS) MkdirAll(name string, perm os.FileMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Filesystem.MkdirAll(name, perm)
}

func (l *lockedFS) ReadDir(name string) ([]os.FileInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Filesystem.ReadDir(name)
}

func (l *lockedFS) TempFile(dir, prefix string) (billy.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Filesystem.TempFile(dir, prefix)
}
