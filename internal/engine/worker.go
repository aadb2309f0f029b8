package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/prolet-tools/prolet/internal/event"
	"github.com/prolet-tools/prolet/internal/metrics"
	"github.com/prolet-tools/prolet/internal/remote"
	"github.com/prolet-tools/prolet/internal/retry"
	"github.com/prolet-tools/prolet/internal/stats"
)

const tmpSuffix = ".prolet-tmp"

// Downloader opens the content behind a resolved download location.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// WorkerConfig controls worker behavior.
type WorkerConfig struct {
	// FS is shared by all workers and must be safe for concurrent use.
	// osfs is; memfs is not.
	FS         billy.Filesystem
	Downloader Downloader
	Events     chan<- event.Event
	Stats      *stats.Collector
	Metrics    *metrics.Sync
	Retry      retry.Config
	NumWorkers int
	BWLimit    int64 // bytes/sec across all workers; 0 = unlimited
}

// WorkerPool manages a fixed number of fetch workers.
type WorkerPool struct {
	cfg     WorkerConfig
	limiter *rate.Limiter
	tmp     *tmpRegistry
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(cfg WorkerConfig) (*WorkerPool, error) {
	if cfg.FS == nil {
		return nil, errors.New("worker pool: nil filesystem")
	}
	if cfg.Downloader == nil {
		return nil, errors.New("worker pool: nil downloader")
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = DefaultWorkers
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}

	wp := &WorkerPool{cfg: cfg, tmp: newTmpRegistry(cfg.FS)}
	if cfg.BWLimit > 0 {
		wp.limiter = NewBWLimiter(cfg.BWLimit)
	}
	return wp, nil
}

// Run starts workers that consume tasks and publish exactly one result per
// task. It blocks until tasks is closed and drained. results must be drained
// concurrently by the caller.
func (wp *WorkerPool) Run(ctx context.Context, tasks <-chan FetchTask, results chan<- fetchResult) {
	var wg sync.WaitGroup
	for id := range wp.cfg.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				results <- wp.fetch(ctx, id, task)
			}
		}()
	}
	wg.Wait()
}

// Close removes any temporary files left by interrupted fetches.
func (wp *WorkerPool) Close() {
	wp.tmp.cleanup()
}

func (wp *WorkerPool) fetch(ctx context.Context, workerID int, task FetchTask) fetchResult {
	start := time.Now()
	res := fetchResult{Index: task.Index, Path: task.Entry.Path, WorkerID: workerID}

	if err := ctx.Err(); err != nil {
		res.Err = err
	} else {
		emit(ctx, wp.cfg.Events, event.Event{
			Type:     event.FileStarted,
			Path:     task.Entry.Path,
			Size:     task.Entry.Size,
			WorkerID: workerID,
		})
		res.Err = retry.Do(ctx, wp.cfg.Retry, func() error {
			n, err := wp.fetchOnce(ctx, task.Entry)
			res.Bytes = n
			return err
		}, func(attempt int, err error) {
			wp.cfg.Stats.AddFilesRetried(1)
			wp.cfg.Metrics.Retried()
			emit(ctx, wp.cfg.Events, event.Event{
				Type:     event.FileRetry,
				Path:     task.Entry.Path,
				Attempt:  attempt,
				Error:    err,
				WorkerID: workerID,
			})
		})
	}
	res.Duration = time.Since(start)

	if res.Err != nil {
		wp.cfg.Stats.AddFilesFailed(1)
	} else {
		wp.cfg.Stats.AddFilesFetched(1)
		wp.cfg.Stats.AddBytesFetched(res.Bytes)
	}
	wp.cfg.Metrics.Fetched(res.Duration, res.Bytes, res.Err)
	return res
}

// fetchOnce downloads entry into a temporary sibling of its target and
// renames it into place. The target is never visible half-written.
func (wp *WorkerPool) fetchOnce(ctx context.Context, entry remote.FileEntry) (int64, error) {
	body, err := wp.cfg.Downloader.Download(ctx, entry.DownloadURL)
	if err != nil {
		return 0, classifyDownloadErr(err)
	}
	defer body.Close()

	fsys := wp.cfg.FS
	dir := path.Dir(entry.Path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create parent dir %s: %w", dir, err)
	}

	// Fixed-length name, so targets near NAME_MAX still fit.
	tmpPath := path.Join(dir, tmpName())
	wp.tmp.register(tmpPath)
	defer wp.tmp.release(tmpPath) // no-op if rename succeeded

	f, err := fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create tmp %s: %w", tmpPath, err)
	}

	var src io.Reader = body
	if wp.limiter != nil {
		src = newRateLimitedReader(ctx, src, wp.limiter)
	}
	rr := &readErrReader{r: src}
	verifier := newBlobVerifier(entry.ContentID, entry.Size)

	n, err := io.Copy(io.MultiWriter(f, verifier), rr)
	if err != nil {
		f.Close()
		if rr.err != nil {
			return n, retry.Transient(fmt.Errorf("read %s: %w", entry.Path, err))
		}
		return n, fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("close tmp %s: %w", tmpPath, err)
	}
	if err := verifier.verify(); err != nil {
		return n, fmt.Errorf("verify %s: %w", entry.Path, err)
	}

	if err := fsys.Rename(tmpPath, entry.Path); err != nil {
		return n, fmt.Errorf("rename %s -> %s: %w", tmpPath, entry.Path, err)
	}
	return n, nil
}

// tmpName returns a fixed-length hidden name for an in-progress fetch.
func tmpName() string {
	return "." + uuid.New().String()[:8] + tmpSuffix
}

// classifyDownloadErr marks network failures and temporary statuses as
// transient. Cancellation and permanent statuses (404, 403) are returned as is.
func classifyDownloadErr(err error) error {
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		if temp.Temporary() {
			return retry.Transient(err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return retry.Transient(err)
}

// readErrReader remembers the last read error so that a failed copy can be
// attributed to the network side or the filesystem side.
type readErrReader struct {
	r   io.Reader
	err error
}

func (r *readErrReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF {
		r.err = err
	}
	return n, err
}
