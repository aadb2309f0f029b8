package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/prolet-tools/prolet/internal/cache"
	"github.com/prolet-tools/prolet/internal/event"
	"github.com/prolet-tools/prolet/internal/metrics"
	"github.com/prolet-tools/prolet/internal/remote"
	"github.com/prolet-tools/prolet/internal/retry"
	"github.com/prolet-tools/prolet/internal/stats"
)

// DefaultWorkers is the fetch concurrency used when Config.Workers is unset.
const DefaultWorkers = 10

// Config describes one sync of an already filtered candidate list.
type Config struct {
	// FS is the output root. Workers write to it in parallel, so it must be
	// safe for concurrent use.
	FS         billy.Filesystem
	Cache      *cache.Store
	Downloader Downloader
	Events     chan<- event.Event
	Stats      *stats.Collector
	Metrics    *metrics.Sync
	Entries    []remote.FileEntry
	Retry      retry.Config
	Workers    int
	BWLimit    int64
	DryRun     bool
}

// Outcome is the result of a sync.
type Outcome struct {
	CacheErr error
	Paths    []string
	Failures []Failure
	Stats    stats.Snapshot
	Cached   int
	Fetched  int
}

// Complete reports whether every candidate is present locally.
func (o Outcome) Complete() bool { return len(o.Failures) == 0 }

// Partial reports whether some, but not necessarily all, candidates failed.
func (o Outcome) Partial() bool { return len(o.Failures) > 0 }

// Run synchronizes cfg.Entries into cfg.FS, blocking until complete.
// Per-file failures never abort siblings; they are reported in the outcome.
func Run(ctx context.Context, cfg Config) Outcome {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewStore(cfg.FS)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	var out Outcome
	known, loadErr := cfg.Cache.Load()
	if loadErr != nil {
		slog.Warn("cache unreadable, starting empty", "error", loadErr)
		cfg.Metrics.CacheError()
		emit(ctx, cfg.Events, event.Event{Type: event.CacheWarning, Path: cfg.Cache.Path(), Error: loadErr})
		out.CacheErr = loadErr
	}

	plan := PlanSync(cfg.FS, cfg.Entries, known)
	cfg.Stats.SetPlan(int64(len(cfg.Entries)), int64(len(plan.Satisfied)), int64(len(plan.Pending)), plan.PendingBytes)
	cfg.Metrics.Candidates(len(cfg.Entries))
	cfg.Metrics.Cached(len(plan.Satisfied))
	emit(ctx, cfg.Events, event.Event{
		Type:      event.PlanComplete,
		Total:     len(cfg.Entries),
		Pending:   len(plan.Pending),
		TotalSize: plan.PendingBytes,
	})

	next := make(cache.Mapping, len(cfg.Entries))
	done := make([]bool, len(cfg.Entries))
	for _, i := range plan.Satisfied {
		e := cfg.Entries[i]
		next[e.Path] = e.ContentID
		done[i] = true
		emit(ctx, cfg.Events, event.Event{Type: event.FileCached, Path: e.Path, Size: e.Size})
	}
	out.Cached = len(plan.Satisfied)

	switch {
	case cfg.DryRun:
		for _, i := range plan.Pending {
			e := cfg.Entries[i]
			emit(ctx, cfg.Events, event.Event{Type: event.FilePending, Path: e.Path, Size: e.Size})
		}
		out.Paths = localPaths(cfg.FS, cfg.Entries, done)
		out.Stats = cfg.Stats.Snapshot()
		return out
	case len(plan.Pending) > 0:
		failures := fetchPending(ctx, cfg, plan.Pending, next, done)
		out.Failures = failures
		out.Fetched = len(plan.Pending) - len(failures)
	}

	// Nothing new and nothing dropped means the file on disk is already right,
	// unless loading it failed.
	if len(plan.Pending) > 0 || loadErr != nil || !next.Equal(known) {
		if err := cfg.Cache.Commit(next); err != nil {
			slog.Warn("cache commit failed", "error", err)
			cfg.Metrics.CacheError()
			emit(ctx, cfg.Events, event.Event{Type: event.CacheWarning, Path: cfg.Cache.Path(), Error: err})
			out.CacheErr = errors.Join(out.CacheErr, err)
		} else {
			emit(ctx, cfg.Events, event.Event{Type: event.CacheCommitted, Path: cfg.Cache.Path(), Total: len(next)})
		}
	}

	out.Paths = localPaths(cfg.FS, cfg.Entries, done)
	out.Stats = cfg.Stats.Snapshot()
	cfg.Metrics.RunFinished(time.Now(), out.Complete())
	return out
}

// fetchPending runs the worker pool over the pending indices. It is the only
// writer of next and done while the pool is running.
func fetchPending(ctx context.Context, cfg Config, pending []int, next cache.Mapping, done []bool) []Failure {
	wp, err := NewWorkerPool(WorkerConfig{
		FS:         cfg.FS,
		Downloader: cfg.Downloader,
		Events:     cfg.Events,
		Stats:      cfg.Stats,
		Metrics:    cfg.Metrics,
		Retry:      cfg.Retry,
		NumWorkers: min(cfg.Workers, len(pending)),
		BWLimit:    cfg.BWLimit,
	})
	if err != nil {
		failures := make([]Failure, len(pending))
		for n, i := range pending {
			failures[n] = Failure{Path: cfg.Entries[i].Path, Err: err}
		}
		return failures
	}
	defer wp.Close()

	tasks := make(chan FetchTask)
	results := make(chan fetchResult, cfg.Workers)

	go func() {
		defer close(tasks)
		for _, i := range pending {
			select {
			case tasks <- FetchTask{Entry: cfg.Entries[i], Index: i}:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wp.Run(ctx, tasks, results)
		close(results)
	}()

	settled := make(map[int]bool, len(pending))
	var failed []fetchResult
	for res := range results {
		settled[res.Index] = true
		e := cfg.Entries[res.Index]
		if res.Err != nil {
			failed = append(failed, res)
			emit(ctx, cfg.Events, event.Event{Type: event.FileFailed, Path: e.Path, Error: res.Err, WorkerID: res.WorkerID})
			continue
		}
		next[e.Path] = e.ContentID
		done[res.Index] = true
		emit(ctx, cfg.Events, event.Event{Type: event.FileCompleted, Path: e.Path, Size: res.Bytes, WorkerID: res.WorkerID})
	}

	// Tasks the feeder never handed out because ctx ended still count as
	// failures so that every pending candidate is accounted for.
	for _, i := range pending {
		if !settled[i] {
			failed = append(failed, fetchResult{Index: i, Path: cfg.Entries[i].Path, Err: context.Cause(ctx)})
		}
	}

	sort.Slice(failed, func(a, b int) bool { return failed[a].Index < failed[b].Index })
	failures := make([]Failure, len(failed))
	for i, r := range failed {
		failures[i] = Failure{Path: r.Path, Err: r.Err}
	}
	return failures
}

// localPaths returns the local path of every present candidate, in candidate order.
func localPaths(fsys billy.Filesystem, entries []remote.FileEntry, done []bool) []string {
	paths := make([]string, 0, len(entries))
	for i, e := range entries {
		if done[i] {
			paths = append(paths, fsys.Join(fsys.Root(), e.Path))
		}
	}
	return paths
}

// emit sends ev on ch without blocking past ctx. A nil channel drops the event.
func emit(ctx context.Context, ch chan<- event.Event, ev event.Event) {
	if ch == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
