// Package mirror wires the remote tree client, the filter chain and the sync
// engine into one run.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-billy/v5"

	"github.com/prolet-tools/prolet/internal/cache"
	"github.com/prolet-tools/prolet/internal/engine"
	"github.com/prolet-tools/prolet/internal/event"
	"github.com/prolet-tools/prolet/internal/filter"
	"github.com/prolet-tools/prolet/internal/metrics"
	"github.com/prolet-tools/prolet/internal/remote"
	"github.com/prolet-tools/prolet/internal/retry"
	"github.com/prolet-tools/prolet/internal/stats"
)

// Remote is the subset of *remote.Client a run needs.
type Remote interface {
	ResolveTree(ctx context.Context, repo remote.Repo, branch string) (remote.Tree, error)
	engine.Downloader
}

// Options describes one mirror run.
type Options struct {
	Remote  Remote
	Filter  engine.Matcher // nil means filter.NewChain()
	FS      billy.Filesystem
	Events  chan<- event.Event
	Stats   *stats.Collector
	Metrics *metrics.Sync
	Repo    string
	Branch  string
	Retry   retry.Config
	Workers int
	BWLimit int64
	DryRun  bool
}

// ConfigError reports invalid input detected before any network call.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Run resolves the remote tree, selects candidates and synchronizes them
// into opts.FS. A returned error is fatal (*ConfigError or
// *remote.RemoteError); per-file failures are reported in the outcome.
func Run(ctx context.Context, opts Options) (engine.Outcome, error) {
	repo, err := remote.ParseRepo(opts.Repo)
	if err != nil {
		return engine.Outcome{}, &ConfigError{Field: "github_repo", Err: err}
	}
	if opts.Branch == "" {
		return engine.Outcome{}, &ConfigError{Field: "target_branch", Err: errors.New("empty branch")}
	}
	if opts.Remote == nil {
		return engine.Outcome{}, &ConfigError{Field: "remote", Err: errors.New("no remote client")}
	}
	if opts.FS == nil {
		return engine.Outcome{}, &ConfigError{Field: "output", Err: errors.New("no output filesystem")}
	}

	tree, err := opts.Remote.ResolveTree(ctx, repo, opts.Branch)
	if err != nil {
		return engine.Outcome{}, err
	}
	slog.Debug("resolved remote tree",
		"repo", repo.String(), "branch", opts.Branch,
		"commit", tree.Commit, "blobs", len(tree.Entries))

	var match engine.Matcher = opts.Filter
	if match == nil {
		match = filter.NewChain()
	}
	candidates := engine.SelectCandidates(tree.Entries, match)
	if opts.Events != nil {
		select {
		case opts.Events <- event.Event{Type: event.TreeResolved, Total: len(tree.Entries), Pending: len(candidates)}:
		case <-ctx.Done():
		}
	}

	return engine.Run(ctx, engine.Config{
		FS:         opts.FS,
		Cache:      cache.NewStore(opts.FS),
		Downloader: opts.Remote,
		Events:     opts.Events,
		Stats:      opts.Stats,
		Metrics:    opts.Metrics,
		Entries:    candidates,
		Retry:      opts.Retry,
		Workers:    opts.Workers,
		BWLimit:    opts.BWLimit,
		DryRun:     opts.DryRun,
	}), nil
}
