package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/prolet-tools/prolet/internal/config"
	"github.com/prolet-tools/prolet/internal/engine"
	"github.com/prolet-tools/prolet/internal/event"
	"github.com/prolet-tools/prolet/internal/filter"
	"github.com/prolet-tools/prolet/internal/metrics"
	"github.com/prolet-tools/prolet/internal/mirror"
	"github.com/prolet-tools/prolet/internal/remote"
	"github.com/prolet-tools/prolet/internal/retry"
	"github.com/prolet-tools/prolet/internal/stats"
	"github.com/prolet-tools/prolet/internal/ui"
)

// syncFlags are shared by sync and build.
type syncFlags struct {
	excludes    []string
	branch      string
	excludeFrom string
	bwLimitStr  string
	metricsFile string
	apiURL      string
	rawURL      string
	workers     int
	retries     int
	dryRun      bool
}

func addSyncFlags(fs *pflag.FlagSet, sf *syncFlags) {
	fs.IntVarP(&sf.workers, "workers", "n", 0, fmt.Sprintf("number of download workers (default %d)", engine.DefaultWorkers))
	fs.StringVar(&sf.branch, "branch", "", "branch to mirror (default: target_branch from config)")
	fs.StringArrayVar(&sf.excludes, "exclude", nil, "exclude files matching PATTERN (repeatable)")
	fs.StringVar(&sf.excludeFrom, "exclude-from", "", "read exclusion rules from FILE")
	fs.StringVar(&sf.bwLimitStr, "bwlimit", "", "bandwidth limit (e.g. 512K, 4M)")
	fs.IntVar(&sf.retries, "retries", 0, fmt.Sprintf("attempts per file for transient errors (default %d)", config.DefaultRetries))
	fs.BoolVar(&sf.dryRun, "dry-run", false, "show what would be fetched without writing")
	fs.StringVar(&sf.metricsFile, "metrics-file", "", "write Prometheus metrics to FILE after the run")
	fs.StringVar(&sf.apiURL, "api-url", remote.DefaultAPIBaseURL, "GitHub API base URL")
	fs.StringVar(&sf.rawURL, "raw-url", remote.DefaultRawBaseURL, "raw content base URL")
}

func newSyncCmd(g *globalFlags) *cobra.Command {
	sf := &syncFlags{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the configured repository into the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := runSync(cmd, g, sf)
			if err != nil {
				return err
			}
			return res.exitErr()
		},
	}
	addSyncFlags(cmd.Flags(), sf)
	return cmd
}

// paths are the resolved locations for one invocation.
type paths struct {
	root   string
	config string
	output string
}

func resolvePaths(g *globalFlags) (paths, error) {
	root := g.root
	if root == "" {
		root = os.Getenv("PROLET_ROOT")
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return paths{}, fmt.Errorf("determine working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return paths{}, fmt.Errorf("resolve root: %w", err)
	}

	p := paths{root: root, config: g.configPath, output: g.output}
	if p.config == "" {
		p.config = config.FindProjectFile(root)
	}
	if p.output == "" {
		p.output = config.OutputDir(root)
	}
	if p.output, err = filepath.Abs(p.output); err != nil {
		return paths{}, fmt.Errorf("resolve output: %w", err)
	}
	return p, nil
}

// setupLogging installs the default slog logger and returns a cleanup func.
func setupLogging(g *globalFlags) (func(), error) {
	logLevel := slog.LevelWarn
	if g.verbose {
		logLevel = slog.LevelDebug
	} else if !g.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	var logHandler slog.Handler = textHandler
	cleanup := func() {}
	if g.logFile != "" {
		lf, err := os.Create(g.logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cleanup = func() { lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))
	return cleanup, nil
}

// syncResult is what runSync hands back to sync and build.
type syncResult struct {
	paths   paths
	outcome engine.Outcome
}

func (r syncResult) exitErr() error {
	if r.outcome.Partial() {
		return &exitError{code: 1}
	}
	return nil
}

// settings layers CLI flags over the project and user config.
func (sf *syncFlags) settings(cmd *cobra.Command, project config.Project) (config.Settings, error) {
	user, err := config.Load()
	if err != nil {
		slog.Warn("failed to load user config", "path", config.Path(), "error", err)
	}
	s, err := project.Resolve(user.Defaults)
	if err != nil {
		return config.Settings{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("branch") {
		s.Branch = sf.branch
	}
	if flags.Changed("workers") {
		if sf.workers < 1 {
			return config.Settings{}, fmt.Errorf("invalid --workers: %d", sf.workers)
		}
		s.Workers = sf.workers
	}
	if flags.Changed("retries") {
		if sf.retries < 1 {
			return config.Settings{}, fmt.Errorf("invalid --retries: %d", sf.retries)
		}
		s.Retries = sf.retries
	}
	if flags.Changed("bwlimit") {
		n, err := filter.ParseSize(sf.bwLimitStr)
		if err != nil {
			return config.Settings{}, fmt.Errorf("invalid --bwlimit: %w", err)
		}
		s.BWLimit = n
	}
	return s, nil
}

// buildChain merges project exclusions with the command-line ones.
func (sf *syncFlags) buildChain(project config.Project) (*filter.Chain, error) {
	chain, err := project.NewChain()
	if err != nil {
		return nil, err
	}
	for _, pat := range sf.excludes {
		if err := chain.AddExclude(pat); err != nil {
			return nil, fmt.Errorf("invalid --exclude %q: %w", pat, err)
		}
	}
	if sf.excludeFrom != "" {
		if err := chain.LoadFile(sf.excludeFrom); err != nil {
			return nil, fmt.Errorf("load exclude file: %w", err)
		}
	}
	return chain, nil
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: orchestrates config, logging, presenter and engine
func runSync(cmd *cobra.Command, g *globalFlags, sf *syncFlags) (syncResult, error) {
	if g.verbose && g.quiet {
		return syncResult{}, errors.New("--verbose and --quiet are mutually exclusive")
	}
	p, err := resolvePaths(g)
	if err != nil {
		return syncResult{}, err
	}

	cleanup, err := setupLogging(g)
	if err != nil {
		return syncResult{}, err
	}
	defer cleanup()

	project, err := config.LoadProject(p.config)
	if err != nil {
		return syncResult{}, err
	}
	settings, err := sf.settings(cmd, project)
	if err != nil {
		return syncResult{}, err
	}
	chain, err := sf.buildChain(project)
	if err != nil {
		return syncResult{}, err
	}

	if sf.dryRun {
		slog.Info("dry run mode")
	} else if err := os.MkdirAll(p.output, 0o755); err != nil {
		return syncResult{}, fmt.Errorf("create output directory: %w", err)
	}

	client := remote.NewClient(remote.ClientConfig{
		APIBaseURL: sf.apiURL,
		RawBaseURL: sf.rawURL,
		Token:      os.Getenv("GITHUB_TOKEN"),
		UserAgent:  "prolet/" + version,
		APITimeout: settings.Timeout,
	})

	var m *metrics.Sync
	if sf.metricsFile != "" {
		m = metrics.New()
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = settings.Retries

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)

	// When --log is set, tee events through a logging goroutine
	// that writes structured records before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(events)
	if g.logFile != "" {
		teed := make(chan event.Event, 256)
		go func() {
			for ev := range events {
				attrs := []slog.Attr{
					slog.String("type", ev.Type.String()),
					slog.String("path", ev.Path),
					slog.Int64("size", ev.Size),
					slog.Int("worker", ev.WorkerID),
				}
				if ev.Attempt > 0 {
					attrs = append(attrs, slog.Int("attempt", ev.Attempt))
				}
				if ev.Error != nil {
					attrs = append(attrs, slog.String("error", ev.Error.Error()))
				}
				slog.LogAttrs(context.Background(), slog.LevelDebug, "prolet.event", attrs...)
				teed <- ev
			}
			close(teed)
		}()
		presenterEvents = teed
	}

	isTTY := ui.IsTTY(os.Stderr.Fd())
	presenter := ui.NewPresenter(ui.Config{
		Writer:     cmd.OutOrStdout(),
		ErrWriter:  cmd.ErrOrStderr(),
		Stats:      collector,
		OutputRoot: p.output,
		Width:      ui.TermWidth(os.Stderr.Fd()),
		IsTTY:      isTTY,
		Quiet:      g.quiet,
		Verbose:    g.verbose,
		DryRun:     sf.dryRun,
	})

	slog.Debug("starting sync",
		"repo", project.GithubRepo,
		"branch", settings.Branch,
		"output", p.output,
		"workers", settings.Workers,
		"retries", settings.Retries,
		"bwlimit", settings.BWLimit,
	)

	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	outcome, runErr := mirror.Run(ctx, mirror.Options{
		Remote:  client,
		Filter:  chain,
		FS:      osfs.New(p.output),
		Events:  events,
		Stats:   collector,
		Metrics: m,
		Repo:    project.GithubRepo,
		Branch:  settings.Branch,
		Retry:   retryCfg,
		Workers: settings.Workers,
		BWLimit: settings.BWLimit,
		DryRun:  sf.dryRun,
	})
	stop()
	close(events)
	presenterWg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
	}

	if runErr != nil {
		m.RunFinished(time.Now(), false)
		writeMetrics(m, sf.metricsFile)
		slog.Error("sync failed", "error", runErr)
		return syncResult{}, &exitError{code: 2}
	}

	if !g.quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), summary)
		}
	}
	for _, f := range outcome.Failures {
		slog.Warn("fetch failed", "path", f.Path, "error", f.Err)
	}
	writeMetrics(m, sf.metricsFile)

	return syncResult{paths: p, outcome: outcome}, nil
}

func writeMetrics(m *metrics.Sync, path string) {
	if path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		slog.Warn("failed to write metrics", "path", path, "error", err)
	}
}
