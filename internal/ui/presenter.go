package ui

import (
	"io"
	"time"

	"github.com/prolet-tools/prolet/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer
	ErrWriter  io.Writer
	Stats      stats.ReadTicker
	OutputRoot string
	// Interval between progress lines; defaults to 5s.
	Interval time.Duration
	// Width of the terminal, used to truncate the live progress line.
	Width   int
	IsTTY   bool
	Quiet   bool
	Verbose bool
	DryRun  bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{stats: cfg.Stats}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &plainPresenter{
		w:        cfg.Writer,
		errW:     cfg.ErrWriter,
		stats:    cfg.Stats,
		root:     cfg.OutputRoot,
		interval: interval,
		live:     cfg.IsTTY,
		width:    cfg.Width,
		verbose:  cfg.Verbose,
		dryRun:   cfg.DryRun,
	}
}
