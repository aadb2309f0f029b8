package ui

import "github.com/prolet-tools/prolet/internal/stats"

// quietPresenter consumes events but produces no output.
type quietPresenter struct {
	stats stats.Reader
}

func (p *quietPresenter) Run(events <-chan Event) error {
	for range events {
		// Totals live on the collector; presenters only read from it.
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}
