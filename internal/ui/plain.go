package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prolet-tools/prolet/internal/stats"
)

// plainPresenter prints one line per fetched or failed file to w and
// periodic progress to errW. On a terminal the progress line is redrawn in
// place; otherwise a new line is printed every interval.
type plainPresenter struct {
	w        io.Writer
	errW     io.Writer
	stats    stats.ReadTicker
	root     string
	interval time.Duration
	width    int
	live     bool
	verbose  bool
	dryRun   bool
	drawn    bool
}

func (p *plainPresenter) Run(events <-chan Event) error {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	var sinceProgress time.Duration

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearLive()
				return nil
			}
			p.handleEvent(ev)
		case <-tick.C:
			p.stats.Tick()
			sinceProgress += time.Second
			if p.live {
				p.drawLive()
			} else if sinceProgress >= p.interval {
				sinceProgress = 0
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	path := StripRoot(p.root, ev.Path)
	switch ev.Type {
	case TreeResolved:
		if p.verbose {
			p.println(fmt.Sprintf("listed %s files, %s candidates", FormatCount(int64(ev.Total)), FormatCount(int64(ev.Pending))))
		}
	case PlanComplete:
		if p.verbose {
			p.println(fmt.Sprintf("%s to fetch (%s)", FormatCount(int64(ev.Pending)), FormatBytes(ev.TotalSize)))
		}
	case FileCompleted:
		p.println(fmt.Sprintf("%s  %s", path, FormatBytes(ev.Size)))
	case FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		p.println(fmt.Sprintf("%s  FAILED  %s", path, errMsg))
	case FileCached:
		if p.verbose {
			p.println(fmt.Sprintf("%s  up to date", path))
		}
	case FilePending:
		p.println(fmt.Sprintf("%s  %s  would fetch", path, FormatBytes(ev.Size)))
	case FileRetry:
		if p.verbose {
			p.eprintln(fmt.Sprintf("retry %d: %s: %v", ev.Attempt, path, ev.Error))
		}
	case CacheWarning:
		p.eprintln(fmt.Sprintf("warning: cache %s: %v", path, ev.Error))
	case CacheCommitted, FileStarted:
		// silent in plain mode
	}
}

func (p *plainPresenter) progressLine() string {
	snap := p.stats.Snapshot()
	done := snap.FilesFetched + snap.FilesFailed
	speed := p.stats.RollingSpeed(10)
	filesPerSec := p.stats.RollingFilesPerSec(10)
	if snap.FilesPending == 0 {
		return fmt.Sprintf("progress: %s fetched %s", FormatBytes(snap.BytesFetched), FormatRate(speed))
	}
	return fmt.Sprintf("progress: %s/%s files %s/%s %s %.1f files/s eta %s",
		FormatCount(done), FormatCount(snap.FilesPending),
		FormatBytes(snap.BytesFetched), FormatBytes(snap.BytesTotal),
		FormatRate(speed), filesPerSec,
		FormatETA(p.stats.ETA()),
	)
}

func (p *plainPresenter) printProgress() {
	fmt.Fprintln(p.errW, p.progressLine())
}

func (p *plainPresenter) drawLive() {
	snap := p.stats.Snapshot()
	line := p.progressLine()
	if snap.FilesPending > 0 {
		pct := float64(snap.FilesFetched+snap.FilesFailed) / float64(snap.FilesPending)
		line = ProgressBar(pct, 20) + " " + line
	}
	if p.width > 0 && len([]rune(line)) > p.width-1 {
		line = string([]rune(line)[:p.width-1])
	}
	fmt.Fprintf(p.errW, "\r\033[K%s", line)
	p.drawn = true
}

func (p *plainPresenter) clearLive() {
	if p.drawn {
		fmt.Fprint(p.errW, "\r\033[K")
		p.drawn = false
	}
}

// println writes a file line, clearing any live progress first so the two
// streams do not interleave on a terminal.
func (p *plainPresenter) println(s string) {
	p.clearLive()
	fmt.Fprintln(p.w, s)
}

func (p *plainPresenter) eprintln(s string) {
	p.clearLive()
	fmt.Fprintln(p.errW, strings.TrimRight(s, "\n"))
}

func (p *plainPresenter) Summary() string {
	return completionSummary(p.stats.Snapshot(), p.dryRun)
}
