package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Reader is the read side of a Collector, used by presenters.
type Reader interface {
	Snapshot() Snapshot
	RollingSpeed(seconds int) float64
	RollingFilesPerSec(seconds int) float64
	ETA() time.Duration
}

// ReadTicker is a Reader that presenters also advance once per second.
type ReadTicker interface {
	Reader
	Tick()
}

// Collector tracks sync statistics using lock-free atomic counters.
type Collector struct {
	filesListed  atomic.Int64
	filesCached  atomic.Int64
	filesPending atomic.Int64
	filesFetched atomic.Int64
	filesFailed  atomic.Int64
	filesRetried atomic.Int64
	bytesFetched atomic.Int64
	bytesTotal   atomic.Int64
	startTime    time.Time

	// Ring buffer: written only by presenter's Tick(), not workers.
	mu          sync.Mutex
	throughput  [ringSize]int64 // bytes delta per second
	filesPerSec [ringSize]int64 // files delta per second
	ringIdx     int
	ringCount   int // samples written, capped at ringSize
	lastBytes   int64
	lastFiles   int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetPlan records the outcome of planning (called once per run).
func (c *Collector) SetPlan(candidates, cached, pending, pendingBytes int64) {
	c.filesListed.Store(candidates)
	c.filesCached.Store(cached)
	c.filesPending.Store(pending)
	c.bytesTotal.Store(pendingBytes)
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesListed  int64
	FilesCached  int64
	FilesPending int64
	FilesFetched int64
	FilesFailed  int64
	FilesRetried int64
	BytesFetched int64
	BytesTotal   int64
	Elapsed      time.Duration
}

func (c *Collector) AddFilesFetched(n int64) { c.filesFetched.Add(n) }
func (c *Collector) AddFilesFailed(n int64)  { c.filesFailed.Add(n) }
func (c *Collector) AddFilesRetried(n int64) { c.filesRetried.Add(n) }
func (c *Collector) AddBytesFetched(n int64) { c.bytesFetched.Add(n) }

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesListed:  c.filesListed.Load(),
		FilesCached:  c.filesCached.Load(),
		FilesPending: c.filesPending.Load(),
		FilesFetched: c.filesFetched.Load(),
		FilesFailed:  c.filesFailed.Load(),
		FilesRetried: c.filesRetried.Load(),
		BytesFetched: c.bytesFetched.Load(),
		BytesTotal:   c.bytesTotal.Load(),
		Elapsed:      c.Elapsed(),
	}
}

// Tick snapshots byte/file deltas into the ring buffer. Called 1/sec by the presenter.
func (c *Collector) Tick() {
	currentBytes := c.bytesFetched.Load()
	currentFiles := c.filesFetched.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = currentBytes - c.lastBytes
	c.filesPerSec[c.ringIdx] = currentFiles - c.lastFiles
	c.lastBytes = currentBytes
	c.lastFiles = currentFiles

	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollingAvg(c.throughput[:], seconds)
}

// RollingFilesPerSec returns average files/sec over the last n seconds.
func (c *Collector) RollingFilesPerSec(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollingAvg(c.filesPerSec[:], seconds)
}

func (c *Collector) rollingAvg(buf []int64, n int) float64 {
	count := min(n, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += buf[idx]
	}
	return float64(sum) / float64(count)
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesFetched.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"listed=%d cached=%d pending=%d fetched=%d failed=%d retried=%d bytes=%d",
		s.FilesListed, s.FilesCached, s.FilesPending, s.FilesFetched,
		s.FilesFailed, s.FilesRetried, s.BytesFetched,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
