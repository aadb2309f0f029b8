package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 100
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				c.AddFilesFetched(1)
				c.AddFilesFailed(1)
				c.AddFilesRetried(1)
				c.AddBytesFetched(256)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, expected, s.FilesFetched)
	assert.Equal(t, expected, s.FilesFailed)
	assert.Equal(t, expected, s.FilesRetried)
	assert.Equal(t, expected*256, s.BytesFetched)
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		FilesListed:  10,
		FilesCached:  6,
		FilesPending: 4,
		FilesFetched: 3,
		FilesFailed:  1,
		FilesRetried: 2,
		BytesFetched: 4096,
	}
	expected := "listed=10 cached=6 pending=4 fetched=3 failed=1 retried=2 bytes=4096"
	assert.Equal(t, expected, s.String())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	assert.False(t, c.startTime.IsZero())
	assert.InDelta(t, 0, c.Elapsed().Seconds(), 1)
}

func TestSetPlan(t *testing.T) {
	c := NewCollector()
	c.SetPlan(10, 7, 3, 2048)
	s := c.Snapshot()
	assert.Equal(t, int64(10), s.FilesListed)
	assert.Equal(t, int64(7), s.FilesCached)
	assert.Equal(t, int64(3), s.FilesPending)
	assert.Equal(t, int64(2048), s.BytesTotal)
}

func TestTickAndRollingSpeed(t *testing.T) {
	c := NewCollector()

	// Simulate 5 seconds of 1000 bytes/sec.
	for range 5 {
		c.AddBytesFetched(1000)
		c.AddFilesFetched(10)
		c.Tick()
	}

	assert.InDelta(t, 1000.0, c.RollingSpeed(5), 0.01)
	assert.InDelta(t, 10.0, c.RollingFilesPerSec(5), 0.01)
}

func TestRollingSpeedPartialWindow(t *testing.T) {
	c := NewCollector()

	c.AddBytesFetched(500)
	c.Tick()
	c.AddBytesFetched(500)
	c.Tick()

	// Ask for 10 but only have 2.
	assert.InDelta(t, 500.0, c.RollingSpeed(10), 0.01)
}

func TestRollingSpeedNoSamples(t *testing.T) {
	c := NewCollector()
	assert.Equal(t, 0.0, c.RollingSpeed(5))
}

func TestRingWraparound(t *testing.T) {
	c := NewCollector()

	for range ringSize + 10 {
		c.AddBytesFetched(100)
		c.Tick()
	}
	assert.InDelta(t, 100.0, c.RollingSpeed(ringSize), 0.01)
}

func TestETA(t *testing.T) {
	c := NewCollector()
	c.SetPlan(100, 0, 100, 10000)

	// Simulate fetching 5000 bytes at 1000/sec.
	for range 5 {
		c.AddBytesFetched(1000)
		c.Tick()
	}

	assert.InDelta(t, 5.0, c.ETA().Seconds(), 1.0)
}

func TestETANoSpeed(t *testing.T) {
	c := NewCollector()
	c.SetPlan(100, 0, 100, 10000)
	assert.Equal(t, time.Duration(0), c.ETA())
}

func TestETAComplete(t *testing.T) {
	c := NewCollector()
	c.SetPlan(1, 0, 1, 1000)
	c.AddBytesFetched(1000)
	c.Tick()
	assert.Equal(t, time.Duration(0), c.ETA())
}

func TestSnapshotIncludesElapsed(t *testing.T) {
	c := NewCollector()
	time.Sleep(10 * time.Millisecond)
	s := c.Snapshot()
	assert.Greater(t, s.Elapsed, time.Duration(0))
}
