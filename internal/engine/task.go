package engine

import (
	"time"

	"github.com/prolet-tools/prolet/internal/remote"
)

// FetchTask is one pending candidate handed to the worker pool.
type FetchTask struct {
	Entry remote.FileEntry
	Index int // position in the candidate list
}

// fetchResult is what a worker publishes for every task it receives.
type fetchResult struct {
	Err      error
	Path     string
	Duration time.Duration
	Bytes    int64
	Index    int
	WorkerID int
}

// Failure pairs a candidate path with the reason it could not be fetched.
type Failure struct {
	Err  error
	Path string
}

func (f Failure) Error() string {
	return f.Path + ": " + f.Err.Error()
}

func (f Failure) Unwrap() error { return f.Err }
