package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	TreeResolved Type = iota + 1
	PlanComplete
	FileStarted
	FileCompleted
	FileFailed
	FileRetry
	FileCached
	FilePending
	CacheCommitted
	CacheWarning
)

var typeNames = [...]string{
	TreeResolved:   "TreeResolved",
	PlanComplete:   "PlanComplete",
	FileStarted:    "FileStarted",
	FileCompleted:  "FileCompleted",
	FileFailed:     "FileFailed",
	FileRetry:      "FileRetry",
	FileCached:     "FileCached",
	FilePending:    "FilePending",
	CacheCommitted: "CacheCommitted",
	CacheWarning:   "CacheWarning",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the sync engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // repository-relative path
	Size      int64  // file size or bytes written
	Total     int    // candidate count (TreeResolved, PlanComplete)
	Pending   int    // files to fetch (PlanComplete)
	TotalSize int64  // bytes to fetch (PlanComplete)
	Attempt   int    // FileRetry
	Error     error
	WorkerID  int
}
