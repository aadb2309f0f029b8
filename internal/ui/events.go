package ui

import "github.com/prolet-tools/prolet/internal/event"

// Event is re-exported for presenters.
type Event = event.Event

// Re-export event types for convenience.
const (
	TreeResolved   = event.TreeResolved
	PlanComplete   = event.PlanComplete
	FileStarted    = event.FileStarted
	FileCompleted  = event.FileCompleted
	FileFailed     = event.FileFailed
	FileRetry      = event.FileRetry
	FileCached     = event.FileCached
	FilePending    = event.FilePending
	CacheCommitted = event.CacheCommitted
	CacheWarning   = event.CacheWarning
)
