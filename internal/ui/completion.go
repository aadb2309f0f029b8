package ui

import (
	"fmt"

	"github.com/prolet-tools/prolet/internal/stats"
)

// completionSummary builds a final summary line from a snapshot.
// Format: done ✓  fetched 12  cached 310  size 1.2 MiB  time 4s  errors 0
func completionSummary(snap stats.Snapshot, dryRun bool) string {
	if dryRun {
		return fmt.Sprintf("dry run  would fetch %s (%s)  cached %s",
			FormatCount(snap.FilesPending),
			FormatBytes(snap.BytesTotal),
			FormatCount(snap.FilesCached),
		)
	}

	icon := "✓"
	if snap.FilesFailed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  fetched %s  cached %s  size %s  time %s",
		icon,
		FormatCount(snap.FilesFetched),
		FormatCount(snap.FilesCached),
		FormatBytes(snap.BytesFetched),
		FormatDuration(snap.Elapsed),
	)
	if snap.FilesRetried > 0 {
		base += fmt.Sprintf("  retries %d", snap.FilesRetried)
	}
	return base + fmt.Sprintf("  errors %d", snap.FilesFailed)
}
