// Package cli holds presentation helpers shared by the command-line binaries.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/TrackerIA/new-grading-vawa/internal/pipeline"
)

// FormatDurationShort formats a duration as M:SS, or H:MM:SS past one hour.
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// PrintSummary writes the one-line human summary of a finished run.
func PrintSummary(w io.Writer, sum pipeline.Summary) {
	fmt.Fprintf(w, "Run %s: %d ready, %d completed, %d failed in %s\n",
		sum.RunID, sum.Ready, sum.Completed, sum.Failed, FormatDurationShort(sum.Duration))
}
