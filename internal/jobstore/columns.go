package jobstore

import (
	"fmt"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
)

// Column letters of the case queue. Columns A and B hold the client ID and
// name; K through R are written when a grading completes.
const (
	colStatus      = "C"
	colGradingLink = "K"
	colResultsEnd  = "R"
	colStartTime   = "P"
)

// 0-based indexes used when reading rows.
const (
	idxClientID   = 0
	idxClientName = 1
	idxStatus     = 2
)

// roleIndex maps each document role to its 0-based column (D..J).
var roleIndex = map[grading.DocRole]int{
	grading.RoleCaratula:   3,
	grading.RoleTranscript: 4,
	grading.RoleEvidencias: 5,
	grading.RoleDAIR:       6,
	grading.RoleFAIR:       7,
	grading.RoleRapSheet:   8,
	grading.RoleSummary:    9,
}

// TimeLayout is how start and end times are written to the queue.
const TimeLayout = "2006-01-02 15:04:05"

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func cellAt(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
