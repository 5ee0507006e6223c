// Package jobutil holds the job failure path shared by the CLI and Lambda
// runners: log the failure once, then persist it through the caller's writer.
package jobutil

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
)

// ErrorWriter persists a job error, typically to the queue's status column.
type ErrorWriter func(ctx context.Context, job *grading.Job, msg string) error

// SetJobError logs the full error chain and hands the root cause to write.
func SetJobError(ctx context.Context, runID string, job *grading.Job, cause error, write ErrorWriter) error {
	reason := grading.Reason(cause)
	log.Error().
		Err(cause).
		Str("run", runID).
		Int("row", job.RowIndex).
		Str("client", job.ClientName).
		Str("reason", reason).
		Msg("Job failed")
	return write(ctx, job, reason)
}
