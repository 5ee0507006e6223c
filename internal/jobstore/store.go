// Package jobstore reads pending cases from the grading queue spreadsheet and
// writes status, timing and token usage back to it.
package jobstore

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
)

// Store is the case queue. Status writes are best-effort: failures are
// logged and never returned, so a flaky sheet cannot abort a run.
type Store struct {
	table   Table
	version string
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for start and end stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store over table. version is written to column O of every
// completed row.
func New(table Table, version string, opts ...Option) *Store {
	s := &Store{table: table, version: version, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetReadyJobs returns every row whose status is PENDING PROCESSING, in
// sheet order. Rows missing the transcript (E) or summary (J) link are
// marked ERROR: MAIN LINK MISSING and left out.
func (s *Store) GetReadyJobs(ctx context.Context) ([]grading.Job, error) {
	rows, err := s.table.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}

	var jobs []grading.Job
	for i, row := range rows {
		rowIdx := i + 1
		if rowIdx == 1 || len(row) <= idxStatus {
			continue
		}
		if grading.Status(strings.TrimSpace(row[idxStatus])) != grading.StatusPending {
			continue
		}

		links := make(map[grading.DocRole]string, len(roleIndex))
		for role, idx := range roleIndex {
			links[role] = cellAt(row, idx)
		}
		job := grading.Job{
			RowIndex:   rowIdx,
			ClientID:   cellAt(row, idxClientID),
			ClientName: cellAt(row, idxClientName),
			Links:      links,
			Status:     grading.StatusPending,
		}

		if job.Link(grading.RoleTranscript) == "" || job.Link(grading.RoleSummary) == "" {
			log.Warn().
				Int("row", rowIdx).
				Str("client", job.ClientName).
				Msg("Main link missing (transcript or summary), marking row")
			s.UpdateStatus(ctx, rowIdx, grading.StatusMainLinkMissing)
			continue
		}
		jobs = append(jobs, job)
	}

	log.Info().Int("rows", len(rows)).Int("ready", len(jobs)).Msg("Queue scanned")
	return jobs, nil
}

// UpdateStatus writes column C of row.
func (s *Store) UpdateStatus(ctx context.Context, row int, status grading.Status) {
	if err := s.table.UpdateCell(ctx, cell(colStatus, row), string(status)); err != nil {
		log.Error().Err(err).Int("row", row).Str("status", string(status)).Msg("Failed to update status")
		return
	}
	log.Info().Int("row", row).Str("status", string(status)).Msg("Status updated")
}

// MarkStarted sets PROCESSING and the start time in one write and records
// the start on job for the duration column.
func (s *Store) MarkStarted(ctx context.Context, job *grading.Job) {
	job.StartedAt = s.now()
	job.Status = grading.StatusProcessing

	err := s.table.BatchUpdate(ctx, []CellUpdate{
		{Cell: cell(colStatus, job.RowIndex), Value: string(grading.StatusProcessing)},
		{Cell: cell(colStartTime, job.RowIndex), Value: job.StartedAt.Format(TimeLayout)},
	})
	if err != nil {
		log.Error().Err(err).Int("row", job.RowIndex).Msg("Failed to mark row as processing")
	}
}

// WriteResult writes the grading link, token counts, version, timing and
// duration in minutes to K..R, then marks the row COMPLETED. If the result
// write fails the row is marked ERROR SAVING RESULTS instead.
func (s *Store) WriteResult(ctx context.Context, job *grading.Job, out grading.Outcome) {
	end := s.now()
	start := job.StartedAt
	if start.IsZero() {
		start = end
	}

	values := []any{
		out.DeliverableRef,
		"",
		out.TokensIn,
		out.TokensOut,
		s.version,
		start.Format(TimeLayout),
		end.Format(TimeLayout),
		DurationMinutes(start, end),
	}
	rng := fmt.Sprintf("%s:%s", cell(colGradingLink, job.RowIndex), cell(colResultsEnd, job.RowIndex))
	if err := s.table.UpdateRange(ctx, rng, values); err != nil {
		log.Error().Err(err).Int("row", job.RowIndex).Msg("Failed to write grading results")
		job.Status = grading.StatusErrorSavingResult
		s.UpdateStatus(ctx, job.RowIndex, job.Status)
		return
	}

	job.Status = grading.StatusCompleted
	s.UpdateStatus(ctx, job.RowIndex, job.Status)
	log.Info().Int("row", job.RowIndex).Str("client", job.ClientName).Msg("Row completed")
}

// SetError marks the row as "ERROR: <msg>" with msg cut to 50 characters.
func (s *Store) SetError(ctx context.Context, job *grading.Job, msg string) {
	job.Status = grading.ErrorStatus(msg)
	s.UpdateStatus(ctx, job.RowIndex, job.Status)
}

// DurationMinutes returns end-start in minutes rounded to two decimals.
func DurationMinutes(start, end time.Time) float64 {
	return math.Round(end.Sub(start).Minutes()*100) / 100
}
