// Package pipeline drives one grading run: build the knowledge cache, open
// the review session, then grade every ready queue row in order.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
	"github.com/TrackerIA/new-grading-vawa/internal/jobutil"
	"github.com/TrackerIA/new-grading-vawa/internal/ledger"
	"github.com/TrackerIA/new-grading-vawa/internal/locator"
	"github.com/TrackerIA/new-grading-vawa/internal/metrics"
	"github.com/TrackerIA/new-grading-vawa/internal/publish"
	"github.com/TrackerIA/new-grading-vawa/internal/review"
)

// Queue is the job store.
type Queue interface {
	GetReadyJobs(ctx context.Context) ([]grading.Job, error)
	MarkStarted(ctx context.Context, job *grading.Job)
	WriteResult(ctx context.Context, job *grading.Job, out grading.Outcome)
	SetError(ctx context.Context, job *grading.Job, msg string)
	UpdateStatus(ctx context.Context, row int, status grading.Status)
}

// Knowledge builds and releases the run's knowledge cache.
type Knowledge interface {
	EnsureCache(ctx context.Context) (*grading.KnowledgeContext, error)
	Release(ctx context.Context, kc *grading.KnowledgeContext)
}

// Normalizer converts one case document to PDF.
type Normalizer interface {
	Normalize(ctx context.Context, role grading.DocRole, loc string) (*grading.NormalizedDocument, error)
}

// Session is the review conversation.
type Session interface {
	Initialize(ctx context.Context, kc *grading.KnowledgeContext) error
	RunSteps(ctx context.Context, docs []grading.NormalizedDocument) (*review.Result, error)
	Reset(ctx context.Context) error
	Rearm() error
	History() []review.StepRecord
}

// Deps are the collaborators of a Runner. Ledger may be nil.
type Deps struct {
	Queue      Queue
	Knowledge  Knowledge
	Normalizer Normalizer
	Session    Session
	Publisher  publish.Publisher
	Ledger     ledger.Ledger
}

// Options tunes one run.
type Options struct {
	// RunID labels logs, metrics and ledger records. Empty generates a UUID.
	RunID      string
	AppVersion string

	// Limit caps the number of jobs processed; zero means no limit.
	Limit int
	// Row restricts the run to one sheet row; zero means every ready row.
	Row int

	// DryRun skips writing results to the queue; only status changes are written.
	DryRun bool
	// SharedThread keeps one review thread for every job in the run.
	SharedThread bool
	// ReleaseCache deletes the knowledge cache when the run ends.
	ReleaseCache bool

	// WorkDir is the parent of per-job temporary directories. Empty uses
	// the system temp dir.
	WorkDir string
}

// Summary counts the outcome of a run.
type Summary struct {
	RunID     string
	Ready     int
	Completed int
	Failed    int
	Duration  time.Duration
}

// Runner executes grading runs.
type Runner struct {
	deps Deps
	opts Options
	now  func() time.Time
}

// New creates a Runner.
func New(deps Deps, opts Options) *Runner {
	if deps.Ledger == nil {
		deps.Ledger = ledger.Nop{}
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Runner{deps: deps, opts: opts, now: time.Now}
}

// RunID returns the identifier of the runs this Runner performs.
func (r *Runner) RunID() string {
	return r.opts.RunID
}

// Run performs one pass over the queue. It returns an error only for
// failures that prevent grading altogether; per-job failures are written to
// the queue and counted in the Summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := r.now()
	sum := Summary{RunID: r.opts.RunID}
	logger := log.With().Str("run", r.opts.RunID).Logger()

	logger.Info().
		Bool("dry_run", r.opts.DryRun).
		Bool("shared_thread", r.opts.SharedThread).
		Int("limit", r.opts.Limit).
		Int("row", r.opts.Row).
		Msg("Starting grading run")

	kc, err := r.deps.Knowledge.EnsureCache(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Knowledge cache could not be built, aborting run")
		return r.finish(ctx, sum, start, nil, fmt.Errorf("build knowledge cache: %w", err))
	}
	if r.opts.ReleaseCache {
		defer r.deps.Knowledge.Release(context.WithoutCancel(ctx), kc)
	}

	if err := r.deps.Session.Initialize(ctx, kc); err != nil {
		logger.Error().Err(err).Msg("Review session could not be initialized, aborting run")
		return r.finish(ctx, sum, start, kc, err)
	}

	jobs, err := r.deps.Queue.GetReadyJobs(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read the job queue")
		return r.finish(ctx, sum, start, kc, err)
	}
	jobs = r.selectJobs(jobs)
	sum.Ready = len(jobs)
	logger.Info().Int("jobs", len(jobs)).Msg("Jobs ready to grade")

	var runErr error
	for i := range jobs {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Int("remaining", len(jobs)-i).Msg("Run canceled, stopping before next job")
			runErr = err
			break
		}
		if err := r.processJob(ctx, &jobs[i], i == 0); err != nil {
			sum.Failed++
		} else {
			sum.Completed++
		}
	}

	return r.finish(ctx, sum, start, kc, runErr)
}

func (r *Runner) selectJobs(jobs []grading.Job) []grading.Job {
	if r.opts.Row > 0 {
		var only []grading.Job
		for _, j := range jobs {
			if j.RowIndex == r.opts.Row {
				only = append(only, j)
			}
		}
		if len(only) == 0 {
			log.Warn().Int("row", r.opts.Row).Msg("Requested row is not ready for grading")
		}
		jobs = only
	}
	if r.opts.Limit > 0 && len(jobs) > r.opts.Limit {
		jobs = jobs[:r.opts.Limit]
	}
	return jobs
}

func (r *Runner) finish(ctx context.Context, sum Summary, start time.Time, kc *grading.KnowledgeContext, runErr error) (Summary, error) {
	sum.Duration = r.now().Sub(start)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", "gradingRun").
		Metric("JobsReady", float64(sum.Ready), metrics.UnitCount).
		Metric("JobsCompleted", float64(sum.Completed), metrics.UnitCount).
		Metric("JobsFailed", float64(sum.Failed), metrics.UnitCount).
		Duration("RunDurationMs", sum.Duration).
		Property("runId", sum.RunID)
	if runErr != nil {
		m.Count("RunErrors")
	}
	m.Flush()

	rec := &ledger.RunRecord{
		RunID:      sum.RunID,
		AppVersion: r.opts.AppVersion,
		Ready:      sum.Ready,
		Completed:  sum.Completed,
		Failed:     sum.Failed,
		StartedAt:  start.Unix(),
		FinishedAt: r.now().Unix(),
	}
	if kc != nil {
		rec.CacheName = kc.Name
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := r.deps.Ledger.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn().Err(err).Str("run", sum.RunID).Msg("Failed to record run in ledger")
	}

	log.Info().
		Str("run", sum.RunID).
		Int("ready", sum.Ready).
		Int("completed", sum.Completed).
		Int("failed", sum.Failed).
		Dur("duration", sum.Duration).
		Msg("Grading run finished")
	return sum, runErr
}

// processJob grades one row. Any error, including a recovered panic, is
// written to the row's status before returning.
func (r *Runner) processJob(ctx context.Context, job *grading.Job, first bool) (err error) {
	logger := log.With().
		Str("run", r.opts.RunID).
		Int("row", job.RowIndex).
		Str("client", job.ClientName).
		Logger()
	logger.Info().Msg("Processing job")

	r.deps.Queue.MarkStarted(ctx, job)
	rec := &ledger.JobRecord{
		RunID:      r.opts.RunID,
		Row:        job.RowIndex,
		ClientID:   job.ClientID,
		ClientName: job.ClientName,
	}
	jobStart := r.now()

	defer func() {
		if p := recover(); p != nil {
			logger.Error().Interface("panic", p).Str("stack", string(debug.Stack())).Msg("Job panicked")
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			r.failJob(ctx, job, err)
			rec.Error = err.Error()
		}
		rec.Status = string(job.Status)
		rec.DurationSec = r.now().Sub(jobStart).Seconds()
		rec.FinishedAt = r.now().Unix()
		r.recordJob(ctx, rec, err == nil)
	}()

	workDir, err := os.MkdirTemp(r.opts.WorkDir, "grading-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logger.Warn().Err(rmErr).Str("dir", workDir).Msg("Failed to remove work dir")
		}
	}()

	if !first {
		if err := r.prepareSession(ctx); err != nil {
			return err
		}
	}

	docs := r.collectDocuments(ctx, logger, job, workDir)
	rec.Documents = len(docs)
	if len(docs) == 0 {
		return grading.ErrNoDocuments
	}

	logger.Info().Int("documents", len(docs)).Msg("Starting review")
	result, err := r.deps.Session.RunSteps(ctx, docs)
	if err != nil {
		return err
	}
	rec.TokensIn, rec.TokensOut = result.TokensIn, result.TokensOut
	for _, step := range r.deps.Session.History() {
		rec.StepRetries += step.Attempts - 1
		logger.Debug().
			Str("step", step.Name).
			Int("attempts", step.Attempts).
			Int("reply_chars", step.ReplyChars).
			Dur("elapsed", step.Duration).
			Msg("Review step summary")
	}

	name := publish.DeliverableName(job.ClientName, job.ClientID)
	body := []byte(result.FinalText)
	if err := os.WriteFile(filepath.Join(workDir, publish.LocalFileName(name)), body, 0o600); err != nil {
		return fmt.Errorf("write deliverable: %w", err)
	}

	ref, err := r.deps.Publisher.Publish(ctx, name, body)
	if err != nil {
		return fmt.Errorf("publish deliverable: %w", err)
	}
	rec.Deliverable = ref

	if r.opts.DryRun {
		job.Status = grading.StatusCompleted
		r.deps.Queue.UpdateStatus(ctx, job.RowIndex, job.Status)
	} else {
		r.deps.Queue.WriteResult(ctx, job, grading.Outcome{
			DeliverableRef: ref,
			TokensIn:       result.TokensIn,
			TokensOut:      result.TokensOut,
		})
	}

	logger.Info().
		Str("deliverable", ref).
		Int("tokens_in", result.TokensIn).
		Int("tokens_out", result.TokensOut).
		Dur("elapsed", r.now().Sub(jobStart)).
		Msg("Job graded")
	return nil
}

// prepareSession readies the review session for the next job: a fresh
// thread, or the same one when threads are shared across the run.
func (r *Runner) prepareSession(ctx context.Context) error {
	if r.opts.SharedThread {
		return r.deps.Session.Rearm()
	}
	if err := r.deps.Session.Reset(ctx); err != nil {
		return fmt.Errorf("reset review session: %w", err)
	}
	return nil
}

// collectDocuments normalizes every role with a plausible locator, in role
// order. Documents that fail are logged and skipped.
func (r *Runner) collectDocuments(ctx context.Context, logger zerolog.Logger, job *grading.Job, workDir string) []grading.NormalizedDocument {
	var docs []grading.NormalizedDocument
	for _, role := range grading.DocRoles {
		loc := job.Link(role)
		if !locator.Plausible(loc) {
			continue
		}
		doc, err := r.deps.Normalizer.Normalize(ctx, role, loc)
		if err != nil {
			logger.Warn().Err(err).Str("role", string(role)).Msg("Document unavailable, continuing without it")
			continue
		}
		if err := os.WriteFile(filepath.Join(workDir, doc.Name), doc.Data, 0o600); err != nil {
			logger.Warn().Err(err).Str("role", string(role)).Msg("Failed to stage document")
		}
		docs = append(docs, *doc)
	}
	return docs
}

func (r *Runner) failJob(ctx context.Context, job *grading.Job, cause error) {
	_ = jobutil.SetJobError(ctx, r.opts.RunID, job, cause, func(ctx context.Context, job *grading.Job, msg string) error {
		r.deps.Queue.SetError(ctx, job, msg)
		return nil
	})
}

func (r *Runner) recordJob(ctx context.Context, rec *ledger.JobRecord, ok bool) {
	m := metrics.New(metrics.Namespace).
		Dimension("Operation", "gradeJob").
		Metric("DocumentsNormalized", float64(rec.Documents), metrics.UnitCount).
		Metric("JobDurationMs", rec.DurationSec*1000, metrics.UnitMilliseconds).
		Metric("StepRetries", float64(rec.StepRetries), metrics.UnitCount).
		Property("runId", rec.RunID).
		Property("row", rec.Row)
	if ok {
		m.Count("JobsCompleted").
			Metric("TokensIn", float64(rec.TokensIn), metrics.UnitCount).
			Metric("TokensOut", float64(rec.TokensOut), metrics.UnitCount)
	} else {
		m.Count("JobsFailed")
	}
	m.Flush()

	if err := r.deps.Ledger.RecordJob(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn().Err(err).Int("row", rec.Row).Msg("Failed to record job in ledger")
	}
}
