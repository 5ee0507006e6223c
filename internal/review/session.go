// Package review runs the multi-step conversational review of one case
// against the shared knowledge cache.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
	"github.com/TrackerIA/new-grading-vawa/internal/locator"
	"github.com/TrackerIA/new-grading-vawa/internal/retry"
)

// State is the lifecycle position of a Session.
type State string

// Session states.
const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StateRunning       State = "running"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// DefaultPace is the pause after each successful step.
const DefaultPace = time.Second

// Reply is one model answer with the usage it reported.
type Reply struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Thread is one conversation with the model. Messages sent on a thread see
// every earlier exchange on it.
type Thread interface {
	Send(ctx context.Context, prompt string, attachments []grading.NormalizedDocument) (*Reply, error)
}

// ModelBackend opens conversation threads. When kc is nil the thread is
// not bound to a cache and preamble is used as its system instruction.
type ModelBackend interface {
	OpenThread(ctx context.Context, kc *grading.KnowledgeContext, preamble string) (Thread, error)
}

// PromptSource returns the plain text of a prompt document.
type PromptSource interface {
	ExportText(ctx context.Context, fileID string) (string, error)
}

// Result is the output of a completed review.
type Result struct {
	FinalText string
	// Token usage reported by the final step only.
	TokensIn  int
	TokensOut int
}

// StepRecord summarises one executed step.
type StepRecord struct {
	Name        string
	Attachments int
	PromptChars int
	ReplyChars  int
	TokensIn    int
	TokensOut   int
	Attempts    int
	Duration    time.Duration
}

// Options configures a Session.
type Options struct {
	Steps []grading.ReviewStep
	// SystemPrompt locates the system-instruction document.
	SystemPrompt string
	// StepPolicy defaults to retry.Step().
	StepPolicy retry.Policy
	// Pace defaults to DefaultPace; negative disables pacing.
	Pace time.Duration
	// Sleep is used for pacing. Nil uses a context-aware timer.
	Sleep retry.SleepFunc
	Now   func() time.Time
}

// Session owns one conversation thread bound to a knowledge cache. It is not
// safe for concurrent use.
type Session struct {
	backend ModelBackend
	prompts PromptSource
	opts    Options

	state    State
	kc       *grading.KnowledgeContext
	preamble string
	thread   Thread
	history  []StepRecord
}

// NewSession creates an uninitialized Session.
func NewSession(backend ModelBackend, prompts PromptSource, opts Options) *Session {
	if opts.StepPolicy.MaxAttempts == 0 {
		opts.StepPolicy = retry.Step()
	}
	if opts.Pace == 0 {
		opts.Pace = DefaultPace
	}
	if opts.Sleep == nil {
		opts.Sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StepPolicy.Sleep == nil {
		opts.StepPolicy.Sleep = opts.Sleep
	}
	return &Session{backend: backend, prompts: prompts, opts: opts, state: StateUninitialized}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// History returns the records of the most recent RunSteps call.
func (s *Session) History() []StepRecord {
	out := make([]StepRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Initialize fetches the system instruction and opens a thread bound to kc.
// With a valid cache the instruction is already part of the cached context
// and is not sent again; without one the thread is seeded with it.
func (s *Session) Initialize(ctx context.Context, kc *grading.KnowledgeContext) error {
	if s.state != StateUninitialized {
		return &grading.StateError{Op: "initialize", State: string(s.state)}
	}

	preamble, err := s.fetchPrompt(ctx, s.opts.SystemPrompt)
	if err != nil {
		return &grading.SessionInitError{Stage: "system instructions", Err: err}
	}
	log.Info().Int("chars", len(preamble)).Msg("System instructions loaded")

	if kc != nil && !kc.Valid(s.opts.Now()) {
		log.Warn().Str("cache", kc.Name).Time("expired", kc.ExpireTime).Msg("Knowledge cache unusable, starting uncached session")
		kc = nil
	}

	s.kc = kc
	s.preamble = preamble
	if err := s.open(ctx); err != nil {
		return &grading.SessionInitError{Stage: "thread", Err: err}
	}
	s.state = StateReady
	return nil
}

// Reset opens a fresh thread on the same cache so the next case starts with
// no conversational history. It also recovers a session left running by an
// aborted case.
func (s *Session) Reset(ctx context.Context) error {
	if s.state == StateUninitialized {
		return &grading.StateError{Op: "reset", State: string(s.state)}
	}
	if err := s.open(ctx); err != nil {
		s.state = StateFailed
		return fmt.Errorf("open review thread: %w", err)
	}
	s.state = StateReady
	return nil
}

// Rearm makes a finished session ready again on its existing thread, so the
// next case continues the same conversation. Like Reset it also recovers a
// session left running by an aborted case.
func (s *Session) Rearm() error {
	if s.state == StateUninitialized {
		return &grading.StateError{Op: "rearm", State: string(s.state)}
	}
	s.state = StateReady
	return nil
}

func (s *Session) open(ctx context.Context) error {
	thread, err := s.backend.OpenThread(ctx, s.kc, s.preamble)
	if err != nil {
		return err
	}
	s.thread = thread
	if s.kc != nil {
		log.Debug().Str("cache", s.kc.Name).Msg("Review thread opened with context cache")
	} else {
		log.Debug().Msg("Review thread opened without cache")
	}
	return nil
}

// RunSteps executes every step in order on the session's thread. The first
// step sends docs as attachments. On any step failure the session moves to
// failed and no partial result is returned.
func (s *Session) RunSteps(ctx context.Context, docs []grading.NormalizedDocument) (*Result, error) {
	if s.state != StateReady {
		return nil, &grading.StateError{Op: "run_steps", State: string(s.state)}
	}
	s.state = StateRunning
	s.history = s.history[:0]

	var last *Reply
	for i, step := range s.opts.Steps {
		reply, err := s.runStep(ctx, step, docs)
		if err != nil {
			s.state = StateFailed
			log.Error().Err(err).Str("step", step.Name).Int("index", i+1).Msg("Review step failed")
			return nil, fmt.Errorf("review step %q: %w", step.Name, err)
		}
		last = reply

		if s.opts.Pace > 0 {
			if err := s.opts.Sleep(ctx, s.opts.Pace); err != nil {
				s.state = StateFailed
				return nil, err
			}
		}
	}
	if last == nil {
		s.state = StateFailed
		return nil, errors.New("review has no steps")
	}

	s.state = StateCompleted
	return &Result{FinalText: last.Text, TokensIn: last.TokensIn, TokensOut: last.TokensOut}, nil
}

func (s *Session) runStep(ctx context.Context, step grading.ReviewStep, docs []grading.NormalizedDocument) (*Reply, error) {
	start := time.Now()
	log.Info().Str("step", step.Name).Msg("Running review step")

	prompt, err := s.fetchPrompt(ctx, step.PromptLocator)
	if err != nil {
		return nil, fmt.Errorf("fetch prompt: %w", err)
	}

	var attachments []grading.NormalizedDocument
	if step.AttachesCaseDocuments && len(docs) > 0 {
		attachments = docs
		log.Info().Int("documents", len(docs)).Msg("Attaching case documents")
	}

	attempts := 0
	reply, err := retry.Value(ctx, s.opts.StepPolicy.With("review.send"), func(ctx context.Context) (*Reply, error) {
		attempts++
		return s.thread.Send(ctx, prompt, attachments)
	})
	if err != nil {
		return nil, err
	}

	rec := StepRecord{
		Name:        step.Name,
		Attachments: len(attachments),
		PromptChars: len(prompt),
		ReplyChars:  len(reply.Text),
		TokensIn:    reply.TokensIn,
		TokensOut:   reply.TokensOut,
		Attempts:    attempts,
		Duration:    time.Since(start),
	}
	s.history = append(s.history, rec)

	log.Info().
		Str("step", step.Name).
		Int("attempts", attempts).
		Int("tokens_in", reply.TokensIn).
		Int("tokens_out", reply.TokensOut).
		Dur("elapsed", rec.Duration).
		Msg("Review step complete")
	return reply, nil
}

func (s *Session) fetchPrompt(ctx context.Context, loc string) (string, error) {
	id, ok := locator.FileID(loc)
	if !ok {
		return "", fmt.Errorf("unresolvable prompt locator %q", loc)
	}
	text, err := s.prompts.ExportText(ctx, id)
	if err != nil {
		return "", err
	}
	return text, nil
}
