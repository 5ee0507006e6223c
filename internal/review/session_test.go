package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrackerIA/new-grading-vawa/internal/config"
	"github.com/TrackerIA/new-grading-vawa/internal/grading"
	"github.com/TrackerIA/new-grading-vawa/internal/locator"
)

type sent struct {
	prompt      string
	attachments int
}

type fakeThread struct {
	id    int
	sends []sent
	// failures maps a prompt to the number of times it should fail first.
	failures map[string]int
	calls    int

	// panicOnSend makes the next Send panic once.
	panicOnSend bool
}

func (f *fakeThread) Send(_ context.Context, prompt string, attachments []grading.NormalizedDocument) (*Reply, error) {
	f.calls++
	if f.panicOnSend {
		f.panicOnSend = false
		panic("model client exploded")
	}
	if f.failures[prompt] > 0 {
		f.failures[prompt]--
		return nil, errors.New("model overloaded")
	}
	f.sends = append(f.sends, sent{prompt: prompt, attachments: len(attachments)})
	return &Reply{Text: "answer to " + prompt, TokensIn: 100 * f.calls, TokensOut: 10 * f.calls}, nil
}

type fakeBackend struct {
	threads   []*fakeThread
	caches    []*grading.KnowledgeContext
	preambles []string
	openErr   error
	failures  map[string]int
}

func (f *fakeBackend) OpenThread(_ context.Context, kc *grading.KnowledgeContext, preamble string) (Thread, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	t := &fakeThread{id: len(f.threads) + 1, failures: f.failures}
	f.threads = append(f.threads, t)
	f.caches = append(f.caches, kc)
	f.preambles = append(f.preambles, preamble)
	return t, nil
}

type fakePrompts struct {
	err     error
	fetched []string
}

func (f *fakePrompts) ExportText(_ context.Context, id string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.fetched = append(f.fetched, id)
	return "P:" + id, nil
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func validCache() *grading.KnowledgeContext {
	return &grading.KnowledgeContext{Name: "cachedContents/1", Model: "gemini-2.5-flash", ExpireTime: now.Add(12 * time.Hour)}
}

func promptFor(t *testing.T, loc string) string {
	t.Helper()
	id, ok := locator.FileID(loc)
	require.True(t, ok)
	return "P:" + id
}

func newTestSession(backend *fakeBackend, prompts *fakePrompts, rec *sleepRecorder) *Session {
	p := config.DefaultPrompts()
	return NewSession(backend, prompts, Options{
		Steps:        Steps(p),
		SystemPrompt: p.SystemInstructions,
		Sleep:        rec.sleep,
		Now:          func() time.Time { return now },
	})
}

func docs() []grading.NormalizedDocument {
	return []grading.NormalizedDocument{
		{Role: grading.RoleTranscript, Data: []byte("%PDF t")},
		{Role: grading.RoleSummary, Data: []byte("%PDF s")},
	}
}

func TestRunSteps_OrderAndAttachments(t *testing.T) {
	backend := &fakeBackend{}
	prompts := &fakePrompts{}
	rec := &sleepRecorder{}
	s := newTestSession(backend, prompts, rec)

	require.NoError(t, s.Initialize(context.Background(), validCache()))
	assert.Equal(t, StateReady, s.State())

	res, err := s.RunSteps(context.Background(), docs())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, s.State())

	p := config.DefaultPrompts()
	want := []sent{
		{prompt: promptFor(t, p.QualifyingRelationship), attachments: 2},
		{prompt: promptFor(t, p.GoodFaithCharacter)},
		{prompt: promptFor(t, p.JointResidence)},
		{prompt: promptFor(t, p.PermanentBar)},
		{prompt: promptFor(t, p.PresenceOfAbuse)},
		{prompt: promptFor(t, p.FinalAudit)},
	}
	require.Len(t, backend.threads, 1)
	assert.Equal(t, want, backend.threads[0].sends)

	// Usage comes from the final step only.
	assert.Equal(t, "answer to "+promptFor(t, p.FinalAudit), res.FinalText)
	assert.Equal(t, 600, res.TokensIn)
	assert.Equal(t, 60, res.TokensOut)

	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second, time.Second, time.Second, time.Second}, rec.delays)

	hist := s.History()
	require.Len(t, hist, 6)
	assert.Equal(t, StepQualifyingRelationship, hist[0].Name)
	assert.Equal(t, 2, hist[0].Attachments)
	assert.Equal(t, StepFinalAudit, hist[5].Name)
}

func TestInitialize_CachedThreadGetsCache(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(backend, &fakePrompts{}, &sleepRecorder{})

	kc := validCache()
	require.NoError(t, s.Initialize(context.Background(), kc))
	assert.Same(t, kc, backend.caches[0])
	assert.Equal(t, promptFor(t, config.DefaultPrompts().SystemInstructions), backend.preambles[0])
}

func TestInitialize_WithoutCacheOrExpired(t *testing.T) {
	for name, kc := range map[string]*grading.KnowledgeContext{
		"nil":     nil,
		"expired": {Name: "cachedContents/old", ExpireTime: now.Add(-time.Minute)},
	} {
		t.Run(name, func(t *testing.T) {
			backend := &fakeBackend{}
			s := newTestSession(backend, &fakePrompts{}, &sleepRecorder{})
			require.NoError(t, s.Initialize(context.Background(), kc))
			assert.Nil(t, backend.caches[0])
		})
	}
}

func TestInitialize_Failures(t *testing.T) {
	t.Run("prompt fetch", func(t *testing.T) {
		s := newTestSession(&fakeBackend{}, &fakePrompts{err: errors.New("403")}, &sleepRecorder{})
		err := s.Initialize(context.Background(), validCache())
		var initErr *grading.SessionInitError
		require.ErrorAs(t, err, &initErr)
		assert.Equal(t, "system instructions", initErr.Stage)
		assert.Equal(t, StateUninitialized, s.State())
	})

	t.Run("open thread", func(t *testing.T) {
		s := newTestSession(&fakeBackend{openErr: errors.New("bad model")}, &fakePrompts{}, &sleepRecorder{})
		err := s.Initialize(context.Background(), validCache())
		var initErr *grading.SessionInitError
		require.ErrorAs(t, err, &initErr)
		assert.Equal(t, "thread", initErr.Stage)
	})

	t.Run("twice", func(t *testing.T) {
		s := newTestSession(&fakeBackend{}, &fakePrompts{}, &sleepRecorder{})
		require.NoError(t, s.Initialize(context.Background(), validCache()))
		var stateErr *grading.StateError
		assert.ErrorAs(t, s.Initialize(context.Background(), validCache()), &stateErr)
	})
}

func TestRunSteps_RequiresReady(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(backend, &fakePrompts{}, &sleepRecorder{})

	_, err := s.RunSteps(context.Background(), docs())
	var stateErr *grading.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "uninitialized", stateErr.State)

	require.NoError(t, s.Initialize(context.Background(), validCache()))
	_, err = s.RunSteps(context.Background(), docs())
	require.NoError(t, err)

	_, err = s.RunSteps(context.Background(), docs())
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "completed", stateErr.State)
}

func TestRunSteps_RetriesThenSucceeds(t *testing.T) {
	p := config.DefaultPrompts()
	backend := &fakeBackend{failures: map[string]int{promptFor(t, p.JointResidence): 2}}
	rec := &sleepRecorder{}
	s := newTestSession(backend, &fakePrompts{}, rec)
	require.NoError(t, s.Initialize(context.Background(), validCache()))

	_, err := s.RunSteps(context.Background(), docs())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, s.State())

	// Two pacing waits, two retry waits (1s, 2s), then pacing for the rest.
	assert.Equal(t, []time.Duration{
		time.Second, time.Second,
		time.Second, 2 * time.Second,
		time.Second, time.Second, time.Second, time.Second,
	}, rec.delays)
	assert.Equal(t, 3, s.History()[2].Attempts)
}

func TestRunSteps_ExhaustedFails(t *testing.T) {
	p := config.DefaultPrompts()
	backend := &fakeBackend{failures: map[string]int{promptFor(t, p.GoodFaithCharacter): 100}}
	s := newTestSession(backend, &fakePrompts{}, &sleepRecorder{})
	require.NoError(t, s.Initialize(context.Background(), validCache()))

	res, err := s.RunSteps(context.Background(), docs())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, StateFailed, s.State())
	assert.Contains(t, err.Error(), StepGoodFaithCharacter)
	// One successful first step, then four tries of the second.
	assert.Equal(t, 5, backend.threads[0].calls)
}

func TestReset_OpensFreshThread(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(backend, &fakePrompts{}, &sleepRecorder{})

	var stateErr *grading.StateError
	require.ErrorAs(t, s.Reset(context.Background()), &stateErr)

	require.NoError(t, s.Initialize(context.Background(), validCache()))
	_, err := s.RunSteps(context.Background(), docs())
	require.NoError(t, err)

	require.NoError(t, s.Reset(context.Background()))
	assert.Equal(t, StateReady, s.State())
	require.Len(t, backend.threads, 2)
	assert.Same(t, backend.caches[0], backend.caches[1])

	_, err = s.RunSteps(context.Background(), docs())
	require.NoError(t, err)
	assert.Len(t, backend.threads[1].sends, 6)
}

func TestRearm_KeepsThread(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(backend, &fakePrompts{}, &sleepRecorder{})
	require.NoError(t, s.Initialize(context.Background(), validCache()))
	_, err := s.RunSteps(context.Background(), docs())
	require.NoError(t, err)

	require.NoError(t, s.Rearm())
	_, err = s.RunSteps(context.Background(), docs())
	require.NoError(t, err)

	require.Len(t, backend.threads, 1)
	assert.Len(t, backend.threads[0].sends, 12)
}

func TestRearm_RecoversAbortedRun(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(backend, &fakePrompts{}, &sleepRecorder{})

	var stateErr *grading.StateError
	require.ErrorAs(t, s.Rearm(), &stateErr)

	require.NoError(t, s.Initialize(context.Background(), validCache()))
	backend.threads[0].panicOnSend = true
	assert.Panics(t, func() { _, _ = s.RunSteps(context.Background(), docs()) })
	assert.Equal(t, StateRunning, s.State())

	require.NoError(t, s.Rearm())
	assert.Equal(t, StateReady, s.State())
	_, err := s.RunSteps(context.Background(), docs())
	require.NoError(t, err)
	require.Len(t, backend.threads, 1)
	assert.Len(t, backend.threads[0].sends, 6)
}

func TestSteps(t *testing.T) {
	steps := Steps(config.DefaultPrompts())
	require.Len(t, steps, 6)
	for i, s := range steps {
		assert.Equal(t, i == 0, s.AttachesCaseDocuments, s.Name)
		_, ok := locator.FileID(s.PromptLocator)
		assert.True(t, ok, s.Name)
	}
}
