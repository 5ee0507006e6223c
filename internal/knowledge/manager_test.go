package knowledge

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
	"github.com/TrackerIA/new-grading-vawa/internal/retry"
)

type fakeBackend struct {
	failures  int
	calls     int
	requests  []CacheRequest
	deleted   []string
	deleteErr error
}

func (f *fakeBackend) CreateCache(_ context.Context, req CacheRequest) (*grading.KnowledgeContext, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if f.calls <= f.failures {
		return nil, &googleapi.Error{Code: http.StatusServiceUnavailable}
	}
	return &grading.KnowledgeContext{
		Name:        "projects/p/locations/us-west1/cachedContents/123",
		DisplayName: req.DisplayName,
		Model:       req.Model,
		ExpireTime:  time.Now().Add(req.TTL),
	}, nil
}

func (f *fakeBackend) DeleteCache(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return f.deleteErr
}

func fastPolicy() retry.Policy {
	p := retry.Default()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	p.Notify = func(int, error, time.Duration) {}
	return p
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("%PDF "+n), 0o644))
	}
}

func TestEnsureCache(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b-guia.pdf", "A-ley.PDF", "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	backend := &fakeBackend{}
	m := NewManager(backend, Config{Dir: dir, Model: "gemini-2.5-flash", Policy: fastPolicy()})

	kc, err := m.EnsureCache(context.Background())
	require.NoError(t, err)

	require.Len(t, backend.requests, 1)
	req := backend.requests[0]
	assert.Equal(t, DisplayName, req.DisplayName)
	assert.Equal(t, "gemini-2.5-flash", req.Model)
	assert.Equal(t, 12*time.Hour, req.TTL)
	assert.Contains(t, req.SystemInstruction, "VAWA")
	require.Len(t, req.Documents, 2)
	assert.Equal(t, "A-ley.PDF", req.Documents[0].Name)
	assert.Equal(t, "%PDF A-ley.PDF", string(req.Documents[0].Data))

	assert.Equal(t, []string{"A-ley.PDF", "b-guia.pdf"}, kc.SourceDocuments)
	assert.Equal(t, 12*time.Hour, kc.TTL)
	assert.True(t, kc.Valid(time.Now()))
}

func TestEnsureCache_RetriesTransient(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "ley.pdf")
	backend := &fakeBackend{failures: 2}

	kc, err := NewManager(backend, Config{Dir: dir, Policy: fastPolicy()}).EnsureCache(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, kc)
	assert.Equal(t, 3, backend.calls)
}

func TestEnsureCache_GivesUp(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "ley.pdf")
	backend := &fakeBackend{failures: 100}

	_, err := NewManager(backend, Config{Dir: dir, Policy: fastPolicy()}).EnsureCache(context.Background())
	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, backend.calls)
}

func TestEnsureCache_ConfigurationErrors(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		backend := &fakeBackend{}
		_, err := NewManager(backend, Config{Dir: filepath.Join(t.TempDir(), "nope")}).EnsureCache(context.Background())
		var cfgErr *grading.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Zero(t, backend.calls)
	})

	t.Run("no pdfs", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "readme.md")
		backend := &fakeBackend{}
		_, err := NewManager(backend, Config{Dir: dir}).EnsureCache(context.Background())
		var cfgErr *grading.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Zero(t, backend.calls)
	})
}

func TestRelease(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, Config{})

	m.Release(context.Background(), nil)
	m.Release(context.Background(), &grading.KnowledgeContext{})
	assert.Empty(t, backend.deleted)

	backend.deleteErr = errors.New("gone")
	m.Release(context.Background(), &grading.KnowledgeContext{Name: "cachedContents/1"})
	assert.Equal(t, []string{"cachedContents/1"}, backend.deleted)
}
