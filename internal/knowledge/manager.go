// Package knowledge builds the shared reference-document cache every review
// in a run is grounded on.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TrackerIA/new-grading-vawa/internal/assets"
	"github.com/TrackerIA/new-grading-vawa/internal/grading"
	"github.com/TrackerIA/new-grading-vawa/internal/retry"
)

// DisplayName labels the remote cache object.
const DisplayName = "vawa-fundamentos-cache"

// DefaultTTL is how long a cache stays usable after creation.
const DefaultTTL = 12 * time.Hour

// Document is one reference file to be cached.
type Document struct {
	Name string
	Data []byte
}

// CacheRequest describes the cache to create.
type CacheRequest struct {
	Model             string
	DisplayName       string
	SystemInstruction string
	Documents         []Document
	TTL               time.Duration
}

// CacheBackend creates and deletes remote context caches.
type CacheBackend interface {
	CreateCache(ctx context.Context, req CacheRequest) (*grading.KnowledgeContext, error)
	DeleteCache(ctx context.Context, name string) error
}

// Manager owns the lifecycle of the run's knowledge cache.
type Manager struct {
	backend CacheBackend
	dir     string
	model   string
	ttl     time.Duration
	policy  retry.Policy
}

// Config configures a Manager.
type Config struct {
	// Dir holds the reference PDFs.
	Dir   string
	Model string
	// TTL defaults to DefaultTTL.
	TTL    time.Duration
	Policy retry.Policy
}

// NewManager returns a Manager that builds caches through backend.
func NewManager(backend CacheBackend, cfg Config) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	policy := cfg.Policy
	if policy.MaxAttempts == 0 {
		policy = retry.Default()
	}
	return &Manager{
		backend: backend,
		dir:     cfg.Dir,
		model:   cfg.Model,
		ttl:     ttl,
		policy:  policy.With("knowledge.cache"),
	}
}

// EnsureCache reads every reference PDF and creates one fresh remote cache
// holding them. A missing or empty directory is a *grading.ConfigurationError
// and is never retried; upstream failures are retried under the run policy.
func (m *Manager) EnsureCache(ctx context.Context) (*grading.KnowledgeContext, error) {
	paths, err := ScanDir(m.dir)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(paths))
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, &grading.ConfigurationError{Message: "read reference document " + p, Err: err}
		}
		name := filepath.Base(p)
		docs = append(docs, Document{Name: name, Data: data})
		names = append(names, name)
	}

	log.Info().
		Strs("documents", names).
		Str("model", m.model).
		Dur("ttl", m.ttl).
		Msg("Creating knowledge cache")

	req := CacheRequest{
		Model:             m.model,
		DisplayName:       DisplayName,
		SystemInstruction: assets.KnowledgePreamble(),
		Documents:         docs,
		TTL:               m.ttl,
	}

	start := time.Now()
	kc, err := retry.Value(ctx, m.policy, func(ctx context.Context) (*grading.KnowledgeContext, error) {
		return m.backend.CreateCache(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("create knowledge cache: %w", err)
	}
	kc.SourceDocuments = names
	if kc.SystemPreamble == "" {
		kc.SystemPreamble = req.SystemInstruction
	}
	if kc.TTL == 0 {
		kc.TTL = m.ttl
	}

	log.Info().
		Str("cache", kc.Name).
		Time("expires", kc.ExpireTime).
		Dur("elapsed", time.Since(start)).
		Msg("Knowledge cache ready")
	return kc, nil
}

// Release deletes the remote cache. Failures are logged only; the cache
// expires on its own at the end of its TTL.
func (m *Manager) Release(ctx context.Context, kc *grading.KnowledgeContext) {
	if kc == nil || kc.Name == "" {
		return
	}
	if err := m.backend.DeleteCache(ctx, kc.Name); err != nil {
		log.Warn().Err(err).Str("cache", kc.Name).Msg("Failed to delete knowledge cache")
		return
	}
	log.Info().Str("cache", kc.Name).Msg("Knowledge cache deleted")
}

// ScanDir lists the PDFs (case-insensitive extension) directly inside dir,
// sorted by name.
func ScanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &grading.ConfigurationError{Message: "reference document directory does not exist: " + dir}
		}
		return nil, &grading.ConfigurationError{Message: "read reference document directory " + dir, Err: err}
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, &grading.ConfigurationError{Message: "no reference PDFs found in " + dir}
	}
	sort.Strings(paths)
	return paths, nil
}
