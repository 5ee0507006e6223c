package chat

// cache.go creates and deletes the Vertex context cache holding the
// reference documents shared by every review in a run.

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
	"github.com/TrackerIA/new-grading-vawa/internal/knowledge"
	"github.com/TrackerIA/new-grading-vawa/internal/metrics"
)

// CreateCache uploads the reference documents into a new cached content
// entry and returns it as a KnowledgeContext.
func (c *Client) CreateCache(ctx context.Context, req knowledge.CacheRequest) (*grading.KnowledgeContext, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	parts := make([]*genai.Part, 0, len(req.Documents))
	var totalBytes int
	for _, d := range req.Documents {
		parts = append(parts, genai.NewPartFromBytes(d.Data, "application/pdf"))
		totalBytes += len(d.Data)
	}

	log.Info().
		Str("display_name", req.DisplayName).
		Str("model", model).
		Dur("ttl", req.TTL).
		Int("content_parts", len(parts)).
		Int("bytes", totalBytes).
		Msg("Creating Gemini context cache")

	createStart := time.Now()
	cached, err := c.genai.Caches.Create(ctx, model, &genai.CreateCachedContentConfig{
		DisplayName: req.DisplayName,
		TTL:         req.TTL,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		},
		Contents: []*genai.Content{{Role: "user", Parts: parts}},
	})
	createDuration := time.Since(createStart)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", "cacheCreate").
		Duration("GeminiApiLatencyMs", createDuration).
		Count("GeminiApiCalls")
	if err != nil {
		m.Count("GeminiApiErrors").Flush()
		log.Warn().Err(err).Dur("duration", createDuration).Msg("Failed to create Gemini context cache")
		return nil, fmt.Errorf("create cached content: %w", err)
	}
	m.Flush()

	log.Info().
		Str("cache_name", cached.Name).
		Time("expires", cached.ExpireTime).
		Dur("duration", createDuration).
		Msg("Gemini context cache created")

	return &grading.KnowledgeContext{
		Name:           cached.Name,
		DisplayName:    req.DisplayName,
		Model:          model,
		SystemPreamble: req.SystemInstruction,
		TTL:            req.TTL,
		ExpireTime:     cached.ExpireTime,
	}, nil
}

// DeleteCache removes a cached content entry.
func (c *Client) DeleteCache(ctx context.Context, name string) error {
	if _, err := c.genai.Caches.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("delete cached content %s: %w", name, err)
	}
	log.Debug().Str("cache_name", name).Msg("Gemini context cache deleted")
	return nil
}
