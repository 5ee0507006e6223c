package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
	"github.com/TrackerIA/new-grading-vawa/internal/metrics"
	"github.com/TrackerIA/new-grading-vawa/internal/review"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("received empty response from Gemini")

// OpenThread starts a chat. With a cache the model and system instruction
// come from the cached content; otherwise preamble becomes the system
// instruction of an uncached chat on the default model.
func (c *Client) OpenThread(ctx context.Context, kc *grading.KnowledgeContext, preamble string) (review.Thread, error) {
	cfg := &genai.GenerateContentConfig{}
	model := c.model
	if kc != nil {
		cfg.CachedContent = kc.Name
		if kc.Model != "" {
			model = kc.Model
		}
	} else {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: preamble}}}
	}

	chat, err := c.genai.Chats.Create(ctx, model, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &thread{chat: chat, model: model}, nil
}

type thread struct {
	chat  *genai.Chat
	model string
}

// Send posts one user turn. The chat only records the turn in its history
// when the call succeeds, so a failed send can be retried as is.
func (t *thread) Send(ctx context.Context, prompt string, attachments []grading.NormalizedDocument) (*review.Reply, error) {
	parts := make([]genai.Part, 0, len(attachments)+1)
	parts = append(parts, genai.Part{Text: prompt})
	for _, d := range attachments {
		parts = append(parts, *genai.NewPartFromBytes(d.Data, d.MIMEType))
	}

	geminiStart := time.Now()
	log.Debug().
		Str("model", t.model).
		Int("part_count", len(parts)).
		Msg("Sending review message to Gemini")
	resp, err := t.chat.SendMessage(ctx, parts...)
	geminiElapsed := time.Since(geminiStart)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", "reviewStep").
		Duration("GeminiApiLatencyMs", geminiElapsed).
		Count("GeminiApiCalls")
	if err != nil {
		m.Count("GeminiApiErrors")
	}
	in, out := usage(resp)
	if in > 0 || out > 0 {
		m.Metric("GeminiInputTokens", float64(in), metrics.UnitCount)
		m.Metric("GeminiOutputTokens", float64(out), metrics.UnitCount)
	}
	m.Flush()

	if err != nil {
		log.Warn().Err(err).Dur("duration", geminiElapsed).Msg("Gemini review call failed")
		return nil, fmt.Errorf("send message: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyResponse
	}

	log.Debug().
		Int("response_length", len(text)).
		Int("tokens_in", in).
		Int("tokens_out", out).
		Dur("duration", geminiElapsed).
		Msg("Gemini review response received")
	return &review.Reply{Text: text, TokensIn: in, TokensOut: out}, nil
}

func usage(resp *genai.GenerateContentResponse) (in, out int) {
	if resp == nil || resp.UsageMetadata == nil {
		return 0, 0
	}
	return int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount)
}
