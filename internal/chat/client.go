// Package chat talks to Gemini on Vertex AI: it creates the knowledge
// context cache and runs review conversations bound to it.
package chat

import (
	"context"
	"fmt"

	"cloud.google.com/go/auth"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Client adapts a genai client to the knowledge and review backends.
type Client struct {
	genai *genai.Client
	model string
}

// NewVertexClient creates a genai client on the Vertex AI backend.
func NewVertexClient(ctx context.Context, project, location string, creds *auth.Credentials) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:     project,
		Location:    location,
		Backend:     genai.BackendVertexAI,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}
	log.Debug().Str("project", project).Str("location", location).Msg("Vertex AI client created")
	return client, nil
}

// New wraps client. model is used for uncached threads and new caches when
// a request does not name one.
func New(client *genai.Client, model string) *Client {
	if model == "" {
		model = DefaultModelName
	}
	return &Client{genai: client, model: model}
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.model
}
