// Package publish delivers finished grading reports: to the Drive results
// folder, to a local directory on dry runs, and optionally to archive
// buckets on GCS or S3.
package publish

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ContentType of every deliverable.
const ContentType = "text/markdown"

// Publisher stores a deliverable and returns a reference to it, such as a
// web link or object URI.
type Publisher interface {
	Publish(ctx context.Context, name string, body []byte) (string, error)
}

// DeliverableName returns the report file name for a client:
// GRADING_<name with spaces as underscores>_<id>.md.
func DeliverableName(clientName, clientID string) string {
	return "GRADING_" + strings.ReplaceAll(clientName, " ", "_") + "_" + clientID + ".md"
}

// LocalFileName makes a deliverable name safe to use as a single path
// element by replacing path separators with underscores.
func LocalFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == filepath.Separator {
			return '_'
		}
		return r
	}, name)
}

// Multi publishes to a primary destination and then to any archives.
// Only the primary can fail a publish; archive errors are logged.
type Multi struct {
	Primary  Publisher
	Archives []Publisher
}

// Publish returns the primary's reference.
func (m *Multi) Publish(ctx context.Context, name string, body []byte) (string, error) {
	ref, err := m.Primary.Publish(ctx, name, body)
	if err != nil {
		return "", err
	}
	for _, a := range m.Archives {
		archived, err := a.Publish(ctx, name, body)
		if err != nil {
			log.Warn().Err(err).Str("name", name).Msg("Failed to archive deliverable")
			continue
		}
		log.Debug().Str("name", name).Str("ref", archived).Msg("Deliverable archived")
	}
	return ref, nil
}
