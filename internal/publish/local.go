package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// LocalPublisher writes deliverables into a directory.
type LocalPublisher struct {
	Dir string
}

// Publish writes body to Dir/name and returns the absolute path.
func (p *LocalPublisher) Publish(_ context.Context, name string, body []byte) (string, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(p.Dir, LocalFileName(name))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	log.Info().Str("path", path).Int("bytes", len(body)).Msg("Deliverable written locally")
	return path, nil
}
