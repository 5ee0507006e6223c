package publish

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
)

// GCSArchive copies deliverables to gs://<bucket>/<prefix><name>.
type GCSArchive struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewGCSArchive returns an archive publisher for bucket.
func NewGCSArchive(client *storage.Client, bucket, prefix string) *GCSArchive {
	return &GCSArchive{bucket: client.Bucket(bucket), name: bucket, prefix: prefix}
}

// Publish uploads body and returns its gs:// URI. A failed write cancels
// the upload so no partial object is committed.
func (a *GCSArchive) Publish(ctx context.Context, name string, body []byte) (string, error) {
	key := a.prefix + name

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := a.bucket.Object(key).NewWriter(ctx)
	w.ContentType = ContentType + "; charset=utf-8"
	if _, err := w.Write(body); err != nil {
		cancel()
		_ = w.Close()
		return "", fmt.Errorf("write gs://%s/%s: %w", a.name, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gs://%s/%s: %w", a.name, key, err)
	}

	log.Debug().Str("bucket", a.name).Str("object", key).Msg("Deliverable archived to GCS")
	return fmt.Sprintf("gs://%s/%s", a.name, key), nil
}
