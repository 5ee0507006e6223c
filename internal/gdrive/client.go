// Package gdrive wraps the Drive v3 API calls the grader needs: file
// metadata, PDF export of Google Docs, raw downloads, plain-text export of
// prompt documents and deliverable uploads. Every call is paced by a token
// bucket and retried under the run's retry policy.
package gdrive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/TrackerIA/new-grading-vawa/internal/retry"
)

// MIME types the grader distinguishes.
const (
	MimeGoogleDoc = "application/vnd.google-apps.document"
	MimePDF       = "application/pdf"
	MimeDocx      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText      = "text/plain"
	MimeMarkdown  = "text/markdown"
)

// MaxDownloadSize caps any single download or export.
const MaxDownloadSize = 200 << 20

// Drive allows roughly 10 requests per second per user; stay below it.
const (
	defaultRPS   = 8.0
	defaultBurst = 10
)

// File is the subset of Drive file metadata the grader uses.
type File struct {
	ID          string
	Name        string
	MIMEType    string
	Size        int64
	WebViewLink string
}

// Client performs paced, retried Drive operations.
type Client struct {
	svc      *drive.Service
	uploader *drive.Service
	limiter  *rate.Limiter
	policy   retry.Policy
}

// Option customizes a Client.
type Option func(*Client)

// WithUploader sends uploads through a different service, typically one
// authorized as an end user.
func WithUploader(svc *drive.Service) Option {
	return func(c *Client) { c.uploader = svc }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithRateLimit replaces the default pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New wraps an existing Drive service.
func New(svc *drive.Service, opts ...Option) *Client {
	c := &Client{
		svc:     svc,
		limiter: rate.NewLimiter(rate.Limit(defaultRPS), defaultBurst),
		policy:  retry.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.uploader == nil {
		c.uploader = svc
	}
	return c
}

// NewService creates a Drive service from client options.
func NewService(ctx context.Context, opts ...option.ClientOption) (*drive.Service, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}

func (c *Client) call(ctx context.Context, name string, op func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	return retry.Value(ctx, c.policy.With(name), func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return op(ctx)
	})
}

// Metadata fetches name, MIME type and size for a file.
func (c *Client) Metadata(ctx context.Context, fileID string) (*File, error) {
	return retry.Value(ctx, c.policy.With("drive.metadata"), func(ctx context.Context) (*File, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		f, err := c.svc.Files.Get(fileID).
			SupportsAllDrives(true).
			Fields("id, name, mimeType, size, webViewLink").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("get metadata %s: %w", fileID, err)
		}
		return &File{ID: f.Id, Name: f.Name, MIMEType: f.MimeType, Size: f.Size, WebViewLink: f.WebViewLink}, nil
	})
}

// ExportPDF exports a Google Workspace document as PDF.
func (c *Client) ExportPDF(ctx context.Context, fileID string) ([]byte, error) {
	return c.export(ctx, fileID, MimePDF)
}

// ExportText exports a Google Doc as UTF-8 text with any byte-order mark removed.
func (c *Client) ExportText(ctx context.Context, fileID string) (string, error) {
	data, err := c.export(ctx, fileID, MimeText)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

func (c *Client) export(ctx context.Context, fileID, mime string) ([]byte, error) {
	start := time.Now()
	data, err := c.call(ctx, "drive.export", func(ctx context.Context) ([]byte, error) {
		resp, err := c.svc.Files.Export(fileID, mime).Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("export %s as %s: %w", fileID, mime, err)
		}
		defer resp.Body.Close()
		return readLimited(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("file", fileID).Str("as", mime).Int("bytes", len(data)).Dur("elapsed", time.Since(start)).Msg("Drive export complete")
	return data, nil
}

// Download fetches a file's raw bytes.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	start := time.Now()
	data, err := c.call(ctx, "drive.download", func(ctx context.Context) ([]byte, error) {
		resp, err := c.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", fileID, err)
		}
		defer resp.Body.Close()
		return readLimited(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("file", fileID).Int("bytes", len(data)).Dur("elapsed", time.Since(start)).Msg("Drive download complete")
	return data, nil
}

// Upload creates a file in folderID and returns its metadata including the
// web view link.
func (c *Client) Upload(ctx context.Context, folderID, name, mime string, body []byte) (*File, error) {
	return retry.Value(ctx, c.policy.With("drive.upload"), func(ctx context.Context) (*File, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		meta := &drive.File{Name: name, MimeType: mime}
		if folderID != "" {
			meta.Parents = []string{folderID}
		}
		f, err := c.uploader.Files.Create(meta).
			Media(bytes.NewReader(body), googleapi.ContentType(mime)).
			SupportsAllDrives(true).
			Fields("id, name, mimeType, webViewLink").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", name, err)
		}
		log.Info().Str("file", f.Id).Str("name", name).Msg("Uploaded to Drive")
		return &File{ID: f.Id, Name: f.Name, MIMEType: f.MimeType, WebViewLink: f.WebViewLink}, nil
	})
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > MaxDownloadSize {
		return nil, fmt.Errorf("file exceeds %d bytes", MaxDownloadSize)
	}
	return data, nil
}
