// Package normalize converts case documents of any supported source format
// into the PDF bytes the review model is given.
package normalize

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TrackerIA/new-grading-vawa/internal/gdrive"
	"github.com/TrackerIA/new-grading-vawa/internal/grading"
	"github.com/TrackerIA/new-grading-vawa/internal/locator"
)

// Source is the document store the normalizer reads from.
type Source interface {
	Metadata(ctx context.Context, fileID string) (*gdrive.File, error)
	ExportPDF(ctx context.Context, fileID string) ([]byte, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Normalizer fetches documents from a Source and converts them to PDF.
type Normalizer struct {
	src Source
}

// New returns a Normalizer reading from src.
func New(src Source) *Normalizer {
	return &Normalizer{src: src}
}

// Normalize resolves locator, looks up the file's type and converts it.
// Every failure is returned as a *grading.NormalizationError.
func (n *Normalizer) Normalize(ctx context.Context, role grading.DocRole, loc string) (*grading.NormalizedDocument, error) {
	fileID, ok := locator.FileID(loc)
	if !ok {
		return nil, &grading.NormalizationError{Locator: loc, Err: fmt.Errorf("unresolvable locator")}
	}

	meta, err := n.src.Metadata(ctx, fileID)
	if err != nil {
		return nil, &grading.NormalizationError{Locator: loc, Err: err}
	}

	start := time.Now()
	data, err := n.Convert(ctx, fileID, meta.MIMEType)
	if err != nil {
		return nil, &grading.NormalizationError{Locator: loc, MIMEType: meta.MIMEType, Err: err}
	}

	log.Info().
		Str("role", string(role)).
		Str("file", fileID).
		Str("name", meta.Name).
		Str("mime", meta.MIMEType).
		Int("bytes", len(data)).
		Dur("elapsed", time.Since(start)).
		Msg("Document normalized")

	return &grading.NormalizedDocument{
		Role:     role,
		Locator:  loc,
		Name:     string(role) + ".pdf",
		MIMEType: gdrive.MimePDF,
		Data:     data,
	}, nil
}

// Convert produces PDF bytes for fileID given its declared MIME type.
// Unknown types are downloaded unchanged; the result may not be a valid PDF.
func (n *Normalizer) Convert(ctx context.Context, fileID, mimeType string) ([]byte, error) {
	switch mimeType {
	case gdrive.MimeGoogleDoc:
		return n.src.ExportPDF(ctx, fileID)

	case gdrive.MimePDF:
		return n.src.Download(ctx, fileID)

	case gdrive.MimeDocx:
		raw, err := n.src.Download(ctx, fileID)
		if err != nil {
			return nil, err
		}
		text, err := ExtractDocxText(raw)
		if err != nil {
			return nil, err
		}
		return RenderText(text)

	case gdrive.MimeText:
		raw, err := n.src.Download(ctx, fileID)
		if err != nil {
			return nil, err
		}
		return RenderText(DecodeText(raw))

	default:
		log.Warn().Str("file", fileID).Str("mime", mimeType).Msg("Unrecognized document type, downloading raw bytes")
		return n.src.Download(ctx, fileID)
	}
}
