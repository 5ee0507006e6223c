package publish

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/TrackerIA/new-grading-vawa/internal/gdrive"
)

// Uploader is the Drive upload call.
type Uploader interface {
	Upload(ctx context.Context, folderID, name, mime string, body []byte) (*gdrive.File, error)
}

// DrivePublisher uploads deliverables into one Drive folder.
type DrivePublisher struct {
	uploader Uploader
	folderID string
}

// NewDrivePublisher returns a publisher for folderID.
func NewDrivePublisher(uploader Uploader, folderID string) *DrivePublisher {
	return &DrivePublisher{uploader: uploader, folderID: folderID}
}

// Publish uploads body and returns the file's web view link.
func (p *DrivePublisher) Publish(ctx context.Context, name string, body []byte) (string, error) {
	f, err := p.uploader.Upload(ctx, p.folderID, name, ContentType, body)
	if err != nil {
		return "", fmt.Errorf("upload %s to drive: %w", name, err)
	}
	link := f.WebViewLink
	if link == "" {
		link = "https://drive.google.com/file/d/" + f.ID + "/view"
	}
	log.Info().Str("name", name).Str("file_id", f.ID).Str("link", link).Msg("Deliverable uploaded to Drive")
	return link, nil
}
