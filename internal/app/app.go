// Package app wires the grader's components from a Config. Both the CLI and
// the Lambda entry point build their runner here.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/TrackerIA/new-grading-vawa/internal/chat"
	"github.com/TrackerIA/new-grading-vawa/internal/config"
	"github.com/TrackerIA/new-grading-vawa/internal/gauth"
	"github.com/TrackerIA/new-grading-vawa/internal/gdrive"
	"github.com/TrackerIA/new-grading-vawa/internal/jobstore"
	"github.com/TrackerIA/new-grading-vawa/internal/knowledge"
	"github.com/TrackerIA/new-grading-vawa/internal/ledger"
	"github.com/TrackerIA/new-grading-vawa/internal/normalize"
	"github.com/TrackerIA/new-grading-vawa/internal/pipeline"
	"github.com/TrackerIA/new-grading-vawa/internal/publish"
	"github.com/TrackerIA/new-grading-vawa/internal/review"
)

// Extras are optional AWS-backed collaborators.
type Extras struct {
	S3     publish.PutObjectAPI
	Ledger ledger.Ledger
}

// Components is everything a grading run needs.
type Components struct {
	cfg *config.Config

	Credentials *auth.Credentials
	Drive       *gdrive.Client
	Chat        *chat.Client
	Knowledge   *knowledge.Manager
	Normalizer  *normalize.Normalizer
	Queue       *jobstore.Store
	Publisher   publish.Publisher
	Ledger      ledger.Ledger

	closers []func() error
}

// NewDrive resolves credentials and builds the Drive client. Uploads go
// through the end-user token in cfg.TokenFile when that file exists.
func NewDrive(ctx context.Context, cfg *config.Config) (*gdrive.Client, *auth.Credentials, error) {
	creds, err := gauth.ServiceCredentials(ctx, cfg.CredentialsFile, []byte(cfg.CredentialsJSON))
	if err != nil {
		return nil, nil, err
	}
	svc, err := gdrive.NewService(ctx, gauth.ClientOptions(creds)...)
	if err != nil {
		return nil, nil, err
	}

	opts := []gdrive.Option{gdrive.WithRetryPolicy(cfg.RetryPolicy())}
	if _, statErr := os.Stat(cfg.TokenFile); statErr == nil {
		ts, err := gauth.UserTokenSource(ctx, cfg.TokenFile)
		if err != nil {
			return nil, nil, err
		}
		uploader, err := drive.NewService(ctx, option.WithTokenSource(ts))
		if err != nil {
			return nil, nil, fmt.Errorf("create drive upload service: %w", err)
		}
		opts = append(opts, gdrive.WithUploader(uploader))
		log.Debug().Str("token_file", cfg.TokenFile).Msg("Drive uploads use end-user OAuth token")
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("stat oauth token %s: %w", cfg.TokenFile, statErr)
	}
	return gdrive.New(svc, opts...), creds, nil
}

// NewKnowledge builds the Gemini client and the knowledge cache manager.
func NewKnowledge(ctx context.Context, cfg *config.Config, creds *auth.Credentials) (*chat.Client, *knowledge.Manager, error) {
	gc, err := chat.NewVertexClient(ctx, cfg.ProjectID, cfg.Location, creds)
	if err != nil {
		return nil, nil, err
	}
	cc := chat.New(gc, cfg.Model)
	km := knowledge.NewManager(cc, knowledge.Config{
		Dir:    cfg.FundamentosDir,
		Model:  cc.Model(),
		TTL:    cfg.CacheTTL,
		Policy: cfg.RetryPolicy(),
	})
	return cc, km, nil
}

// Build constructs every component for a run. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, extras Extras) (*Components, error) {
	c := &Components{cfg: cfg, Ledger: extras.Ledger}
	if c.Ledger == nil {
		c.Ledger = ledger.Nop{}
	}

	var err error
	c.Drive, c.Credentials, err = NewDrive(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Chat, c.Knowledge, err = NewKnowledge(ctx, cfg, c.Credentials)
	if err != nil {
		return nil, err
	}
	c.Normalizer = normalize.New(c.Drive)

	table, err := c.newTable(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Queue = jobstore.New(table, cfg.AppVersion)

	c.Publisher, err = c.newPublisher(ctx, extras)
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) newTable(ctx context.Context) (jobstore.Table, error) {
	if c.cfg.QueueFile != "" {
		wb, err := jobstore.OpenWorkbook(c.cfg.QueueFile, c.cfg.SheetName)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, wb.Close)
		log.Info().Str("file", c.cfg.QueueFile).Msg("Using local workbook as job queue")
		return wb, nil
	}
	return jobstore.NewSheetsTable(ctx, c.cfg.SpreadsheetID, c.cfg.SheetName, c.cfg.RetryPolicy(),
		gauth.ClientOptions(c.Credentials)...)
}

func (c *Components) newPublisher(ctx context.Context, extras Extras) (publish.Publisher, error) {
	if c.cfg.DryRun {
		return &publish.LocalPublisher{Dir: c.cfg.OutputDir}, nil
	}

	multi := &publish.Multi{Primary: publish.NewDrivePublisher(c.Drive, c.cfg.DriveOutputFolderID)}
	if c.cfg.ArchiveGCSBucket != "" {
		sc, err := storage.NewClient(ctx, gauth.ClientOptions(c.Credentials)...)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		c.closers = append(c.closers, sc.Close)
		multi.Archives = append(multi.Archives, publish.NewGCSArchive(sc, c.cfg.ArchiveGCSBucket, c.cfg.ArchivePrefix))
	}
	if c.cfg.ArchiveS3Bucket != "" && extras.S3 != nil {
		multi.Archives = append(multi.Archives, publish.NewS3Archive(extras.S3, c.cfg.ArchiveS3Bucket, c.cfg.ArchivePrefix))
	}
	return multi, nil
}

// NewSession returns an uninitialized review session on the Gemini and
// Drive clients.
func (c *Components) NewSession() *review.Session {
	return review.NewSession(c.Chat, c.Drive, review.Options{
		Steps:        review.Steps(c.cfg.Prompts),
		SystemPrompt: c.cfg.Prompts.SystemInstructions,
	})
}

// Runner returns a pipeline runner with a fresh review session. Behavior
// flags come from the Config; opts supplies per-invocation limits.
func (c *Components) Runner(opts pipeline.Options) *pipeline.Runner {
	opts.AppVersion = c.cfg.AppVersion
	opts.DryRun = c.cfg.DryRun
	opts.SharedThread = c.cfg.SharedThread
	opts.ReleaseCache = c.cfg.CacheDeleteOnExit
	return pipeline.New(pipeline.Deps{
		Queue:      c.Queue,
		Knowledge:  c.Knowledge,
		Normalizer: c.Normalizer,
		Session:    c.NewSession(),
		Publisher:  c.Publisher,
		Ledger:     c.Ledger,
	}, opts)
}

// Close releases files and clients opened by Build.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Failed to close component")
		}
	}
	c.closers = nil
}
