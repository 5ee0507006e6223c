package app

import (
	"strconv"

	"github.com/TrackerIA/new-grading-vawa/internal/config"
	"github.com/TrackerIA/new-grading-vawa/internal/logging"
)

// Describe adds the configured resources, features and settings to s.
func Describe(s *logging.StartupLogger, cfg *config.Config) *logging.StartupLogger {
	if cfg.QueueFile != "" {
		s.Config("queueFile", cfg.QueueFile)
	} else {
		s.Spreadsheet(cfg.SheetName, cfg.SpreadsheetID)
	}
	if cfg.DriveOutputFolderID != "" {
		s.DriveFolder("output", cfg.DriveOutputFolderID)
	}
	if cfg.ArchiveGCSBucket != "" {
		s.Bucket("gcsArchive", cfg.ArchiveGCSBucket)
	}
	if cfg.ArchiveS3Bucket != "" {
		s.Bucket("s3Archive", cfg.ArchiveS3Bucket)
	}
	if cfg.RunLedgerTable != "" {
		s.Table("runLedger", cfg.RunLedgerTable)
	}
	return s.
		Feature("dryRun", cfg.DryRun).
		Feature("sharedThread", cfg.SharedThread).
		Feature("cacheDeleteOnExit", cfg.CacheDeleteOnExit).
		Config("project", cfg.ProjectID).
		Config("location", cfg.Location).
		Config("model", cfg.Model).
		Config("cacheTTL", cfg.CacheTTL.String()).
		Config("fundamentosDir", cfg.FundamentosDir).
		Config("appVersion", cfg.AppVersion).
		Config("maxRetries", strconv.Itoa(cfg.MaxRetries)).
		Config("promptsFile", cfg.PromptsFile)
}
