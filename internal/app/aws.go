package app

import (
	"context"

	"github.com/TrackerIA/new-grading-vawa/internal/config"
	"github.com/TrackerIA/new-grading-vawa/internal/lambdaboot"
)

// AWSExtras builds the S3 archive client and run ledger when the config
// asks for them. AWS config is not loaded otherwise.
func AWSExtras(ctx context.Context, cfg *config.Config) Extras {
	var ex Extras
	if cfg.ArchiveS3Bucket == "" && cfg.RunLedgerTable == "" {
		return ex
	}
	clients := lambdaboot.InitAWS(ctx)
	if s3c := lambdaboot.InitS3Optional(clients.Config, "ARCHIVE_S3_BUCKET"); s3c != nil {
		ex.S3 = s3c
	}
	ex.Ledger = lambdaboot.InitLedger(clients.Config, "RUN_LEDGER_TABLE")
	return ex
}
