// Package lambdaboot holds the Lambda cold-start bootstrap: AWS config,
// SSM-backed settings, optional S3 and DynamoDB clients, and startup logging.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/TrackerIA/new-grading-vawa/internal/ledger"
	"github.com/TrackerIA/new-grading-vawa/internal/logging"
)

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with an SSM client.
func InitAWS(ctx context.Context) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3Optional returns an S3 client when bucketEnvVar is set, nil otherwise.
func InitS3Optional(cfg aws.Config, bucketEnvVar string) *s3.Client {
	if os.Getenv(bucketEnvVar) == "" {
		return nil
	}
	return s3.NewFromConfig(cfg)
}

// InitLedger returns a DynamoDB ledger for the table named by tableEnvVar,
// or a no-op ledger when it is unset.
func InitLedger(cfg aws.Config, tableEnvVar string) ledger.Ledger {
	tableName := os.Getenv(tableEnvVar)
	if tableName == "" {
		log.Debug().Str("envVar", tableEnvVar).Msg("Run ledger table not set, ledger disabled")
		return ledger.Nop{}
	}
	return ledger.NewDynamoLedger(dynamodb.NewFromConfig(cfg), tableName)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
