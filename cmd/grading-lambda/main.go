// Package main is the scheduled grading Lambda. An EventBridge rule invokes
// it periodically; each invocation performs one pass over the queue.
//
// The optional event detail narrows the pass:
//
//	{"limit": 5, "row": 17}
package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/TrackerIA/new-grading-vawa/internal/app"
	"github.com/TrackerIA/new-grading-vawa/internal/config"
	"github.com/TrackerIA/new-grading-vawa/internal/lambdaboot"
	"github.com/TrackerIA/new-grading-vawa/internal/logging"
	"github.com/TrackerIA/new-grading-vawa/internal/pipeline"
)

// Build identity, set with -ldflags.
var (
	version   = "dev"
	commit    = ""
	buildTime = ""
)

var coldStart = true

var components *app.Components

// runDetail is the optional detail payload of the scheduled event.
type runDetail struct {
	Limit int `json:"limit,omitempty"`
	Row   int `json:"row,omitempty"`
}

func init() {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	aws := lambdaboot.InitAWS(ctx)
	if err := lambdaboot.LoadParams(ctx, aws.SSM, lambdaboot.GradingParams); err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings from SSM")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	extras := app.Extras{Ledger: lambdaboot.InitLedger(aws.Config, "RUN_LEDGER_TABLE")}
	if s3c := lambdaboot.InitS3Optional(aws.Config, "ARCHIVE_S3_BUCKET"); s3c != nil {
		extras.S3 = s3c
	}

	components, err = app.Build(ctx, cfg, extras)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize grader")
	}

	s := lambdaboot.StartupLog("grading-lambda", initStart).
		Version(version).
		CommitHash(commit).
		BuildTime(buildTime)
	for _, p := range lambdaboot.GradingParams {
		s.SSMParam(p.Env, logging.EnvOrDefault(p.NameEnv, p.DefaultName))
	}
	app.Describe(s, cfg).Log()
}

func handler(ctx context.Context, event events.CloudWatchEvent) error {
	if coldStart {
		coldStart = false
		log.Debug().Msg("Cold start invocation")
	}

	var detail runDetail
	if len(event.Detail) > 0 {
		if err := json.Unmarshal(event.Detail, &detail); err != nil {
			log.Warn().Err(err).Msg("Ignoring malformed event detail")
			detail = runDetail{}
		}
	}

	log.Info().
		Str("event_id", event.ID).
		Str("source", event.Source).
		Time("scheduled", event.Time).
		Int("limit", detail.Limit).
		Int("row", detail.Row).
		Msg("Scheduled grading run triggered")

	runner := components.Runner(pipeline.Options{Limit: detail.Limit, Row: detail.Row})
	sum, err := runner.Run(ctx)
	if err != nil {
		log.Error().Err(err).Str("run", sum.RunID).Msg("Grading run failed")
		return err
	}
	return nil
}

func main() {
	lambda.Start(handler)
}
