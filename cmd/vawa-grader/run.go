package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TrackerIA/new-grading-vawa/internal/app"
	"github.com/TrackerIA/new-grading-vawa/internal/cli"
	"github.com/TrackerIA/new-grading-vawa/internal/logging"
	"github.com/TrackerIA/new-grading-vawa/internal/pipeline"
)

var (
	limitFlag int
	rowFlag   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Grade every pending case in the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		initStart := time.Now()
		cfg := loadConfig()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		extras := app.AWSExtras(ctx, cfg)
		comps, err := app.Build(ctx, cfg, extras)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize grader")
			return err
		}
		defer comps.Close()

		app.Describe(logging.NewStartupLogger("vawa-grader"), cfg).
			Version(version).
			CommitHash(commit).
			BuildTime(buildTime).
			InitDuration(time.Since(initStart)).
			Log()

		runner := comps.Runner(pipeline.Options{Limit: limitFlag, Row: rowFlag})
		sum, err := runner.Run(ctx)
		if err != nil {
			log.Error().Err(err).Str("run", sum.RunID).Msg("Grading run failed")
			return err
		}
		cli.PrintSummary(cmd.OutOrStdout(), sum)
		if sum.Failed > 0 {
			log.Warn().Int("failed", sum.Failed).Msg("Some cases could not be graded, see the queue for details")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum cases to grade (0 = unlimited)")
	runCmd.Flags().IntVar(&rowFlag, "row", 0, "Grade only this sheet row (0 = every pending row)")
}
