package main

import (
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TrackerIA/new-grading-vawa/internal/config"
	"github.com/TrackerIA/new-grading-vawa/internal/logging"
	"github.com/TrackerIA/new-grading-vawa/internal/metrics"
)

// Build identity, set with -ldflags "-X main.version=... -X main.commit=... -X main.buildTime=...".
var (
	version   = "dev"
	commit    = ""
	buildTime = ""
)

// Global flags
var (
	metricsFlag bool
	dryRunFlag  bool
	modelFlag   string
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "vawa-grader",
	Short: "AI-assisted grading of VAWA case files",
	Long: `vawa-grader pulls pending cases from the grading queue spreadsheet, converts
each case's documents to PDF, runs the six-step review against the cached
reference material on Vertex AI, and writes the report and usage back.

Configuration comes from environment variables (PROJECT_ID, SPREADSHEET_ID,
SHEET_NAME, DRIVE_OUTPUT_FOLDER_ID, ...). Set QUEUE_XLSX to use a local
workbook instead of Google Sheets.

Examples:
  vawa-grader run
  vawa-grader run --limit 1 --dry-run
  vawa-grader run --row 17
  vawa-grader normalize https://docs.google.com/document/d/<id>/edit -o out.pdf
  vawa-grader cache --delete`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
		if !metricsFlag {
			metrics.SetOutput(io.Discard)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&metricsFlag, "metrics", false, "Print CloudWatch EMF metric lines to stdout")
	rootCmd.PersistentFlags().BoolVar(&dryRunFlag, "dry-run", false, "Write deliverables to OUTPUT_DIR and skip Drive uploads and result columns")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Gemini model (overrides MODEL)")

	rootCmd.AddCommand(runCmd, normalizeCmd, cacheCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment, applies global flags and validates.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if dryRunFlag {
		cfg.DryRun = true
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg
}
