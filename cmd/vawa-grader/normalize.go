package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TrackerIA/new-grading-vawa/internal/app"
	"github.com/TrackerIA/new-grading-vawa/internal/config"
	"github.com/TrackerIA/new-grading-vawa/internal/grading"
	"github.com/TrackerIA/new-grading-vawa/internal/normalize"
)

var (
	outputFlag string
	roleFlag   string
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <locator>",
	Short: "Convert one Drive document to PDF the way the pipeline does",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Only Drive credentials are needed; skip full validation.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx := context.Background()
		client, _, err := app.NewDrive(ctx, cfg)
		if err != nil {
			return err
		}

		doc, err := normalize.New(client).Normalize(ctx, grading.DocRole(roleFlag), args[0])
		if err != nil {
			return err
		}
		out := outputFlag
		if out == "" {
			out = doc.Name
		}
		if err := os.WriteFile(out, doc.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		log.Info().Str("path", out).Int("bytes", len(doc.Data)).Msg("Document written")
		return nil
	},
}

func init() {
	normalizeCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output PDF path (default <role>.pdf)")
	normalizeCmd.Flags().StringVar(&roleFlag, "role", string(grading.RoleTranscript), "Document role used to name the output")
}
