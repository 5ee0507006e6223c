package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TrackerIA/new-grading-vawa/internal/app"
	"github.com/TrackerIA/new-grading-vawa/internal/config"
	"github.com/TrackerIA/new-grading-vawa/internal/grading"
)

var deleteCacheFlag bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Build the reference-document cache and print its name and expiry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if modelFlag != "" {
			cfg.Model = modelFlag
		}
		if cfg.ProjectID == "" {
			return &grading.ConfigurationError{Message: "missing environment variables: PROJECT_ID"}
		}

		ctx := context.Background()
		_, creds, err := app.NewDrive(ctx, cfg)
		if err != nil {
			return err
		}
		_, km, err := app.NewKnowledge(ctx, cfg, creds)
		if err != nil {
			return err
		}

		kc, err := km.EnsureCache(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "name:      %s\n", kc.Name)
		fmt.Fprintf(cmd.OutOrStdout(), "model:     %s\n", kc.Model)
		fmt.Fprintf(cmd.OutOrStdout(), "documents: %d\n", len(kc.SourceDocuments))
		fmt.Fprintf(cmd.OutOrStdout(), "expires:   %s\n", kc.ExpireTime.Local().Format(time.RFC3339))

		if deleteCacheFlag {
			km.Release(ctx, kc)
		}
		return nil
	},
}

func init() {
	cacheCmd.Flags().BoolVar(&deleteCacheFlag, "delete", false, "Delete the cache after printing it")
}
