package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"pixelfort/internal/blobstore"
	"pixelfort/internal/config"
	"pixelfort/internal/reconcile"
	"pixelfort/internal/store"
)

// newReconcileCmd sweeps orphaned blobs against the local store directly,
// without a running server. The admin reconcile subcommand does the same
// through the API.
func newReconcileCmd(cfg *config.Config) *cobra.Command {
	var (
		dryRun       bool
		apply        bool
		graceMinutes int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Remove orphaned blobs from local storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !apply && !dryRun {
				dryRun = true
			}
			if graceMinutes < 0 {
				return fmt.Errorf("--grace must be >= 0")
			}
			if cfg.StoragePath == "" {
				return fmt.Errorf("storage path is required")
			}
			grace := cfg.Reconcile.GraceMinutes
			if cmd.Flags().Changed("grace") {
				grace = graceMinutes
			}

			return withStore(cfg, func(st *store.Store) error {
				blobs, err := blobstore.NewLocalStore(cfg.StoragePath)
				if err != nil {
					return err
				}

				rec := reconcile.New(st, blobs, time.Duration(grace)*time.Minute, slog.Default())
				result, err := rec.Run(cmd.Context(), !apply)
				if err != nil {
					return err
				}

				if structuredOutput() {
					return writeFormatted(result)
				}
				mode := "dry run"
				if !result.DryRun {
					mode = "applied"
				}
				return writePlain("%s: scanned=%d deleted=%d skipped_recent=%d failed=%d reclaimed_bytes=%d\n",
					mode, result.Scanned, result.Deleted, result.SkippedRecent, result.Failed, result.ReclaimedBytes)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be reclaimed without deleting")
	cmd.Flags().BoolVar(&apply, "apply", false, "delete orphaned blobs")
	cmd.Flags().IntVar(&graceMinutes, "grace", 0, "minimum blob age in minutes before deletion (default: config)")
	return cmd
}
