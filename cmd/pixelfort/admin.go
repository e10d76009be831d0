package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pixelfort/internal/api"
	"pixelfort/internal/config"
)

func newAdminCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(newAdminReconcileCmd(cfg))
	cmd.AddCommand(newAdminRederiveCmd(cfg))
	return cmd
}

func newAdminReconcileCmd(cfg *config.Config) *cobra.Command {
	var (
		dryRun bool
		apply  bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Remove orphaned blobs not referenced by the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !apply && !dryRun {
				dryRun = true
			}

			return withClient(cfg, func(client *api.Client) error {
				req := api.ReconcileRequest{DryRun: !apply}
				resp, err := client.AdminReconcile(cmd.Context(), req, apply)
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeFormatted(resp)
				}
				mode := "dry run"
				if !resp.DryRun {
					mode = "applied"
				}
				return writePlain("%s: scanned=%d deleted=%d skipped_recent=%d failed=%d reclaimed_bytes=%d\n",
					mode, resp.Scanned, resp.Deleted, resp.SkippedRecent, resp.Failed, resp.ReclaimedBytes)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be reclaimed without deleting")
	cmd.Flags().BoolVar(&apply, "apply", false, "delete orphaned blobs")
	return cmd
}

func newAdminRederiveCmd(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "rederive",
		Short: "Retry metadata derivation for photos missing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.AdminRederive(cmd.Context(), api.RederiveRequest{Limit: limit})
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeFormatted(resp)
				}
				return writePlain("scanned=%d updated=%d\n", resp.Scanned, resp.Updated)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum photos to process (0 means no limit)")
	return cmd
}
