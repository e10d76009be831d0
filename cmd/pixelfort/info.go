package main

import (
	"github.com/spf13/cobra"

	"pixelfort/internal/api"
	"pixelfort/internal/config"
)

func newInfoCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show server and storage info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}

				if structuredOutput() {
					return writeFormatted(resp)
				}

				_ = writePlain("api_url: %s\n", cfg.APIURL)
				_ = writePlain("db_path: %s\n", cfg.DBPath)
				_ = writePlain("storage_path: %s\n", cfg.StoragePath)
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				_ = writePlain("users: %d\n", resp.UserCount)
				_ = writePlain("photos: %d\n", resp.PhotoCount)
				return nil
			})
		},
	}
	return cmd
}
