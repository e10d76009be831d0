package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pixelfort/internal/api"
	"pixelfort/internal/config"
)

func newAccountCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account management commands",
	}

	cmd.AddCommand(newAccountDeleteCmd(cfg))
	return cmd
}

func newAccountDeleteCmd(cfg *config.Config) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete your account and all stored photos",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete account without --yes")
			}

			return withClient(cfg, func(client *api.Client) error {
				if err := client.DeleteAccount(cmd.Context(), true); err != nil {
					return err
				}
				return writePlain("account deleted\n")
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm permanent deletion of account and photos")
	return cmd
}
