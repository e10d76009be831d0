package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pixelfort/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var outputFormat string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "pixelfort",
		Short: "Pixelfort is a content-addressable photo storage service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return selectOutputFormatter(outputFormat)
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "", "structured output format (json or yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newRegisterCmd(cfg),
		newLoginCmd(cfg),
		newLogoutCmd(cfg),
		newWhoamiCmd(cfg),
		newUploadCmd(cfg),
		newListCmd(cfg),
		newShowCmd(cfg),
		newDownloadCmd(cfg),
		newThumbnailCmd(cfg),
		newRemoveCmd(cfg),
		newAccountCmd(cfg),
		newUserCmd(cfg),
		newReconcileCmd(cfg),
		newAdminCmd(cfg),
		newInfoCmd(cfg),
		newConfigCmd(cfg),
	)

	return cmd
}
