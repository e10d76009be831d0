package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pixelfort/internal/blobstore"
	"pixelfort/internal/config"
	"pixelfort/internal/derive"
	"pixelfort/internal/server"
	"pixelfort/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the pixelfort API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}
			if cfg.StoragePath == "" {
				return fmt.Errorf("storage path is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			logger.Info("opening blob store", "path", cfg.StoragePath)
			blobs, err := blobstore.NewLocalStore(cfg.StoragePath)
			if err != nil {
				return err
			}

			deriver := derive.NewImageDeriver(cfg.Thumbnails.MaxPx, logger.With("component", "derive"))

			srv := server.New(addr, st, blobs, deriver, cfg, logger)
			return srv.ListenAndServe()
		},
	}
}
