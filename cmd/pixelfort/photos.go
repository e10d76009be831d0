package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pixelfort/internal/api"
	"pixelfort/internal/config"
)

func newUploadCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload one or more photos",
		Args:  requireAtLeastArgs(1, "file path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				var uploaded []api.PhotoResponse
				for _, path := range args {
					resp, err := uploadFile(cmd, client, path)
					if err != nil {
						return fmt.Errorf("upload %s: %w", path, err)
					}
					uploaded = append(uploaded, resp)
				}
				if structuredOutput() {
					return writeFormatted(uploaded)
				}
				for _, photo := range uploaded {
					if err := writePlain("%s  %s\n", photo.ID, photo.Digest); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func uploadFile(cmd *cobra.Command, client *api.Client, path string) (api.PhotoResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return api.PhotoResponse{}, err
	}
	defer f.Close()

	return client.UploadPhoto(cmd.Context(), filepath.Base(path), f)
}

func newListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your photos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				photos, err := client.ListPhotos(cmd.Context())
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeFormatted(photos)
				}
				return writePhotoList(photos)
			})
		},
	}
}

func newShowCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a photo record",
		Args:  requireExactlyArgs(1, "photo id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				photo, err := client.GetPhoto(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeFormatted(photo)
				}
				return writePhotoDetail(photo)
			})
		},
	}
}

func newDownloadCmd(cfg *config.Config) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download original photo content",
		Args:  requireExactlyArgs(1, "photo id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				return downloadTo(cmd, outPath, func(w *os.File) error {
					return client.DownloadContent(cmd.Context(), args[0], w)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newThumbnailCmd(cfg *config.Config) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "thumbnail <id>",
		Short: "Download a photo thumbnail",
		Args:  requireExactlyArgs(1, "photo id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				return downloadTo(cmd, outPath, func(w *os.File) error {
					return client.DownloadThumbnail(cmd.Context(), args[0], w)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func downloadTo(cmd *cobra.Command, outPath string, fetch func(*os.File) error) error {
	if outPath == "" {
		return fetch(os.Stdout)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := fetch(f); err != nil {
		f.Close()
		_ = os.Remove(outPath)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return writePlain("wrote %s\n", outPath)
}

func newRemoveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete photos",
		Args:    requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				for _, id := range args {
					if err := client.DeletePhoto(cmd.Context(), id); err != nil {
						return fmt.Errorf("remove %s: %w", id, err)
					}
					if err := writePlain("removed %s\n", id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
