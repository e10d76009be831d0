package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pixelfort/internal/api"
	internalauth "pixelfort/internal/auth"
	"pixelfort/internal/blobstore"
	"pixelfort/internal/config"
	"pixelfort/internal/derive"
	"pixelfort/internal/server"
	"pixelfort/internal/store"
)

// The user subcommands work on the store directly instead of going through
// the API, so accounts can be provisioned before any server runs.
func newUserCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts directly in the local store",
	}
	cmd.AddCommand(newUserAddCmd(cfg))
	cmd.AddCommand(newUserListCmd(cfg))
	cmd.AddCommand(newUserDeleteCmd(cfg))
	return cmd
}

func withStore(cfg *config.Config, fn func(*store.Store) error) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func newUserAddCmd(cfg *config.Config) *cobra.Command {
	var email string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create one account",
		Args:  requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !passwordStdin {
				return fmt.Errorf("--password-stdin is required")
			}

			username, err := internalauth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}
			normEmail, err := internalauth.NormalizeEmail(email)
			if err != nil {
				return err
			}

			passwordBytes, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			hash, err := internalauth.HashPassword(strings.TrimSpace(string(passwordBytes)))
			if err != nil {
				return err
			}

			return withStore(cfg, func(st *store.Store) error {
				user, err := st.CreateUser(cmd.Context(), normEmail, username, hash, time.Now().UTC())
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeFormatted(toAPIUser(user))
				}
				return writePlain("created user %s (%s)\n", user.Username, user.ID)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(st *store.Store) error {
				users, err := st.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				if structuredOutput() {
					out := make([]api.UserResponse, 0, len(users))
					for i := range users {
						out = append(out, toAPIUser(&users[i]))
					}
					return writeFormatted(out)
				}
				if len(users) == 0 {
					return writePlain("no accounts\n")
				}
				for _, user := range users {
					if err := writePlain("%s\t%s\t%s\n", user.ID, user.Username, user.Email); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newUserDeleteCmd(cfg *config.Config) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <username>",
		Aliases: []string{"rm"},
		Short:   "Delete one account and all of its photos",
		Args:    requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete account without --yes")
			}

			username, err := internalauth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}

			return withStore(cfg, func(st *store.Store) error {
				return deleteUserCascade(cmd.Context(), cfg, st, username)
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm permanent deletion of account and photos")
	return cmd
}

func toAPIUser(user *store.User) api.UserResponse {
	return api.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}
}

func deleteUserCascade(ctx context.Context, cfg *config.Config, st *store.Store, username string) error {
	user, err := st.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no such user %q", username)
	}

	if cfg.StoragePath == "" {
		return fmt.Errorf("storage path is required")
	}
	blobs, err := blobstore.NewLocalStore(cfg.StoragePath)
	if err != nil {
		return err
	}
	photoService := server.NewPhotoService(st, blobs, derive.Noop{}, 0, slog.Default())

	removed, err := photoService.DeleteOwnerPhotos(ctx, user.ID)
	if err != nil {
		return err
	}
	if _, err := st.DeleteUser(ctx, user.ID); err != nil {
		return err
	}
	return writePlain("deleted user %s (%d photos removed)\n", username, removed)
}
