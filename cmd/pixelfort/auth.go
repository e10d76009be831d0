package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pixelfort/internal/api"
	"pixelfort/internal/config"
)

func newRegisterCmd(cfg *config.Config) *cobra.Command {
	var email string
	var username string
	var password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(password, true)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Register(cmd.Context(), api.RegisterRequest{
					Email:    email,
					Username: username,
					Password: pw,
				})
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeFormatted(resp)
				}
				return writePlain("registered %s (%s)\n", resp.Username, resp.ID)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted if omitted)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLoginCmd(cfg *config.Config) *cobra.Command {
	var email string
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Open a session and print the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(password, false)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Login(cmd.Context(), api.LoginRequest{
					Email:    email,
					Password: pw,
				})
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeFormatted(resp)
				}
				if err := writePlain("%s\n", resp.Token); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "session expires %s\n", formatTimestamp(resp.ExpiresAt))
				fmt.Fprintln(os.Stderr, "export PIXELFORT_API_TOKEN=<token> to use it in subsequent commands")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted if omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if err := client.Logout(cmd.Context()); err != nil {
					return err
				}
				return writePlain("logged out\n")
			})
		},
	}
}

func newWhoamiCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account for the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetMe(cmd.Context())
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeFormatted(resp)
				}
				return writePlain("%s (%s)\n", resp.Username, resp.Email)
			})
		},
	}
}

func resolvePassword(flagValue string, confirm bool) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", errors.New("password is required (use --password or run interactively)")
	}

	fmt.Fprint(os.Stderr, "password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	pw := strings.TrimSpace(string(first))
	if pw == "" {
		return "", errors.New("password must not be empty")
	}
	if !confirm {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "confirm password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if pw != strings.TrimSpace(string(second)) {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}
