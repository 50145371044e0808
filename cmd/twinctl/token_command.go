package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/service"
)

// newTokenCommand mints a token the way the identity provider does, for local
// development against a server sharing JWT_SECRET.
func newTokenCommand() *cobra.Command {
	var userID, email, secret string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:         "token",
		Short:       "Mint a development bearer token",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if strings.TrimSpace(secret) == "" {
				return errors.New("no signing secret (pass --secret or export JWT_SECRET)")
			}
			if strings.TrimSpace(userID) == "" {
				return errors.New("--user is required")
			}

			auth := service.NewAuthService(secret)
			token, err := auth.GenerateJWT(&model.User{ID: userID, Email: email}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id claim")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret (default: $JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
