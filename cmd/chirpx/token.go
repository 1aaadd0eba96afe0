// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chirpx/realtime/internal/auth"
	"github.com/chirpx/realtime/internal/config"
)

type tokenConfig struct {
	userID string
	ttl    time.Duration
}

// newTokenCmd creates the token subcommand, which signs a development
// token with the server's JWT secret.
func newTokenCmd() *cobra.Command {
	cfg := &tokenConfig{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token for a user",
		Long: `Sign an HS256 access token for --user with the secret in
CHIRPX_JWT_SECRET, for testing clients against a local server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(cmd, cfg, os.Getenv)
		},
	}

	cmd.Flags().StringVar(&cfg.userID, "user", "", "user id to embed in the token")
	cmd.Flags().DurationVar(&cfg.ttl, "ttl", time.Hour, "token lifetime")

	return cmd
}

func runToken(cmd *cobra.Command, cfg *tokenConfig, getenv func(string) string) error {
	if cfg.userID == "" {
		return errors.New("--user is required")
	}
	secret := getenv(config.EnvJWTSecret)
	if secret == "" {
		secret = getenv(config.EnvJWTSecretLegacy)
	}
	if secret == "" {
		return fmt.Errorf("%s is not set", config.EnvJWTSecret)
	}

	token, err := auth.IssueToken([]byte(secret), cfg.userID, cfg.ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
