package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/fleet-support/internal/auth"
	"github.com/spec-kit/fleet-support/internal/config"
	"github.com/spec-kit/fleet-support/internal/domain"
)

var (
	tokenSubject string
	tokenName    string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development bearer token",
	Long: `Signs a token with AUTH_JWT_SECRET for local testing. Production
tokens are issued by the auth service.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "agent or requester id")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.AuthorRoleAgent), "agent or requester")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	role := domain.AuthorRole(tokenRole)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, tokenTTL).GenerateToken(tokenSubject, tokenName, role)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
