package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/services"
)

var knownRoles = []domain.UserRole{domain.RoleAdmin, domain.RoleClinician, domain.RolePatient}

func newTokenCommand(ctx *commandContext) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Access token utilities",
	}
	tokenCmd.AddCommand(newTokenIssueCommand(ctx))
	return tokenCmd
}

func newTokenIssueCommand(ctx *commandContext) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token signed with the service secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			userID = strings.TrimSpace(userID)
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			r := domain.UserRole(strings.TrimSpace(role))
			if !validRole(r) {
				return fmt.Errorf("unknown role %q", role)
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTL
			}

			auth := services.NewAuthService(cfg.Auth.JWTSecret, ttl)
			token, err := auth.GenerateToken(domain.UserID(userID), r)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			claims, err := auth.ValidateToken(token)
			if err != nil {
				return fmt.Errorf("verify issued token: %w", err)
			}

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"token":      token,
					"user_id":    claims.UserID,
					"role":       claims.Role,
					"expires_at": claims.ExpiresAt.Time.UTC(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID to put in the token")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "Role (admin, clinician, patient)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to auth.access_token_ttl)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the token and its claims as JSON")
	return cmd
}

func validRole(role domain.UserRole) bool {
	for _, known := range knownRoles {
		if role == known {
			return true
		}
	}
	return false
}
