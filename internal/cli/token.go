package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"subtrack/internal/auth"
)

var tokenCmd = LeafCommand{
	Use:   "token",
	Short: "Sign an access token for a user",
	StrFlags: []StringFlag{
		{Name: "user", Usage: "user id placed in the token subject"},
		{Name: "ttl", Usage: "token lifetime", Default: "720h"},
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := requireUser(cmd)
		if err != nil {
			return err
		}
		ttlFlag, _ := cmd.Flags().GetString("ttl")
		ttl, err := time.ParseDuration(ttlFlag)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("invalid --ttl %q", ttlFlag)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runToken(cmd, cfg.JWTSecret, cfg.JWTIssuer, userID, ttl)
	},
}.Build()

func runToken(cmd *cobra.Command, secret, issuer, userID string, ttl time.Duration) error {
	v, err := auth.NewVerifier(secret, issuer)
	if err != nil {
		return fmt.Errorf("JWT_SECRET is required: %w", err)
	}
	token, err := v.Sign(userID, ttl)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
