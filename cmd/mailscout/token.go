package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	jwttoken "mailscout/internal/jwt_token"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the webhook",
		Long: `Token signs an HS256 bearer token with webhook.jwt_secret. Give it to the
enrichment service that posts to /webhook when the secret is set.`,
		Args: cobra.NoArgs,
		RunE: runToken,
	}
	cmd.Flags().String("subject", "enrichment", "token subject")
	cmd.Flags().Duration("ttl", 0, "token lifetime, 0 for no expiry")
	return cmd
}

func runToken(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Webhook.JWTSecret.Empty() {
		return errors.New("webhook.jwt_secret is not set (MAILSCOUT_WEBHOOK_JWT_SECRET)")
	}
	subject, _ := cmd.Flags().GetString("subject")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	tok, err := jwttoken.NewJWTService(a.cfg.Webhook.JWTSecret.Reveal()).GenerateToken(subject, ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
	return err
}
