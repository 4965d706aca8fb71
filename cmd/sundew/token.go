package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/sundew/internal/monitor"
)

const tokenIssuerName = "sundew"

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenSubject  string
	tokenTTL      time.Duration
	tokenCanClose bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the monitor API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		if cfg.Monitor.JWTSecret == "" {
			return errors.New("monitor.jwt_secret is not set; the monitor API is unauthenticated")
		}
		issuer, err := monitor.NewTokenIssuer(cfg.Monitor.JWTSecret, tokenIssuerName, tokenTTL)
		if err != nil {
			return err
		}
		var scopes []string
		if tokenCanClose {
			scopes = append(scopes, monitor.ScopeClose)
		}
		tok, err := issuer.Issue(tokenSubject, scopes)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
	tokenCmd.Flags().BoolVar(&tokenCanClose, "close", false, "allow closing sessions through the API")
}
