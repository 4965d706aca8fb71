package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/config"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	debug   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sundew",
	Short: "Deceptive honeypot for AI agents",
	Long: `sundew presents a convincing fake API service, records everything that
touches it and classifies each visitor session as human, automated,
ai_assisted or ai_agent.

Every credential it serves is verifiably fake and checked before the
listener starts.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default configs/sundew.yaml or ./sundew.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "human-readable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(personaCmd)
	rootCmd.AddCommand(canaryCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// setup loads the configuration and builds the logger every command needs.
// A .env file in the working directory is applied first; variables already
// set in the environment win.
func setup() (config.Config, *zap.Logger, error) {
	envErr := godotenv.Load()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}
	return cfg, logger, nil
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sundew version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sundew %s\n", version)
	},
}
