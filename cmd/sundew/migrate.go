package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/sundew/internal/storage"
)

// ── migrate ──────────────────────────────────────────────────────────────────

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the verdict tables in the configured SQLite and PostgreSQL stores",
	Long: `migrate applies the verdict schema ahead of time. serve migrates on startup
as well; running it separately lets a deployment fail fast on database
permissions before the trap goes live. Both schemas are idempotent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		out := cmd.OutOrStdout()
		migrated := 0
		if cfg.Storage.SQLitePath != "" {
			db, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "migrated sqlite store %s\n", cfg.Storage.SQLitePath)
			migrated++
		}
		if cfg.Storage.PostgresURL != "" {
			pg, err := storage.NewPostgresStore(ctx, cfg.Storage.PostgresURL, logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "migrated postgres store")
			migrated++
		}
		if migrated == 0 {
			fmt.Fprintln(out, "no database store configured")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
