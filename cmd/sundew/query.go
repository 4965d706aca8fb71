package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/sundew/internal/classify"
	"github.com/jmerrifield20/sundew/internal/storage"
)

// ── query ────────────────────────────────────────────────────────────────────

var (
	queryLimit  int
	queryLabel  string
	queryJSON   bool
	queryCounts bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List recent verdicts from the SQLite store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		if queryLabel != "" {
			switch classify.Label(queryLabel) {
			case classify.Human, classify.Automated, classify.AIAssisted, classify.AIAgent:
			default:
				return fmt.Errorf("unknown label %q", queryLabel)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if queryCounts {
			counts, err := store.Counts(ctx)
			if err != nil {
				return err
			}
			labels := make([]string, 0, len(counts))
			for l := range counts {
				labels = append(labels, string(l))
			}
			sort.Strings(labels)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LABEL\tSESSIONS")
			for _, l := range labels {
				fmt.Fprintf(w, "%s\t%d\n", l, counts[classify.Label(l)])
			}
			return w.Flush()
		}

		verdicts, err := store.Recent(ctx, queryLimit, queryLabel)
		if err != nil {
			return err
		}
		if queryJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(verdicts)
		}
		if len(verdicts) == 0 {
			fmt.Fprintln(out, "No verdicts recorded.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FINALIZED\tSESSION\tKEY\tLABEL\tCOMPOSITE\tDOMINANT\tEVENTS\tREASON")
		for _, v := range verdicts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\t%s\t%d\t%s\n",
				v.FinalizedAt.Format(time.RFC3339), v.SessionID, v.Key, v.Label,
				v.Composite, v.Dominant, v.EventCount, v.Reason)
		}
		return w.Flush()
	},
}

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 50, "maximum verdicts to list")
	queryCmd.Flags().StringVarP(&queryLabel, "label", "l", "", "only this label (human, automated, ai_assisted, ai_agent)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print verdicts as JSON")
	queryCmd.Flags().BoolVar(&queryCounts, "counts", false, "print verdict counts per label instead")
}
