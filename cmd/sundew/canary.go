package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/sundew/internal/canary"
)

// ── canary ───────────────────────────────────────────────────────────────────

var canaryCmd = &cobra.Command{
	Use:   "canary",
	Short: "Canary value utilities",
}

var canaryCheckFile string

var canaryCheckCmd = &cobra.Command{
	Use:   "check [value...]",
	Short: "Report whether values are verifiably fake",
	Long: `check tests each argument with the same predicate the server applies at
startup. With --file, every canary-shaped value found in the file is tested
instead. The command exits non-zero if any value fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var tokens []canary.Token
		for _, a := range args {
			tokens = append(tokens, canary.Token{Label: "arg", Value: a})
		}
		if canaryCheckFile != "" {
			data, err := os.ReadFile(canaryCheckFile)
			if err != nil {
				return fmt.Errorf("read %s: %w", canaryCheckFile, err)
			}
			tokens = append(tokens, canary.Extract(string(data))...)
		}
		if len(tokens) == 0 {
			return errors.New("nothing to check: pass values or --file")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RESULT\tKIND\tVALUE")
		for _, t := range tokens {
			result := "FAKE"
			if !canary.IsVerifiablyFake(t.Value) {
				result = "REAL?"
			}
			kind := string(t.Kind)
			if kind == "" {
				kind = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", result, kind, t.Value)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		return canary.Validate(tokens)
	},
}

func init() {
	canaryCheckCmd.Flags().StringVarP(&canaryCheckFile, "file", "f", "", "scan a file for canary-shaped values")
	canaryCmd.AddCommand(canaryCheckCmd)
}
