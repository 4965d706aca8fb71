package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/bootstrap"
	"github.com/jmerrifield20/sundew/internal/pack"
	"github.com/jmerrifield20/sundew/internal/persona"
)

// ── persona ──────────────────────────────────────────────────────────────────

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Inspect or export the configured persona",
}

var personaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persona and its artifact routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		engine, err := bootstrap.Prepare(cfg, logger)
		if err != nil {
			return err
		}
		p := engine.Persona()

		out := cmd.OutOrStdout()
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Seed\t%d\n", p.Seed)
		fmt.Fprintf(w, "Company\t%s\n", p.CompanyName)
		fmt.Fprintf(w, "Domain\t%s\n", p.Domain())
		fmt.Fprintf(w, "Industry\t%s\n", p.Industry)
		fmt.Fprintf(w, "API style\t%s\n", p.APIStyle)
		fmt.Fprintf(w, "Framework\t%s\n", p.Framework)
		fmt.Fprintf(w, "Server\t%s\n", p.ServerHeader)
		fmt.Fprintf(w, "Auth\t%s\n", p.AuthScheme)
		fmt.Fprintf(w, "Data theme\t%s\n", p.DataTheme)
		fmt.Fprintf(w, "Endpoint prefix\t%s\n", p.EndpointPrefix)
		fmt.Fprintf(w, "Latency\t%d-%d ms\n", p.LatencyMinMS, p.LatencyMaxMS)
		fmt.Fprintf(w, "MCP server\t%s (tools %s*)\n", p.MCPServerName, p.MCPToolPrefix)
		if err := w.Flush(); err != nil {
			return err
		}

		arts := engine.Cache().Artifacts()
		sort.Slice(arts, func(i, j int) bool {
			if arts[i].Path != arts[j].Path {
				return arts[i].Path < arts[j].Path
			}
			return arts[i].Method < arts[j].Method
		})
		fmt.Fprintf(out, "\n%d artifacts:\n", len(arts))
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tSTATUS\tDESCRIPTION")
		for _, a := range arts {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", a.Method, a.Path, a.StatusCode, a.Description)
		}
		return w.Flush()
	},
}

var personaExportDir string

var personaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write persona.yaml and templates.json for the configured persona",
	Long: `export writes the configured persona as YAML and its full artifact set as
a template cache. Point persona.file and pack.cache_file at the results to pin
a deployment to this identity and hand-edit what it serves.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		engine, err := bootstrap.Prepare(cfg, logger)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(personaExportDir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}

		p := engine.Persona()
		personaPath := filepath.Join(personaExportDir, "persona.yaml")
		if err := persona.Save(p, personaPath); err != nil {
			return err
		}
		cachePath := filepath.Join(personaExportDir, "templates.json")
		if err := pack.WriteFile(cachePath, p, engine.Cache().Artifacts()); err != nil {
			return err
		}

		logger.Info("persona exported",
			zap.String("persona", personaPath),
			zap.String("templates", cachePath),
			zap.Int("artifacts", engine.Cache().Len()),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", personaPath, cachePath)
		return nil
	},
}

func init() {
	personaExportCmd.Flags().StringVarP(&personaExportDir, "out", "o", ".", "output directory")
	personaCmd.AddCommand(personaShowCmd)
	personaCmd.AddCommand(personaExportCmd)
}
