package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/parish-explorer/internal/chart"
	"github.com/KaramelBytes/parish-explorer/internal/selection"
	"github.com/KaramelBytes/parish-explorer/internal/utils"
	"github.com/spf13/cobra"
)

var (
	exploreSel    selectionFlags
	exploreChart  string
	exploreFormat string
	exploreLimit  int
	exploreJSON   bool
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Resolve a parish selection and show the chart data",
	Example: `  parishx explore --data parishes.xlsx -m "GDP (2023)" --top5 --top10=false --bottom5=false
  parishx explore -m "GDP (2023)" -m "Population (2023)" --chart scatter.png
  parishx explore -m "All Metrics" --parish Acadia --parish Caddo --parish Orleans --apply`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		res, v, err := exploreSession(cmd, &exploreSel)
		if err != nil {
			return err
		}

		if exploreJSON {
			out := map[string]any{
				"session":  sessionID,
				"kind":     v.Directive.Kind,
				"title":    v.Directive.Title,
				"metrics":  v.Directive.Metrics,
				"parishes": res.Parishes,
				"source":   res.Source,
				"warnings": v.Warnings,
			}
			if v.Corr != nil {
				out["correlation"] = v.Corr
			}
			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal output: %w", err)
			}
			fmt.Fprintln(w, string(b))
		} else {
			fmt.Fprintf(w, "⚙ %s [%s]\n", v.Directive.Title, v.Directive.Kind)
			fmt.Fprintf(w, "Parishes: %d (%s selection)\n", len(res.Parishes), res.Source)
			if res.Commit != nil {
				fmt.Fprintf(w, "✓ Applied selection of %d parishes to session %q\n", len(res.Commit), sessionID)
			}
			for _, msg := range v.Warnings {
				fmt.Fprintf(w, "⚠ %s\n", msg)
			}
			if !v.Empty() {
				fmt.Fprintln(w)
				if v.Directive.Kind == selection.Heatmap {
					printCorrelation(w, v.Corr)
				} else {
					printRows(w, v.Rows, exploreLimit)
				}
			}
		}

		if exploreChart == "" {
			return nil
		}
		if v.Empty() {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Nothing to chart; %s not written\n", exploreChart)
			return nil
		}
		format := exploreFormat
		if format == "" {
			format = strings.TrimPrefix(strings.ToLower(filepath.Ext(exploreChart)), ".")
		}
		format, err = chart.ParseFormat(format)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := chart.Render(&buf, v, format); err != nil {
			return err
		}
		if err := utils.SafeWriteFile(exploreChart, buf.Bytes()); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
		if !exploreJSON {
			fmt.Fprintf(w, "\n💾 Saved %s chart to %s\n", v.Directive.Kind, exploreChart)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exploreCmd)
	exploreSel.bind(exploreCmd, true)
	exploreCmd.Flags().StringVar(&exploreChart, "chart", "", "render the chart to this file (.png or .svg)")
	exploreCmd.Flags().StringVar(&exploreFormat, "chart-format", "", "chart format png|svg (default from --chart extension)")
	exploreCmd.Flags().IntVar(&exploreLimit, "limit", 0, "show at most this many rows (0 shows all)")
	exploreCmd.Flags().BoolVar(&exploreJSON, "json", false, "emit the view as JSON")
}
