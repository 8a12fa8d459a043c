package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/KaramelBytes/parish-explorer/internal/dataset"
	"github.com/spf13/cobra"
)

var (
	describeSel  selectionFlags
	describeJSON bool
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Summary statistics for the selected parishes",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		res, v, err := exploreSession(cmd, &describeSel)
		if err != nil {
			return err
		}
		sums, err := dataset.Describe(res.Rows, res.Metrics...)
		if err != nil {
			return err
		}
		if describeJSON {
			b, err := json.MarshalIndent(sums, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal output: %w", err)
			}
			fmt.Fprintln(w, string(b))
			return nil
		}
		fmt.Fprintf(w, "Parishes: %d (%s selection)\n", len(res.Parishes), res.Source)
		for _, msg := range v.Warnings {
			fmt.Fprintf(w, "⚠ %s\n", msg)
		}
		fmt.Fprint(w, dataset.DescribeText(sums))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeSel.bind(describeCmd, false)
	describeCmd.Flags().BoolVar(&describeJSON, "json", false, "emit statistics as JSON")
}
