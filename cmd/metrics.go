package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List the metric columns of the dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		t, err := loadTable(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d parishes, %d metrics\n", t.Name, t.Len(), len(t.Metrics()))
		for _, m := range t.Metrics() {
			fmt.Fprintf(w, "  - %s\n", m)
		}
		for _, msg := range t.Warnings {
			fmt.Fprintf(w, "⚠ %s\n", msg)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}
