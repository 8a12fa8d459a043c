package cmd

import (
	"fmt"

	"github.com/KaramelBytes/parish-explorer/internal/dataset"
	"github.com/KaramelBytes/parish-explorer/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportSel    selectionFlags
	exportOutput string
	exportTarget string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the selected parishes to CSV or XLSX",
	Example: `  parishx export
  parishx export --output gdp.xlsx -m "GDP (2023)"
  parishx export --target s3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, _, err := exploreSession(cmd, &exportSel)
		if err != nil {
			return err
		}
		sink, err := buildSink(cfg, exportTarget)
		if err != nil {
			return err
		}
		where, err := export.Table(cmd.Context(), sink, exportOutput, res.Rows)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d parishes to %s\n", res.Rows.Len(), where)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportSel.bind(exportCmd, false)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", dataset.DefaultExportName, "file or object name (.csv or .xlsx)")
	exportCmd.Flags().StringVar(&exportTarget, "target", "", "export target local|s3 (default from config export_target)")
}
