package cmd

import (
	"fmt"

	"github.com/KaramelBytes/parish-explorer/internal/selection"
	"github.com/spf13/cobra"
)

var (
	applySel   selectionFlags
	applyClear bool
)

var applyCmd = &cobra.Command{
	Use:   "apply [parish...]",
	Short: "Commit a parish selection for the session",
	Long: `apply stores an explicit parish list for the session. Later explore, describe,
export and recommend runs use it until it is replaced or cleared. Without parish
names the active preset set is committed; an empty result resets the session to
the default top 10 and bottom 5.`,
	Example: `  parishx apply Acadia Caddo Orleans
  parishx apply -m "GDP (2023)" --top5 --top10=false --bottom5=false
  parishx apply --clear`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if applyClear {
			store, release, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer release()
			if err := selection.Clear(cmd.Context(), store, sessionID); err != nil {
				return err
			}
			fmt.Fprintf(w, "✓ Cleared selection for session %q\n", sessionID)
			return nil
		}
		applySel.parishes = append(applySel.parishes, args...)
		applySel.apply = true
		res, v, err := exploreSession(cmd, &applySel)
		if err != nil {
			return err
		}
		if len(res.Commit) == 0 {
			fmt.Fprintf(w, "✓ Selection reset to defaults for session %q\n", sessionID)
			return nil
		}
		fmt.Fprintf(w, "✓ Committed %d parishes for session %q\n", len(res.Commit), sessionID)
		if missing := len(res.Commit) - len(res.Parishes); missing > 0 {
			fmt.Fprintf(w, "⚠ %d of them are not in the dataset\n", missing)
		}
		for _, msg := range v.Warnings {
			fmt.Fprintf(w, "⚠ %s\n", msg)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applySel.bind(applyCmd, false)
	applyCmd.Flags().BoolVar(&applyClear, "clear", false, "drop the committed selection")
}
