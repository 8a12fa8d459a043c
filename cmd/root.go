package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/parish-explorer/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile   string
	debug     bool
	dataPath  string
	sheetName string
	sessionID string
	// HTTP flag (overrides config if set)
	flagHTTPTimeoutSec int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "parishx",
	Short: "Explore Louisiana parish metrics and ask for AI recommendations",
	Long: `parishx loads a table of Louisiana parish statistics, narrows it with top/bottom
presets or an explicit parish list, charts the result and asks a text-generation
service for construction business recommendations about the selection.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// runs before every command, so tests that call rootCmd.Execute see fresh config
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.parishx/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "parish dataset (.xlsx, .csv or .tsv); overrides config data_path")
	rootCmd.PersistentFlags().StringVar(&sheetName, "sheet", "", "worksheet name for .xlsx datasets (default first sheet)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "default", "session id that scopes the applied parish selection")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
}

func loadConfig() {
	cfg = nil
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("data") && dataPath != "" {
		cfg.DataPath = dataPath
	}
	if f.Changed("sheet") {
		cfg.Sheet = sheetName
	}
}
