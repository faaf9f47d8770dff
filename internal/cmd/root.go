// Package cmd implements the cadence CLI: daemon lifecycle, status
// inspection, manual triggers, the live watch TUI, script simulation, and
// journal queries.
package cmd

import (
	"github.com/spf13/cobra"
)

// Persistent flags shared by every subcommand.
var (
	flagVerbose bool
	flagJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "typing-cadence trigger engine",
	Long: `cadence - typing-cadence trigger engine
  - watches keystroke timing to find the moment a thought is finished
  - fires a text snapshot to a consumer exactly once per pause`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "machine-readable JSON output")
}
