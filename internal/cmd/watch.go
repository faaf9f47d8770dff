package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/cadence/internal/config"
	"github.com/runger/cadence/internal/log"
	"github.com/runger/cadence/internal/watch"
)

var watchTick time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Type into a live engine and watch it decide",
	Long: `Open a terminal UI with a text field wired to an in-process engine.

The status pane shows the classified state, velocity, feedback intensity, the
countdown once one arms, and the last forwarded snapshot. Useful when tuning
thresholds: edit the config, relaunch, and feel the difference.

With --tick the engine clock is decoupled from wall time and advanced once
per UI tick, so a recorded keystroke sequence always classifies identically.

Keys: ctrl+f forces a trigger, ctrl+r re-arms after a disarm, esc quits.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchTick, "tick", 0, "deterministic engine tick (0 = wall clock)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnvOverrides()
	return watch.Run(buildWatchOptions(cfg))
}

// buildWatchOptions maps config and flags onto the watch model's options.
// A nonzero --tick switches the engine onto a manual clock driven by the UI.
func buildWatchOptions(cfg *config.Config) watch.Options {
	opts := watch.Options{
		Config: cfg.Engine.Runtime(),
	}
	if flagVerbose {
		opts.Logger = log.New(&log.Config{Output: os.Stderr, Debug: true})
	}
	if watchTick > 0 {
		opts.Tick = watchTick
		opts.Deterministic = true
	}
	return opts
}
