package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/runger/cadence/internal/config"
	"github.com/runger/cadence/internal/log"
	"github.com/runger/cadence/internal/replay"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <script>...",
	Short: "Replay a typing script against the engine",
	Long: `Replay one or more typing scripts against a fresh engine on a
virtual clock. A run is deterministic: the same script and thresholds always
produce the same triggers at the same offsets.

Script directives, one per line:
  type "text" <interval>   type text one rune per interval
  pause <duration>         let the clock run with no keys
  compose on|off           open or close an IME composition
  force                    request a manual trigger
  expect-state FLOW        assert the classified state
  expect-trigger           assert at least one trigger fired since the last check
  expect-no-trigger        assert nothing fired

The engine thresholds come from the config file, so a script doubles as a
regression check when tuning.

Examples:
  cadence simulate pause-then-fire.cadence
  cadence simulate scripts/*.cadence --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnvOverrides()

	opts := replay.Options{Config: cfg.Engine.Runtime()}
	if flagVerbose {
		opts.Logger = log.New(&log.Config{Output: os.Stderr, Debug: true})
	}

	type scriptOutcome struct {
		Script string         `json:"script"`
		Result *replay.Result `json:"result"`
	}
	outcomes := make([]scriptOutcome, 0, len(args))

	failed := 0
	for _, path := range args {
		script, err := replay.ParseFile(path)
		if err != nil {
			return err
		}
		result := replay.Run(script, opts)
		outcomes = append(outcomes, scriptOutcome{Script: path, Result: result})
		if !result.Passed() {
			failed++
		}
		if !flagJSON {
			renderResult(path, result)
		}
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcomes); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d script(s) failed", failed, len(args))
	}
	return nil
}

// renderResult prints one script's step-by-step outcome.
func renderResult(path string, result *replay.Result) {
	fmt.Printf("%s%s%s\n", colorBold, filepath.Base(path), colorReset)

	for _, step := range result.Steps {
		switch step.Status {
		case replay.StatusPassed:
			fmt.Printf("  %s✓%s %3d  %s\n", colorGreen, colorReset, step.Line, step.Raw)
		case replay.StatusFailed:
			fmt.Printf("  %s✗%s %3d  %s\n", colorRed, colorReset, step.Line, step.Raw)
			fmt.Printf("        %s%s%s\n", colorRed, step.Detail, colorReset)
		default:
			fmt.Printf("  %s· %3d  %s%s\n", colorDim, step.Line, step.Raw, colorReset)
		}
	}

	for _, trig := range result.Triggers {
		fmt.Printf("  %s→ trigger at %s: %d chars%s\n", colorCyan, trig.At, trig.Chars, colorReset)
	}

	verdict := colorGreen + "PASS" + colorReset
	if !result.Passed() {
		verdict = colorRed + "FAIL" + colorReset
	}
	fmt.Printf("  %s in %s virtual\n\n", verdict, result.Elapsed)
}
