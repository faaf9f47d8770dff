package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/cadence/internal/config"
	"github.com/runger/cadence/internal/daemon"
	"github.com/runger/cadence/internal/ipc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cadence status",
	Long: `Show the current status of cadence, including:
- Daemon status (running/stopped, queue, counters)
- Active editing sessions and their engine state
- Configuration file location and effective thresholds
- Trigger journal location

Examples:
  cadence status
  cadence status --json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()
	cfg, _ := config.Load() // Ignore error, use defaults

	client := ipc.NewClient("")
	defer client.Close()
	status, statusErr := client.Status()

	if flagJSON {
		return printStatusJSON(status, statusErr)
	}

	fmt.Printf("%scadence Status%s\n", colorBold, colorReset)
	fmt.Println(strings.Repeat("-", 40))

	// Daemon
	fmt.Printf("\n%sDaemon:%s\n", colorBold, colorReset)
	if statusErr == nil {
		fmt.Printf("  Status:   %srunning%s\n", colorGreen, colorReset)
		fmt.Printf("  PID:      %d\n", status.PID)
		fmt.Printf("  Uptime:   %s\n", formatUptime(status.UptimeSeconds))
		fmt.Printf("  Queue:    %d/%d events (%d dropped)\n",
			status.Queue.CurrentSize, status.Queue.MaxSize, status.Queue.TotalDropped)
		printSessions(client, status.Sessions)
	} else if daemon.IsRunning() {
		// Alive per the PID/lock files but not answering the control API.
		fmt.Printf("  Status:   %sunresponsive%s (%v)\n", colorYellow, colorReset, statusErr)
	} else {
		fmt.Printf("  Status:   %snot running%s\n", colorDim, colorReset)
		fmt.Printf("  Run 'cadence daemon start' to launch it.\n")
	}

	// Configuration
	fmt.Printf("\n%sConfiguration:%s\n", colorBold, colorReset)
	configFile := paths.ConfigFile()
	if _, err := os.Stat(configFile); err == nil {
		fmt.Printf("  File:     %s\n", configFile)
	} else {
		fmt.Printf("  File:     %s (not found, using defaults)\n", configFile)
	}
	fmt.Printf("  Flow:     ≥ %.1f chars/s\n", cfg.Engine.FlowThreshold)
	fmt.Printf("  Waits:    grace %dms, short %dms, long %dms\n",
		cfg.Engine.GraceMs, cfg.Engine.ShortWaitMs, cfg.Engine.LongWaitMs)
	fmt.Printf("  Gate:     min %d runes, cooldown %ds, change ≥ %.0f%%\n",
		cfg.Engine.MinLength, cfg.Engine.CooldownMs/1000, cfg.Engine.MinChangeFraction*100)

	// Journal
	fmt.Printf("\n%sJournal:%s\n", colorBold, colorReset)
	fmt.Printf("  Enabled:  %s\n", formatBool(cfg.Journal.Enabled))
	journalFile := cfg.Journal.Path
	if journalFile == "" {
		journalFile = paths.JournalFile()
	}
	if info, err := os.Stat(journalFile); err == nil {
		fmt.Printf("  Database: %s (%s)\n", journalFile, formatSize(info.Size()))
	} else {
		fmt.Printf("  Database: %s (not created)\n", journalFile)
	}

	return nil
}

// printSessions renders the per-session table under the daemon section. The
// count comes from /status; the detail rows need a second call.
func printSessions(client *ipc.Client, count int) {
	fmt.Printf("  Sessions: %d\n", count)
	if count == 0 {
		return
	}
	sessions, err := client.Sessions()
	if err != nil {
		return
	}
	for _, s := range sessions {
		armed := ""
		if s.CountdownArmed {
			armed = fmt.Sprintf(", countdown %.1fs", float64(s.CountdownMsLeft)/1000)
		}
		fmt.Printf("    %s%-16s%s %s%-9s%s %4.1f chars/s, %d fired%s\n",
			colorCyan, s.ID, colorReset,
			stateColor(s.State), s.State, colorReset,
			s.Velocity, s.TriggersFired, armed)
	}
}

// statusJSON is the --json envelope: daemon status plus reachability.
type statusJSON struct {
	Running bool                   `json:"running"`
	Error   string                 `json:"error,omitempty"`
	Daemon  *daemon.StatusResponse `json:"daemon,omitempty"`
}

func printStatusJSON(status *daemon.StatusResponse, statusErr error) error {
	out := statusJSON{Running: statusErr == nil, Daemon: status}
	if statusErr != nil {
		out.Error = statusErr.Error()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func stateColor(state string) string {
	switch state {
	case "FLOW":
		return colorGreen
	case "EDITING":
		return colorYellow
	case "REVIEWING":
		return colorCyan
	default:
		return colorDim
	}
}

func formatUptime(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}

func formatBool(b bool) string {
	if b {
		return colorGreen + "enabled" + colorReset
	}
	return colorDim + "disabled" + colorReset
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
