package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/cadence/internal/config"
	"github.com/runger/cadence/internal/daemon"
	"github.com/runger/cadence/internal/ipc"
	"github.com/runger/cadence/internal/log"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the cadenced background daemon",
	Long: `Manage the cadenced background daemon process.

The daemon hosts one trigger engine per editing session, fed by cadence-hook
over the ingest socket, and serves the control API the CLI talks to.

Subcommands:
  start  - Start the daemon (runs in background)
  stop   - Stop the daemon
  status - Check if daemon is running`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ipc.IsDaemonRunning() {
			fmt.Printf("Daemon: %salready running%s\n", colorCyan, colorReset)
			return nil
		}
		fmt.Print("Starting cadenced...")
		if err := ipc.SpawnAndWait(ipc.SpawnTimeout); err != nil {
			fmt.Printf(" %sfailed%s\n", colorRed, colorReset)
			return err
		}
		fmt.Printf(" %sready%s\n", colorCyan, colorReset)
		fmt.Printf("Control socket: %s\n", ipc.ControlSocketPath(""))
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ipc.NewClient("")
		defer client.Close()

		if client.Ping() {
			if err := client.StopDaemon(); err == nil {
				fmt.Println("Daemon stopped.")
				return nil
			}
			// Control API refused or broke mid-shutdown; fall through to
			// the signal path.
		}

		if err := daemon.Stop(); err != nil {
			if errors.Is(err, daemon.ErrNotRunning) {
				fmt.Printf("Daemon: %snot running%s\n", colorDim, colorReset)
				return nil
			}
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
		fmt.Println("Daemon stopped.")
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status",
	Run: func(cmd *cobra.Command, args []string) {
		client := ipc.NewClient("")
		defer client.Close()

		status, err := client.Status()
		if err != nil {
			fmt.Printf("Daemon: %snot running%s\n", colorDim, colorReset)
			return
		}
		fmt.Printf("Daemon: %srunning%s %s\n", colorCyan, colorReset, formatDaemonLine(status.PID, status.UptimeSeconds, status.Sessions))
	},
}

var daemonRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the daemon in the foreground (internal use)",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemonForeground(cmd.Context())
	},
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonRunCmd)
	rootCmd.AddCommand(daemonCmd)
}

// formatDaemonLine renders the compact "(pid N, up D, S sessions)" suffix.
func formatDaemonLine(pid int, uptimeSeconds int64, sessions int) string {
	up := (time.Duration(uptimeSeconds) * time.Second).String()
	noun := "sessions"
	if sessions == 1 {
		noun = "session"
	}
	return fmt.Sprintf("(pid %d, up %s, %d %s)", pid, up, sessions, noun)
}

// runDaemonForeground loads configuration and blocks in daemon.Run. It is
// shared by `cadence daemon run` and exercised the same way cadenced's main
// is: config file, env overrides, clamp warnings, then the server loop.
func runDaemonForeground(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnvOverrides()

	logger := log.New(&log.Config{
		Output: os.Stderr,
		Debug:  flagVerbose || os.Getenv("CADENCE_DEBUG") == "1",
	})
	for _, w := range cfg.Engine.ValidateAndFix() {
		logger.Warn("config value adjusted", "field", w.Field, "reason", w.Message)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	return daemon.Run(ctx, &daemon.ServerConfig{
		Config: cfg,
		Logger: logger,
	})
}
