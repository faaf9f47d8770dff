package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runger/cadence/internal/ipc"
)

// EnvSession names the editing session the CLI acts on when no argument is
// given. Editor integrations export it so `cadence force` works from a
// keybinding without plumbing ids around.
const EnvSession = "CADENCE_SESSION"

var forceCmd = &cobra.Command{
	Use:   "force [session]",
	Short: "Request an immediate trigger for a session",
	Long: `Request an immediate manual trigger for an editing session.

The manual path skips the countdown and cooldown but still refuses trivially
short or placeholder text. The session comes from the argument, the
CADENCE_SESSION environment variable, or, when exactly one session is active,
that session.

Examples:
  cadence force
  cadence force term-42`,
	Args: cobra.MaximumNArgs(1),
	RunE: runForce,
}

func init() {
	rootCmd.AddCommand(forceCmd)
}

func runForce(cmd *cobra.Command, args []string) error {
	client := ipc.NewClient("")
	defer client.Close()

	session, err := resolveSession(client, args)
	if err != nil {
		return err
	}

	resp, err := client.Force(session)
	if err != nil {
		return err
	}
	if !resp.Requested {
		return fmt.Errorf("daemon declined the trigger request for %q", session)
	}
	fmt.Printf("Trigger requested for %s%s%s.\n", colorCyan, session, colorReset)
	fmt.Printf("The gate still applies; check 'cadence journal list --session %s'.\n", session)
	return nil
}

// resolveSession picks the target session: explicit argument, then the
// CADENCE_SESSION environment variable, then a sole active session.
func resolveSession(client *ipc.Client, args []string) (string, error) {
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}
	if env := os.Getenv(EnvSession); env != "" {
		return env, nil
	}

	sessions, err := client.Sessions()
	if err != nil {
		return "", fmt.Errorf("no session given and none could be listed: %w", err)
	}
	switch len(sessions) {
	case 0:
		return "", fmt.Errorf("no active sessions; pass a session id or set %s", EnvSession)
	case 1:
		return sessions[0].ID, nil
	default:
		ids := make([]string, len(sessions))
		for i, s := range sessions {
			ids[i] = s.ID
		}
		return "", fmt.Errorf("%d sessions active, pass one of: %v", len(sessions), ids)
	}
}
