// cadence-hook is the editor and shell hook binary for forwarding typing
// events to the cadence daemon. It reads the session id and payload from
// environment variables or argv and writes one NDJSON line to the ingest
// socket.
//
// This binary is designed for minimal startup time and fire-and-forget
// behavior. It never blocks the caller: when the daemon is down the event
// is silently dropped and the hook still exits 0.
//
// Subcommands:
//   - key: forward one committed character
//   - compose: open or close an IME composition sequence
//   - text: forward the full field snapshot
//   - activate, deactivate: arm or disarm the session
//   - force: request an immediate manual trigger
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/runger/cadence/internal/event"
)

// Version info - injected at build time via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "key":
		return runKey(cmdArgs, stderr)
	case "compose":
		return runCompose(cmdArgs, stderr)
	case "text":
		return runText(cmdArgs, stderr)
	case "activate":
		return runBare(event.NewActivateEvent, stderr)
	case "deactivate":
		return runBare(event.NewDeactivateEvent, stderr)
	case "force":
		return runBare(event.NewForceEvent, stderr)
	case "version", "--version", "-v":
		printVersion(stdout)
		return 0
	case "help", "--help", "-h":
		printUsage(stderr)
		return 0
	default:
		fmt.Fprintf(stderr, "cadence-hook: unknown command: %s\n", cmd)
		printUsage(stderr)
		return 1
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "cadence-hook %s (commit: %s, built: %s)\n", Version, GitCommit, BuildDate)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `cadence-hook - editor/shell hook for the cadence daemon

Usage: cadence-hook <command> [args...]

Commands:
  key <char>       Forward one committed character (names: enter, tab, space)
  compose on|off   Open or close an IME composition sequence
  text             Forward the field snapshot from CADENCE_TEXT
  activate         Arm the session
  deactivate       Disarm the session
  force            Request an immediate manual trigger

Environment variables:
  CADENCE_SESSION          Session identifier (required)
  CADENCE_TEXT             Field snapshot for 'text' (required unless --stdin)
  CADENCE_INGEST_SOCKET    Ingest socket path override (optional)
  CADENCE_HOOK_TIMEOUT_MS  Connect timeout in milliseconds, 10-20 (optional)
  CADENCE_DISABLE          If "1", drop all events silently (optional)
  CADENCE_AUTOSPAWN        If "1", spawn the daemon after a failed send (optional)

Flags for 'key':
  --composing      Character arrived inside an open composition

Flags for 'text':
  --stdin          Read the snapshot from stdin instead of CADENCE_TEXT

Exit codes:
  0  Event sent (or daemon unavailable - silent drop)
  1  Invalid arguments

For more information, see: https://github.com/runger/cadence`)
}
