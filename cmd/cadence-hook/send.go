package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/runger/cadence/internal/event"
	"github.com/runger/cadence/internal/hook"
	"github.com/runger/cadence/internal/ipc"
	"github.com/runger/cadence/internal/transport"
)

// Environment variables read by the hook. The hot path never loads the YAML
// config; everything arrives through the environment so one keystroke costs
// one exec and one socket write.
const (
	// EnvSession carries the session id. Required for every event.
	EnvSession = "CADENCE_SESSION"

	// EnvText carries the field snapshot for the text subcommand. Set but
	// empty is a legitimate snapshot: the field was cleared.
	EnvText = "CADENCE_TEXT"

	// EnvIngestSocket overrides the ingest socket path.
	EnvIngestSocket = "CADENCE_INGEST_SOCKET"

	// EnvAutospawn enables a best-effort daemon spawn after a failed send.
	// Editor integrations export it when hook.auto_start_daemon is on.
	EnvAutospawn = "CADENCE_AUTOSPAWN"
)

// namedKeys maps spellable names to characters that are awkward to pass as
// a literal argv byte from editor configs.
var namedKeys = map[string]rune{
	"enter": '\n',
	"tab":   '\t',
	"space": ' ',
}

// keyConfig holds the parsed configuration for the key command.
type keyConfig struct {
	char      string // the committed character, after named-key mapping
	composing bool   // character arrived inside an open composition
}

// parseKeyArgs parses the command line arguments for the key command.
func parseKeyArgs(args []string) (*keyConfig, error) {
	cfg := &keyConfig{}

	seen := false
	for _, arg := range args {
		switch arg {
		case "--composing":
			cfg.composing = true
		default:
			if strings.HasPrefix(arg, "-") && utf8.RuneCountInString(arg) > 1 {
				return nil, fmt.Errorf("unknown flag: %s", arg)
			}
			if seen {
				return nil, fmt.Errorf("want exactly one character argument, got extra %q", arg)
			}
			cfg.char = arg
			seen = true
		}
	}

	if !seen {
		return nil, fmt.Errorf("want a character argument")
	}

	if r, ok := namedKeys[cfg.char]; ok {
		cfg.char = string(r)
	}

	return cfg, nil
}

// runKey handles the key subcommand: one committed character per invocation.
func runKey(args []string, stderr io.Writer) int {
	cfg, err := parseKeyArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "cadence-hook key: %v\n", err)
		return 1
	}

	char := toValidUTF8(cfg.char)
	if utf8.RuneCountInString(char) != 1 {
		fmt.Fprintf(stderr, "cadence-hook key: want exactly one character, got %q\n", char)
		return 1
	}

	session, err := readSession()
	if err != nil {
		fmt.Fprintf(stderr, "cadence-hook key: %v\n", err)
		return 1
	}

	r, _ := utf8.DecodeRuneInString(char)
	ev := event.NewKeyEvent(session, r)
	ev.Composing = cfg.composing

	return sendEvent(ev, stderr)
}

// runCompose handles the compose subcommand. "on" opens an IME composition
// sequence, "off" commits it.
func runCompose(args []string, stderr io.Writer) int {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(stderr, "cadence-hook compose: want exactly one argument: on|off")
		return 1
	}

	session, err := readSession()
	if err != nil {
		fmt.Fprintf(stderr, "cadence-hook compose: %v\n", err)
		return 1
	}

	return sendEvent(event.NewComposeEvent(session, args[0] == "on"), stderr)
}

// textConfig holds the parsed configuration for the text command.
type textConfig struct {
	stdin bool // read the snapshot from stdin instead of CADENCE_TEXT
}

// parseTextArgs parses the command line arguments for the text command.
func parseTextArgs(args []string) (*textConfig, error) {
	cfg := &textConfig{}

	for _, arg := range args {
		switch arg {
		case "--stdin":
			cfg.stdin = true
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown flag: %s", arg)
			}
			// Ignore positional arguments
		}
	}

	return cfg, nil
}

// runText handles the text subcommand: the field's full current text, read
// from CADENCE_TEXT or stdin.
func runText(args []string, stderr io.Writer) int {
	cfg, err := parseTextArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "cadence-hook text: %v\n", err)
		return 1
	}

	session, err := readSession()
	if err != nil {
		fmt.Fprintf(stderr, "cadence-hook text: %v\n", err)
		return 1
	}

	text, err := readText(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "cadence-hook text: %v\n", err)
		return 1
	}

	return sendEvent(event.NewTextEvent(session, toValidUTF8(text)), stderr)
}

// runBare handles the subcommands that carry no payload beyond the session:
// activate, deactivate, force.
func runBare(build func(session string) *event.Event, stderr io.Writer) int {
	session, err := readSession()
	if err != nil {
		fmt.Fprintf(stderr, "cadence-hook: %v\n", err)
		return 1
	}

	return sendEvent(build(session), stderr)
}

// sendEvent validates ev and writes it to the ingest socket. A failed send
// is silent: the daemon being down must never disturb the caller. With
// CADENCE_AUTOSPAWN=1 a failed send additionally kicks off a daemon spawn
// so the next event finds a listener.
func sendEvent(ev *event.Event, stderr io.Writer) int {
	if err := event.Validate(ev); err != nil {
		fmt.Fprintf(stderr, "cadence-hook: %v\n", err)
		return 1
	}

	sender := hook.NewSender(transport.NewIngest(os.Getenv(EnvIngestSocket)))
	if !sender.Send(ev) && os.Getenv(EnvAutospawn) == "1" {
		// The event itself is already lost; the spawn only helps the next one.
		_ = ipc.SpawnDaemon()
	}

	return 0
}

func readSession() (string, error) {
	v := os.Getenv(EnvSession)
	if v == "" {
		return "", fmt.Errorf("%s is required", EnvSession)
	}
	return v, nil
}

func readText(cfg *textConfig) (string, error) {
	if cfg.stdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read text from stdin: %w", err)
		}
		return string(data), nil
	}

	text, ok := os.LookupEnv(EnvText)
	if !ok {
		return "", fmt.Errorf("%s is required (or use --stdin)", EnvText)
	}
	return text, nil
}

// toValidUTF8 replaces invalid UTF-8 sequences with U+FFFD so the JSON
// encoder never sees broken bytes.
func toValidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}
