package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/cadence/internal/event"
	"github.com/runger/cadence/internal/hook"
)

func TestParseKeyArgs(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		wantChar      string
		wantComposing bool
		wantErr       bool
	}{
		{
			name:     "single char",
			args:     []string{"a"},
			wantChar: "a",
		},
		{
			name:     "named enter",
			args:     []string{"enter"},
			wantChar: "\n",
		},
		{
			name:     "named tab",
			args:     []string{"tab"},
			wantChar: "\t",
		},
		{
			name:     "named space",
			args:     []string{"space"},
			wantChar: " ",
		},
		{
			name:     "literal hyphen",
			args:     []string{"-"},
			wantChar: "-",
		},
		{
			name:          "composing flag",
			args:          []string{"--composing", "k"},
			wantChar:      "k",
			wantComposing: true,
		},
		{
			name:          "flag after char",
			args:          []string{"k", "--composing"},
			wantChar:      "k",
			wantComposing: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"--loud", "a"},
			wantErr: true,
		},
		{
			name:    "extra positional",
			args:    []string{"a", "b"},
			wantErr: true,
		},
		{
			name:    "no char",
			args:    []string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseKeyArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChar, cfg.char)
			assert.Equal(t, tt.wantComposing, cfg.composing)
		})
	}
}

func TestParseTextArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantStdin bool
		wantErr   bool
	}{
		{
			name: "no args",
			args: []string{},
		},
		{
			name:      "stdin flag",
			args:      []string{"--stdin"},
			wantStdin: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"--raw"},
			wantErr: true,
		},
		{
			name: "positional ignored",
			args: []string{"whatever"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseTextArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStdin, cfg.stdin)
		})
	}
}

func TestReadSession(t *testing.T) {
	t.Setenv(EnvSession, "term-9")
	session, err := readSession()
	require.NoError(t, err)
	assert.Equal(t, "term-9", session)

	t.Setenv(EnvSession, "")
	_, err = readSession()
	assert.ErrorContains(t, err, EnvSession)
}

func TestReadTextFromEnv(t *testing.T) {
	t.Setenv(EnvText, "draft line one\ndraft line two.")
	text, err := readText(&textConfig{})
	require.NoError(t, err)
	assert.Equal(t, "draft line one\ndraft line two.", text)

	// Set but empty means the field was cleared.
	t.Setenv(EnvText, "")
	text, err = readText(&textConfig{})
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestReadTextMissingEnv(t *testing.T) {
	t.Setenv(EnvText, "placeholder")
	os.Unsetenv(EnvText)

	_, err := readText(&textConfig{})
	assert.ErrorContains(t, err, "--stdin")
}

func TestReadTextFromStdin(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	old := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = old })

	_, err = w.WriteString("from a pipe\nwith two lines\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	text, err := readText(&textConfig{stdin: true})
	require.NoError(t, err)
	assert.Equal(t, "from a pipe\nwith two lines\n", text)
}

func TestToValidUTF8(t *testing.T) {
	assert.Equal(t, "plain", toValidUTF8("plain"))
	assert.Equal(t, "caf�", toValidUTF8("caf\xff"))
}

// startIngestListener serves a temp unix socket and forwards every received
// NDJSON line on the returned channel. Each hook invocation opens its own
// connection, writes one line, and closes.
func startIngestListener(t *testing.T) (string, <-chan []byte) {
	t.Helper()

	sock := filepath.Join(t.TempDir(), "ingest.sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	lines := make(chan []byte, 8)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			data, _ := io.ReadAll(conn)
			conn.Close()
			for _, line := range bytes.Split(data, []byte("\n")) {
				if len(line) > 0 {
					lines <- line
				}
			}
		}
	}()

	return sock, lines
}

func recvEvent(t *testing.T, lines <-chan []byte) *event.Event {
	t.Helper()

	select {
	case line := <-lines:
		var ev event.Event
		require.NoError(t, json.Unmarshal(line, &ev))
		return &ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
		return nil
	}
}

// hookEnv points the sender at sock and pins the session id, with the kill
// switches off.
func hookEnv(t *testing.T, sock string) {
	t.Helper()
	t.Setenv(EnvSession, "term-1")
	t.Setenv(EnvIngestSocket, sock)
	t.Setenv(hook.EnvDisable, "")
	t.Setenv(EnvAutospawn, "")
}

func TestRun_KeyDelivers(t *testing.T) {
	sock, lines := startIngestListener(t)
	hookEnv(t, sock)

	var errOut bytes.Buffer
	code := run([]string{"key", "a"}, io.Discard, &errOut)
	require.Equal(t, 0, code, "stderr: %s", errOut.String())

	ev := recvEvent(t, lines)
	assert.Equal(t, event.Version, ev.Version)
	assert.Equal(t, event.TypeKey, ev.Type)
	assert.Equal(t, "term-1", ev.Session)
	assert.Equal(t, "a", ev.Rune)
	assert.False(t, ev.Composing)
	assert.Greater(t, ev.TS, int64(0))
}

func TestRun_KeyNamedAndComposing(t *testing.T) {
	sock, lines := startIngestListener(t)
	hookEnv(t, sock)

	code := run([]string{"key", "--composing", "enter"}, io.Discard, io.Discard)
	require.Equal(t, 0, code)

	ev := recvEvent(t, lines)
	assert.Equal(t, "\n", ev.Rune)
	assert.True(t, ev.Composing)
}

func TestRun_ComposeDelivers(t *testing.T) {
	sock, lines := startIngestListener(t)
	hookEnv(t, sock)

	require.Equal(t, 0, run([]string{"compose", "on"}, io.Discard, io.Discard))
	ev := recvEvent(t, lines)
	assert.Equal(t, event.TypeCompose, ev.Type)
	assert.True(t, ev.Open)

	require.Equal(t, 0, run([]string{"compose", "off"}, io.Discard, io.Discard))
	ev = recvEvent(t, lines)
	assert.Equal(t, event.TypeCompose, ev.Type)
	assert.False(t, ev.Open)
}

func TestRun_TextDelivers(t *testing.T) {
	sock, lines := startIngestListener(t)
	hookEnv(t, sock)
	t.Setenv(EnvText, "Refactor the cache layer to evict by LRU.")

	code := run([]string{"text"}, io.Discard, io.Discard)
	require.Equal(t, 0, code)

	ev := recvEvent(t, lines)
	assert.Equal(t, event.TypeText, ev.Type)
	assert.Equal(t, "Refactor the cache layer to evict by LRU.", ev.Text)
}

func TestRun_BareCommandsDeliver(t *testing.T) {
	sock, lines := startIngestListener(t)
	hookEnv(t, sock)

	for _, sub := range []string{"activate", "deactivate", "force"} {
		code := run([]string{sub}, io.Discard, io.Discard)
		require.Equal(t, 0, code, "subcommand %s", sub)

		ev := recvEvent(t, lines)
		assert.Equal(t, sub, ev.Type)
		assert.Equal(t, "term-1", ev.Session)
	}
}

func TestRun_KeyRejectsMultiChar(t *testing.T) {
	sock, _ := startIngestListener(t)
	hookEnv(t, sock)

	var errOut bytes.Buffer
	code := run([]string{"key", "ab"}, io.Discard, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "exactly one character")
}

func TestRun_KeyRequiresSession(t *testing.T) {
	sock, _ := startIngestListener(t)
	hookEnv(t, sock)
	t.Setenv(EnvSession, "")

	var errOut bytes.Buffer
	code := run([]string{"key", "a"}, io.Discard, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), EnvSession)
}

func TestRun_ComposeRejectsBadArg(t *testing.T) {
	sock, _ := startIngestListener(t)
	hookEnv(t, sock)

	var errOut bytes.Buffer
	code := run([]string{"compose", "maybe"}, io.Discard, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "on|off")
}

func TestRun_SilentDropWhenDaemonAbsent(t *testing.T) {
	hookEnv(t, filepath.Join(t.TempDir(), "nobody-home.sock"))

	var errOut bytes.Buffer
	code := run([]string{"key", "a"}, io.Discard, &errOut)
	assert.Equal(t, 0, code)
	assert.Empty(t, errOut.String())
}

func TestRun_DisabledReportsSuccess(t *testing.T) {
	hookEnv(t, filepath.Join(t.TempDir(), "nobody-home.sock"))
	t.Setenv(hook.EnvDisable, "1")

	code := run([]string{"key", "a"}, io.Discard, io.Discard)
	assert.Equal(t, 0, code)
}
