package cmd

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/runger/cadence/internal/ipc"
)

// isolateHome points every path the commands resolve at a temp directory so
// tests never touch the real config, journal, or sockets.
func isolateHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, ".local", "share"))
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(dir, "run"))
	t.Setenv(ipc.EnvControlSocket, filepath.Join(dir, "nonexistent.sock"))
	t.Setenv(EnvSession, "")
	return dir
}

// startFakeControl serves a control API stand-in over a unix socket and
// points the CLI's client at it via the environment.
func startFakeControl(t *testing.T, handler http.Handler) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "control.sock")

	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	t.Setenv(ipc.EnvControlSocket, sock)
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	os.Stdout = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	fn()
	_ = w.Close()
	os.Stdout = old
	out := <-outC
	_ = r.Close()
	return out
}

type journalGlobals struct {
	session string
	source  string
	limit   int
}

func withJournalGlobals(t *testing.T, g journalGlobals) {
	t.Helper()
	old := journalGlobals{session: journalSession, source: journalSource, limit: journalLimit}
	journalSession = g.session
	journalSource = g.source
	journalLimit = g.limit
	t.Cleanup(func() {
		journalSession = old.session
		journalSource = old.source
		journalLimit = old.limit
	})
}

func withJSONFlag(t *testing.T, v bool) {
	t.Helper()
	old := flagJSON
	flagJSON = v
	t.Cleanup(func() { flagJSON = old })
}
