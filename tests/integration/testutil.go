// Package integration provides end-to-end integration tests for cadence.
// These tests run a real daemon over real sockets: NDJSON events in through
// the ingest socket, control API out through the control socket, triggers
// down into a SQLite journal.
//
// The engine tunables are accelerated so a full type-stop-fire cycle
// completes in well under a second of wall time.
package integration

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/runger/cadence/internal/config"
	"github.com/runger/cadence/internal/daemon"
	"github.com/runger/cadence/internal/event"
	"github.com/runger/cadence/internal/hook"
	"github.com/runger/cadence/internal/ipc"
	"github.com/runger/cadence/internal/log"
	"github.com/runger/cadence/internal/storage"
	"github.com/runger/cadence/internal/transport"
)

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	T             *testing.T
	Config        *config.Config
	Paths         *config.Paths
	Server        *daemon.Server
	Journal       *storage.Journal
	Client        *ipc.Client
	Sender        *hook.Sender
	Cancel        context.CancelFunc
	TempDir       string
	IngestSocket  string
	ControlSocket string

	done chan error
}

// fastEngineConfig returns engine tunables scaled down so that a burst of
// keys reaches FLOW within one sample and an auto trigger lands roughly half
// a second after typing stops.
func fastEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		SampleIntervalMs:    25,
		WindowMs:            100,
		MaxHistory:          10,
		FlowThreshold:       2.0,
		EditingThreshold:    0.5,
		ReviewingThreshold:  0.1,
		GraceMs:             80,
		ShortWaitMs:         250,
		LongWaitMs:          350,
		MidpointMs:          120,
		MinLength:           15,
		CooldownMs:          600,
		MinChangeFraction:   0.2,
		ManualMinLength:     10,
		InactivityTimeoutMs: 60000,
	}
}

// SetupTestEnv creates a complete test environment with a running daemon,
// journal, control client, and event sender.
func SetupTestEnv(t *testing.T) *TestEnv {
	return SetupTestEnvWith(t, nil)
}

// SetupTestEnvWith is SetupTestEnv with a config hook applied before the
// daemon starts, for tests that need different gate timings.
func SetupTestEnvWith(t *testing.T, mutate func(*config.Config)) *TestEnv {
	t.Helper()

	// Keep the directory name short: unix socket paths have a hard length
	// cap and t.TempDir() nests under the full test name.
	tempDir, err := os.MkdirTemp("", "cadence-itest-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	paths := &config.Paths{
		ConfigDir:  filepath.Join(tempDir, "config"),
		DataDir:    filepath.Join(tempDir, "data"),
		RuntimeDir: filepath.Join(tempDir, "run"),
	}
	if dirErr := paths.EnsureDirectories(); dirErr != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create directories: %v", dirErr)
	}

	cfg := config.DefaultConfig()
	cfg.Engine = fastEngineConfig()
	cfg.Daemon.IngestSocket = filepath.Join(tempDir, "ingest.sock")
	cfg.Daemon.ControlSocket = filepath.Join(tempDir, "control.sock")
	cfg.Journal.Path = filepath.Join(tempDir, "journal.db")
	if mutate != nil {
		mutate(cfg)
	}

	journal, err := storage.Open(storage.Options{
		Path:          cfg.Journal.Path,
		BusyTimeoutMs: cfg.Journal.SQLiteBusyTimeoutMs,
	})
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to open journal: %v", err)
	}

	server, err := daemon.NewServer(&daemon.ServerConfig{
		Config:  cfg,
		Paths:   paths,
		Logger:  log.New(&log.Config{Output: io.Discard}),
		Journal: journal,
	})
	if err != nil {
		journal.Close()
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Start(ctx)
	}()

	for _, sock := range []string{cfg.Daemon.IngestSocket, cfg.Daemon.ControlSocket} {
		if err := waitForSocket(sock, 5*time.Second); err != nil {
			cancel()
			server.Shutdown()
			journal.Close()
			os.RemoveAll(tempDir)
			t.Fatalf("socket %s never came up: %v", sock, err)
		}
	}

	return &TestEnv{
		T:             t,
		Config:        cfg,
		Paths:         paths,
		Server:        server,
		Journal:       journal,
		Client:        ipc.NewClient(cfg.Daemon.ControlSocket),
		Sender:        hook.NewSender(transport.NewIngest(cfg.Daemon.IngestSocket)),
		Cancel:        cancel,
		TempDir:       tempDir,
		IngestSocket:  cfg.Daemon.IngestSocket,
		ControlSocket: cfg.Daemon.ControlSocket,
		done:          done,
	}
}

// Teardown cleans up all test resources.
func (e *TestEnv) Teardown() {
	if e.Client != nil {
		e.Client.Close()
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	if e.Server != nil {
		e.Server.Shutdown()
	}
	if e.done != nil {
		select {
		case err := <-e.done:
			if err != nil {
				e.T.Errorf("server exited with error: %v", err)
			}
		case <-time.After(5 * time.Second):
			e.T.Error("server did not exit within 5s of shutdown")
		}
	}
	if e.Journal != nil {
		e.Journal.Close()
	}
	if e.TempDir != "" {
		os.RemoveAll(e.TempDir)
	}
}

// Send delivers one event through the real ingest socket and fails the test
// if the fire-and-forget write did not go through.
func (e *TestEnv) Send(ev *event.Event) {
	e.T.Helper()
	if !e.Sender.Send(ev) {
		e.T.Fatalf("failed to send %s event for session %s", ev.Type, ev.Session)
	}
}

// TypeBurst snapshots text for the session and then sends one key event per
// rune, the way an editor hook would during fast typing. The keys land
// within a few milliseconds, which the accelerated window classifies as
// FLOW.
func (e *TestEnv) TypeBurst(session, text string) {
	e.T.Helper()
	e.Send(event.NewTextEvent(session, text))
	for _, r := range text {
		e.Send(event.NewKeyEvent(session, r))
	}
}

// WaitTriggerCount polls the journal until the session has at least n
// trigger rows, returning them newest-first.
func (e *TestEnv) WaitTriggerCount(session string, n int) []storage.Trigger {
	e.T.Helper()

	var rows []storage.Trigger
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		rows, err = e.Journal.ListTriggers(context.Background(), storage.TriggerQuery{Session: session})
		if err == nil && len(rows) >= n {
			return rows
		}
		time.Sleep(10 * time.Millisecond)
	}
	e.T.Fatalf("journal never reached %d trigger(s) for session %s (have %d)", n, session, len(rows))
	return nil
}

// WaitSession polls the control API until cond holds for the session's
// status.
func (e *TestEnv) WaitSession(id string, cond func(daemon.SessionStatus) bool, why string) daemon.SessionStatus {
	e.T.Helper()

	var last daemon.SessionStatus
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if st, err := e.Client.Session(id); err == nil {
			last = *st
			if cond(last) {
				return last
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	e.T.Fatalf("session %s never reported: %s (last status %+v)", id, why, last)
	return last
}

// waitFor polls cond every 10ms until it holds or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf(format, args...)
}

// waitForSocket waits for a unix socket to accept connections.
func waitForSocket(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			conn, err := net.DialTimeout("unix", path, 100*time.Millisecond)
			if err == nil {
				conn.Close()
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return os.ErrNotExist
}
