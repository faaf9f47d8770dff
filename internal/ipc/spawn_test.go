package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// stubSpawnSeams swaps the spawn test seams and restores them on cleanup.
func stubSpawnSeams(t *testing.T) {
	t.Helper()
	oldQuickDial := quickDialFn
	oldSocketExists := socketExistsFn
	oldSocketPath := socketPathFn
	oldRemove := removeFileFn
	oldAttempts := staleSocketDialAttempts
	oldDelay := staleSocketRetryDelay
	t.Cleanup(func() {
		quickDialFn = oldQuickDial
		socketExistsFn = oldSocketExists
		socketPathFn = oldSocketPath
		removeFileFn = oldRemove
		staleSocketDialAttempts = oldAttempts
		staleSocketRetryDelay = oldDelay
	})
}

func TestDaemonBinaryName(t *testing.T) {
	if DaemonBinaryName != "cadenced" {
		t.Errorf("DaemonBinaryName = %q, want %q", DaemonBinaryName, "cadenced")
	}
}

func TestFindDaemonBinaryFromEnv(t *testing.T) {
	dir := t.TempDir()
	daemonPath := filepath.Join(dir, "cadenced")
	if err := os.WriteFile(daemonPath, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv(EnvDaemonPath, daemonPath)

	got, err := findDaemonBinary()
	if err != nil {
		t.Fatalf("findDaemonBinary() error = %v", err)
	}
	if got != daemonPath {
		t.Errorf("findDaemonBinary() = %q, want %q", got, daemonPath)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("findDaemonBinary() = %q, want absolute path", got)
	}
}

func TestFindDaemonBinaryNotFound(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDaemonPath, "")
	t.Setenv("PATH", filepath.Join(dir, "nonexistent"))
	// Keep common-location fallbacks under the temp dir.
	t.Setenv("HOME", dir)

	if _, err := findDaemonBinary(); err == nil {
		t.Error("findDaemonBinary() should fail when no binary exists")
	}
}

func TestIsDaemonRunningNoSocket(t *testing.T) {
	t.Setenv(EnvControlSocket, filepath.Join(t.TempDir(), "absent.sock"))

	if IsDaemonRunning() {
		t.Error("IsDaemonRunning() = true for non-existent socket")
	}
}

func TestSpawnDaemonMissingBinary(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDaemonPath, "")
	t.Setenv("PATH", filepath.Join(dir, "nonexistent"))
	t.Setenv("HOME", dir)
	t.Setenv("XDG_RUNTIME_DIR", dir)
	t.Setenv(EnvControlSocket, filepath.Join(dir, "control.sock"))

	if err := SpawnDaemon(); err == nil {
		t.Error("SpawnDaemon() should fail when daemon binary not found")
	}
}

func TestSpawnDaemonContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := SpawnDaemonContext(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("SpawnDaemonContext() error = %v, want context.Canceled", err)
	}
}

// fakeDaemonEnv points spawn discovery and socket resolution at a temp dir
// holding a shell script that exits immediately, so the control socket
// never appears.
func fakeDaemonEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	daemonPath := filepath.Join(dir, "cadenced-test")
	if err := os.WriteFile(daemonPath, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv(EnvDaemonPath, daemonPath)
	t.Setenv(EnvControlSocket, filepath.Join(dir, "control.sock"))
	t.Setenv("XDG_RUNTIME_DIR", dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestSpawnAndWaitContextCanceledWhileWaiting(t *testing.T) {
	fakeDaemonEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := SpawnAndWaitContext(ctx, 2*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SpawnAndWaitContext() error = %v, want context.Canceled", err)
	}
}

func TestSpawnAndWaitContextTimeout(t *testing.T) {
	fakeDaemonEnv(t)

	err := SpawnAndWaitContext(context.Background(), 40*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "did not start within") {
		t.Fatalf("SpawnAndWaitContext() error = %v, want timeout error", err)
	}
}

func TestRemoveStaleSocketRetriesBeforeDelete(t *testing.T) {
	stubSpawnSeams(t)

	socketExistsFn = func() bool { return true }
	socketPathFn = func() string { return "/tmp/fake-cadence.sock" }
	staleSocketDialAttempts = 3
	staleSocketRetryDelay = 0

	dialAttempts := 0
	quickDialFn = func() (io.Closer, error) {
		dialAttempts++
		if dialAttempts < 3 {
			return nil, errors.New("transient dial failure")
		}
		return io.NopCloser(strings.NewReader("")), nil
	}

	removeCalls := 0
	removeFileFn = func(path string) error {
		removeCalls++
		return nil
	}

	if err := removeStaleSocket(context.Background()); err != nil {
		t.Fatalf("removeStaleSocket() error = %v", err)
	}
	if removeCalls != 0 {
		t.Fatalf("removeStaleSocket() remove calls = %d, want 0", removeCalls)
	}
}

func TestRemoveStaleSocketDeletesAfterExhaustedRetries(t *testing.T) {
	stubSpawnSeams(t)

	socketExistsFn = func() bool { return true }
	socketPathFn = func() string { return "/tmp/fake-cadence.sock" }
	staleSocketDialAttempts = 3
	staleSocketRetryDelay = 0

	dialAttempts := 0
	quickDialFn = func() (io.Closer, error) {
		dialAttempts++
		return nil, errors.New("connection refused")
	}

	var removed []string
	removeFileFn = func(path string) error {
		removed = append(removed, path)
		return nil
	}

	if err := removeStaleSocket(context.Background()); err != nil {
		t.Fatalf("removeStaleSocket() error = %v", err)
	}
	if dialAttempts != 3 {
		t.Errorf("dial attempts = %d, want 3", dialAttempts)
	}
	if len(removed) != 1 || removed[0] != "/tmp/fake-cadence.sock" {
		t.Errorf("removed = %v, want the stale socket path once", removed)
	}
}

func TestRemoveStaleSocketDeleteError(t *testing.T) {
	stubSpawnSeams(t)

	socketExistsFn = func() bool { return true }
	socketPathFn = func() string { return "/tmp/fake-cadence.sock" }
	staleSocketDialAttempts = 2
	staleSocketRetryDelay = 0
	quickDialFn = func() (io.Closer, error) {
		return nil, errors.New("connection refused")
	}
	removeFileFn = func(path string) error {
		return fmt.Errorf("permission denied")
	}

	err := removeStaleSocket(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to remove stale socket") {
		t.Fatalf("removeStaleSocket() error = %v, want wrapped delete error", err)
	}
}

func TestRemoveStaleSocketHonorsCancellation(t *testing.T) {
	stubSpawnSeams(t)

	socketExistsFn = func() bool { return true }
	staleSocketDialAttempts = 3
	staleSocketRetryDelay = 20 * time.Millisecond
	quickDialFn = func() (io.Closer, error) {
		return nil, errors.New("dial failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := removeStaleSocket(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("removeStaleSocket() error = %v, want context.Canceled", err)
	}
}

func TestEnsureDaemonFastPath(t *testing.T) {
	stubSpawnSeams(t)

	socketExistsFn = func() bool { return true }
	dialCalls := 0
	quickDialFn = func() (io.Closer, error) {
		dialCalls++
		return io.NopCloser(strings.NewReader("")), nil
	}
	removeFileFn = func(path string) error {
		t.Error("remove should not be called when the daemon answers")
		return nil
	}

	if err := EnsureDaemon(); err != nil {
		t.Fatalf("EnsureDaemon() error = %v", err)
	}
	if dialCalls != 1 {
		t.Errorf("dial calls = %d, want 1", dialCalls)
	}
}
