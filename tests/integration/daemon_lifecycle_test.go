package integration

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/runger/cadence/internal/daemon"
	"github.com/runger/cadence/internal/ipc"
)

// TestStartupWritesRuntimeFiles verifies a started daemon leaves the
// rendezvous points on disk: both sockets and a PID file with its own pid.
func TestStartupWritesRuntimeFiles(t *testing.T) {
	env := SetupTestEnv(t)
	defer env.Teardown()

	for _, sock := range []string{env.IngestSocket, env.ControlSocket} {
		if _, err := os.Stat(sock); err != nil {
			t.Errorf("socket %s missing: %v", sock, err)
		}
	}

	data, err := os.ReadFile(env.Paths.PIDFile())
	if err != nil {
		t.Fatalf("PID file missing: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("PID file content %q is not a pid: %v", data, err)
	}
	if pid != os.Getpid() {
		t.Errorf("PID file holds %d, want %d", pid, os.Getpid())
	}
}

// TestShutdownRemovesRuntimeFiles cancels the server context and verifies
// the PID file and sockets are gone once Start returns.
func TestShutdownRemovesRuntimeFiles(t *testing.T) {
	env := SetupTestEnv(t)
	pidFile := env.Paths.PIDFile()

	env.Cancel()
	select {
	case err := <-env.done:
		if err != nil {
			t.Fatalf("server exited with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not exit within 5s of cancel")
	}
	env.done = nil // consumed; keep Teardown from double-reading

	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Errorf("PID file still present after shutdown: %v", err)
	}
	for _, sock := range []string{env.IngestSocket, env.ControlSocket} {
		if _, err := os.Stat(sock); !os.IsNotExist(err) {
			t.Errorf("socket %s still present after shutdown: %v", sock, err)
		}
	}

	env.Teardown()
}

// TestStopEndpointShutsDaemonDown stops the daemon through POST /stop, the
// path the CLI uses.
func TestStopEndpointShutsDaemonDown(t *testing.T) {
	env := SetupTestEnv(t)
	defer env.Teardown()

	if err := env.Client.StopDaemon(); err != nil {
		t.Fatalf("StopDaemon failed: %v", err)
	}

	select {
	case err := <-env.done:
		if err != nil {
			t.Fatalf("server exited with error: %v", err)
		}
		env.done = nil
	case <-time.After(5 * time.Second):
		t.Fatal("server did not exit within 5s of POST /stop")
	}

	if _, err := os.Stat(env.Paths.PIDFile()); !os.IsNotExist(err) {
		t.Errorf("PID file still present after stop: %v", err)
	}
}

// TestIsRunningDetection verifies the PID-file liveness check the CLI
// relies on flips with the server's lifecycle.
func TestIsRunningDetection(t *testing.T) {
	env := SetupTestEnv(t)
	defer env.Teardown()

	if !daemon.IsRunningWithPaths(env.Paths) {
		t.Error("IsRunningWithPaths = false while the server is up")
	}

	env.Cancel()
	select {
	case err := <-env.done:
		if err != nil {
			t.Fatalf("server exited with error: %v", err)
		}
		env.done = nil
	case <-time.After(5 * time.Second):
		t.Fatal("server did not exit within 5s of cancel")
	}

	if daemon.IsRunningWithPaths(env.Paths) {
		t.Error("IsRunningWithPaths = true after shutdown")
	}
}

// TestSpawnedDaemonLifecycle exercises the real binaries: spawn cadenced via
// the CLI plumbing, ping it, stop it. Skipped unless cadenced is on PATH.
func TestSpawnedDaemonLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping spawned daemon test in short mode")
	}

	daemonPath, err := exec.LookPath(ipc.DaemonBinaryName)
	if err != nil {
		t.Skipf("%s binary not found in PATH, skipping", ipc.DaemonBinaryName)
	}

	tempDir, err := os.MkdirTemp("", "cadence-spawn-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	// Point every rendezvous path into the temp dir so the test never
	// touches a real user daemon.
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_RUNTIME_DIR", tempDir)
	t.Setenv(ipc.EnvDaemonPath, daemonPath)
	t.Setenv(ipc.EnvControlSocket, "")

	if err := ipc.SpawnAndWait(ipc.SpawnTimeout); err != nil {
		t.Fatalf("SpawnAndWait failed: %v", err)
	}

	client := ipc.NewClient("")
	defer client.Close()

	if !client.Ping() {
		t.Fatal("spawned daemon does not answer ping")
	}

	if err := client.StopDaemon(); err != nil {
		t.Fatalf("StopDaemon failed: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool {
		return !ipc.IsDaemonRunning()
	}, "spawned daemon never stopped")
}
