package ipc

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sys/execabs"

	"github.com/runger/cadence/internal/config"
)

// DaemonBinaryName is the daemon executable the CLI and hooks spawn.
const DaemonBinaryName = "cadenced"

// EnvDaemonPath overrides daemon binary discovery.
const EnvDaemonPath = "CADENCE_DAEMON_PATH"

var (
	// Test seams for daemon spawn and socket probing behavior.
	quickDialFn    = func() (io.Closer, error) { return QuickDial("") }
	socketExistsFn = func() bool { return SocketExists("") }
	socketPathFn   = func() string { return ControlSocketPath("") }
	removeFileFn   = os.Remove

	// Retry transient socket dial failures before deleting an existing socket.
	staleSocketDialAttempts = 3
	staleSocketRetryDelay   = 25 * time.Millisecond
)

// EnsureDaemon ensures the daemon is running, spawning it if necessary.
// Returns nil if the daemon is available, error otherwise.
func EnsureDaemon() error {
	// Fast path: socket exists and is connectable
	if socketExistsFn() {
		conn, err := quickDialFn()
		if err == nil {
			if conn != nil {
				_ = conn.Close()
			}
			return nil
		}
		// Socket exists but can't connect - might be stale.
		// Remove it only after retrying dial checks.
		if err := removeStaleSocket(context.Background()); err != nil {
			return err
		}
	}

	return SpawnDaemon()
}

// SpawnDaemon starts the daemon process in the background.
// It does not wait for the daemon to be ready.
func SpawnDaemon() error {
	return SpawnDaemonContext(context.Background())
}

// SpawnDaemonContext starts the daemon process in the background and supports
// cancellation before process creation.
func SpawnDaemonContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := removeStaleSocket(ctx); err != nil {
		return err
	}

	daemonPath, err := findDaemonBinary()
	if err != nil {
		return err
	}

	// The daemon logs JSON lines to stderr; route them to the log file.
	paths := config.DefaultPaths()
	if err := os.MkdirAll(paths.LogDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}
	logFile, err := os.OpenFile(paths.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logFile, _ = os.Open(os.DevNull)
	}
	defer logFile.Close()

	// execabs prevents executing binaries resolved to relative paths.
	cmd := execabs.Command(daemonPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil

	// Detach from parent process group (platform-specific). The daemon
	// stamps its own PID and lock files once it is up.
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// No cmd.Wait: the daemon runs on after this process exits.
	return nil
}

// SpawnAndWait spawns the daemon and waits for it to become available.
// timeout specifies how long to wait for the daemon to start.
func SpawnAndWait(timeout time.Duration) error {
	return SpawnAndWaitContext(context.Background(), timeout)
}

// SpawnAndWaitContext spawns the daemon and waits for readiness with
// cancellation support.
func SpawnAndWaitContext(ctx context.Context, timeout time.Duration) error {
	if err := SpawnDaemonContext(ctx); err != nil {
		return err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("daemon did not start within %v", timeout)
		case <-ticker.C:
			if socketExistsFn() {
				conn, err := quickDialFn()
				if err == nil {
					if conn != nil {
						_ = conn.Close()
					}
					return nil
				}
			}
		}
	}
}

// findDaemonBinary locates the daemon executable.
func findDaemonBinary() (string, error) {
	// Explicit override
	if path := os.Getenv(EnvDaemonPath); path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", EnvDaemonPath, err)
		}
		if _, err := os.Stat(absPath); err == nil {
			return absPath, nil
		}
	}

	// Same directory as the current executable
	if exe, err := os.Executable(); err == nil {
		daemonPath := filepath.Join(filepath.Dir(exe), DaemonBinaryName)
		if _, err := os.Stat(daemonPath); err == nil {
			return daemonPath, nil
		}
	}

	// PATH
	if path, err := exec.LookPath(DaemonBinaryName); err == nil {
		absPath, absErr := filepath.Abs(path)
		if absErr == nil {
			return absPath, nil
		}
		return path, nil
	}

	// Common install locations
	commonPaths := []string{
		"/usr/local/bin/" + DaemonBinaryName,
		"/usr/bin/" + DaemonBinaryName,
	}
	home, _ := os.UserHomeDir()
	if home != "" {
		commonPaths = append(commonPaths,
			filepath.Join(home, ".local", "bin", DaemonBinaryName),
			filepath.Join(home, "go", "bin", DaemonBinaryName),
		)
	}
	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("daemon binary %q not found", DaemonBinaryName)
}

// IsDaemonRunning checks if the daemon answers on the control socket.
func IsDaemonRunning() bool {
	if !socketExistsFn() {
		return false
	}
	conn, err := quickDialFn()
	if err != nil {
		return false
	}
	if conn != nil {
		conn.Close()
	}
	return true
}

// removeStaleSocket deletes a control socket nothing answers on. Dial
// failures are retried so a transiently busy daemon does not lose its
// socket.
func removeStaleSocket(ctx context.Context) error {
	if !socketExistsFn() {
		return nil
	}

	for attempt := 0; attempt < staleSocketDialAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := quickDialFn()
		if err == nil {
			if conn != nil {
				_ = conn.Close()
			}
			return nil
		}
		if attempt < staleSocketDialAttempts-1 {
			timer := time.NewTimer(staleSocketRetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	if err := removeFileFn(socketPathFn()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	return nil
}
