package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/runger/cadence/internal/config"
	"github.com/runger/cadence/internal/log"
	"github.com/runger/cadence/internal/storage"
	"github.com/runger/cadence/internal/transport"
)

// ErrNotRunning reports that no live daemon was found to stop.
var ErrNotRunning = errors.New("daemon not running")

// Run starts the daemon and blocks until shutdown.
// It handles signals for lifecycle management:
//   - SIGTERM/SIGINT: graceful shutdown (drain queue, disarm engines, remove runtime files)
//   - SIGHUP: reload configuration; engine tunables apply to sessions created afterwards
//   - SIGUSR1: write a counter snapshot to the log (unix only)
//   - SIGPIPE: ignore (prevent crashes on broken pipe)
func Run(ctx context.Context, sc *ServerConfig) error {
	if sc == nil || sc.Config == nil {
		return fmt.Errorf("config is required")
	}

	// Check privilege safety
	if err := CheckNotRoot(); err != nil {
		return err
	}

	paths := sc.Paths
	if paths == nil {
		paths = config.DefaultPaths()
		sc.Paths = paths
	}
	if err := EnsureSecureDirectory(paths.RuntimeDir); err != nil {
		return fmt.Errorf("failed to secure runtime directory: %w", err)
	}

	// Acquire lock file to prevent double-start
	lockFile := NewLockFile(paths.LockFile())
	if err := lockFile.Acquire(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lockFile.Release()

	// Run owns the journal it opens. A journal supplied by the caller stays
	// the caller's to close.
	if sc.Journal == nil && sc.Config.Journal.Enabled {
		jpath := sc.Config.Journal.Path
		if jpath == "" {
			jpath = paths.JournalFile()
		}
		journal, err := storage.Open(storage.Options{
			Path:               jpath,
			BusyTimeoutMs:      sc.Config.Journal.SQLiteBusyTimeoutMs,
			CheckpointInterval: time.Duration(sc.Config.Journal.CheckpointIntervalMs) * time.Millisecond,
			Logger:             sc.Logger,
		})
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer journal.Close()
		sc.Journal = journal
	}

	server, err := NewServer(sc)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Create context that cancels on signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 4)
	notifySignals(sigChan)
	defer signal.Stop(sigChan)

	configPath := paths.ConfigFile()

	go func() {
		for {
			select {
			case sig := <-sigChan:
				switch {
				case sig == syscall.SIGTERM || sig == syscall.SIGINT:
					server.logger.Info("received shutdown signal", "signal", sig.String())
					server.Shutdown()
					cancel()
					return

				case reloadSignal != nil && sig == reloadSignal:
					reloaded, err := config.LoadFromFile(configPath)
					if err != nil {
						server.logger.Error("failed to reload configuration", "error", err)
						continue
					}
					for _, w := range reloaded.Engine.ValidateAndFix() {
						server.logger.Warn("config value adjusted",
							"field", w.Field,
							"reason", w.Message,
						)
					}
					server.ApplyEngineConfig(reloaded.Engine.Runtime())
					log.LogConfigReload(server.logger, configPath)

				case statsSignal != nil && sig == statsSignal:
					server.DumpStats()
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// Start server (blocking)
	return server.Start(ctx)
}

// IsRunning checks if the daemon is currently running.
func IsRunning() bool {
	return IsRunningWithPaths(config.DefaultPaths())
}

// IsRunningWithPaths checks if the daemon is running using the given paths.
func IsRunningWithPaths(paths *config.Paths) bool {
	pid, err := ReadPID(paths.PIDFile())
	if err != nil {
		// PID file missing/stale; fall through to lock-based detection.
		pid = 0
	}

	if pid > 0 && isProcessAlive(pid) {
		return true
	}

	// If the PID file is wrong, fall back to the held lock PID. This handles
	// cases where the daemon is alive but the PID file was overwritten by a
	// failed spawn attempt.
	lockPID, held, err := ReadHeldPID(paths.LockFile())
	if err != nil || !held || lockPID <= 0 {
		return false
	}
	return isProcessAlive(lockPID)
}

// ReadPID reads the PID from the PID file.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("invalid PID: %w", err)
	}

	return pid, nil
}

// Stop stops the running daemon by sending SIGTERM.
func Stop() error {
	return StopWithPaths(config.DefaultPaths())
}

// StopWithPaths stops the running daemon using the given paths.
func StopWithPaths(paths *config.Paths) error {
	pid, err := ReadPID(paths.PIDFile())
	if err != nil || pid <= 0 {
		pid = 0
	}

	// If PID file is stale, use the held lock PID.
	if pid > 0 && !isProcessAlive(pid) {
		pid = 0
	}
	if pid == 0 {
		lockPID, held, lerr := ReadHeldPID(paths.LockFile())
		if lerr != nil {
			return fmt.Errorf("failed to read PID and lock PID: %w", lerr)
		}
		if !held || lockPID <= 0 {
			return ErrNotRunning
		}
		pid = lockPID
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	// Send SIGTERM for graceful shutdown
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	// Wait for process to exit (with timeout)
	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			// Force kill if graceful shutdown didn't work
			process.Kill()
			return nil
		case <-ticker.C:
			if !isProcessAlive(pid) {
				return nil
			}
		}
	}
}

// CleanupStale removes stale socket and PID files left by a crashed daemon.
// Call this when the daemon is known to not be running. cfg supplies the
// configured socket overrides; nil falls back to the default socket paths.
func CleanupStale(cfg *config.Config, paths *config.Paths) error {
	// Only cleanup if daemon is not running
	if IsRunningWithPaths(paths) {
		return fmt.Errorf("daemon is still running")
	}

	ingestSock, controlSock := "", ""
	if cfg != nil {
		ingestSock = cfg.Daemon.IngestSocket
		controlSock = cfg.Daemon.ControlSocket
	}
	sockets := []string{
		transport.NewIngest(ingestSock).SocketPath(),
		transport.NewControl(controlSock).SocketPath(),
	}
	for _, sock := range sockets {
		if err := os.Remove(sock); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove socket: %w", err)
		}
	}

	pidPath := paths.PIDFile()
	if err := os.Remove(pidPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}

	return nil
}

// WaitForSocket waits for the given socket path to appear on disk.
// Returns an error if the socket doesn't appear within the timeout.
func WaitForSocket(socketPath string, timeout time.Duration) error {
	return WaitForSocketWithContext(context.Background(), socketPath, timeout)
}

// WaitForSocketWithContext waits for the socket using context for cancellation.
func WaitForSocketWithContext(ctx context.Context, socketPath string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := os.Stat(socketPath); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("socket not available after %v", timeout)
			}
			return ctx.Err()
		case <-ticker.C:
			// Continue to next iteration
		}
	}
}
