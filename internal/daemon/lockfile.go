//go:build !windows

package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFile is the daemon's single-instance guard. It wraps flock(2) with
// LOCK_EX|LOCK_NB; the holder's PID is kept in the file for diagnostics and
// stale-lock recovery.
type LockFile struct {
	file *os.File
	path string
}

// NewLockFile creates a LockFile at path. The lock is not acquired until
// Acquire is called.
func NewLockFile(path string) *LockFile {
	return &LockFile{path: path}
}

// errLockHeld reports that another process holds the flock.
var errLockHeld = errors.New("lock held by another process")

// ReadHeldPID returns the PID recorded in lockPath if (and only if) the file
// lock is currently held by another process. If the lock is not held, or the
// file does not exist, held is false.
//
// Used to recover when the PID file is stale or missing but a daemon is
// still alive and holding the lock.
func ReadHeldPID(lockPath string) (pid int, held bool, err error) {
	f, err := os.OpenFile(lockPath, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close()

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		return 0, false, nil
	}
	if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EAGAIN) {
		return 0, false, fmt.Errorf("flock: %w", err)
	}
	// Held by another process. Best-effort PID read for diagnostics.
	return readLockPID(f), true, nil
}

// Acquire takes the exclusive lock, recovering once from a stale lock left
// by a dead process. On success the current PID is written to the file.
func (l *LockFile) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := l.lock()
	if err == nil {
		l.file = f
		return nil
	}
	if !errors.Is(err, errLockHeld) {
		return err
	}

	holder := 0
	if hf, oerr := os.Open(l.path); oerr == nil {
		holder = readLockPID(hf)
		hf.Close()
	}

	if holder > 0 && !isProcessAlive(holder) {
		// Stale lock. Remove and retry once.
		os.Remove(l.path)
		f, rerr := l.lock()
		if rerr != nil {
			return fmt.Errorf("failed to acquire lock after stale cleanup: %w", rerr)
		}
		l.file = f
		return nil
	}

	if holder > 0 {
		return fmt.Errorf("cadenced already running (PID %d), lock file: %s", holder, l.path)
	}
	return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
}

// lock opens the lock file, flocks it, and stamps the current PID.
func (l *LockFile) lock() (*os.File, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
			return nil, errLockHeld
		}
		return nil, fmt.Errorf("flock %s: %w", l.path, err)
	}

	if err := stampPID(f); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		return nil, err
	}
	return f, nil
}

// stampPID truncates the file and writes the current PID.
func stampPID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync lock file: %w", err)
	}
	return nil
}

// Release unlocks, closes, and removes the lock file. Safe to call without a
// prior Acquire.
func (l *LockFile) Release() error {
	if l.file == nil {
		return nil
	}

	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close lock file: %w", err)
	}
	l.file = nil

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *LockFile) Path() string {
	return l.path
}

// readLockPID reads a PID from an open lock file; 0 when unreadable.
func readLockPID(f *os.File) int {
	if _, err := f.Seek(0, 0); err != nil {
		return 0
	}
	buf := make([]byte, 32)
	n, err := f.Read(buf)
	if err != nil || n == 0 {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	return pid
}

// isProcessAlive checks if a process with the given PID is running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds. Signal 0 probes liveness.
	return process.Signal(syscall.Signal(0)) == nil
}
