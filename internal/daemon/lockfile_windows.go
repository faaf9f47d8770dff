//go:build windows

package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/windows"
)

const windowsStillActive = 259

// LockFile is the daemon's single-instance guard. Windows has no flock;
// exclusive creation of the lock file stands in for it, with stale-PID
// recovery for files left by a crashed daemon.
type LockFile struct {
	path string
	file *os.File
}

// NewLockFile creates a LockFile at path. The lock is not acquired until
// Acquire is called.
func NewLockFile(path string) *LockFile {
	return &LockFile{path: path}
}

// ReadHeldPID returns the PID recorded in lockPath when a lock file exists.
// On Windows lock ownership is inferred from the file's presence.
func ReadHeldPID(lockPath string) (pid int, held bool, err error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("open lock file: %w", err)
	}

	pid, _ = strconv.Atoi(strings.TrimSpace(string(data)))
	return pid, true, nil
}

// Acquire atomically creates the lock file, recovering once from a stale
// lock left by a dead process.
func (l *LockFile) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := l.createExclusive()
	if err == nil {
		l.file = f
		return nil
	}
	if !os.IsExist(err) {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	holder, _, readErr := ReadHeldPID(l.path)
	if readErr == nil && holder > 0 && !isProcessAlive(holder) {
		// Stale lock. Remove and retry once.
		if remErr := os.Remove(l.path); remErr == nil {
			f, rerr := l.createExclusive()
			if rerr != nil {
				return fmt.Errorf("failed to acquire lock after stale cleanup: %w", rerr)
			}
			l.file = f
			return nil
		}
	}

	if holder > 0 {
		return fmt.Errorf("cadenced already running (PID %d), lock file: %s", holder, l.path)
	}
	return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
}

// createExclusive creates the lock file with O_EXCL and stamps the PID.
// The raw open error is returned so callers can detect os.IsExist.
func (l *LockFile) createExclusive() (*os.File, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()
		_ = os.Remove(l.path)
		return nil, fmt.Errorf("failed to write PID to lock file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(l.path)
		return nil, fmt.Errorf("failed to sync lock file: %w", err)
	}
	return f, nil
}

// Release closes and removes the lock file. Safe to call without a prior
// Acquire.
func (l *LockFile) Release() error {
	if l.file == nil {
		return nil
	}
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

// isProcessAlive checks if a process with the given PID is running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == windowsStillActive
}
