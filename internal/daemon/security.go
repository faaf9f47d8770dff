package daemon

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
)

// ErrRunningAsRoot is returned when the daemon detects it is running as root.
var ErrRunningAsRoot = fmt.Errorf("refusing to run as root (UID 0): cadenced reads keystroke timings and field text, run it as the login user")

// ErrInsecureDirectory is returned when a runtime directory has insecure permissions.
var ErrInsecureDirectory = fmt.Errorf("runtime directory has insecure permissions")

// CheckNotRoot verifies the daemon is not running with effective UID 0.
// On Windows, this check is skipped.
func CheckNotRoot() error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if os.Geteuid() == 0 {
		return ErrRunningAsRoot
	}
	return nil
}

// ValidateDirectoryPermissions checks that the given directory is exactly
// mode 0700 on unix. A missing directory passes; it will be created with the
// right mode.
func ValidateDirectoryPermissions(dirPath string) error {
	if runtime.GOOS == "windows" {
		return nil // Windows uses ACLs, not Unix permissions
	}

	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat directory %s: %w", dirPath, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dirPath)
	}

	perm := info.Mode().Perm()
	if perm != 0o700 {
		return fmt.Errorf("%w: %s has mode %o; expected exactly 0700",
			ErrInsecureDirectory, dirPath, perm)
	}
	return nil
}

// EnsureSecureDirectory creates a directory with mode 0700 if it doesn't
// exist, or tightens permissions if it does.
func EnsureSecureDirectory(dirPath string) error {
	if runtime.GOOS == "windows" {
		return os.MkdirAll(dirPath, 0o700)
	}

	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		return os.MkdirAll(dirPath, 0o700)
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory %s: %w", dirPath, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}

	perm := info.Mode().Perm()
	if perm != 0o700 {
		if err := os.Chmod(dirPath, 0o700); err != nil {
			return fmt.Errorf("failed to fix permissions on %s: %w", dirPath, err)
		}
	}
	return nil
}

// checkPeer enforces same-UID access on platforms that expose peer
// credentials. Where they are unavailable, the 0700 socket directory is the
// effective access control.
func checkPeer(conn net.Conn) error {
	uid, ok := peerUID(conn)
	if !ok {
		return nil
	}
	if uid != os.Getuid() {
		return fmt.Errorf("peer uid %d does not match daemon uid %d", uid, os.Getuid())
	}
	return nil
}

// peerFilterListener rejects connections whose peer UID fails checkPeer,
// for listeners handed to net/http where the accept loop is not ours.
type peerFilterListener struct {
	net.Listener
	logger *slog.Logger
}

func (l *peerFilterListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		if err := checkPeer(conn); err != nil {
			l.logger.Warn("control connection rejected", "error", err)
			conn.Close()
			continue
		}
		return conn, nil
	}
}
