//go:build !windows

package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// UnixTransport implements Transport using unix domain sockets.
type UnixTransport struct {
	socketPath string
	listener   net.Listener
	mu         sync.Mutex
}

// NewIngest returns the platform transport for the event stream socket. An
// empty socketPath selects the default location, so the hook binary can
// rendezvous without loading configuration.
func NewIngest(socketPath string) Transport {
	if socketPath == "" {
		socketPath = DefaultSocketPath(IngestSocketName)
	}
	return NewUnixTransport(socketPath)
}

// NewControl returns the platform transport for the control API socket. An
// empty socketPath selects the default location.
func NewControl(socketPath string) Transport {
	if socketPath == "" {
		socketPath = DefaultSocketPath(ControlSocketName)
	}
	return NewUnixTransport(socketPath)
}

// NewUnixTransport creates a unix socket transport bound to socketPath.
func NewUnixTransport(socketPath string) *UnixTransport {
	return &UnixTransport{socketPath: socketPath}
}

// DefaultSocketDir returns the per-user runtime directory for cadence
// sockets:
//  1. $XDG_RUNTIME_DIR/cadence (preferred)
//  2. $TMPDIR/cadence-$UID
//  3. /tmp/cadence-$UID (fallback)
func DefaultSocketDir() string {
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, "cadence")
	}

	uid := strconv.Itoa(os.Getuid())

	if tmpdir := os.Getenv("TMPDIR"); tmpdir != "" {
		return filepath.Join(tmpdir, "cadence-"+uid)
	}

	return filepath.Join("/tmp", "cadence-"+uid)
}

// DefaultSocketPath returns the default path for the named socket.
func DefaultSocketPath(name string) string {
	return filepath.Join(DefaultSocketDir(), name)
}

// Listen creates and returns a listener for the unix socket. The parent
// directory is created with 0700 and the socket itself is chmodded to 0600:
// the daemon ingests raw draft text, so nothing outside the owning user may
// connect.
func (t *UnixTransport) Listen() (net.Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dir := filepath.Dir(t.socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if err := t.cleanupStaleSocket(); err != nil {
		return nil, fmt.Errorf("failed to cleanup stale socket: %w", err)
	}

	listener, err := net.Listen("unix", t.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(t.socketPath, 0600); err != nil {
		listener.Close()
		os.Remove(t.socketPath)
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	t.listener = listener
	return listener, nil
}

// cleanupStaleSocket removes a leftover socket file from a crashed daemon.
// A live socket (something answers a probe dial) is never removed.
func (t *UnixTransport) cleanupStaleSocket() error {
	_, err := os.Stat(t.socketPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat socket: %w", err)
	}

	conn, err := net.DialTimeout("unix", t.socketPath, 100*time.Millisecond)
	if err == nil {
		conn.Close()
		return fmt.Errorf("socket is active (another daemon may be running)")
	}

	if err := os.Remove(t.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	return nil
}

// Dial connects to the unix socket with the specified timeout.
func (t *UnixTransport) Dial(timeout time.Duration) (net.Conn, error) {
	// Fail fast when no daemon has ever bound the path; the hook's dial
	// budget is a handful of milliseconds.
	if _, err := os.Stat(t.socketPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("socket not found: %s", t.socketPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", t.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}

	return conn, nil
}

// Close releases the listener and removes the socket file.
func (t *UnixTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error

	if t.listener != nil {
		if err := t.listener.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close listener: %w", err))
		}
		t.listener = nil
	}

	if err := os.Remove(t.socketPath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove socket: %w", err))
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// SocketPath returns the path to the unix socket file.
func (t *UnixTransport) SocketPath() string {
	return t.socketPath
}

var _ Transport = (*UnixTransport)(nil)
