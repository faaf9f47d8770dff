//go:build windows

package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TCPTransport implements Transport using a loopback TCP listener plus a
// port file. Windows has no unix domain socket support uniform enough to
// rely on, so the daemon binds 127.0.0.1:0 and publishes the chosen address
// in a file; dialers read the file to find it. The endpoint identity stays a
// filesystem path, same as unix.
type TCPTransport struct {
	portFile string
	listener net.Listener
	mu       sync.Mutex
}

// NewIngest returns the platform transport for the event stream endpoint.
// An empty socketPath selects the default port-file location.
func NewIngest(socketPath string) Transport {
	if socketPath == "" {
		socketPath = DefaultSocketPath(IngestSocketName)
	}
	return NewTCPTransport(socketPath)
}

// NewControl returns the platform transport for the control API endpoint.
// An empty socketPath selects the default port-file location.
func NewControl(socketPath string) Transport {
	if socketPath == "" {
		socketPath = DefaultSocketPath(ControlSocketName)
	}
	return NewTCPTransport(socketPath)
}

// NewTCPTransport creates a loopback TCP transport rendezvousing through
// portFile.
func NewTCPTransport(portFile string) *TCPTransport {
	return &TCPTransport{portFile: portFile}
}

// DefaultSocketDir returns the per-user runtime directory for cadence port
// files: %LOCALAPPDATA%\cadence\run, falling back to the temp directory
// suffixed with the user's SID.
func DefaultSocketDir() string {
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		return filepath.Join(localAppData, "cadence", "run")
	}
	return filepath.Join(os.TempDir(), "cadence-"+currentUserSID())
}

// currentUserSID returns the current user's SID or a fallback identifier.
func currentUserSID() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	// On Windows, Uid holds the SID.
	return u.Uid
}

// DefaultSocketPath returns the default port-file path for the named
// endpoint: the unix socket name with a .port extension, e.g.
// "ingest.sock" -> "ingest.port".
func DefaultSocketPath(name string) string {
	return filepath.Join(DefaultSocketDir(), strings.TrimSuffix(name, ".sock")+".port")
}

// Listen binds a fresh loopback port and publishes its address in the port
// file with owner-only permissions.
func (t *TCPTransport) Listen() (net.Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dir := filepath.Dir(t.portFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create port file directory: %w", err)
	}

	if err := t.cleanupStalePortFile(); err != nil {
		return nil, fmt.Errorf("failed to cleanup stale port file: %w", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen on loopback: %w", err)
	}

	addr := listener.Addr().String()
	if err := os.WriteFile(t.portFile, []byte(addr), 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to write port file: %w", err)
	}

	t.listener = listener
	return listener, nil
}

// cleanupStalePortFile removes a port file left by a crashed daemon. A port
// that still answers a probe dial is never removed.
func (t *TCPTransport) cleanupStalePortFile() error {
	addr, err := os.ReadFile(t.portFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read port file: %w", err)
	}

	conn, err := net.DialTimeout("tcp", strings.TrimSpace(string(addr)), 100*time.Millisecond)
	if err == nil {
		conn.Close()
		return fmt.Errorf("port is active (another daemon may be running)")
	}

	if err := os.Remove(t.portFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale port file: %w", err)
	}

	return nil
}

// Dial reads the port file and connects to the published loopback address
// with the specified timeout.
func (t *TCPTransport) Dial(timeout time.Duration) (net.Conn, error) {
	addr, err := os.ReadFile(t.portFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("port file not found: %s", t.portFile)
		}
		return nil, fmt.Errorf("failed to read port file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", strings.TrimSpace(string(addr)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}

	return conn, nil
}

// Close releases the listener and removes the port file.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error

	if t.listener != nil {
		if err := t.listener.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close listener: %w", err))
		}
		t.listener = nil
	}

	if err := os.Remove(t.portFile); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove port file: %w", err))
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// SocketPath returns the path to the port file.
func (t *TCPTransport) SocketPath() string {
	return t.portFile
}

var _ Transport = (*TCPTransport)(nil)
