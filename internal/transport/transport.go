// Package transport provides the IPC endpoints connecting cadence hooks,
// the CLI, and the daemon. Unix domain sockets carry both the event stream
// and the control API on macOS/Linux; Windows builds fall back to loopback
// TCP with a port-file rendezvous.
package transport

import (
	"net"
	"time"
)

// Socket names under the cadence runtime directory.
const (
	// IngestSocketName is the NDJSON event stream socket.
	IngestSocketName = "ingest.sock"

	// ControlSocketName is the HTTP control API socket.
	ControlSocketName = "control.sock"
)

// Transport defines one daemon IPC endpoint. The daemon listens on two of
// them (ingest and control); hooks and the CLI dial.
type Transport interface {
	// Listen creates and returns a listener for the endpoint. The
	// implementation creates any necessary directories and cleans up a
	// stale socket or port file left by a crashed daemon.
	Listen() (net.Listener, error)

	// Dial connects to the endpoint with the specified timeout.
	Dial(timeout time.Duration) (net.Conn, error)

	// Close releases resources held by the transport, including the
	// socket or port file on disk.
	Close() error

	// SocketPath returns the filesystem path identifying the endpoint:
	// the socket file on unix, the port file on Windows.
	SocketPath() string
}
