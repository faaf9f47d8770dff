// Package ipc implements the CLI side of the daemon's control API: an HTTP
// client over the control socket, plus daemon autospawn for first use.
package ipc

import (
	"net"
	"os"
	"time"

	"github.com/runger/cadence/internal/transport"
)

// Timeouts by operation class.
const (
	// DialTimeout is the budget for the initial socket connect.
	DialTimeout = 50 * time.Millisecond

	// RequestTimeout covers one control API round trip.
	RequestTimeout = 2 * time.Second

	// SpawnTimeout is how long to wait for a freshly spawned daemon to bind
	// its sockets.
	SpawnTimeout = 5 * time.Second
)

// EnvControlSocket overrides the control socket path.
const EnvControlSocket = "CADENCE_CONTROL_SOCKET"

// ControlSocketPath resolves the control socket path: explicit override,
// then $CADENCE_CONTROL_SOCKET, then the platform default.
func ControlSocketPath(override string) string {
	if override == "" {
		override = os.Getenv(EnvControlSocket)
	}
	return transport.NewControl(override).SocketPath()
}

// SocketExists checks whether the control socket file exists on disk.
func SocketExists(socketPath string) bool {
	_, err := os.Stat(ControlSocketPath(socketPath))
	return err == nil
}

// QuickDial probes the control endpoint with a short timeout. Callers that
// want the HTTP API should use Client; this is a liveness probe.
func QuickDial(socketPath string) (net.Conn, error) {
	return transport.NewControl(ControlSocketPath(socketPath)).Dial(DialTimeout)
}
