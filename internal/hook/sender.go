// Package hook provides the client-side event sender for cadence editor and
// shell hooks. Sends are fire-and-forget with tight timeouts so the hook
// never adds visible latency to a keystroke.
package hook

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/runger/cadence/internal/event"
	"github.com/runger/cadence/internal/transport"
)

const (
	// DefaultConnectTimeout bounds the socket connect on the keystroke
	// hot path.
	DefaultConnectTimeout = 15 * time.Millisecond

	// DefaultWriteTimeout bounds the NDJSON write once connected.
	DefaultWriteTimeout = 20 * time.Millisecond

	// MinConnectTimeout is the lowest connect timeout the clamp allows.
	MinConnectTimeout = 10 * time.Millisecond

	// MaxConnectTimeout is the highest connect timeout the clamp allows.
	// Anything slower belongs in the daemon, not in a keystroke hook.
	MaxConnectTimeout = 20 * time.Millisecond
)

// EnvConnectTimeoutMs overrides the connect timeout, clamped to the
// permitted range.
const EnvConnectTimeoutMs = "CADENCE_HOOK_TIMEOUT_MS"

// EnvDisable suppresses all sends when set to "1". The hook reports success
// so callers never retry or warn.
const EnvDisable = "CADENCE_DISABLE"

// Sender writes events to the daemon's ingest socket using fire-and-forget
// semantics: connect, write one NDJSON line, close. It never reads a
// response and every error is swallowed, because the caller is a keystroke
// hook that must not block or complain.
type Sender struct {
	transport      transport.Transport
	connectTimeout time.Duration
	writeTimeout   time.Duration
}

// NewSender creates a Sender over the given transport. The connect timeout
// honors CADENCE_HOOK_TIMEOUT_MS within the clamp range.
func NewSender(t transport.Transport) *Sender {
	s := &Sender{
		transport:      t,
		connectTimeout: DefaultConnectTimeout,
		writeTimeout:   DefaultWriteTimeout,
	}

	if env := os.Getenv(EnvConnectTimeoutMs); env != "" {
		if ms, err := strconv.Atoi(env); err == nil {
			timeout := time.Duration(ms) * time.Millisecond
			if timeout >= MinConnectTimeout && timeout <= MaxConnectTimeout {
				s.connectTimeout = timeout
			}
		}
	}

	return s
}

// Send attempts to deliver one event. It reports true when the line was
// written to the socket (or when sends are disabled), false on any failure.
// A false return means the event is gone; nothing retries.
func (s *Sender) Send(ev *event.Event) bool {
	if ev == nil {
		return false
	}

	if Disabled() {
		return true
	}

	conn, err := s.transport.Dial(s.connectTimeout)
	if err != nil {
		return false
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return false
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return false
	}

	data = append(data, '\n')
	_, err = conn.Write(data)
	return err == nil
}

// SetConnectTimeout sets the connect timeout, clamped to the permitted range.
func (s *Sender) SetConnectTimeout(d time.Duration) {
	if d < MinConnectTimeout {
		d = MinConnectTimeout
	}
	if d > MaxConnectTimeout {
		d = MaxConnectTimeout
	}
	s.connectTimeout = d
}

// SetWriteTimeout sets the write timeout. Negative values reset the default.
func (s *Sender) SetWriteTimeout(d time.Duration) {
	if d < 0 {
		d = DefaultWriteTimeout
	}
	s.writeTimeout = d
}

// ConnectTimeout returns the effective connect timeout.
func (s *Sender) ConnectTimeout() time.Duration {
	return s.connectTimeout
}

// WriteTimeout returns the effective write timeout.
func (s *Sender) WriteTimeout() time.Duration {
	return s.writeTimeout
}

// Disabled reports whether CADENCE_DISABLE=1 is suppressing sends.
func Disabled() bool {
	return os.Getenv(EnvDisable) == "1"
}
