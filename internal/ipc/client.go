package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/runger/cadence/internal/daemon"
	"github.com/runger/cadence/internal/storage"
	"github.com/runger/cadence/internal/transport"
)

// Client talks to the daemon's control API: HTTP requests carried over the
// control socket. The zero value is not usable; call NewClient.
type Client struct {
	httpc      *http.Client
	socketPath string
}

// NewClient creates a control API client. An empty socketPath resolves the
// environment override and then the platform default.
func NewClient(socketPath string) *Client {
	path := ControlSocketPath(socketPath)
	tr := transport.NewControl(path)

	return &Client{
		socketPath: path,
		httpc: &http.Client{
			Timeout: RequestTimeout,
			Transport: &http.Transport{
				// Every request dials the one control socket; the URL host
				// is a placeholder.
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					return tr.Dial(DialTimeout)
				},
			},
		},
	}
}

// SocketPath returns the control socket path the client dials.
func (c *Client) SocketPath() string {
	return c.socketPath
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpc.CloseIdleConnections()
}

// Ping reports whether the daemon answers on the control socket.
func (c *Client) Ping() bool {
	_, err := c.Status()
	return err == nil
}

// Status fetches daemon-level status.
func (c *Client) Status() (*daemon.StatusResponse, error) {
	var resp daemon.StatusResponse
	if err := c.get("/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sessions lists every live session.
func (c *Client) Sessions() ([]daemon.SessionStatus, error) {
	var resp daemon.SessionsResponse
	if err := c.get("/sessions", &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// Session fetches one session's status.
func (c *Client) Session(id string) (*daemon.SessionStatus, error) {
	var resp daemon.SessionStatus
	if err := c.get("/sessions/"+id, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Triggers fetches recent journal rows, newest first. session, source, and
// limit narrow the query; zero values mean no filter.
func (c *Client) Triggers(session, source string, limit int) ([]storage.Trigger, error) {
	path := "/triggers"
	sep := "?"
	if session != "" {
		path += sep + "session=" + session
		sep = "&"
	}
	if source != "" {
		path += sep + "source=" + source
		sep = "&"
	}
	if limit > 0 {
		path += fmt.Sprintf("%slimit=%d", sep, limit)
	}

	var resp daemon.TriggersResponse
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return resp.Triggers, nil
}

// Force requests a manual trigger for the session. The daemon's reduced gate
// still applies, so a nil error does not promise a fire.
func (c *Client) Force(session string) (*daemon.ForceResponse, error) {
	var resp daemon.ForceResponse
	if err := c.post("/force", daemon.ForceRequest{Session: session}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopDaemon asks the daemon to shut down gracefully.
func (c *Client) StopDaemon() error {
	var resp daemon.StopResponse
	if err := c.post("/stop", nil, &resp); err != nil {
		return err
	}
	if !resp.Stopping {
		return fmt.Errorf("daemon declined to stop")
	}
	return nil
}

func (c *Client) get(path string, dst any) error {
	resp, err := c.httpc.Get("http://cadenced" + path)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, dst)
}

func (c *Client) post(path string, body, dst any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	resp, err := c.httpc.Post("http://cadenced"+path, "application/json", rd)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, dst)
}

// decodeResponse unmarshals a 2xx body into dst, or converts the daemon's
// error envelope into an error.
func decodeResponse(resp *http.Response, dst any) error {
	if resp.StatusCode >= 400 {
		var er daemon.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err == nil && er.Error != "" {
			return fmt.Errorf("%s: %s", er.Error, er.Message)
		}
		return fmt.Errorf("control API returned %s", resp.Status)
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
