package daemon

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"

	"github.com/runger/cadence/internal/event"
	"github.com/runger/cadence/internal/log"
	"github.com/runger/cadence/internal/metrics"
)

// acceptIngestLoop accepts hook connections until shutdown. Each connection
// is one hook process writing NDJSON lines; short-lived hooks connect, write
// one line, and hang up, while resident editors hold a connection open.
func (s *Server) acceptIngestLoop(ctx context.Context, ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdownChan:
				return
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("ingest accept failed", "error", err)
			continue
		}

		if err := checkPeer(conn); err != nil {
			s.logger.Warn("ingest connection rejected", "error", err)
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleIngestConn(conn)
	}
}

// handleIngestConn reads NDJSON lines until EOF or shutdown. Malformed lines
// are counted and skipped; the connection stays up, because one bad event
// from an editor plugin must not silence the rest of its stream.
func (s *Server) handleIngestConn(conn net.Conn) {
	defer s.wg.Done()
	s.trackConn(conn)
	defer func() {
		s.untrackConn(conn)
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), event.MaxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		ev, err := event.ParseLine(line)
		if err != nil {
			metrics.Global.EventsInvalid.Add(1)
			log.LogEventDropped(s.logger, err.Error())
			continue
		}

		metrics.Global.EventsIngested.Add(1)
		if s.queue.Enqueue(ev) {
			metrics.Global.EventsDropped.Add(1)
		}
	}

	if err := scanner.Err(); err != nil {
		switch {
		case errors.Is(err, bufio.ErrTooLong):
			metrics.Global.EventsInvalid.Add(1)
			log.LogEventDropped(s.logger, "line exceeds size cap")
		case errors.Is(err, net.ErrClosed):
			// Shutdown closed the connection under us.
		default:
			s.logger.Debug("ingest connection error", "error", err)
		}
	}
}
