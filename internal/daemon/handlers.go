package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/runger/cadence/internal/metrics"
	"github.com/runger/cadence/internal/storage"
)

// Control API request/response types. The API is served over the control
// socket and consumed by the cadence CLI; field names are wire contract.

// StatusResponse is the response for GET /status.
type StatusResponse struct {
	Version       string           `json:"version"`
	PID           int              `json:"pid"`
	StartedAt     time.Time        `json:"started_at"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Sessions      int              `json:"sessions"`
	Queue         QueueStats       `json:"queue"`
	Counters      map[string]int64 `json:"counters"`
	JournalPath   string           `json:"journal_path,omitempty"`
}

// SessionsResponse is the response for GET /sessions.
type SessionsResponse struct {
	Sessions []SessionStatus `json:"sessions"`
}

// TriggersResponse is the response for GET /triggers.
type TriggersResponse struct {
	Triggers []storage.Trigger `json:"triggers"`
}

// ForceRequest is the request for POST /force.
type ForceRequest struct {
	Session string `json:"session"`
}

// ForceResponse is the response for POST /force. The manual path still runs
// the reduced gate, so Requested confirms delivery, not a fire.
type ForceResponse struct {
	Session   string `json:"session"`
	Requested bool   `json:"requested"`
}

// StopResponse is the response for POST /stop.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}

// ErrorResponse is the error envelope for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// controlHandler builds the control API router.
func (s *Server) controlHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleSession)
	mux.HandleFunc("GET /triggers", s.handleTriggers)
	mux.HandleFunc("POST /force", s.handleForce)
	mux.HandleFunc("POST /stop", s.handleStop)
	return mux
}

// handleStatus reports daemon-level state: uptime, session count, queue
// depth, and the counter snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	journalPath := ""
	if s.journal != nil {
		journalPath = s.cfg.Journal.Path
		if journalPath == "" {
			journalPath = s.paths.JournalFile()
		}
	}

	resp := StatusResponse{
		Version:       Version,
		PID:           os.Getpid(),
		StartedAt:     s.startTime,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Sessions:      s.sessions.Count(),
		Queue:         s.queue.Stats(),
		Counters:      metrics.Global.Snapshot(),
		JournalPath:   journalPath,
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleSessions lists every live session.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	sessions := s.sessions.List()

	resp := SessionsResponse{Sessions: make([]SessionStatus, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, sess.Status(now))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleSession reports one session's status.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown_session", "no such session: "+id)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Status(time.Now()))
}

// handleTriggers returns recent journal rows, newest first. Supports
// ?session=, ?source= and ?limit= filters.
func (s *Server) handleTriggers(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "journal_disabled", "journaling is disabled")
		return
	}

	q := storage.TriggerQuery{
		Session: r.URL.Query().Get("session"),
		Source:  r.URL.Query().Get("source"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		q.Limit = limit
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	triggers, err := s.journal.ListTriggers(ctx, q)
	if err != nil {
		s.logger.Error("failed to list triggers", "error", err)
		s.writeError(w, http.StatusInternalServerError, "journal_error", "failed to read journal")
		return
	}
	if triggers == nil {
		triggers = []storage.Trigger{}
	}
	s.writeJSON(w, http.StatusOK, TriggersResponse{Triggers: triggers})
}

// handleForce requests a manual trigger for a session.
func (s *Server) handleForce(w http.ResponseWriter, r *http.Request) {
	var req ForceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON request body")
		return
	}
	if req.Session == "" {
		s.writeError(w, http.StatusBadRequest, "missing_session", "session is required")
		return
	}

	sess, ok := s.sessions.Get(req.Session)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown_session", "no such session: "+req.Session)
		return
	}

	sess.Touch(time.Now())
	sess.markManual()
	sess.Engine().ForceTrigger()

	s.writeJSON(w, http.StatusOK, ForceResponse{
		Session:   req.Session,
		Requested: true,
	})
}

// handleStop begins a graceful shutdown and replies before it completes.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StopResponse{Stopping: true})
	go s.Shutdown()
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, errorCode, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
