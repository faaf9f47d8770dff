package daemon

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/runger/cadence/internal/engine"
)

// TriggerInfo describes a session's most recent forwarded snapshot, for
// status surfaces.
type TriggerInfo struct {
	At       time.Time `json:"at"`
	Source   string    `json:"source"`
	TextLen  int       `json:"text_len"`
	Velocity float64   `json:"velocity"`
}

// Session hosts one trigger engine for one editing session. The engine pulls
// the session's text snapshot on demand, so the freshest text event always
// wins regardless of queueing delays.
type Session struct {
	ID        string
	StartedAt time.Time

	eng *engine.Engine

	mu          sync.Mutex
	text        string    // latest field snapshot
	lastSeen    time.Time // last event of any kind
	feedback    float64   // latest intensity from the feedback observer
	manualMark  bool      // next accepted fire came from a manual request
	prevSent    string    // previously journaled text, for change distance
	lastTrigger *TriggerInfo
}

// newSession builds a session and its hosted engine. The caller wires the
// engine's observers before the first event arrives.
func newSession(id string, cfg engine.Config, logger *slog.Logger) *Session {
	s := &Session{
		ID:        id,
		StartedAt: time.Now(),
		feedback:  engine.Stopped.Feedback(),
	}
	s.eng = engine.New(cfg, engine.Deps{Logger: logger})
	s.lastSeen = s.StartedAt
	return s
}

// Engine returns the hosted engine.
func (s *Session) Engine() *engine.Engine {
	return s.eng
}

// SetText replaces the session's field snapshot.
func (s *Session) SetText(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

// Text returns the current field snapshot. Used as the engine's TextSource.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Touch records event arrival time for idle reaping.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns the time of the session's most recent event.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// noteFeedback stores the latest feedback intensity from the engine's
// state-change observer.
func (s *Session) noteFeedback(fb float64) {
	s.mu.Lock()
	s.feedback = fb
	s.mu.Unlock()
}

// markManual tags the next accepted fire as manually requested. The engine
// reports fires without their origin, so the force path leaves this mark
// just before calling ForceTrigger.
func (s *Session) markManual() {
	s.mu.Lock()
	s.manualMark = true
	s.mu.Unlock()
}

// consumeFire returns the source label for a fire and the change fraction
// inputs, updating the session's bookkeeping in one step.
func (s *Session) consumeFire(text string) (source, prevSent string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	source = "auto"
	if s.manualMark {
		source = "manual"
		s.manualMark = false
	}
	prevSent = s.prevSent
	s.prevSent = text
	return source, prevSent
}

// noteTrigger stores the most recent forwarded snapshot for status surfaces.
func (s *Session) noteTrigger(info TriggerInfo) {
	s.mu.Lock()
	s.lastTrigger = &info
	s.mu.Unlock()
}

// SessionStatus is one session's observable state as reported by the control
// API.
type SessionStatus struct {
	ID               string       `json:"id"`
	StartedAt        time.Time    `json:"started_at"`
	LastSeen         time.Time    `json:"last_seen"`
	Active           bool         `json:"active"`
	Composing        bool         `json:"composing"`
	State            string       `json:"state"`
	Velocity         float64      `json:"velocity"`
	Feedback         float64      `json:"feedback"`
	TextLen          int          `json:"text_len"`
	CountdownArmed   bool         `json:"countdown_armed"`
	CountdownMsLeft  int64        `json:"countdown_ms_left,omitempty"`
	TriggersFired    int64        `json:"triggers_fired"`
	TriggersRejected int64        `json:"triggers_rejected"`
	LastReject       string       `json:"last_reject,omitempty"`
	LastTrigger      *TriggerInfo `json:"last_trigger,omitempty"`
}

// Status assembles the session's status view from engine stats plus the
// session's own bookkeeping.
func (s *Session) Status(now time.Time) SessionStatus {
	stats := s.eng.Stats()

	s.mu.Lock()
	st := SessionStatus{
		ID:               s.ID,
		StartedAt:        s.StartedAt,
		LastSeen:         s.lastSeen,
		Feedback:         s.feedback,
		TextLen:          len([]rune(s.text)),
		LastTrigger:      s.lastTrigger,
		Active:           stats.Active,
		Composing:        stats.Composing,
		State:            stats.State.String(),
		Velocity:         stats.Velocity,
		CountdownArmed:   stats.CountdownArmed,
		TriggersFired:    stats.TriggersFired,
		TriggersRejected: stats.TriggersRejected,
	}
	s.mu.Unlock()

	if stats.CountdownArmed {
		if left := stats.CountdownEndsAt.Sub(now); left > 0 {
			st.CountdownMsLeft = left.Milliseconds()
		}
	}
	if stats.LastReject != engine.RejectNone {
		st.LastReject = stats.LastReject.String()
	}
	return st
}

// Stop disarms the hosted engine and cancels its timers.
func (s *Session) Stop() {
	s.eng.Stop()
}

// SessionManager tracks live sessions. All methods are safe for concurrent
// use; sessions returned by Get/List are themselves concurrency-safe.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  func(id string) *Session
}

// NewSessionManager creates a SessionManager. The factory builds a fully
// wired session (engine, observers, activation) for a new id.
func NewSessionManager(factory func(id string) *Session) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		factory:  factory,
	}
}

// GetOrCreate returns the session for id, creating it on first sight.
// The second result reports whether a new session was created.
func (m *SessionManager) GetOrCreate(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, false
	}
	s = m.factory(id)
	m.sessions[id] = s
	return s, true
}

// Get returns the session for id if it exists.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove stops and forgets the session for id. Reports whether it existed.
func (m *SessionManager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		s.Stop()
	}
	return ok
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns the live sessions sorted by id.
func (m *SessionManager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReapIdle stops and removes sessions whose last event predates cutoff.
// Returns the removed ids.
func (m *SessionManager) ReapIdle(cutoff time.Time) []string {
	m.mu.Lock()
	var reaped []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			reaped = append(reaped, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(reaped))
	for _, s := range reaped {
		s.Stop()
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}

// StopAll stops every session's engine without removing the sessions.
// Used during shutdown.
func (m *SessionManager) StopAll() {
	for _, s := range m.List() {
		s.Stop()
	}
}
