// Package daemon implements cadenced, the trigger daemon. It terminates the
// ingest socket (NDJSON events from editor hooks) and the control socket
// (HTTP API for the CLI), hosts one trigger engine per editing session, and
// journals every forwarded snapshot.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/runger/cadence/internal/config"
	"github.com/runger/cadence/internal/engine"
	"github.com/runger/cadence/internal/event"
	"github.com/runger/cadence/internal/log"
	"github.com/runger/cadence/internal/metrics"
	"github.com/runger/cadence/internal/storage"
	"github.com/runger/cadence/internal/textdist"
	"github.com/runger/cadence/internal/transport"
)

// Version is set at build time.
var Version = "dev"

// Server is the daemon: two socket endpoints, a session manager, and the
// plumbing between them.
type Server struct {
	cfg    *config.Config
	paths  *config.Paths
	logger *slog.Logger

	journal  *storage.Journal // nil disables journaling
	sessions *SessionManager
	queue    *IngestionQueue

	ingest  transport.Transport
	control transport.Transport

	ingestLn net.Listener
	httpSrv  *http.Server

	// engineCfg is the tunable set applied to newly created sessions.
	// SIGHUP swaps it; existing sessions keep the config they started with.
	engineMu  sync.RWMutex
	engineCfg engine.Config

	// Tracked ingest connections, closed on shutdown.
	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	startTime    time.Time
	mu           sync.RWMutex
	lastActivity time.Time

	idleExit   time.Duration // self-shutdown after this much sessionless idle; 0 = never
	sessionTTL time.Duration // reap sessions silent this long

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// ServerConfig carries the server's collaborators. Config is required;
// everything else has a default.
type ServerConfig struct {
	// Config is the loaded cadence configuration (required).
	Config *config.Config

	// Paths overrides the default file locations.
	Paths *config.Paths

	// Logger is the structured logger.
	Logger *slog.Logger

	// Journal receives trigger and rejection rows. nil disables journaling.
	Journal *storage.Journal

	// Ingest and Control override the transports, for tests.
	Ingest  transport.Transport
	Control transport.Transport
}

// NewServer creates a daemon server.
func NewServer(sc *ServerConfig) (*Server, error) {
	if sc == nil || sc.Config == nil {
		return nil, fmt.Errorf("config is required")
	}

	paths := sc.Paths
	if paths == nil {
		paths = config.DefaultPaths()
	}
	logger := sc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ingest := sc.Ingest
	if ingest == nil {
		ingest = transport.NewIngest(sc.Config.Daemon.IngestSocket)
	}
	control := sc.Control
	if control == nil {
		control = transport.NewControl(sc.Config.Daemon.ControlSocket)
	}

	now := time.Now()
	s := &Server{
		cfg:          sc.Config,
		paths:        paths,
		logger:       logger,
		journal:      sc.Journal,
		queue:        NewIngestionQueue(sc.Config.Daemon.QueueMaxEvents, logger),
		ingest:       ingest,
		control:      control,
		engineCfg:    sc.Config.Engine.Runtime(),
		conns:        make(map[net.Conn]struct{}),
		startTime:    now,
		lastActivity: now,
		idleExit:     time.Duration(sc.Config.Daemon.IdleExitMins) * time.Minute,
		sessionTTL:   time.Duration(sc.Config.Daemon.SessionTTLMins) * time.Minute,
		shutdownChan: make(chan struct{}),
	}
	s.sessions = NewSessionManager(s.buildSession)
	return s, nil
}

// Start brings up both endpoints and blocks until ctx is cancelled, Shutdown
// is called, or a listener fails.
func (s *Server) Start(ctx context.Context) error {
	if err := s.paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	ingestLn, err := s.ingest.Listen()
	if err != nil {
		return fmt.Errorf("failed to listen on ingest socket: %w", err)
	}
	s.ingestLn = ingestLn

	controlLn, err := s.control.Listen()
	if err != nil {
		ingestLn.Close()
		return fmt.Errorf("failed to listen on control socket: %w", err)
	}

	if err := s.writePIDFile(); err != nil {
		ingestLn.Close()
		controlLn.Close()
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	journalPath := ""
	if s.journal != nil {
		journalPath = s.cfg.Journal.Path
		if journalPath == "" {
			journalPath = s.paths.JournalFile()
		}
	}
	log.LogStartup(s.logger, log.StartupInfo{
		Version:       Version,
		JournalPath:   journalPath,
		IngestSocket:  s.ingest.SocketPath(),
		ControlSocket: s.control.SocketPath(),
		PID:           os.Getpid(),
	})

	s.httpSrv = &http.Server{
		Handler:           s.controlHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go s.dispatchLoop(ctx)

	s.wg.Add(1)
	go s.acceptIngestLoop(ctx, ingestLn)

	s.wg.Add(1)
	go s.reapLoop(ctx)

	if s.idleExit > 0 {
		s.wg.Add(1)
		go s.watchIdle(ctx)
	}

	if s.journal != nil {
		s.wg.Add(1)
		go s.maintenanceLoop(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		filtered := &peerFilterListener{Listener: controlLn, logger: s.logger}
		if err := s.httpSrv.Serve(filtered); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("control server error: %w", err)
		} else {
			errChan <- nil
		}
	}()

	select {
	case <-ctx.Done():
		s.Shutdown()
		<-errChan
		return nil
	case err := <-errChan:
		s.Shutdown()
		return err
	}
}

// Shutdown stops accepting, drains goroutines, disarms every engine, and
// removes the runtime files. Safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		log.LogShutdown(s.logger, "shutdown requested")

		close(s.shutdownChan)

		if s.ingestLn != nil {
			s.ingestLn.Close()
		}
		s.closeAllConns()

		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = s.httpSrv.Shutdown(ctx)
			cancel()
		}

		s.wg.Wait()

		s.sessions.StopAll()

		if err := s.ingest.Close(); err != nil {
			s.logger.Warn("failed to close ingest transport", "error", err)
		}
		if err := s.control.Close(); err != nil {
			s.logger.Warn("failed to close control transport", "error", err)
		}
		s.removePIDFile()

		s.logger.Info("daemon stopped")
	})
}

// buildSession is the SessionManager factory: a new hosted engine wired to
// the journal, metrics, and logging. Sessions arm on creation; an explicit
// activate event re-arms, deactivate disarms.
func (s *Server) buildSession(id string) *Session {
	sess := newSession(id, s.currentEngineConfig(), s.logger.With("session", id))
	eng := sess.Engine()

	eng.OnTrigger(func(text string) {
		s.handleTrigger(sess, text)
	})
	eng.OnStateChange(func(st engine.State, fb float64) {
		sess.noteFeedback(fb)
	})
	eng.OnReject(func(reason engine.RejectReason, chars int) {
		s.handleReject(sess, reason, chars)
	})

	eng.Activate(sess.Text)
	return sess
}

// handleTrigger is the daemon's trigger consumer: journal row, metrics,
// structured log. It runs on the engine's callback goroutine with the engine
// lock released.
func (s *Server) handleTrigger(sess *Session, text string) {
	stats := sess.Engine().Stats()
	source, prevSent := sess.consumeFire(text)
	change := textdist.ChangeFraction(prevSent, text)

	info := TriggerInfo{
		At:       time.Now(),
		Source:   source,
		TextLen:  utf8.RuneCountInString(text),
		Velocity: stats.Velocity,
	}
	sess.noteTrigger(info)

	if source == storage.SourceManual {
		metrics.Global.TriggersManual.Add(1)
	} else {
		metrics.Global.TriggersAuto.Add(1)
	}
	log.LogTriggerFired(s.logger, sess.ID, source, info.TextLen, info.Velocity)

	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.journal.RecordTrigger(ctx, storage.Trigger{
		Session:        sess.ID,
		FiredAt:        info.At,
		Source:         source,
		Text:           text,
		TextLen:        info.TextLen,
		Velocity:       info.Velocity,
		CountdownMs:    stats.LastCountdown.Milliseconds(),
		ChangeFraction: change,
	})
	if err != nil {
		metrics.Global.JournalErrors.Add(1)
		log.LogSQLiteError(s.logger, "record trigger", err)
		return
	}
	metrics.Global.JournalWrites.Add(1)
}

// handleReject counts a gate rejection and, when configured, journals it.
func (s *Server) handleReject(sess *Session, reason engine.RejectReason, chars int) {
	metrics.Global.RecordReject(reason.String())
	log.LogTriggerRejected(s.logger, sess.ID, reason.String())

	if s.journal == nil || !s.cfg.Journal.RecordRejections {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.journal.RecordRejection(ctx, storage.Rejection{
		Session: sess.ID,
		Reason:  reason.String(),
		TextLen: chars,
	}); err != nil {
		metrics.Global.JournalErrors.Add(1)
		log.LogSQLiteError(s.logger, "record rejection", err)
	}
}

// currentEngineConfig returns the tunables for new sessions.
func (s *Server) currentEngineConfig() engine.Config {
	s.engineMu.RLock()
	defer s.engineMu.RUnlock()
	return s.engineCfg
}

// ApplyEngineConfig installs new tunables for sessions created from now on.
// Running engines keep their countdown semantics undisturbed.
func (s *Server) ApplyEngineConfig(cfg engine.Config) {
	s.engineMu.Lock()
	s.engineCfg = cfg
	s.engineMu.Unlock()
	s.logger.Info("engine tunables updated for new sessions")
}

// DumpStats writes a metrics snapshot to the log, one record with all
// counters. Wired to SIGUSR1.
func (s *Server) DumpStats() {
	snap := metrics.Global.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, 2*len(keys)+4)
	args = append(args, "sessions", s.sessions.Count(), "queue_depth", s.queue.Len())
	for _, k := range keys {
		args = append(args, k, snap[k])
	}
	s.logger.Info("stats snapshot", args...)
}

func (s *Server) writePIDFile() error {
	return os.WriteFile(s.paths.PIDFile(), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0600)
}

func (s *Server) removePIDFile() {
	if err := os.Remove(s.paths.PIDFile()); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove PID file", "path", s.paths.PIDFile(), "error", err)
	}
}

func (s *Server) touchActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Server) getLastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

func (s *Server) trackConn(conn net.Conn) {
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
}

func (s *Server) closeAllConns() {
	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()
}

// watchIdle shuts the daemon down after idleExit of sessionless silence.
func (s *Server) watchIdle(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		case <-ticker.C:
			if s.sessions.Count() == 0 {
				since := time.Since(s.getLastActivity())
				if since > s.idleExit {
					s.logger.Info("idle timeout reached",
						"idle_duration", since,
						"timeout", s.idleExit,
					)
					go s.Shutdown()
					return
				}
			}
		}
	}
}

// reapLoop removes sessions that have gone silent for the session TTL.
func (s *Server) reapLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.sessionTTL)
			for _, id := range s.sessions.ReapIdle(cutoff) {
				metrics.Global.SessionsReaped.Add(1)
				log.LogSessionDisarmed(s.logger, id, s.sessionTTL.Minutes())
			}
		}
	}
}

// maintenanceLoop prunes the journal on start and on a fixed cadence.
func (s *Server) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	s.pruneJournal(ctx)

	interval := time.Duration(s.cfg.Journal.MaintenanceIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		case <-ticker.C:
			s.pruneJournal(ctx)
		}
	}
}

func (s *Server) pruneJournal(ctx context.Context) {
	cutoff := storage.RetentionCutoff(time.Now(), s.cfg.Journal.RetentionDays)
	res, err := s.journal.Prune(ctx, cutoff, s.cfg.Journal.MaxEntries)
	if err != nil {
		log.LogSQLiteError(s.logger, "prune journal", err)
		return
	}
	if res.Total() > 0 {
		s.logger.Info("journal pruned",
			"triggers", res.Triggers,
			"rejections", res.Rejections,
		)
	}
}

// dispatchLoop drains the ingestion queue and applies events to sessions.
// It is the only goroutine mutating session routing, so events for one
// session apply in arrival order.
func (s *Server) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		for {
			batch := s.queue.DequeueN(64)
			if len(batch) == 0 {
				break
			}
			for _, ev := range batch {
				s.applyEvent(ev)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		case <-s.queue.Wake():
		}
	}
}

// applyEvent routes one wire event to its session's engine.
func (s *Server) applyEvent(ev *event.Event) {
	s.touchActivity()

	sess, created := s.sessions.GetOrCreate(ev.Session)
	if created {
		metrics.Global.SessionsStarted.Add(1)
		s.logger.Info("session started", "session", ev.Session)
	}
	sess.Touch(time.Now())

	eng := sess.Engine()
	switch ev.Type {
	case event.TypeKey:
		if ev.Composing {
			// Provisional IME key: reported for liveness, not counted.
			return
		}
		r, _ := utf8.DecodeRuneInString(ev.Rune)
		eng.Ingest(r)
	case event.TypeCompose:
		eng.SetComposing(ev.Open)
	case event.TypeText:
		sess.SetText(ev.Text)
	case event.TypeActivate:
		eng.Activate(sess.Text)
	case event.TypeDeactivate:
		eng.Stop()
	case event.TypeForce:
		sess.markManual()
		eng.ForceTrigger()
	}
}
