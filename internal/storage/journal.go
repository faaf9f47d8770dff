// Package storage persists fired triggers and gate rejections to a local
// SQLite journal. The journal is the daemon's default trigger consumer: every
// forwarded snapshot lands here so threshold tuning can be done against real
// typing sessions instead of guesswork.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// defaultCheckpointInterval is how often the WAL file is checkpointed
	// to prevent unbounded growth during long-running daemon sessions.
	defaultCheckpointInterval = 5 * time.Minute

	// defaultBusyTimeoutMs is the SQLite busy timeout applied when the
	// caller does not supply one. The journal CLI and the daemon can hold
	// the database at the same time; WAL keeps readers off the writer but
	// prune runs still need room to wait.
	defaultBusyTimeoutMs = 5000
)

// Options configures a journal before opening it.
type Options struct {
	// Path is the database file location. Required.
	Path string

	// BusyTimeoutMs overrides the SQLite busy timeout. <= 0 uses the default.
	BusyTimeoutMs int

	// CheckpointInterval overrides the WAL checkpoint cadence. <= 0 uses
	// the default.
	CheckpointInterval time.Duration

	// Logger receives checkpoint and maintenance diagnostics. nil discards.
	Logger *slog.Logger
}

// Journal is a SQLite-backed store of fired triggers and gate rejections.
// A single daemon process owns the writer; CLI invocations open their own
// read-mostly handles.
type Journal struct {
	db        *sql.DB
	logger    *slog.Logger
	stopCh    chan struct{} // signals the checkpoint goroutine to stop
	stoppedCh chan struct{} // closed once the checkpoint goroutine exits
	closeOnce sync.Once
	closeErr  error
}

// Open opens (creating if needed) the journal database at opts.Path, runs
// schema migrations, and starts the background WAL checkpoint loop.
func Open(opts Options) (*Journal, error) {
	if opts.Path == "" {
		return nil, errors.New("journal path required")
	}
	if opts.BusyTimeoutMs <= 0 {
		opts.BusyTimeoutMs = defaultBusyTimeoutMs
	}
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = defaultCheckpointInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	// modernc.org/sqlite takes pragmas in the DSN with _pragma=name(value).
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		opts.Path, opts.BusyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// SQLite behaves best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	j := &Journal{
		db:        db,
		logger:    opts.Logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	if err := j.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	go j.walCheckpointLoop(opts.CheckpointInterval)

	return j, nil
}

// Close checkpoints and closes the database. Safe to call more than once.
func (j *Journal) Close() error {
	j.closeOnce.Do(func() {
		if j.stopCh != nil {
			close(j.stopCh)
			<-j.stoppedCh
		}
		if j.db != nil {
			// Final checkpoint merges the WAL into the main file so a
			// plain copy of journal.db is complete.
			_, _ = j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			j.closeErr = j.db.Close()
		}
	})
	return j.closeErr
}

// DB exposes the underlying handle for advanced queries.
func (j *Journal) DB() *sql.DB {
	return j.db
}

func (j *Journal) walCheckpointLoop(interval time.Duration) {
	defer close(j.stoppedCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			return
		case <-ticker.C:
			if _, err := j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
				j.logger.Warn("wal checkpoint failed", "error", err)
			}
		}
	}
}

// migrate brings the schema up to the current version. Migrations are
// idempotent per version and recorded in schema_meta.
func (j *Journal) migrate(ctx context.Context) error {
	currentVersion := 0
	row := j.db.QueryRowContext(ctx, `
		SELECT version FROM schema_meta ORDER BY version DESC LIMIT 1
	`)
	if err := row.Scan(&currentVersion); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			currentVersion = 0
		case isTableNotFoundError(err):
			currentVersion = 0
		default:
			return fmt.Errorf("read schema version: %w", err)
		}
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{version: 1, sql: migrationV1},
		{version: 2, sql: migrationV2},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := j.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration v%d failed: %w", m.version, err)
		}
		_, err := j.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO schema_meta (version, applied_at_unix_ms)
			VALUES (?, ?)
		`, m.version, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
	}

	return nil
}

func isTableNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "does not exist")
}

// migrationV1 creates schema tracking and the triggers table.
const migrationV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_meta (
  version INTEGER PRIMARY KEY,
  applied_at_unix_ms INTEGER NOT NULL
);

-- Forwarded trigger snapshots
CREATE TABLE IF NOT EXISTS triggers (
  trigger_id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  fired_at_unix_ms INTEGER NOT NULL,
  source TEXT NOT NULL,
  text TEXT NOT NULL,
  text_len INTEGER NOT NULL,
  velocity REAL NOT NULL,
  countdown_ms INTEGER NOT NULL,
  change_fraction REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_triggers_fired ON triggers(fired_at_unix_ms DESC);
CREATE INDEX IF NOT EXISTS idx_triggers_session ON triggers(session_id, fired_at_unix_ms DESC);
CREATE INDEX IF NOT EXISTS idx_triggers_source ON triggers(source);
`

// migrationV2 adds gate-rejection diagnostics.
const migrationV2 = `
CREATE TABLE IF NOT EXISTS rejections (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL,
  rejected_at_unix_ms INTEGER NOT NULL,
  reason TEXT NOT NULL,
  text_len INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rejections_at ON rejections(rejected_at_unix_ms DESC);
CREATE INDEX IF NOT EXISTS idx_rejections_reason ON rejections(reason);
`
