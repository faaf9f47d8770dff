package storage

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Trigger source values.
const (
	SourceAuto   = "auto"   // countdown path
	SourceManual = "manual" // explicit force
)

// Trigger is one forwarded snapshot as journaled.
type Trigger struct {
	ID             string    // uuid, assigned on insert when empty
	Session        string    // editing-session id the snapshot came from
	FiredAt        time.Time // when the engine forwarded it
	Source         string    // SourceAuto or SourceManual
	Text           string    // the forwarded snapshot
	TextLen        int       // snapshot length in runes
	Velocity       float64   // keys/sec at fire time
	CountdownMs    int64     // countdown that elapsed before firing (0 for manual)
	ChangeFraction float64   // change distance vs the previously sent text
}

// TriggerQuery filters ListTriggers. Zero values mean "no filter".
type TriggerQuery struct {
	Session string // only this session
	Source  string // only this source
	Limit   int    // max rows, newest first; <= 0 uses 50
}

// RecordTrigger inserts a trigger row, filling ID, FiredAt, and TextLen when
// unset, and returns the row as stored.
func (j *Journal) RecordTrigger(ctx context.Context, t Trigger) (Trigger, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.FiredAt.IsZero() {
		t.FiredAt = time.Now()
	}
	if t.TextLen == 0 && t.Text != "" {
		t.TextLen = utf8.RuneCountInString(t.Text)
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO triggers (
			trigger_id, session_id, fired_at_unix_ms, source,
			text, text_len, velocity, countdown_ms, change_fraction
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Session, t.FiredAt.UnixMilli(), t.Source,
		t.Text, t.TextLen, t.Velocity, t.CountdownMs, t.ChangeFraction)
	if err != nil {
		return Trigger{}, fmt.Errorf("insert trigger: %w", err)
	}
	return t, nil
}

// ListTriggers returns journaled triggers newest first.
func (j *Journal) ListTriggers(ctx context.Context, q TriggerQuery) ([]Trigger, error) {
	query := `
		SELECT trigger_id, session_id, fired_at_unix_ms, source,
		       text, text_len, velocity, countdown_ms, change_fraction
		FROM triggers
	`
	var (
		where []string
		args  []any
	)
	if q.Session != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.Session)
	}
	if q.Source != "" {
		where = append(where, "source = ?")
		args = append(args, q.Source)
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY fired_at_unix_ms DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		var (
			t       Trigger
			firedMs int64
		)
		if err := rows.Scan(&t.ID, &t.Session, &firedMs, &t.Source,
			&t.Text, &t.TextLen, &t.Velocity, &t.CountdownMs, &t.ChangeFraction); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		t.FiredAt = time.UnixMilli(firedMs)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTriggers returns the number of journaled triggers.
func (j *Journal) CountTriggers(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM triggers`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count triggers: %w", err)
	}
	return n, nil
}
