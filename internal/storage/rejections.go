package storage

import (
	"context"
	"fmt"
	"time"
)

// Rejection is one gate rejection as journaled. Only the reason and the
// snapshot length are kept; rejected text itself is never persisted.
type Rejection struct {
	Session    string
	RejectedAt time.Time
	Reason     string // diagnostic name, e.g. "cooldown"
	TextLen    int
}

// RecordRejection inserts a rejection row, filling RejectedAt when unset.
func (j *Journal) RecordRejection(ctx context.Context, r Rejection) error {
	if r.RejectedAt.IsZero() {
		r.RejectedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO rejections (session_id, rejected_at_unix_ms, reason, text_len)
		VALUES (?, ?, ?, ?)
	`, r.Session, r.RejectedAt.UnixMilli(), r.Reason, r.TextLen)
	if err != nil {
		return fmt.Errorf("insert rejection: %w", err)
	}
	return nil
}

// RejectionCounts returns rejection totals grouped by reason.
func (j *Journal) RejectionCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT reason, COUNT(*) FROM rejections GROUP BY reason
	`)
	if err != nil {
		return nil, fmt.Errorf("count rejections: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			reason string
			n      int64
		)
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("scan rejection count: %w", err)
		}
		counts[reason] = n
	}
	return counts, rows.Err()
}

// CountRejections returns the number of journaled rejections.
func (j *Journal) CountRejections(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rejections`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rejections: %w", err)
	}
	return n, nil
}
