package storage

import (
	"context"
	"fmt"
	"time"
)

// PruneResult reports how many rows maintenance removed.
type PruneResult struct {
	Triggers   int64
	Rejections int64
}

// Total returns the combined number of pruned rows.
func (r PruneResult) Total() int64 {
	return r.Triggers + r.Rejections
}

// Prune applies the retention policy: rows older than cutoff are deleted,
// then the newest maxEntries trigger rows are kept and the rest dropped.
// A zero cutoff skips age-based pruning; maxEntries <= 0 skips the cap.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time, maxEntries int) (PruneResult, error) {
	var res PruneResult

	if !cutoff.IsZero() {
		cutoffMs := cutoff.UnixMilli()

		r, err := j.db.ExecContext(ctx,
			`DELETE FROM triggers WHERE fired_at_unix_ms < ?`, cutoffMs)
		if err != nil {
			return res, fmt.Errorf("prune triggers: %w", err)
		}
		n, _ := r.RowsAffected()
		res.Triggers += n

		r, err = j.db.ExecContext(ctx,
			`DELETE FROM rejections WHERE rejected_at_unix_ms < ?`, cutoffMs)
		if err != nil {
			return res, fmt.Errorf("prune rejections: %w", err)
		}
		n, _ = r.RowsAffected()
		res.Rejections += n
	}

	if maxEntries > 0 {
		// LIMIT -1 OFFSET n selects everything past the newest n rows.
		r, err := j.db.ExecContext(ctx, `
			DELETE FROM triggers WHERE trigger_id IN (
				SELECT trigger_id FROM triggers
				ORDER BY fired_at_unix_ms DESC
				LIMIT -1 OFFSET ?
			)
		`, maxEntries)
		if err != nil {
			return res, fmt.Errorf("cap triggers: %w", err)
		}
		n, _ := r.RowsAffected()
		res.Triggers += n

		r, err = j.db.ExecContext(ctx, `
			DELETE FROM rejections WHERE id IN (
				SELECT id FROM rejections
				ORDER BY rejected_at_unix_ms DESC
				LIMIT -1 OFFSET ?
			)
		`, maxEntries)
		if err != nil {
			return res, fmt.Errorf("cap rejections: %w", err)
		}
		n, _ = r.RowsAffected()
		res.Rejections += n
	}

	return res, nil
}

// RetentionCutoff converts a retention-days setting into a prune cutoff.
// days <= 0 disables age-based pruning and returns the zero time.
func RetentionCutoff(now time.Time, days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -days)
}
