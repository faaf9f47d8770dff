package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(Options{Path: filepath.Join(t.TempDir(), "journal.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatal("Open with empty path should fail")
	}
}

func TestOpenIsReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j1, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	if _, err := j1.RecordTrigger(context.Background(), Trigger{
		Session: "s1", Source: SourceAuto, Text: "hello there, testing.",
	}); err != nil {
		t.Fatalf("RecordTrigger() error = %v", err)
	}
	if err := j1.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening must re-run migrations without complaint and keep rows.
	j2, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer j2.Close()

	n, err := j2.CountTriggers(context.Background())
	if err != nil {
		t.Fatalf("CountTriggers() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountTriggers() = %d, want 1", n)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	j, err := Open(Options{Path: filepath.Join(t.TempDir(), "journal.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestRecordTriggerFillsDefaults(t *testing.T) {
	j := openTestJournal(t)

	stored, err := j.RecordTrigger(context.Background(), Trigger{
		Session:  "sess-a",
		Source:   SourceAuto,
		Text:     "こんにちは、長い文章です。",
		Velocity: 2.4,
	})
	if err != nil {
		t.Fatalf("RecordTrigger() error = %v", err)
	}
	if stored.ID == "" {
		t.Error("stored trigger has empty ID")
	}
	if stored.FiredAt.IsZero() {
		t.Error("stored trigger has zero FiredAt")
	}
	if stored.TextLen != 13 {
		t.Errorf("TextLen = %d, want 13 (runes, not bytes)", stored.TextLen)
	}
}

func TestListTriggersOrderAndFilters(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := []Trigger{
		{Session: "a", Source: SourceAuto, Text: "first snapshot text.", FiredAt: base},
		{Session: "b", Source: SourceManual, Text: "second snapshot text.", FiredAt: base.Add(1 * time.Minute)},
		{Session: "a", Source: SourceAuto, Text: "third snapshot text.", FiredAt: base.Add(2 * time.Minute)},
	}
	for _, r := range rows {
		if _, err := j.RecordTrigger(ctx, r); err != nil {
			t.Fatalf("RecordTrigger() error = %v", err)
		}
	}

	all, err := j.ListTriggers(ctx, TriggerQuery{})
	if err != nil {
		t.Fatalf("ListTriggers() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	if all[0].Text != "third snapshot text." {
		t.Errorf("newest first: got %q", all[0].Text)
	}

	bySession, err := j.ListTriggers(ctx, TriggerQuery{Session: "a"})
	if err != nil {
		t.Fatalf("ListTriggers(session) error = %v", err)
	}
	if len(bySession) != 2 {
		t.Errorf("session filter: len = %d, want 2", len(bySession))
	}

	bySource, err := j.ListTriggers(ctx, TriggerQuery{Source: SourceManual})
	if err != nil {
		t.Fatalf("ListTriggers(source) error = %v", err)
	}
	if len(bySource) != 1 || bySource[0].Session != "b" {
		t.Errorf("source filter: got %+v", bySource)
	}

	limited, err := j.ListTriggers(ctx, TriggerQuery{Limit: 1})
	if err != nil {
		t.Fatalf("ListTriggers(limit) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit: len = %d, want 1", len(limited))
	}
}

func TestRejectionCounts(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for _, reason := range []string{"cooldown", "cooldown", "too_short"} {
		if err := j.RecordRejection(ctx, Rejection{Session: "s", Reason: reason, TextLen: 5}); err != nil {
			t.Fatalf("RecordRejection() error = %v", err)
		}
	}

	counts, err := j.RejectionCounts(ctx)
	if err != nil {
		t.Fatalf("RejectionCounts() error = %v", err)
	}
	if counts["cooldown"] != 2 {
		t.Errorf("counts[cooldown] = %d, want 2", counts["cooldown"])
	}
	if counts["too_short"] != 1 {
		t.Errorf("counts[too_short] = %d, want 1", counts["too_short"])
	}
}

func TestPruneByCutoff(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := j.RecordTrigger(ctx, Trigger{Session: "s", Source: SourceAuto, Text: "old trigger text.", FiredAt: old}); err != nil {
		t.Fatal(err)
	}
	if _, err := j.RecordTrigger(ctx, Trigger{Session: "s", Source: SourceAuto, Text: "recent trigger text.", FiredAt: recent}); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordRejection(ctx, Rejection{Session: "s", RejectedAt: old, Reason: "cooldown", TextLen: 9}); err != nil {
		t.Fatal(err)
	}

	res, err := j.Prune(ctx, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), 0)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if res.Triggers != 1 {
		t.Errorf("pruned triggers = %d, want 1", res.Triggers)
	}
	if res.Rejections != 1 {
		t.Errorf("pruned rejections = %d, want 1", res.Rejections)
	}

	left, err := j.ListTriggers(ctx, TriggerQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].Text != "recent trigger text." {
		t.Errorf("after prune: %+v", left)
	}
}

func TestPruneEnforcesMaxEntries(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := j.RecordTrigger(ctx, Trigger{
			Session: "s", Source: SourceAuto,
			Text:    "numbered trigger snapshot.",
			FiredAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := j.Prune(ctx, time.Time{}, 2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if res.Triggers != 3 {
		t.Errorf("pruned triggers = %d, want 3", res.Triggers)
	}

	n, err := j.CountTriggers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("remaining triggers = %d, want 2", n)
	}
}

func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	if got := RetentionCutoff(now, 0); !got.IsZero() {
		t.Errorf("RetentionCutoff(0) = %v, want zero", got)
	}
	want := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	if got := RetentionCutoff(now, 10); !got.Equal(want) {
		t.Errorf("RetentionCutoff(10) = %v, want %v", got, want)
	}
}
