package auditlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"beacon/api/internal/blob"
)

func newDocs() *blob.Store {
	return blob.NewStore(blob.NewMemClient())
}

func TestChangelogNewestFirst(t *testing.T) {
	cl := NewChangelog(newDocs())
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := cl.Append(ctx, ChangeRecord{
			ID:        fmt.Sprintf("c%d", i),
			EntityID:  "X",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	records, err := cl.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ID != "c2" || records[2].ID != "c0" {
		t.Errorf("expected newest first, got %s..%s", records[0].ID, records[2].ID)
	}
}

func TestChangelogCap(t *testing.T) {
	cl := NewChangelog(newDocs())
	cl.cap = 1000
	ctx := context.Background()

	// 1001 sequential appends must leave exactly the most recent 1000.
	records := make([]ChangeRecord, 0, 1001)
	for i := 0; i < 1001; i++ {
		records = append(records, ChangeRecord{ID: fmt.Sprintf("c%d", i)})
	}
	// Batched into chunks to keep the test fast while still crossing the
	// cap through repeated append cycles.
	for start := 0; start < len(records); start += 101 {
		end := start + 101
		if end > len(records) {
			end = len(records)
		}
		if err := cl.Append(ctx, records[start:end]...); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	stored, err := cl.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(stored) != 1000 {
		t.Fatalf("expected exactly 1000 records, got %d", len(stored))
	}
	if stored[0].ID != "c1000" {
		t.Errorf("expected newest record c1000 first, got %s", stored[0].ID)
	}
	if stored[999].ID != "c1" {
		t.Errorf("expected oldest surviving record c1, got %s", stored[999].ID)
	}
}

func TestLogPartitionFollowsEntryTimestamp(t *testing.T) {
	docs := newDocs()
	l := NewLog(docs)
	ctx := context.Background()

	// Backdated entry must land in its own day partition.
	backdated := time.Date(2026, 7, 4, 23, 59, 0, 0, time.UTC)
	err := l.Append(ctx, CategoryActivity, Entry{ID: "e1", Message: "late", Timestamp: backdated})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	paths, err := docs.List(ctx, "logs/activity/2026/07/04/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected entry under its timestamp's partition, got %v", paths)
	}
}

func TestQueryRange(t *testing.T) {
	l := NewLog(newDocs())
	ctx := context.Background()

	day1 := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	day3 := time.Date(2026, 8, 12, 15, 0, 0, 0, time.UTC)
	entries := []Entry{
		{ID: "a", Severity: "info", Actor: "u1", Message: "one", Timestamp: day1},
		{ID: "b", Severity: "error", Actor: "u2", Message: "two", Timestamp: day1.Add(time.Hour)},
		{ID: "c", Severity: "error", Actor: "u1", Message: "three", Timestamp: day3},
	}
	if err := l.Append(ctx, CategoryErrors, entries...); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Absent day (Aug 11) is skipped, not an error.
	got, err := l.QueryRange(ctx, CategoryErrors, day1, day3.Add(time.Hour), Filter{})
	if err != nil {
		t.Fatalf("QueryRange failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].ID != "c" || got[2].ID != "a" {
		t.Errorf("expected timestamp-descending order, got %s..%s", got[0].ID, got[2].ID)
	}

	filtered, err := l.QueryRange(ctx, CategoryErrors, day1, day3.Add(time.Hour), Filter{Severity: "error", Actor: "u1"})
	if err != nil {
		t.Fatalf("filtered QueryRange failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "c" {
		t.Errorf("unexpected filter result: %+v", filtered)
	}
}

func TestRetentionSweep(t *testing.T) {
	docs := newDocs()
	l := NewLog(docs)
	ctx := context.Background()

	now := time.Now().UTC()
	old := Entry{ID: "old", Message: "stale", Timestamp: now.AddDate(0, 0, -45)}
	fresh := Entry{ID: "fresh", Message: "recent", Timestamp: now.AddDate(0, 0, -10)}
	if err := l.Append(ctx, CategoryActivity, old, fresh); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	deleted, err := l.RetentionSweep(ctx, 30)
	if err != nil {
		t.Fatalf("RetentionSweep failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 file deleted, got %d", deleted)
	}

	remaining, err := l.QueryRange(ctx, CategoryActivity, now.AddDate(0, 0, -60), now, Filter{})
	if err != nil {
		t.Fatalf("QueryRange failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "fresh" {
		t.Errorf("expected only the 10-day-old entry to survive, got %+v", remaining)
	}
}
