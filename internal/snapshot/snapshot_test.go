package snapshot

import (
	"context"
	"testing"
	"time"

	"beacon/api/internal/blob"
	"beacon/api/internal/initiative"
)

func TestCreateLoadRoundTrip(t *testing.T) {
	store := NewStore(blob.NewStore(blob.NewMemClient()))
	ctx := context.Background()

	snap := Snapshot{
		ID:        "snap-1",
		Timestamp: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Label:     "pre-reorg",
		Initiatives: []initiative.Initiative{
			{ID: "A", Version: 3, Title: "alpha"},
		},
	}
	if err := store.Create(ctx, snap); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	loaded, err := store.Load(ctx, "snap-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if len(loaded.Initiatives) != 1 || loaded.Initiatives[0].ID != "A" {
		t.Errorf("embedded copy mismatch: %+v", loaded.Initiatives)
	}
	if !loaded.Timestamp.Equal(snap.Timestamp) {
		t.Errorf("timestamp mismatch: %v", loaded.Timestamp)
	}
}

func TestLoadAbsentReturnsNil(t *testing.T) {
	store := NewStore(blob.NewStore(blob.NewMemClient()))
	snap, err := store.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil for absent snapshot, got %+v", snap)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := NewStore(blob.NewStore(blob.NewMemClient()))
	ctx := context.Background()

	older := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	if err := store.Create(ctx, Snapshot{ID: "s-old", Timestamp: older}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(ctx, Snapshot{ID: "s-new", Timestamp: newer}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	infos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(infos))
	}
	if infos[0].ID != "s-new" || infos[1].ID != "s-old" {
		t.Errorf("expected newest first, got %s, %s", infos[0].ID, infos[1].ID)
	}
}
