package initiative

import (
	"context"
	"errors"
	"testing"

	"beacon/api/internal/blob"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewDocumentBackend(blob.NewStore(blob.NewMemClient())))
}

func TestLoadAllEmpty(t *testing.T) {
	store := newTestStore(t)
	items, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty collection, got %d items", len(items))
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, Initiative{ID: "X", Title: "first"}); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	if _, err := store.Upsert(ctx, Initiative{ID: "X", Title: "second"}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	items, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly one entity with id X, got %d", len(items))
	}
	if items[0].Title != "second" {
		t.Errorf("expected second write to win, got %q", items[0].Title)
	}
	if items[0].Version != 2 {
		t.Errorf("expected version 2 after replace, got %d", items[0].Version)
	}
}

func TestDeleteAbsentReturnsFalse(t *testing.T) {
	store := newTestStore(t)
	removed, err := store.Delete(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if removed {
		t.Error("expected removed=false for absent id")
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, Initiative{ID: "a"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := store.Upsert(ctx, Initiative{ID: "b"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	removed, err := store.Delete(ctx, "a")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !removed {
		t.Fatal("expected removed=true")
	}
	items, _ := store.LoadAll(ctx)
	if len(items) != 1 || items[0].ID != "b" {
		t.Errorf("unexpected collection after delete: %+v", items)
	}
}

func TestUpdateVersionGate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Upsert(ctx, Initiative{ID: "X", Title: "v1"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}

	updated, err := store.Update(ctx, Initiative{ID: "X", Version: 1, Title: "v2"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2 after update, got %d", updated.Version)
	}

	// Stale version must be rejected without writing.
	_, err = store.Update(ctx, Initiative{ID: "X", Version: 1, Title: "stale"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %T", err)
	}
	if conflict.Submitted != 1 || conflict.Stored != 2 {
		t.Errorf("unexpected conflict detail: %+v", conflict)
	}

	current, found, err := store.Get(ctx, "X")
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if current.Title != "v2" {
		t.Errorf("stale update must not overwrite, got %q", current.Title)
	}
}

func TestUpdateMissingEntity(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Update(context.Background(), Initiative{ID: "ghost", Version: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncDedupsIncomingBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	report, err := store.Sync(ctx, []Initiative{
		{ID: "A", Title: "first A"},
		{ID: "B", Title: "only B"},
		{ID: "A", Title: "dup A"},
	})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if report.Inserted != 2 || report.DroppedIncoming != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	items, _ := store.LoadAll(ctx)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	byID := map[string]Initiative{}
	for _, item := range items {
		byID[item.ID] = item
	}
	if byID["A"].Title != "first A" {
		t.Errorf("first occurrence must win, got %q", byID["A"].Title)
	}
}

func TestSyncCleansStoredDuplicates(t *testing.T) {
	backend := NewDocumentBackend(blob.NewStore(blob.NewMemClient()))
	store := NewStore(backend)
	ctx := context.Background()

	// Simulate duplicate rows that a backend without unique-key
	// enforcement can accumulate.
	if err := backend.SaveAll(ctx, []Initiative{
		{ID: "A", Version: 1, Title: "keep"},
		{ID: "A", Version: 1, Title: "stored dup"},
		{ID: "B", Version: 1, Title: "b"},
	}); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	report, err := store.Sync(ctx, []Initiative{{ID: "B", Version: 1, Title: "b updated"}})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if report.RemovedStored != 1 || report.Updated != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	items, _ := store.LoadAll(ctx)
	countA := 0
	for _, item := range items {
		if item.ID == "A" {
			countA++
			if item.Title != "keep" {
				t.Errorf("expected first stored occurrence kept, got %q", item.Title)
			}
		}
		if item.ID == "B" && item.Title != "b updated" {
			t.Errorf("expected B overwritten in place, got %q", item.Title)
		}
	}
	if countA != 1 {
		t.Errorf("expected exactly one A after cleanup, got %d", countA)
	}
}

func TestPushReplacesCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, Initiative{ID: "old"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Push(ctx, []Initiative{{ID: "new", Version: 1}}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	items, _ := store.LoadAll(ctx)
	if len(items) != 1 || items[0].ID != "new" {
		t.Errorf("expected full replacement, got %+v", items)
	}
}
