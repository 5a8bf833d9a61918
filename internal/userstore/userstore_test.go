package userstore

import (
	"context"
	"testing"

	"beacon/api/internal/blob"
)

func newTestStore() *Store {
	return NewStore(blob.NewStore(blob.NewMemClient()))
}

func TestUpsertAndList(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, User{ID: "u1", Email: "a@example.com", Role: "editor"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, User{ID: "u1", Email: "a@example.com", Role: "admin"}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	users, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Role != "admin" {
		t.Errorf("expected replace-by-id, got role %q", users[0].Role)
	}
}

func TestRemoveIsLogical(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, User{ID: "u1"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	removed, err := store.Remove(ctx, "u1")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected removed=true")
	}

	users, _ := store.List(ctx)
	if len(users) != 1 {
		t.Fatalf("logical delete must keep the record, got %d users", len(users))
	}
	if users[0].DeletedAt == nil {
		t.Error("expected DeletedAt marker")
	}

	removed, err = store.Remove(ctx, "ghost")
	if err != nil || removed {
		t.Errorf("expected removed=false for unknown id, got %v %v", removed, err)
	}
}

func TestSettingsDefaults(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	settings, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if settings.RetentionDays != 90 || !settings.SnapshotsEnabled {
		t.Errorf("expected defaults, got %+v", settings)
	}

	settings.RetentionDays = 30
	if err := store.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	reloaded, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.RetentionDays != 30 {
		t.Errorf("expected persisted retention 30, got %d", reloaded.RetentionDays)
	}
}
