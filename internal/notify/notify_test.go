package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"beacon/api/internal/blob"
	"beacon/api/internal/keyedlock"
)

func newTestStore() *Store {
	return NewStore(blob.NewStore(blob.NewMemClient()), keyedlock.New(), nil)
}

func TestNotificationLifecycle(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	// Before any write: empty, not an error.
	list, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	n1 := Notification{ID: "n1", UserID: "u1", Message: "first"}
	if err := store.Add(ctx, n1); err != nil {
		t.Fatalf("Add n1 failed: %v", err)
	}
	list, _ = store.List(ctx, "u1")
	if len(list) != 1 || list[0].ID != "n1" {
		t.Fatalf("expected [n1], got %+v", list)
	}

	n2 := Notification{ID: "n2", UserID: "u1", Message: "second"}
	if err := store.Add(ctx, n2); err != nil {
		t.Fatalf("Add n2 failed: %v", err)
	}
	list, _ = store.List(ctx, "u1")
	if len(list) != 2 || list[0].ID != "n2" || list[1].ID != "n1" {
		t.Fatalf("expected [n2, n1] newest first, got %+v", list)
	}

	if err := store.MarkRead(ctx, "u1", "n1"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	list, _ = store.List(ctx, "u1")
	for _, n := range list {
		if n.ID == "n1" && !n.Read {
			t.Error("n1 should be read")
		}
		if n.ID == "n2" && n.Read {
			t.Error("n2 should be unchanged")
		}
	}

	if err := store.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	list, _ = store.List(ctx, "u1")
	if len(list) != 0 {
		t.Errorf("expected empty list after Clear, got %d", len(list))
	}
}

func TestMarkAllRead(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Add(ctx, Notification{ID: fmt.Sprintf("n%d", i), UserID: "u1"}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if err := store.MarkAllRead(ctx, "u1"); err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	list, _ := store.List(ctx, "u1")
	for _, n := range list {
		if !n.Read {
			t.Errorf("notification %s still unread", n.ID)
		}
	}
}

func TestCapKeepsMostRecent(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	for i := 0; i < Cap+5; i++ {
		n := Notification{
			ID:        fmt.Sprintf("n%d", i),
			UserID:    "u1",
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		}
		if err := store.Add(ctx, n); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	list, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != Cap {
		t.Fatalf("expected %d notifications, got %d", Cap, len(list))
	}
	if list[0].ID != fmt.Sprintf("n%d", Cap+4) {
		t.Errorf("expected newest notification first, got %s", list[0].ID)
	}
}

func TestConcurrentAddsLoseNothing(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	const adds = 50

	var wg sync.WaitGroup
	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := store.Add(ctx, Notification{ID: fmt.Sprintf("n%d", n), UserID: "u1"})
			if err != nil {
				t.Errorf("Add %d failed: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	list, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != adds {
		t.Fatalf("lost updates: got %d notifications, want %d", len(list), adds)
	}
	seen := make(map[string]bool, adds)
	for _, n := range list {
		seen[n.ID] = true
	}
	if len(seen) != adds {
		t.Errorf("expected %d distinct ids, got %d", adds, len(seen))
	}
}

func TestDifferentUsersIsolated(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if err := store.Add(ctx, Notification{ID: "a", UserID: "u1"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Add(ctx, Notification{ID: "b", UserID: "u2"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	u2, _ := store.List(ctx, "u2")
	if len(u2) != 1 || u2[0].ID != "b" {
		t.Errorf("u2 list affected by u1 operations: %+v", u2)
	}
}
