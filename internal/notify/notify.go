// Package notify manages the per-user notification documents. Every
// read-modify-write cycle on a user's list runs under the keyed mutation
// lock for that user id, so concurrent operations never lose an update;
// operations for different users never block each other.
package notify

import (
	"context"
	"errors"
	"log"
	"time"

	"beacon/api/internal/blob"
	"beacon/api/internal/broadcast"
	"beacon/api/internal/keyedlock"
)

// Cap is the per-user retention bound: only the most recent Cap
// notifications are kept, newest first.
const Cap = 100

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message,omitempty"`
	RefID     string    `json:"refId,omitempty"`
	Read      bool      `json:"read"`
	Timestamp time.Time `json:"timestamp"`
}

type Store struct {
	docs      *blob.Store
	locks     *keyedlock.KeyedLock
	broadcast broadcast.Broadcaster
}

func NewStore(docs *blob.Store, locks *keyedlock.KeyedLock, b broadcast.Broadcaster) *Store {
	if b == nil {
		b = broadcast.Noop{}
	}
	return &Store{docs: docs, locks: locks, broadcast: b}
}

func path(userID string) string {
	return "data/notifications/" + userID + ".json"
}

// load reads a user's list, treating absence and corruption as empty.
func (s *Store) load(ctx context.Context, userID string) ([]Notification, error) {
	list := make([]Notification, 0)
	if _, err := s.docs.Load(ctx, path(userID), &list); err != nil {
		var verr *blob.ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		log.Printf("notify: %v; treating list as empty", verr)
		return []Notification{}, nil
	}
	return list, nil
}

func (s *Store) save(ctx context.Context, userID string, list []Notification) error {
	return s.docs.Save(ctx, path(userID), list, blob.SaveOptions{CacheControl: "no-cache"})
}

// List returns the user's notifications, newest first, empty before any
// write.
func (s *Store) List(ctx context.Context, userID string) ([]Notification, error) {
	return s.load(ctx, userID)
}

// Add prepends the notification and trims to the cap, then notifies the
// broadcast channel fire-and-forget.
func (s *Store) Add(ctx context.Context, n Notification) error {
	release, err := s.locks.Acquire(ctx, n.UserID)
	if err != nil {
		return err
	}
	defer release()

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	list, err := s.load(ctx, n.UserID)
	if err != nil {
		return err
	}
	next := make([]Notification, 0, len(list)+1)
	next = append(next, n)
	next = append(next, list...)
	if len(next) > Cap {
		next = next[:Cap]
	}
	if err := s.save(ctx, n.UserID, next); err != nil {
		return err
	}

	s.broadcast.Publish(ctx, broadcast.Notice{
		UserID:    n.UserID,
		Kind:      "notification",
		RefID:     n.ID,
		Timestamp: n.Timestamp,
	})
	return nil
}

// MarkRead flags one notification as read. Unknown ids are a no-op.
func (s *Store) MarkRead(ctx context.Context, userID, notificationID string) error {
	release, err := s.locks.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	list, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	changed := false
	for i := range list {
		if list[i].ID == notificationID && !list[i].Read {
			list[i].Read = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(ctx, userID, list)
}

// MarkAllRead flags every notification as read.
func (s *Store) MarkAllRead(ctx context.Context, userID string) error {
	release, err := s.locks.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	list, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	changed := false
	for i := range list {
		if !list[i].Read {
			list[i].Read = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(ctx, userID, list)
}

// Clear empties the user's list.
func (s *Store) Clear(ctx context.Context, userID string) error {
	release, err := s.locks.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	return s.save(ctx, userID, []Notification{})
}
