package initiative

import (
	"context"
	"log"
	"time"
)

// Store provides the collection operations over a Backend. Uniqueness of
// ids is enforced here, in three layers: incoming-batch dedup, a defensive
// scan of the stored collection, and an already-inserted re-check in the
// insert loop.
type Store struct {
	backend Backend
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// LoadAll returns the collection, empty when nothing has been written.
func (s *Store) LoadAll(ctx context.Context) ([]Initiative, error) {
	return s.backend.LoadAll(ctx)
}

// SaveAll overwrites the whole collection.
func (s *Store) SaveAll(ctx context.Context, items []Initiative) error {
	return s.backend.SaveAll(ctx, items)
}

// Upsert replaces the entity with the same id, or appends it. New entities
// start at version 1; replaced entities advance by one regardless of the
// submitted version (use Update for the optimistic-concurrency path).
func (s *Store) Upsert(ctx context.Context, item Initiative) (Initiative, error) {
	items, err := s.backend.LoadAll(ctx)
	if err != nil {
		return Initiative{}, err
	}

	item.UpdatedAt = time.Now().UTC()
	replaced := false
	for i := range items {
		if items[i].ID == item.ID {
			item.Version = items[i].Version + 1
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		if item.Version <= 0 {
			item.Version = 1
		}
		items = append(items, item)
	}

	if err := s.backend.SaveAll(ctx, items); err != nil {
		return Initiative{}, err
	}
	return item, nil
}

// Update enforces the version gate: the submitted version must equal the
// stored version, otherwise a ConflictError is returned and nothing is
// written. On success the stored version advances by exactly one.
func (s *Store) Update(ctx context.Context, item Initiative) (Initiative, error) {
	items, err := s.backend.LoadAll(ctx)
	if err != nil {
		return Initiative{}, err
	}

	for i := range items {
		if items[i].ID != item.ID {
			continue
		}
		if items[i].Version != item.Version {
			return Initiative{}, &ConflictError{ID: item.ID, Submitted: item.Version, Stored: items[i].Version}
		}
		item.Version = items[i].Version + 1
		item.UpdatedAt = time.Now().UTC()
		items[i] = item
		if err := s.backend.SaveAll(ctx, items); err != nil {
			return Initiative{}, err
		}
		return item, nil
	}
	return Initiative{}, ErrNotFound
}

// Get returns the entity and whether it exists.
func (s *Store) Get(ctx context.Context, id string) (Initiative, bool, error) {
	items, err := s.backend.LoadAll(ctx)
	if err != nil {
		return Initiative{}, false, err
	}
	for _, item := range items {
		if item.ID == id {
			return item, true, nil
		}
	}
	return Initiative{}, false, nil
}

// Delete removes the entity entirely. Absence is reported as false, never
// as an error.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	items, err := s.backend.LoadAll(ctx)
	if err != nil {
		return false, err
	}

	kept := make([]Initiative, 0, len(items))
	removed := false
	for _, item := range items {
		if item.ID == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return false, nil
	}
	if err := s.backend.SaveAll(ctx, kept); err != nil {
		return false, err
	}
	return true, nil
}

// SyncReport summarizes a bulk sync.
type SyncReport struct {
	Inserted        int `json:"inserted"`
	Updated         int `json:"updated"`
	DroppedIncoming int `json:"droppedIncoming"`
	RemovedStored   int `json:"removedStored"`
}

// Sync applies a client-submitted batch. Incoming duplicates keep the first
// occurrence (each drop is logged); stored duplicates are defensively
// removed keeping the first, since the backend enforces no uniqueness; and
// the insert loop re-checks a running already-inserted set to guard the gap
// between the initial scan and the insert.
func (s *Store) Sync(ctx context.Context, batch []Initiative) (SyncReport, error) {
	var report SyncReport

	// Layer 1: dedup the incoming batch, first occurrence wins.
	seen := make(map[string]struct{}, len(batch))
	incoming := make([]Initiative, 0, len(batch))
	for _, item := range batch {
		if _, dup := seen[item.ID]; dup {
			report.DroppedIncoming++
			log.Printf("initiative: sync dropped duplicate incoming id=%s", item.ID)
			continue
		}
		seen[item.ID] = struct{}{}
		incoming = append(incoming, item)
	}

	stored, err := s.backend.LoadAll(ctx)
	if err != nil {
		return report, err
	}

	// Layer 2: defensive cleanup of pre-existing stored duplicates.
	storedIndex := make(map[string]int, len(stored))
	cleaned := make([]Initiative, 0, len(stored))
	for _, item := range stored {
		if _, dup := storedIndex[item.ID]; dup {
			report.RemovedStored++
			log.Printf("initiative: sync removed stored duplicate id=%s", item.ID)
			continue
		}
		storedIndex[item.ID] = len(cleaned)
		cleaned = append(cleaned, item)
	}

	// Layer 3: overwrite in place or insert, guarding the scan/insert gap
	// with a running already-inserted set.
	inserted := make(map[string]struct{})
	now := time.Now().UTC()
	for _, item := range incoming {
		item.UpdatedAt = now
		if idx, ok := storedIndex[item.ID]; ok {
			item.Version = cleaned[idx].Version + 1
			cleaned[idx] = item
			report.Updated++
			continue
		}
		if _, already := inserted[item.ID]; already {
			report.DroppedIncoming++
			log.Printf("initiative: sync dropped re-inserted id=%s", item.ID)
			continue
		}
		if item.Version <= 0 {
			item.Version = 1
		}
		inserted[item.ID] = struct{}{}
		storedIndex[item.ID] = len(cleaned)
		cleaned = append(cleaned, item)
		report.Inserted++
	}

	if err := s.backend.SaveAll(ctx, cleaned); err != nil {
		return report, err
	}
	return report, nil
}

// Push replaces the whole stored collection with list. Non-atomic by
// design: a crash mid-write can leave a half-written state.
func (s *Store) Push(ctx context.Context, list []Initiative) error {
	return s.backend.SaveAll(ctx, list)
}
