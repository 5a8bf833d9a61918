package initiative

import (
	"context"
	"errors"
	"log"

	"beacon/api/internal/blob"
)

// Backend abstracts the two physical stores the collection can live in.
// Neither enforces uniqueness of the id column/field; SaveAll is a full
// non-atomic replace (an accepted non-goal: a crash mid-write can leave a
// half-written state).
type Backend interface {
	LoadAll(ctx context.Context) ([]Initiative, error)
	SaveAll(ctx context.Context, items []Initiative) error
}

// initiativesPath is the wire contract with the object store.
const initiativesPath = "data/initiatives.json"

// DocumentBackend stores the whole collection as one JSON array document.
type DocumentBackend struct {
	docs *blob.Store
}

func NewDocumentBackend(docs *blob.Store) *DocumentBackend {
	return &DocumentBackend{docs: docs}
}

func (b *DocumentBackend) LoadAll(ctx context.Context) ([]Initiative, error) {
	items := make([]Initiative, 0)
	_, err := b.docs.Load(ctx, initiativesPath, &items)
	var verr *blob.ValidationError
	if errors.As(err, &verr) {
		// Availability over strictness: corrupt state is superseded by
		// the next successful write.
		log.Printf("initiative: %v; treating collection as empty", verr)
		return []Initiative{}, nil
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (b *DocumentBackend) SaveAll(ctx context.Context, items []Initiative) error {
	if items == nil {
		items = []Initiative{}
	}
	return b.docs.Save(ctx, initiativesPath, items, blob.SaveOptions{CacheControl: "no-cache"})
}
