// Package snapshot stores immutable point-in-time copies of the initiative
// collection. Each snapshot is a self-contained document: no dedup or
// diffing against prior snapshots, restorable on its own.
package snapshot

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"beacon/api/internal/blob"
	"beacon/api/internal/initiative"
)

const prefix = "snapshots/"

type Snapshot struct {
	ID          string                  `json:"id"`
	Timestamp   time.Time               `json:"timestamp"`
	CreatedBy   string                  `json:"createdBy,omitempty"`
	Label       string                  `json:"label,omitempty"`
	Initiatives []initiative.Initiative `json:"initiatives"`
}

// Info is the listing view of a stored snapshot.
type Info struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label,omitempty"`
	Count     int       `json:"count"`
}

type Store struct {
	docs *blob.Store
}

func NewStore(docs *blob.Store) *Store {
	return &Store{docs: docs}
}

func path(id string) string { return prefix + id + ".json" }

// Create writes one self-contained file under the snapshots namespace.
func (s *Store) Create(ctx context.Context, snap Snapshot) error {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}
	if snap.Initiatives == nil {
		snap.Initiatives = []initiative.Initiative{}
	}
	return s.docs.Save(ctx, path(snap.ID), snap, blob.SaveOptions{})
}

// List scans the snapshots prefix, deriving each id from its filename and
// surfacing the stored timestamp metadata. Unreadable snapshot files are
// logged and skipped.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	paths, err := s.docs.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(paths))
	for _, p := range paths {
		id := strings.TrimSuffix(strings.TrimPrefix(p, prefix), ".json")
		var snap Snapshot
		found, err := s.docs.Load(ctx, p, &snap)
		if err != nil || !found {
			log.Printf("snapshot: skipping unreadable %s: %v", p, err)
			continue
		}
		infos = append(infos, Info{ID: id, Timestamp: snap.Timestamp, Label: snap.Label, Count: len(snap.Initiatives)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Timestamp.After(infos[j].Timestamp) })
	return infos, nil
}

// Load returns the snapshot, or nil when it does not exist, consistent
// with the blob layer's absence contract.
func (s *Store) Load(ctx context.Context, id string) (*Snapshot, error) {
	var snap Snapshot
	found, err := s.docs.Load(ctx, path(id), &snap)
	if err != nil {
		var verr *blob.ValidationError
		if errors.As(err, &verr) {
			log.Printf("snapshot: %v; treating as absent", verr)
			return nil, nil
		}
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}
