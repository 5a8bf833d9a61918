// Package userstore manages the users collection document and the
// singleton settings document.
package userstore

import (
	"context"
	"errors"
	"log"
	"time"

	"beacon/api/internal/blob"
)

const (
	usersPath  = "data/users.json"
	configPath = "data/config.json"
)

type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	TeamID    string     `json:"teamId,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Settings is the singleton configuration document. Absent fields fall
// back to the defaults below.
type Settings struct {
	RetentionDays    int               `json:"retentionDays"`
	SnapshotsEnabled bool              `json:"snapshotsEnabled"`
	Flags            map[string]string `json:"flags,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{RetentionDays: 90, SnapshotsEnabled: true}
}

type Store struct {
	docs *blob.Store
}

func NewStore(docs *blob.Store) *Store {
	return &Store{docs: docs}
}

// List returns all users, including logically deleted ones; callers filter
// on DeletedAt as needed.
func (s *Store) List(ctx context.Context) ([]User, error) {
	users := make([]User, 0)
	if _, err := s.docs.Load(ctx, usersPath, &users); err != nil {
		var verr *blob.ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		log.Printf("userstore: %v; treating users as empty", verr)
		return []User{}, nil
	}
	return users, nil
}

// Upsert replaces the user with the same id or appends.
func (s *Store) Upsert(ctx context.Context, user User) error {
	users, err := s.List(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range users {
		if users[i].ID == user.ID {
			users[i] = user
			replaced = true
			break
		}
	}
	if !replaced {
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Now().UTC()
		}
		users = append(users, user)
	}
	return s.docs.Save(ctx, usersPath, users, blob.SaveOptions{CacheControl: "no-cache"})
}

// Remove marks the user deleted. Records are never physically removed by
// this layer.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	users, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for i := range users {
		if users[i].ID == id && users[i].DeletedAt == nil {
			now := time.Now().UTC()
			users[i].DeletedAt = &now
			return true, s.docs.Save(ctx, usersPath, users, blob.SaveOptions{CacheControl: "no-cache"})
		}
	}
	return false, nil
}

// LoadSettings returns the stored settings, or defaults when absent or
// corrupt.
func (s *Store) LoadSettings(ctx context.Context) (Settings, error) {
	settings := DefaultSettings()
	if _, err := s.docs.Load(ctx, configPath, &settings); err != nil {
		var verr *blob.ValidationError
		if !errors.As(err, &verr) {
			return Settings{}, err
		}
		log.Printf("userstore: %v; using default settings", verr)
		return DefaultSettings(), nil
	}
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	return s.docs.Save(ctx, configPath, settings, blob.SaveOptions{CacheControl: "no-cache"})
}
