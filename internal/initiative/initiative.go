// Package initiative implements the primary entity collection: upsert,
// delete, bulk sync with multi-layer deduplication, and optimistic
// versioning, over backends that enforce no uniqueness themselves.
package initiative

import (
	"errors"
	"fmt"
	"time"
)

// Initiative is the primary tracked entity. IDs are unique within the
// collection at any observation point; the dedup logic enforces that, not
// the backend.
type Initiative struct {
	ID          string     `json:"id"`
	Version     int        `json:"version"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Owner       string     `json:"owner"`
	TeamID      string     `json:"teamId,omitempty"`
	Description string     `json:"description,omitempty"`
	StartDate   string     `json:"startDate,omitempty"`
	EndDate     string     `json:"endDate,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	UpdatedBy   string     `json:"updatedBy,omitempty"`
}

// ErrConflict reports an optimistic-versioning mismatch on update. The
// caller performs exactly one refetch-and-retry before surfacing it.
var ErrConflict = errors.New("initiative: version conflict")

// ConflictError carries the versions involved in a rejected update.
// errors.Is(err, ErrConflict) matches it.
type ConflictError struct {
	ID        string
	Submitted int
	Stored    int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("initiative %s: submitted version %d does not match stored version %d", e.ID, e.Submitted, e.Stored)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ErrNotFound reports an update against an id that is not in the collection.
var ErrNotFound = errors.New("initiative: not found")
