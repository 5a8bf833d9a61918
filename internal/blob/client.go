// Package blob provides the document persistence layer: a raw byte-level
// Client over an object-storage backend, and a JSON document Store on top
// of it with retry and absence-as-default semantics.
package blob

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Client implementations when a path has never
// been written. The Store layer converts it into an empty default; callers
// above the Client should rarely see it.
var ErrNotFound = errors.New("blob: not found")

// SaveOptions carries write metadata passed through to the backend.
type SaveOptions struct {
	ContentType  string
	CacheControl string
}

// Client is the raw backend contract. Concrete adapters (minio, fs, memory)
// are selected at construction time, never resolved dynamically.
type Client interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte, opts SaveOptions) error
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, path string) (bool, error)
}

// ValidationError reports malformed stored content on read. The caller is
// expected to log it and proceed with an empty default; the next successful
// write supersedes the corrupt state.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("blob: malformed content at %s: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
