package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store is the JSON document layer over a Client. Reads that hit a
// never-written path report found=false with a nil error; the caller's
// zero value is the document's default. All round trips go through the
// retry policy.
type Store struct {
	client     Client
	maxRetries int
	baseDelay  time.Duration
}

func NewStore(client Client) *Store {
	return &Store{
		client:     client,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
	}
}

// NewStoreWithRetry overrides the retry policy. Used by tests to keep
// backoff delays short.
func NewStoreWithRetry(client Client, maxRetries int, baseDelay time.Duration) *Store {
	return &Store{client: client, maxRetries: maxRetries, baseDelay: baseDelay}
}

// Load reads the document at path into out. Returns (false, nil) when the
// path has never been written, leaving out untouched. Malformed stored
// content returns (false, *ValidationError) so the caller can log it and
// proceed with the empty default.
func (s *Store) Load(ctx context.Context, path string, out any) (bool, error) {
	var data []byte
	err := withBackoff(ctx, s.maxRetries, s.baseDelay, func(ctx context.Context) error {
		var opErr error
		data, opErr = s.client.Get(ctx, path)
		return opErr
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, &ValidationError{Path: path, Err: err}
	}
	return true, nil
}

// Save serializes v and writes it to path, passing metadata through.
func (s *Store) Save(ctx context.Context, path string, v any, opts SaveOptions) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if opts.ContentType == "" {
		opts.ContentType = "application/json"
	}
	err = withBackoff(ctx, s.maxRetries, s.baseDelay, func(ctx context.Context) error {
		return s.client.Put(ctx, path, data, opts)
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := withBackoff(ctx, s.maxRetries, s.baseDelay, func(ctx context.Context) error {
		var opErr error
		exists, opErr = s.client.Exists(ctx, path)
		return opErr
	})
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", path, err)
	}
	return exists, nil
}

// List returns all stored paths with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	err := withBackoff(ctx, s.maxRetries, s.baseDelay, func(ctx context.Context) error {
		var opErr error
		paths, opErr = s.client.List(ctx, prefix)
		return opErr
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return paths, nil
}

// Delete removes the document at path. Returns (false, nil) when the path
// was never written.
func (s *Store) Delete(ctx context.Context, path string) (bool, error) {
	var deleted bool
	err := withBackoff(ctx, s.maxRetries, s.baseDelay, func(ctx context.Context) error {
		var opErr error
		deleted, opErr = s.client.Delete(ctx, path)
		return opErr
	})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", path, err)
	}
	return deleted, nil
}
