package blob

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemClient is an in-memory Client used by tests and local experiments.
type MemClient struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemClient() *MemClient {
	return &MemClient{data: make(map[string][]byte)}
}

func (c *MemClient) Get(_ context.Context, path string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[path]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (c *MemClient) Put(_ context.Context, path string, data []byte, _ SaveOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	c.data[path] = stored
	return nil
}

func (c *MemClient) Exists(_ context.Context, path string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[path]
	return ok, nil
}

func (c *MemClient) List(_ context.Context, prefix string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	paths := make([]string, 0)
	for path := range c.data {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (c *MemClient) Delete(_ context.Context, path string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[path]; !ok {
		return false, nil
	}
	delete(c.data, path)
	return true, nil
}
