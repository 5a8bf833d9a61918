package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSClient stores documents as files under a root directory. Intended for
// local development without an object store.
type FSClient struct {
	root string
}

func NewFSClient(root string) (*FSClient, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root dir: %w", err)
	}
	return &FSClient{root: root}, nil
}

func (c *FSClient) resolve(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("blob: invalid path %q", path)
	}
	return filepath.Join(c.root, cleaned), nil
}

func (c *FSClient) Get(_ context.Context, path string) ([]byte, error) {
	full, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", path, err)
	}
	return data, nil
}

func (c *FSClient) Put(_ context.Context, path string, data []byte, _ SaveOptions) error {
	full, err := c.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("blob: mkdir for %s: %w", path, err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("blob: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return fmt.Errorf("blob: rename %s: %w", path, err)
	}
	return nil
}

func (c *FSClient) Exists(_ context.Context, path string) (bool, error) {
	full, err := c.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("blob: stat %s: %w", path, err)
	}
	return true, nil
}

func (c *FSClient) List(_ context.Context, prefix string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(c.root, func(full string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(c.root, full)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			paths = append(paths, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blob: list %s: %w", prefix, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (c *FSClient) Delete(_ context.Context, path string) (bool, error) {
	full, err := c.resolve(path)
	if err != nil {
		return false, err
	}
	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blob: delete %s: %w", path, err)
	}
	return true, nil
}
