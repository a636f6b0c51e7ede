// ABOUTME: Object store interface for file attachments plus a local-directory implementation.
// ABOUTME: Attachments are stored under per-user private prefixes and referenced by key.

package files

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Store is the attachment object store. The core only reads inbound
// attachments and writes generation results; retention belongs to the store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// UserKey scopes an attachment key to a user's private prefix.
func UserKey(userID, key string) string {
	return "private/" + userID + "/" + key
}

// DirStore implements Store on a local directory tree.
type DirStore struct {
	root string
}

// NewDirStore creates a DirStore rooted at the given directory, creating it
// if needed.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating object store root: %w", err)
	}
	return &DirStore{root: root}, nil
}

// resolve maps a key to a path under root, rejecting traversal.
func (s *DirStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Get reads the object at key.
func (s *DirStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}
	return data, nil
}

// Put writes the object at key, creating intermediate directories.
func (s *DirStore) Put(ctx context.Context, key string, data []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing object %s: %w", key, err)
	}
	return nil
}
