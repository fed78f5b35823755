// Package upload issues one-time upload URLs and stores uploaded comment images.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNoSuchObject is returned when a blob key has no stored object.
var ErrNoSuchObject = errors.New("no such object")

// Object is a stored blob opened for reading.
type Object struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// Store persists image blobs by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// DiskStore keeps blobs as files below a root directory.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory %s: %w", root, err)
	}
	return &DiskStore{root: root}, nil
}

// Put writes data under key, replacing any existing blob.
func (s *DiskStore) Put(_ context.Context, key string, data []byte, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating blob directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("writing blob: %w", err)
	}
	return nil
}

// Get opens the blob stored under key. The content type comes from the
// key's extension.
func (s *DiskStore) Get(_ context.Context, key string) (*Object, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, ErrNoSuchObject
	}
	if err != nil {
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		if cerr := f.Close(); cerr != nil {
			return nil, fmt.Errorf("stat blob: %w (also failed to close: %v)", err, cerr)
		}
		return nil, fmt.Errorf("stat blob: %w", err)
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Object{ReadCloser: f, ContentType: contentType, Size: info.Size()}, nil
}

// Delete removes the blob. Deleting a missing blob is not an error.
func (s *DiskStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing blob: %w", err)
	}
	return nil
}

// path maps a key to a file below root, rejecting keys that escape it.
func (s *DiskStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || strings.Contains(key, "..") || clean == "/" {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
