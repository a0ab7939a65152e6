// Package local implements ObjectStorage on the local filesystem. It backs the
// local deployment, where uploads are served from the static upload route.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"medparse/internal/domain"
	"medparse/internal/port"
)

// Storage writes objects under a root directory. Buckets are ignored: every
// key lives directly below root.
type Storage struct {
	root string
}

// New creates the root directory if needed.
func New(root string) (*Storage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", abs, err)
	}
	return &Storage{root: abs}, nil
}

var _ port.ObjectStorage = (*Storage)(nil)

// Put writes obj atomically through a temp file in the target directory.
func (s *Storage) Put(_ context.Context, obj port.PageObject) (*port.StoredObject, error) {
	p, err := s.path(obj.Key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating directory: %v", domain.ErrStorageFailed, err)
	}

	f, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailed, err)
	}
	tmp := f.Name()
	if _, err := f.Write(obj.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("%w: writing %s: %v", domain.ErrStorageFailed, obj.Key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailed, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailed, err)
	}
	return &port.StoredObject{Location: p, Size: int64(len(obj.Data))}, nil
}

func (s *Storage) Get(_ context.Context, _, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrStorageFailed, key, err)
	}
	return data, nil
}

func (s *Storage) Delete(_ context.Context, _, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: deleting %s: %v", domain.ErrStorageFailed, key, err)
	}
	return nil
}

// PresignGet returns the object's filesystem path; local backends read page
// images from disk.
func (s *Storage) PresignGet(_ context.Context, _, key string, _ int64) (string, error) {
	return s.path(key)
}

func (s *Storage) path(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	p := filepath.Join(s.root, clean)
	if p != s.root && !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: key %q escapes storage root", domain.ErrStorageFailed, key)
	}
	return p, nil
}
