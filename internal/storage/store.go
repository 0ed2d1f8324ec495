// Package storage keeps the raw bytes of uploaded schedule files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotExist is returned when a stored file is missing.
var ErrNotExist = errors.New("stored file does not exist")

// FileStore saves, reads and removes uploaded files by opaque path.
type FileStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// Open returns the store for backend ("local" or "gcs") and a func releasing it.
func Open(ctx context.Context, backend, uploadDir, bucket string) (FileStore, func(), error) {
	switch backend {
	case "", "local":
		store, err := NewLocalStore(uploadDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "gcs":
		store, err := NewGCSStore(ctx, bucket)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", backend)
}

// ObjectName builds a unique, date-prefixed name for an upload.
func ObjectName(sectionID uuid.UUID, filename string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "schedule.xml"
	}
	return fmt.Sprintf("schedules/%s/%s_%s_%s", sectionID, now.UTC().Format("20060102T150405"), uuid.NewString()[:8], base)
}

// LocalStore writes files under a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) resolve(path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes upload dir", path)
	}
	return full, nil
}

func (s *LocalStore) Save(_ context.Context, name string, data []byte) (string, error) {
	full, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create dir for %s: %w", name, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return name, nil
}

func (s *LocalStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	return f, err
}

func (s *LocalStore) Delete(_ context.Context, path string) error {
	if path == "" {
		return nil
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}
