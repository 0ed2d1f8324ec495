package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSStore keeps uploads in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewGCSStore connects with application default credentials.
func NewGCSStore(ctx context.Context, bucketName string) (*GCSStore, error) {
	if bucketName == "" {
		return nil, errors.New("GCS_BUCKET is required for the gcs storage backend")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: client.Bucket(bucketName)}, nil
}

// Save writes the object only if it does not exist yet.
func (s *GCSStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	writer := s.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/xml"

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			log.Printf("SKIPPING: Object %s already exists.", name)
			return name, nil
		}
		return "", fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return name, nil
}

func (s *GCSStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open gs object %s: %w", path, err)
	}
	return r, nil
}

func (s *GCSStore) Delete(ctx context.Context, path string) error {
	err := s.bucket.Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete gs object %s: %w", path, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
