// Package gcs archives page bodies in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// BlobStore writes snapshots to a bucket and returns gs:// URIs.
type BlobStore struct {
	client *storage.Client
	bucket string
	owned  bool
}

// Open creates a client from application default credentials and checks the
// bucket is reachable before returning.
func Open(ctx context.Context, bucket string) (*BlobStore, error) {
	if bucket == "" {
		return nil, errors.New("storage.bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("bucket %s attrs: %w", bucket, err)
	}
	return &BlobStore{client: client, bucket: bucket, owned: true}, nil
}

// New wraps an existing client.
func New(client *storage.Client, bucket string) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if bucket == "" {
		return nil, errors.New("storage.bucket is required")
	}
	return &BlobStore{client: client, bucket: bucket}, nil
}

// PutObject uploads data to path.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path is required")
	}
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			return "", fmt.Errorf("upload %s: %w (close: %v)", path, err, closeErr)
		}
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", path, err)
	}
	return URI(s.bucket, path), nil
}

// Close releases the client when Open created it.
func (s *BlobStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

// URI formats the gs:// address of an object.
func URI(bucket, path string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, strings.TrimPrefix(path, "/"))
}
