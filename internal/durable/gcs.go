package durable

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
)

// GCSBackend writes artifacts as objects in a Cloud Storage bucket using
// application default credentials.
type GCSBackend struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSBackend creates the storage client.
func NewGCSBackend(ctx context.Context, cfg PrimaryConfig) (*GCSBackend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs: bucket not set")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSBackend{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Name implements Backend.
func (b *GCSBackend) Name() string { return "gcs" }

// Put implements Backend.
func (b *GCSBackend) Put(ctx context.Context, name string, body []byte) (string, error) {
	obj := path.Join(b.prefix, name)
	w := b.client.Bucket(b.bucket).Object(obj).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(body); err != nil {
		w.Close()
		return "", fmt.Errorf("write object %s: %w", obj, err)
	}
	// The upload is only committed by Close.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("commit object %s: %w", obj, err)
	}
	return fmt.Sprintf("gs://%s/%s", b.bucket, obj), nil
}

// Close releases the storage client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}
