package upload

import (
	"context"
	"fmt"
	"net/url"

	"cloud.google.com/go/storage"
)

// BucketBlobStore implements BlobStore on a Firebase Storage bucket.
type BucketBlobStore struct {
	bucket     *storage.BucketHandle
	bucketName string
}

// NewBucketBlobStore creates a new BucketBlobStore.
func NewBucketBlobStore(bucket *storage.BucketHandle, bucketName string) *BucketBlobStore {
	return &BucketBlobStore{bucket: bucket, bucketName: bucketName}
}

// Put writes the object and returns its public download URL.
func (s *BucketBlobStore) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write object %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to commit object %s: %w", path, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, url.PathEscape(path)), nil
}
