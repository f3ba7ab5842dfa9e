package blob

import (
	"context"
	"fmt"
	"net/url"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// downloadTokenKey is the object metadata key Firebase Storage reads to
// authorize tokenized download URLs.
const downloadTokenKey = "firebaseStorageDownloadTokens"

// Firebase writes objects into a Firebase Storage (GCS) bucket and returns
// tokenized firebasestorage.googleapis.com URLs.
type Firebase struct {
	bucket *storage.BucketHandle
	name   string
}

func NewFirebase(bucket *storage.BucketHandle, name string) *Firebase {
	return &Firebase{bucket: bucket, name: name}
}

func (f *Firebase) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	token := uuid.NewString()

	w := f.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{downloadTokenKey: token}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", path, err)
	}
	return downloadURL(f.name, path, token), nil
}

func downloadURL(bucket, path, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(path), url.QueryEscape(token))
}
