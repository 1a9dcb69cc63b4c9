package storage

import (
	"context"
	"io"
)

// UploadResult describes a stored object. Key is what gets persisted;
// Location is the public URL derived from it.
type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}
