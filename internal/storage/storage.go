package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"postflow/internal/config"
)

// Package storage holds post media. Keys look like "posts/<user id>/<uuid>.<ext>".

var (
	// ErrInvalidKey is returned for keys that would escape the storage root.
	ErrInvalidKey = errors.New("storage: invalid object key")
	// ErrObjectNotFound is returned by Get for a key with no object behind it.
	ErrObjectNotFound = errors.New("storage: object not found")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known, otherwise -1.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the media store used by posts.
type Storage interface {
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Removing a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns a location the object can be downloaded from, valid for at least expiry.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// New builds the backend selected by cfg.Storage.Driver.
func New(cfg *config.AppConfig) (Storage, error) {
	switch cfg.Storage.Driver {
	case "", "local":
		return NewLocal(cfg.Storage.UploadDir, "/uploads")
	case "minio":
		return NewMinIO(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
