// Package storage abstracts the external object store holding attachment
// blobs. Callers inject ObjectStorage rather than a concrete backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feedbacklens/feedbacklens/internal/config"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the blob backend interface.
type ObjectStorage interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// SignedURL returns a time-limited URL for direct download of the object.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Name returns the backend identifier (e.g., "memory", "filesystem").
	Name() string
}

// New constructs the appropriate storage backend based on config.
// Called once at server startup.
func New(cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStorage(), nil
	case "filesystem":
		return NewFilesystemStorage(cfg.BaseDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q: must be one of memory, filesystem", cfg.Backend)
	}
}
