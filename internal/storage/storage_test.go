package storage_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbacklens/feedbacklens/internal/config"
	"github.com/feedbacklens/feedbacklens/internal/storage"
)

// backends returns one instance of every ObjectStorage implementation.
func backends(t *testing.T) map[string]storage.ObjectStorage {
	t.Helper()
	fs, err := storage.NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)
	return map[string]storage.ObjectStorage{
		"memory":     storage.NewMemoryStorage(),
		"filesystem": fs,
	}
}

func TestObjectStorage_PutGetDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Put(ctx, "attachments/p1/obj1", "image/png", []byte("payload")))

			got, err := s.Get(ctx, "attachments/p1/obj1")
			require.NoError(t, err)
			assert.Equal(t, []byte("payload"), got)

			require.NoError(t, s.Delete(ctx, "attachments/p1/obj1"))

			_, err = s.Get(ctx, "attachments/p1/obj1")
			assert.ErrorIs(t, err, storage.ErrObjectNotFound)
		})
	}
}

func TestObjectStorage_GetMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "does/not/exist")
			assert.ErrorIs(t, err, storage.ErrObjectNotFound)
		})
	}
}

func TestObjectStorage_DeleteMissingIsQuiet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, s.Delete(context.Background(), "does/not/exist"))
		})
	}
}

func TestObjectStorage_SignedURL(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, "k", "text/plain", []byte("x")))

			url, err := s.SignedURL(ctx, "k", 15*time.Minute)
			require.NoError(t, err)
			assert.Contains(t, url, "expires=")

			_, err = s.SignedURL(ctx, "missing", 15*time.Minute)
			assert.ErrorIs(t, err, storage.ErrObjectNotFound)
		})
	}
}

func TestObjectStorage_OverwriteReplacesData(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, "k", "text/plain", []byte("one")))
			require.NoError(t, s.Put(ctx, "k", "text/plain", []byte("two")))

			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), got)
		})
	}
}

func TestFilesystemStorage_RejectsTraversal(t *testing.T) {
	fs, err := storage.NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	keys := []string{"../outside", "..", "/etc/passwd", "a/../../outside"}
	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			err := fs.Put(ctx, key, "text/plain", []byte("x"))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), "invalid object key"))
		})
	}
}

func TestNew_BackendSelection(t *testing.T) {
	s, err := storage.New(config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Name())

	s, err = storage.New(config.StorageConfig{Backend: "filesystem", BaseDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "filesystem", s.Name())

	_, err = storage.New(config.StorageConfig{Backend: "s3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}
