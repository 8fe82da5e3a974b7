package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDisabled is returned by Storage when no media backend is configured.
var ErrDisabled = errors.New("media storage is disabled")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Bucket() string
	Close() error
}

// Storage wraps an ObjectStorage backend and maps object keys onto public URLs.
type Storage struct {
	backend       ObjectStorage
	publicBaseURL string
}

// NewStorage constructs a Storage wrapper for the provided backend.
// A nil backend yields a disabled store that rejects every write.
func NewStorage(backend ObjectStorage, publicBaseURL string) *Storage {
	return &Storage{
		backend:       backend,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Enabled reports whether a backend is configured.
func (s *Storage) Enabled() bool {
	return s != nil && s.backend != nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	if !s.Enabled() {
		return ""
	}
	return s.backend.Bucket()
}

// PublicURL returns the address clients use to fetch the object.
func (s *Storage) PublicURL(key string) string {
	return s.publicBaseURL + "/" + strings.TrimLeft(key, "/")
}

// Close releases the backend client.
func (s *Storage) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.backend.Close()
}

// ObjectKey builds a collision-free key of the form folder/yyyy/mm/uuid.ext.
func ObjectKey(folder, ext string, now time.Time) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	return fmt.Sprintf("%s/%04d/%02d/%s.%s", folder, now.Year(), int(now.Month()), uuid.NewString(), ext)
}
