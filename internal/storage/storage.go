// Package storage abstracts the object store holding uploaded PDFs and
// generated audio.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the object does not exist.
var ErrNotFound = errors.New("object not found")

// DefaultURLTTL is the lifetime of presigned download URLs.
const DefaultURLTTL = time.Hour

// ObjectStore stores opaque blobs under string keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether the object is currently present. Cached audio
	// locations are verified through this before being served.
	Exists(ctx context.Context, key string) (bool, error)

	// PresignedURL returns a time-limited download URL for the object.
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	Delete(ctx context.Context, key string) error
}
