// Package cache provides the shared claim and lookup store for chunk audio
// generation. The store is the single source of truth for "who owns generation
// of chunk C": the atomic in-flight claim here is the only mechanism
// preventing duplicate work across server instances.
package cache

import (
	"context"
	"time"
)

const (
	// InFlightTTL bounds how long a generation attempt may own a chunk.
	// A crashed worker's claim expires rather than wedging the chunk forever.
	InFlightTTL = time.Hour

	// AudioTTL bounds how long a cached audio location is trusted. The
	// location is always re-verified against the object store at read time.
	AudioTTL = 24 * time.Hour

	// BufferTTL bounds the per-document prefetch bookkeeping window.
	BufferTTL = time.Hour
)

// Store is the cache and dedup store consulted by the orchestrator.
type Store interface {
	// TrySetInFlight atomically claims generation of a chunk. It returns
	// false when another attempt already owns the chunk. Check and set
	// happen as one step at the store; callers must not split them.
	TrySetInFlight(ctx context.Context, chunkID string) (bool, error)

	// ClearInFlight releases a claim. Called on both success and failure
	// paths; clearing an absent claim is a no-op.
	ClearInFlight(ctx context.Context, chunkID string) error

	// InFlight reports whether a live claim exists for the chunk.
	InFlight(ctx context.Context, chunkID string) (bool, error)

	// GetAudioLocation returns the cached audio object key for a chunk, or
	// empty when none is cached.
	GetAudioLocation(ctx context.Context, chunkID string) (string, error)

	// SetAudioLocation caches the audio object key for a chunk with AudioTTL.
	SetAudioLocation(ctx context.Context, chunkID, location string) error

	// GetBufferQueue returns the chunk IDs already queued for prefetch in a
	// document's current window.
	GetBufferQueue(ctx context.Context, documentID string) ([]string, error)

	// SetBufferQueue replaces the prefetch bookkeeping for a document.
	SetBufferQueue(ctx context.Context, documentID string, chunkIDs []string) error

	// Close releases underlying resources.
	Close() error
}

// Key layout shared by all implementations.
func audioKey(chunkID string) string    { return "audio:chunk:" + chunkID }
func inFlightKey(chunkID string) string { return "processing:chunk:" + chunkID }
func bufferKey(documentID string) string {
	return "buffer:document:" + documentID
}
