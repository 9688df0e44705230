package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map. It mirrors the Redis
// semantics including TTLs, but its claims are visible to one process only;
// use it for tests and single-node deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

type memoryEntry struct {
	value     string
	values    []string
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   time.Now,
	}
}

func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if s.clock().After(e.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

// TrySetInFlight claims the chunk; check and set happen under one lock.
func (s *MemoryStore) TrySetInFlight(ctx context.Context, chunkID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := inFlightKey(chunkID)
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = memoryEntry{value: "processing", expiresAt: s.clock().Add(InFlightTTL)}
	return true, nil
}

// ClearInFlight releases the claim for a chunk.
func (s *MemoryStore) ClearInFlight(ctx context.Context, chunkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, inFlightKey(chunkID))
	return nil
}

// InFlight reports whether a live claim exists.
func (s *MemoryStore) InFlight(ctx context.Context, chunkID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.live(inFlightKey(chunkID))
	return ok, nil
}

// GetAudioLocation returns the cached audio key or empty.
func (s *MemoryStore) GetAudioLocation(ctx context.Context, chunkID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(audioKey(chunkID))
	if !ok {
		return "", nil
	}
	return e.value, nil
}

// SetAudioLocation caches the audio key with AudioTTL.
func (s *MemoryStore) SetAudioLocation(ctx context.Context, chunkID, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[audioKey(chunkID)] = memoryEntry{value: location, expiresAt: s.clock().Add(AudioTTL)}
	return nil
}

// GetBufferQueue returns the queued prefetch chunk IDs for a document.
func (s *MemoryStore) GetBufferQueue(ctx context.Context, documentID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(bufferKey(documentID))
	if !ok {
		return nil, nil
	}
	out := make([]string, len(e.values))
	copy(out, e.values)
	return out, nil
}

// SetBufferQueue replaces the prefetch bookkeeping for a document.
func (s *MemoryStore) SetBufferQueue(ctx context.Context, documentID string, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make([]string, len(chunkIDs))
	copy(values, chunkIDs)
	s.entries[bufferKey(documentID)] = memoryEntry{values: values, expiresAt: s.clock().Add(BufferTTL)}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
