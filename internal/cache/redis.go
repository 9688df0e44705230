package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStore implements Store on Redis. SETNX gives the atomic claim the
// dedup discipline requires, with cross-process visibility.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	log.Debug().Str("addr", addr).Int("db", db).Msg("Connected to redis")
	return &RedisStore{client: client}, nil
}

// TrySetInFlight claims the chunk via SETNX with InFlightTTL.
func (s *RedisStore) TrySetInFlight(ctx context.Context, chunkID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, inFlightKey(chunkID), "processing", InFlightTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim chunk %s: %w", chunkID, err)
	}
	return ok, nil
}

// ClearInFlight releases the claim for a chunk.
func (s *RedisStore) ClearInFlight(ctx context.Context, chunkID string) error {
	if err := s.client.Del(ctx, inFlightKey(chunkID)).Err(); err != nil {
		return fmt.Errorf("release chunk %s: %w", chunkID, err)
	}
	return nil
}

// InFlight reports whether a live claim exists.
func (s *RedisStore) InFlight(ctx context.Context, chunkID string) (bool, error) {
	n, err := s.client.Exists(ctx, inFlightKey(chunkID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetAudioLocation returns the cached audio key or empty.
func (s *RedisStore) GetAudioLocation(ctx context.Context, chunkID string) (string, error) {
	val, err := s.client.Get(ctx, audioKey(chunkID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetAudioLocation caches the audio key with AudioTTL.
func (s *RedisStore) SetAudioLocation(ctx context.Context, chunkID, location string) error {
	return s.client.Set(ctx, audioKey(chunkID), location, AudioTTL).Err()
}

// GetBufferQueue returns the queued prefetch chunk IDs for a document.
func (s *RedisStore) GetBufferQueue(ctx context.Context, documentID string) ([]string, error) {
	val, err := s.client.Get(ctx, bufferKey(documentID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal([]byte(val), &ids); err != nil {
		return nil, fmt.Errorf("decode buffer queue for document %s: %w", documentID, err)
	}
	return ids, nil
}

// SetBufferQueue replaces the prefetch bookkeeping for a document.
func (s *RedisStore) SetBufferQueue(ctx context.Context, documentID string, chunkIDs []string) error {
	data, err := json.Marshal(chunkIDs)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, bufferKey(documentID), data, BufferTTL).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
