// Package tts coordinates chunk audio generation across the provider chain,
// the cache, and object storage.
package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voxleaf/voxleaf/internal/cache"
	"github.com/voxleaf/voxleaf/internal/docstore"
	"github.com/voxleaf/voxleaf/internal/provider"
	"github.com/voxleaf/voxleaf/internal/storage"
)

// GenerationState describes where a chunk stands after a generation request.
type GenerationState string

const (
	// StateCached means verified audio already exists; no work was started.
	StateCached GenerationState = "cached"
	// StateStarted means this request won the claim and generation is running.
	StateStarted GenerationState = "started"
	// StateInProgress means another request holds the claim.
	StateInProgress GenerationState = "in_progress"
)

// StatusState is the externally visible lifecycle of a chunk's audio.
type StatusState string

const (
	StatusCompleted    StatusState = "completed"
	StatusProcessing   StatusState = "processing"
	StatusNotGenerated StatusState = "not_generated"
	StatusError        StatusState = "error"
)

// DefaultPrefetchWindow is how many upcoming chunks are warmed after a request.
const DefaultPrefetchWindow = 2

// DefaultGenerationTimeout bounds one background generation end to end.
const DefaultGenerationTimeout = 5 * time.Minute

// Result is the outcome of a generation request.
type Result struct {
	State    GenerationState
	AudioKey string
	AudioURL string
}

// Status reports a chunk's audio lifecycle for polling clients.
type Status struct {
	State    StatusState
	AudioURL string
	Error    string
}

// Options configures an Orchestrator.
type Options struct {
	Synthesize        provider.SynthesizeOptions
	PrefetchWindow    int
	GenerationTimeout time.Duration
}

// Orchestrator drives the generate flow: cache check, claim, synthesis,
// persistence, cache update, claim release.
type Orchestrator struct {
	chain   *provider.Chain
	cache   cache.Store
	objects storage.ObjectStore
	docs    *docstore.Store
	opts    Options
}

// NewOrchestrator wires the generation pipeline together.
func NewOrchestrator(chain *provider.Chain, c cache.Store, objects storage.ObjectStore, docs *docstore.Store, opts Options) *Orchestrator {
	if opts.PrefetchWindow <= 0 {
		opts.PrefetchWindow = DefaultPrefetchWindow
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = DefaultGenerationTimeout
	}
	return &Orchestrator{
		chain:   chain,
		cache:   c,
		objects: objects,
		docs:    docs,
		opts:    opts,
	}
}

// RequestGeneration serves one generate request for a chunk. Cached audio is
// returned immediately; otherwise the request races for the in-flight claim
// and either starts a background generation or reports one already running.
// A successful request also warms the next chunks of the same document.
func (o *Orchestrator) RequestGeneration(ctx context.Context, chunkID string) (*Result, error) {
	chunk, err := o.docs.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, err
	}

	if key, ok, err := o.cachedAudio(ctx, chunk); err != nil {
		return nil, err
	} else if ok {
		url, err := o.objects.PresignedURL(ctx, key, storage.DefaultURLTTL)
		if err != nil {
			return nil, fmt.Errorf("presign audio url: %w", err)
		}
		o.prefetch(chunk)
		return &Result{State: StateCached, AudioKey: key, AudioURL: url}, nil
	}

	claimed, err := o.cache.TrySetInFlight(ctx, chunk.ID)
	if err != nil {
		return nil, fmt.Errorf("claim chunk: %w", err)
	}
	if !claimed {
		return &Result{State: StateInProgress}, nil
	}

	go o.runGeneration(chunk)
	o.prefetch(chunk)
	return &Result{State: StateStarted}, nil
}

// GenerateStatus reports how far along a chunk's audio is.
func (o *Orchestrator) GenerateStatus(ctx context.Context, chunkID string) (*Status, error) {
	chunk, err := o.docs.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, err
	}

	if key, ok, err := o.cachedAudio(ctx, chunk); err != nil {
		return nil, err
	} else if ok {
		url, err := o.objects.PresignedURL(ctx, key, storage.DefaultURLTTL)
		if err != nil {
			return nil, fmt.Errorf("presign audio url: %w", err)
		}
		return &Status{State: StatusCompleted, AudioURL: url}, nil
	}

	inFlight, err := o.cache.InFlight(ctx, chunk.ID)
	if err != nil {
		return nil, err
	}
	if inFlight {
		return &Status{State: StatusProcessing}, nil
	}

	if chunk.AudioState == docstore.AudioError {
		return &Status{State: StatusError, Error: chunk.LastError}, nil
	}
	return &Status{State: StatusNotGenerated}, nil
}

// cachedAudio reports whether verified audio exists for the chunk, checking
// the cache entry first and falling back to the persistent record. A location
// that no longer resolves in object storage counts as a miss, so the chunk is
// regenerated rather than served stale.
func (o *Orchestrator) cachedAudio(ctx context.Context, chunk *docstore.Chunk) (string, bool, error) {
	key, err := o.cache.GetAudioLocation(ctx, chunk.ID)
	if err != nil {
		return "", false, fmt.Errorf("read audio cache: %w", err)
	}
	fromRecord := false
	if key == "" && chunk.AudioState == docstore.AudioCompleted {
		key = chunk.AudioKey
		fromRecord = true
	}
	if key == "" {
		return "", false, nil
	}

	exists, err := o.objects.Exists(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("verify audio object: %w", err)
	}
	if !exists {
		log.Warn().Str("chunk_id", chunk.ID).Str("key", key).Msg("Cached audio missing from storage, regenerating")
		return "", false, nil
	}

	// Re-warm the cache when the hit came from the record.
	if fromRecord {
		if err := o.cache.SetAudioLocation(ctx, chunk.ID, key); err != nil {
			log.Warn().Err(err).Str("chunk_id", chunk.ID).Msg("Failed to refresh audio cache entry")
		}
	}
	return key, true, nil
}

// runGeneration executes one claimed generation in the background.
func (o *Orchestrator) runGeneration(chunk *docstore.Chunk) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.GenerationTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("chunk_id", chunk.ID).Any("panic", r).Msg("Generation panicked")
		}
	}()

	if err := o.generateClaimed(ctx, chunk); err != nil {
		log.Error().Err(err).Str("chunk_id", chunk.ID).Msg("Audio generation failed")
	}
}

// generateClaimed runs one generation for a chunk whose claim this caller
// holds. The claim is always released, including on panic.
func (o *Orchestrator) generateClaimed(ctx context.Context, chunk *docstore.Chunk) error {
	defer o.releaseClaim(chunk.ID)
	_, err := o.generate(ctx, chunk)
	return err
}

// generate synthesizes, persists, and records audio for an already claimed
// chunk. It returns the storage key of the new audio object.
func (o *Orchestrator) generate(ctx context.Context, chunk *docstore.Chunk) (string, error) {
	audio, providerName, err := o.chain.Synthesize(ctx, chunk.Text, o.opts.Synthesize)
	if err != nil {
		o.recordError(ctx, chunk.ID, err)
		return "", err
	}

	key := "audio/" + uuid.NewString() + ".mp3"
	if err := o.objects.Put(ctx, key, audio, "audio/mpeg"); err != nil {
		err = fmt.Errorf("store audio: %w", err)
		o.recordError(ctx, chunk.ID, err)
		return "", err
	}

	if err := o.cache.SetAudioLocation(ctx, chunk.ID, key); err != nil {
		log.Warn().Err(err).Str("chunk_id", chunk.ID).Msg("Failed to cache audio location")
	}
	if err := o.docs.SetChunkAudio(ctx, chunk.ID, key); err != nil {
		log.Warn().Err(err).Str("chunk_id", chunk.ID).Msg("Failed to record audio key")
	}

	log.Info().
		Str("chunk_id", chunk.ID).
		Str("provider", providerName).
		Str("key", key).
		Int("bytes", len(audio)).
		Msg("Chunk audio generated")
	return key, nil
}

func (o *Orchestrator) recordError(ctx context.Context, chunkID string, genErr error) {
	if err := o.docs.SetChunkError(ctx, chunkID, genErr.Error()); err != nil {
		log.Warn().Err(err).Str("chunk_id", chunkID).Msg("Failed to record generation error")
	}
}

// releaseClaim clears the in-flight marker with a fresh context so release
// is not lost to the generation deadline.
func (o *Orchestrator) releaseClaim(chunkID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.cache.ClearInFlight(ctx, chunkID); err != nil {
		log.Warn().Err(err).Str("chunk_id", chunkID).Msg("Failed to release in-flight claim")
	}
}

// prefetch warms the chunks that follow the requested one, so sequential
// readers rarely wait. Best effort: failures only log.
func (o *Orchestrator) prefetch(after *docstore.Chunk) {
	window := o.opts.PrefetchWindow
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.opts.GenerationTimeout)
		defer cancel()

		next, err := o.docs.ChunksAfter(ctx, after.DocumentID, after.Index, window)
		if err != nil {
			log.Warn().Err(err).Str("document_id", after.DocumentID).Msg("Prefetch lookup failed")
			return
		}

		// Chunks already queued in this document's window are not
		// re-dispatched; every overlapping request would otherwise race
		// the claim for the same targets.
		queued, err := o.cache.GetBufferQueue(ctx, after.DocumentID)
		if err != nil {
			log.Warn().Err(err).Str("document_id", after.DocumentID).Msg("Buffer queue lookup failed")
			queued = nil
		}
		pending := make(map[string]bool, len(queued))
		for _, id := range queued {
			pending[id] = true
		}

		started := 0
		for i := range next {
			chunk := next[i]
			if pending[chunk.ID] {
				continue
			}
			if ok, err := o.startIfNeeded(ctx, &chunk); err != nil {
				log.Warn().Err(err).Str("chunk_id", chunk.ID).Msg("Prefetch skipped")
			} else if ok {
				queued = append(queued, chunk.ID)
				started++
			}
		}
		if started == 0 {
			return
		}
		if err := o.cache.SetBufferQueue(ctx, after.DocumentID, queued); err != nil {
			log.Warn().Err(err).Str("document_id", after.DocumentID).Msg("Failed to record buffer queue")
		}
		log.Debug().
			Str("document_id", after.DocumentID).
			Strs("chunk_ids", queued).
			Msg("Prefetch dispatched")
	}()
}

// startIfNeeded claims and generates a chunk unless audio already exists or
// another worker holds the claim. It reports whether generation was started.
func (o *Orchestrator) startIfNeeded(ctx context.Context, chunk *docstore.Chunk) (bool, error) {
	if _, ok, err := o.cachedAudio(ctx, chunk); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}

	claimed, err := o.cache.TrySetInFlight(ctx, chunk.ID)
	if err != nil || !claimed {
		return false, err
	}

	go o.runGeneration(chunk)
	return true, nil
}
