package tts

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultBatchWidth is how many chunks are generated concurrently per group.
const DefaultBatchWidth = 3

// DefaultBatchPause is the delay between groups, to spread provider load.
const DefaultBatchPause = time.Second

// BatchOptions tunes batch scheduling.
type BatchOptions struct {
	Width int
	Pause time.Duration
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Requested int
	Generated int
	Cached    int
	Skipped   int
	Failed    int
}

// GenerateBatch generates audio for the chunks in order, in groups of
// opts.Width. Group members run concurrently; the next group starts only
// after the whole group finishes and the pacing interval elapses. A failing
// member is counted and skipped over, not fatal to the batch. Chunks with
// verified audio count as cached without touching a provider; chunks claimed
// by another worker are skipped.
func (o *Orchestrator) GenerateBatch(ctx context.Context, chunkIDs []string, opts BatchOptions) (*BatchResult, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultBatchWidth
	}
	if opts.Pause <= 0 {
		opts.Pause = DefaultBatchPause
	}

	result := &BatchResult{Requested: len(chunkIDs)}
	limiter := rate.NewLimiter(rate.Every(opts.Pause), 1)

	var mu sync.Mutex
	for start := 0; start < len(chunkIDs); start += opts.Width {
		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}

		end := start + opts.Width
		if end > len(chunkIDs) {
			end = len(chunkIDs)
		}
		group := chunkIDs[start:end]

		var wg sync.WaitGroup
		for _, id := range group {
			wg.Add(1)
			go func(chunkID string) {
				defer wg.Done()
				outcome := o.batchOne(ctx, chunkID)
				mu.Lock()
				switch outcome {
				case batchGenerated:
					result.Generated++
				case batchCached:
					result.Cached++
				case batchSkipped:
					result.Skipped++
				default:
					result.Failed++
				}
				mu.Unlock()
			}(id)
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	log.Info().
		Int("requested", result.Requested).
		Int("generated", result.Generated).
		Int("cached", result.Cached).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Batch generation finished")
	return result, nil
}

// StartBatch runs GenerateBatch in the background, detached from the
// caller's context, so the HTTP request that queued the batch can return
// immediately and a client disconnect does not abort the run. The run is
// bounded by one generation timeout plus pacing per group.
func (o *Orchestrator) StartBatch(chunkIDs []string, opts BatchOptions) {
	ids := append([]string(nil), chunkIDs...)
	width := opts.Width
	if width <= 0 {
		width = DefaultBatchWidth
	}
	pause := opts.Pause
	if pause <= 0 {
		pause = DefaultBatchPause
	}
	groups := (len(ids) + width - 1) / width
	budget := time.Duration(groups) * (o.opts.GenerationTimeout + pause)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), budget)
		defer cancel()
		if _, err := o.GenerateBatch(ctx, ids, opts); err != nil {
			log.Error().Err(err).Int("chunks", len(ids)).Msg("Background batch generation aborted")
		}
	}()
}

type batchOutcome int

const (
	batchFailed batchOutcome = iota
	batchGenerated
	batchCached
	batchSkipped
)

func (o *Orchestrator) batchOne(ctx context.Context, chunkID string) batchOutcome {
	chunk, err := o.docs.GetChunk(ctx, chunkID)
	if err != nil {
		log.Warn().Err(err).Str("chunk_id", chunkID).Msg("Batch member lookup failed")
		return batchFailed
	}

	if _, ok, err := o.cachedAudio(ctx, chunk); err != nil {
		log.Warn().Err(err).Str("chunk_id", chunkID).Msg("Batch member cache check failed")
		return batchFailed
	} else if ok {
		return batchCached
	}

	claimed, err := o.cache.TrySetInFlight(ctx, chunk.ID)
	if err != nil {
		log.Warn().Err(err).Str("chunk_id", chunkID).Msg("Batch member claim failed")
		return batchFailed
	}
	if !claimed {
		return batchSkipped
	}

	if err := o.generateClaimed(ctx, chunk); err != nil {
		return batchFailed
	}
	return batchGenerated
}
