package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/voxleaf/voxleaf/internal/cache"
	"github.com/voxleaf/voxleaf/internal/config"
	"github.com/voxleaf/voxleaf/internal/docstore"
	"github.com/voxleaf/voxleaf/internal/pdfx"
	"github.com/voxleaf/voxleaf/internal/provider"
	"github.com/voxleaf/voxleaf/internal/server"
	"github.com/voxleaf/voxleaf/internal/storage"
	"github.com/voxleaf/voxleaf/internal/tts"
)

func handleServe(ctx context.Context, c *cli.Command) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	applyLogLevel(c, cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, err := docstore.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer docs.Close()

	cacheStore, err := buildCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer cacheStore.Close()

	objects, err := buildStorage(ctx, cfg)
	if err != nil {
		return err
	}

	chain, err := buildChain(ctx, cfg)
	if err != nil {
		return err
	}

	orch := tts.NewOrchestrator(chain, cacheStore, objects, docs, tts.Options{
		Synthesize:     synthesizeOptions(cfg),
		PrefetchWindow: cfg.TTS.PrefetchWindow,
	})

	srv := server.New(docs, objects, orch, chain, pdfx.NewCommandExtractor(cfg.PDF.ExtractCommand), server.Options{
		MaxUploadBytes: int64(cfg.PDF.MaxUploadMB) << 20,
		MaxChunkWords:  cfg.PDF.MaxWords,
		Batch: tts.BatchOptions{
			Width: cfg.TTS.BatchWidth,
			Pause: millis(cfg.TTS.BatchPauseMS),
		},
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Bind, cfg.Server.Port)
	return srv.Run(ctx, addr)
}

func buildCache(ctx context.Context, cfg config.Config) (cache.Store, error) {
	if !cfg.Redis.Enabled {
		log.Info().Msg("Using in-process cache (redis disabled)")
		return cache.NewMemoryStore(), nil
	}
	store, err := cache.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to redis")
	return store, nil
}

func buildStorage(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	if cfg.Storage.Bucket == "" {
		log.Info().Msg("Using in-memory object storage (no bucket configured)")
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.NewS3Store(ctx, storage.S3Options{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("configure object storage: %w", err)
	}
	log.Info().Str("bucket", cfg.Storage.Bucket).Msg("Object storage ready")
	return store, nil
}

func buildChain(ctx context.Context, cfg config.Config) (*provider.Chain, error) {
	chain, err := provider.NewChainFromSettings(ctx, cfg.TTS.Providers, cfg.TTS.Placeholder)
	if err != nil {
		return nil, err
	}
	if cfg.TTS.CallTimeoutMS > 0 {
		chain = chain.WithCallTimeout(millis(cfg.TTS.CallTimeoutMS))
	}
	return chain, nil
}

// applyLogLevel honors the configured log level; --verbose still forces debug.
func applyLogLevel(c *cli.Command, cfg config.Config) {
	if c.Bool("verbose") {
		return
	}
	zerolog.SetGlobalLevel(cfg.Level())
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func synthesizeOptions(cfg config.Config) provider.SynthesizeOptions {
	return provider.SynthesizeOptions{
		Voice:  cfg.TTS.Voice,
		Model:  cfg.TTS.Model,
		Speed:  cfg.TTS.Speed,
		Format: cfg.TTS.Format,
	}
}
