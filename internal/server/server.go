// Package server exposes the HTTP API for uploads, document processing, and
// chunk audio generation.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxleaf/voxleaf/internal/docstore"
	"github.com/voxleaf/voxleaf/internal/pdfx"
	"github.com/voxleaf/voxleaf/internal/provider"
	"github.com/voxleaf/voxleaf/internal/storage"
	"github.com/voxleaf/voxleaf/internal/tts"
)

// Options configures request limits and batch behavior.
type Options struct {
	MaxUploadBytes int64
	MaxChunkWords  int
	Batch          tts.BatchOptions
}

// DefaultMaxUploadBytes caps PDF uploads at 50 MB.
const DefaultMaxUploadBytes = 50 << 20

// Server routes API requests to the document store, object storage, and the
// generation orchestrator.
type Server struct {
	docs      *docstore.Store
	objects   storage.ObjectStore
	orch      *tts.Orchestrator
	chain     *provider.Chain
	extractor pdfx.Extractor
	opts      Options
	ready     atomic.Bool
}

// New assembles the API server.
func New(docs *docstore.Store, objects storage.ObjectStore, orch *tts.Orchestrator, chain *provider.Chain, extractor pdfx.Extractor, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.MaxChunkWords <= 0 {
		opts.MaxChunkWords = pdfx.DefaultMaxWords
	}
	s := &Server{
		docs:      docs,
		objects:   objects,
		orch:      orch,
		chain:     chain,
		extractor: extractor,
		opts:      opts,
	}
	s.ready.Store(true)
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("GET /api/documents/{id}", s.handleGetDocument)
	mux.HandleFunc("POST /api/pdf/process/{id}", s.handleProcess)
	mux.HandleFunc("GET /api/pdf/{id}/chunks", s.handleListChunks)
	mux.HandleFunc("POST /api/tts/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/tts/status/{chunk_id}", s.handleGenerateStatus)
	mux.HandleFunc("POST /api/tts/generate-batch", s.handleGenerateBatch)
	mux.HandleFunc("GET /api/voices", s.handleListVoices)
	return mux
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
		close(errs)
	}()

	log.Info().Str("addr", addr).Msg("API server started")

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("API server stopping")
	s.ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
