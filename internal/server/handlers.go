package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voxleaf/voxleaf/internal/docstore"
	"github.com/voxleaf/voxleaf/internal/pdfx"
	"github.com/voxleaf/voxleaf/internal/tts"
)

type documentResponse struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	FileKey     string    `json:"file_key"`
	ContentType string    `json:"content_type"`
	FileSize    int64     `json:"file_size"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type chunkResponse struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	AudioState string `json:"audio_state"`
	AudioKey   string `json:"audio_key,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

func toDocumentResponse(d *docstore.Document) documentResponse {
	return documentResponse{
		ID:          d.ID,
		Filename:    d.Filename,
		FileKey:     d.FileKey,
		ContentType: d.ContentType,
		FileSize:    d.FileSize,
		Status:      string(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func toChunkResponse(c *docstore.Chunk) chunkResponse {
	return chunkResponse{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		Index:      c.Index,
		Text:       c.Text,
		AudioState: string(c.AudioState),
		AudioKey:   c.AudioKey,
		LastError:  c.LastError,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", s.opts.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF files are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", s.opts.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	key := "pdfs/" + uuid.NewString() + "-" + filepath.Base(header.Filename)
	if err := s.objects.Put(r.Context(), key, data, "application/pdf"); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to store uploaded PDF")
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	doc, err := s.docs.CreateDocument(r.Context(), header.Filename, key, "application/pdf", int64(len(data)))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create document record")
		writeError(w, http.StatusInternalServerError, "failed to create document")
		return
	}

	log.Info().Str("document_id", doc.ID).Str("key", key).Int("bytes", len(data)).Msg("PDF uploaded")
	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.docs.ListDocuments(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list documents")
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, toDocumentResponse(&docs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.GetDocument(r.Context(), r.PathValue("id"))
	if errors.Is(err, docstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// handleProcess extracts the document's text and replaces its chunk set.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := s.docs.GetDocument(ctx, r.PathValue("id"))
	if errors.Is(err, docstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}

	// Reprocessing a completed document would drop its chunks and orphan
	// their audio; a concurrent run would race on the chunk set.
	if doc.Status != docstore.DocumentUploaded && doc.Status != docstore.DocumentError {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("document cannot be processed in status %q", doc.Status))
		return
	}

	if err := s.docs.UpdateDocumentStatus(ctx, doc.ID, docstore.DocumentProcessing); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update document")
		return
	}

	chunks, err := s.processDocument(ctx, doc)
	if err != nil {
		log.Error().Err(err).Str("document_id", doc.ID).Msg("Document processing failed")
		if serr := s.docs.UpdateDocumentStatus(ctx, doc.ID, docstore.DocumentError); serr != nil {
			log.Warn().Err(serr).Str("document_id", doc.ID).Msg("Failed to record processing error")
		}
		writeError(w, http.StatusUnprocessableEntity, "failed to process document")
		return
	}

	if err := s.docs.UpdateDocumentStatus(ctx, doc.ID, docstore.DocumentCompleted); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update document")
		return
	}

	log.Info().Str("document_id", doc.ID).Int("chunks", len(chunks)).Msg("Document processed")
	out := make([]chunkResponse, 0, len(chunks))
	for i := range chunks {
		out = append(out, toChunkResponse(&chunks[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": doc.ID,
		"chunk_count": len(chunks),
		"chunks":      out,
	})
}

func (s *Server) processDocument(ctx context.Context, doc *docstore.Document) ([]docstore.Chunk, error) {
	data, err := s.objects.Get(ctx, doc.FileKey)
	if err != nil {
		return nil, fmt.Errorf("fetch pdf: %w", err)
	}

	tmp, err := os.CreateTemp("", "voxleaf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	text, err := s.extractor.Extract(ctx, tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	texts := pdfx.ChunkText(text, s.opts.MaxChunkWords)
	if len(texts) == 0 {
		return nil, errors.New("document produced no readable chunks")
	}
	return s.docs.ReplaceChunks(ctx, doc.ID, texts)
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	if _, err := s.docs.GetDocument(r.Context(), docID); errors.Is(err, docstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}

	chunks, err := s.docs.ListChunks(r.Context(), docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list chunks")
		return
	}
	out := make([]chunkResponse, 0, len(chunks))
	for i := range chunks {
		out = append(out, toChunkResponse(&chunks[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type generateRequest struct {
	ChunkID string `json:"chunk_id"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChunkID == "" {
		writeError(w, http.StatusBadRequest, "chunk_id is required")
		return
	}

	res, err := s.orch.RequestGeneration(r.Context(), req.ChunkID)
	if errors.Is(err, docstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chunk not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("chunk_id", req.ChunkID).Msg("Generation request failed")
		writeError(w, http.StatusInternalServerError, "failed to request generation")
		return
	}

	switch res.State {
	case tts.StateCached:
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "cached",
			"audio_key": res.AudioKey,
			"audio_url": res.AudioURL,
		})
	case tts.StateInProgress:
		writeJSON(w, http.StatusConflict, map[string]string{
			"status": "in_progress",
			"detail": "TTS generation already in progress for this chunk",
		})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "started",
			"detail": "TTS generation started, poll the status endpoint",
		})
	}
}

func (s *Server) handleGenerateStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.orch.GenerateStatus(r.Context(), r.PathValue("chunk_id"))
	if errors.Is(err, docstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chunk not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load status")
		return
	}

	payload := map[string]string{"status": string(status.State)}
	if status.AudioURL != "" {
		payload["audio_url"] = status.AudioURL
	}
	if status.Error != "" {
		payload["error"] = status.Error
	}
	writeJSON(w, http.StatusOK, payload)
}

type batchRequest struct {
	ChunkIDs   []string `json:"chunk_ids"`
	DocumentID string   `json:"document_id"`
}

func (s *Server) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ids := req.ChunkIDs
	if len(ids) == 0 && req.DocumentID != "" {
		chunks, err := s.docs.ListChunks(r.Context(), req.DocumentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list chunks")
			return
		}
		for _, c := range chunks {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "chunk_ids or document_id is required")
		return
	}

	// Fire and forget: the batch outlives this request, clients poll the
	// per-chunk status endpoint for progress.
	s.orch.StartBatch(ids, s.opts.Batch)
	log.Info().Int("chunks", len(ids)).Msg("Batch generation queued")
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(ids)})
}

type voiceResponse struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	var out []voiceResponse
	for _, p := range s.chain.Providers() {
		if !p.IsAvailable(r.Context()) {
			continue
		}
		voices, err := p.ListVoices(r.Context())
		if err != nil {
			log.Warn().Err(err).Str("provider", p.Name()).Msg("Failed to list voices")
			continue
		}
		for _, v := range voices {
			out = append(out, voiceResponse{
				Provider: p.Name(),
				ID:       v.ID,
				Name:     v.Name,
				Language: v.Language,
				Gender:   v.Gender,
			})
		}
	}
	if out == nil {
		out = []voiceResponse{}
	}
	writeJSON(w, http.StatusOK, out)
}
