package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxleaf/voxleaf/internal/cache"
	"github.com/voxleaf/voxleaf/internal/docstore"
	"github.com/voxleaf/voxleaf/internal/provider"
	"github.com/voxleaf/voxleaf/internal/storage"
	"github.com/voxleaf/voxleaf/internal/tts"
)

type fakeProvider struct {
	delay time.Duration
	fail  bool
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) ListVoices(ctx context.Context) ([]provider.Voice, error) {
	return []provider.Voice{{ID: "v1", Name: "Test Voice", Language: "en-US"}}, nil
}

func (p *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func (p *fakeProvider) Synthesize(ctx context.Context, text string, options provider.SynthesizeOptions) ([]byte, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.fail {
		return nil, &provider.BackendError{Provider: "fake", Status: 500, Body: "boom"}
	}
	return []byte("mp3:" + text), nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) Extract(ctx context.Context, pdfPath string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}

type serverEnv struct {
	srv       *Server
	handler   http.Handler
	docs      *docstore.Store
	objects   *storage.MemoryStore
	cache     *cache.MemoryStore
	prov      *fakeProvider
	extractor *fakeExtractor
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()
	ctx := context.Background()

	docs, err := docstore.Open(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	env := &serverEnv{
		docs:      docs,
		objects:   storage.NewMemoryStore(),
		cache:     cache.NewMemoryStore(),
		prov:      &fakeProvider{},
		extractor: &fakeExtractor{text: "One two three. Four five six."},
	}
	chain := provider.NewChain([]provider.Provider{env.prov}).WithCallTimeout(2 * time.Second)
	orch := tts.NewOrchestrator(chain, env.cache, env.objects, env.docs, tts.Options{
		PrefetchWindow:    2,
		GenerationTimeout: 5 * time.Second,
	})
	env.srv = New(docs, env.objects, orch, chain, env.extractor, Options{
		MaxUploadBytes: 1 << 20,
		MaxChunkWords:  3,
		Batch:          tts.BatchOptions{Width: 2, Pause: time.Millisecond},
	})
	env.handler = env.srv.Handler()
	return env
}

func (env *serverEnv) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func (env *serverEnv) doJSON(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	return env.do(t, method, path, &buf, "application/json")
}

func multipartPDF(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (env *serverEnv) uploadAndProcess(t *testing.T) (documentResponse, []chunkResponse) {
	t.Helper()
	body, ct := multipartPDF(t, "sample.pdf", []byte("%PDF-1.4 fake"))
	rec := env.do(t, http.MethodPost, "/api/upload", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)
	doc := decodeBody[documentResponse](t, rec)

	rec = env.do(t, http.MethodPost, "/api/pdf/process/"+doc.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/pdf/"+doc.ID+"/chunks", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	chunks := decodeBody[[]chunkResponse](t, rec)
	require.NotEmpty(t, chunks)
	return doc, chunks
}

func TestHealthz(t *testing.T) {
	env := newServerEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadAcceptsPDF(t *testing.T) {
	env := newServerEnv(t)
	body, ct := multipartPDF(t, "paper.pdf", []byte("%PDF-1.4 content"))

	rec := env.do(t, http.MethodPost, "/api/upload", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)

	doc := decodeBody[documentResponse](t, rec)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "paper.pdf", doc.Filename)
	assert.True(t, strings.HasPrefix(doc.FileKey, "pdfs/"))
	assert.Equal(t, "uploaded", doc.Status)

	exists, err := env.objects.Exists(context.Background(), doc.FileKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	env := newServerEnv(t)
	body, ct := multipartPDF(t, "notes.txt", []byte("plain text"))
	rec := env.do(t, http.MethodPost, "/api/upload", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsMissingFile(t *testing.T) {
	env := newServerEnv(t)
	rec := env.do(t, http.MethodPost, "/api/upload", bytes.NewBuffer([]byte("{}")), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDocumentNotFound(t *testing.T) {
	env := newServerEnv(t)
	rec := env.do(t, http.MethodGet, "/api/documents/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcessDocument(t *testing.T) {
	env := newServerEnv(t)
	doc, chunks := env.uploadAndProcess(t)

	rec := env.do(t, http.MethodGet, "/api/documents/"+doc.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[documentResponse](t, rec)
	assert.Equal(t, "completed", got.Status)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "pending", c.AudioState)
	}
}

func TestProcessDocumentExtractionFailure(t *testing.T) {
	env := newServerEnv(t)
	env.extractor.err = errors.New("corrupt pdf")

	body, ct := multipartPDF(t, "bad.pdf", []byte("%PDF-1.4 bad"))
	rec := env.do(t, http.MethodPost, "/api/upload", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)
	doc := decodeBody[documentResponse](t, rec)

	rec = env.do(t, http.MethodPost, "/api/pdf/process/"+doc.ID, nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/documents/"+doc.ID, nil, "")
	got := decodeBody[documentResponse](t, rec)
	assert.Equal(t, "error", got.Status)
}

func TestProcessRejectsCompletedDocument(t *testing.T) {
	env := newServerEnv(t)
	doc, chunks := env.uploadAndProcess(t)

	rec := env.do(t, http.MethodPost, "/api/pdf/process/"+doc.ID, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The existing chunk set survives untouched.
	rec = env.do(t, http.MethodGet, "/api/pdf/"+doc.ID+"/chunks", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[[]chunkResponse](t, rec)
	require.Len(t, got, len(chunks))
	for i := range got {
		assert.Equal(t, chunks[i].ID, got[i].ID)
	}

	rec = env.do(t, http.MethodGet, "/api/documents/"+doc.ID, nil, "")
	assert.Equal(t, "completed", decodeBody[documentResponse](t, rec).Status)
}

func TestProcessRetriesAfterError(t *testing.T) {
	env := newServerEnv(t)
	env.extractor.err = errors.New("corrupt pdf")

	body, ct := multipartPDF(t, "retry.pdf", []byte("%PDF-1.4 x"))
	rec := env.do(t, http.MethodPost, "/api/upload", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)
	doc := decodeBody[documentResponse](t, rec)

	rec = env.do(t, http.MethodPost, "/api/pdf/process/"+doc.ID, nil, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// A failed document may be processed again once the cause is fixed.
	env.extractor.err = nil
	rec = env.do(t, http.MethodPost, "/api/pdf/process/"+doc.ID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProcessUnknownDocument(t *testing.T) {
	env := newServerEnv(t)
	rec := env.do(t, http.MethodPost, "/api/pdf/process/ghost", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateLifecycle(t *testing.T) {
	env := newServerEnv(t)
	_, chunks := env.uploadAndProcess(t)
	chunkID := chunks[0].ID

	rec := env.doJSON(t, http.MethodPost, "/api/tts/generate", map[string]string{"chunk_id": chunkID})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/tts/status/"+chunkID, nil, "")
		if rec.Code != http.StatusOK {
			return false
		}
		return decodeBody[map[string]string](t, rec)["status"] == "completed"
	}, 3*time.Second, 10*time.Millisecond)

	rec = env.doJSON(t, http.MethodPost, "/api/tts/generate", map[string]string{"chunk_id": chunkID})
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "cached", payload["status"])
	assert.NotEmpty(t, payload["audio_url"])
}

func TestGenerateConflictWhileInProgress(t *testing.T) {
	env := newServerEnv(t)
	env.prov.delay = 200 * time.Millisecond
	_, chunks := env.uploadAndProcess(t)
	chunkID := chunks[0].ID

	rec := env.doJSON(t, http.MethodPost, "/api/tts/generate", map[string]string{"chunk_id": chunkID})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/tts/generate", map[string]string{"chunk_id": chunkID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGenerateValidation(t *testing.T) {
	env := newServerEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/tts/generate", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/tts/generate", map[string]string{"chunk_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusNotGenerated(t *testing.T) {
	env := newServerEnv(t)
	_, chunks := env.uploadAndProcess(t)

	rec := env.do(t, http.MethodGet, "/api/tts/status/"+chunks[1].ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_generated", decodeBody[map[string]string](t, rec)["status"])
}

func TestGenerateBatchByDocument(t *testing.T) {
	env := newServerEnv(t)
	env.prov.delay = 100 * time.Millisecond
	doc, chunks := env.uploadAndProcess(t)

	start := time.Now()
	rec := env.doJSON(t, http.MethodPost, "/api/tts/generate-batch", map[string]any{"document_id": doc.ID})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Less(t, time.Since(start), env.prov.delay, "batch request must not wait for generation")
	assert.Equal(t, len(chunks), decodeBody[map[string]int](t, rec)["accepted"])

	// The batch keeps running in the background until every chunk is done.
	for _, c := range chunks {
		chunkID := c.ID
		require.Eventually(t, func() bool {
			rec := env.do(t, http.MethodGet, "/api/tts/status/"+chunkID, nil, "")
			return rec.Code == http.StatusOK && decodeBody[map[string]string](t, rec)["status"] == "completed"
		}, 3*time.Second, 10*time.Millisecond)
	}
}

func TestGenerateBatchValidation(t *testing.T) {
	env := newServerEnv(t)
	rec := env.doJSON(t, http.MethodPost, "/api/tts/generate-batch", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListVoices(t *testing.T) {
	env := newServerEnv(t)
	rec := env.do(t, http.MethodGet, "/api/voices", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	voices := decodeBody[[]voiceResponse](t, rec)
	require.Len(t, voices, 1)
	assert.Equal(t, "fake", voices[0].Provider)
	assert.Equal(t, "Test Voice", voices[0].Name)
}
