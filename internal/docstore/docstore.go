// Package docstore persists Document and Chunk records in SQLite.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a document or chunk does not exist.
var ErrNotFound = errors.New("record not found")

// DocumentStatus is the processing lifecycle of an uploaded document.
type DocumentStatus string

const (
	DocumentUploaded   DocumentStatus = "uploaded"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentError      DocumentStatus = "error"
)

// AudioState is the audio generation lifecycle of a chunk.
type AudioState string

const (
	AudioPending   AudioState = "pending"
	AudioCompleted AudioState = "completed"
	AudioError     AudioState = "error"
)

// Document is an uploaded PDF and the parent of its chunks.
type Document struct {
	ID          string
	Filename    string
	FileKey     string
	ContentType string
	FileSize    int64
	Status      DocumentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk is one bounded span of a document's extracted text, the unit of audio
// generation. Text is immutable once created; indices are dense per document.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	AudioState AudioState
	AudioKey   string
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store wraps the SQLite-backed record store.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Open initializes the store at path, creating the schema if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    file_key TEXT NOT NULL,
    content_type TEXT NOT NULL,
    file_size INTEGER NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    text TEXT NOT NULL,
    audio_state TEXT NOT NULL,
    audio_key TEXT NOT NULL DEFAULT '',
    last_error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    FOREIGN KEY(document_id) REFERENCES documents(id) ON DELETE CASCADE,
    UNIQUE(document_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_document_index ON chunks(document_id, chunk_index);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateDocument inserts a new document record and returns it.
func (s *Store) CreateDocument(ctx context.Context, filename, fileKey, contentType string, fileSize int64) (*Document, error) {
	now := s.clock().UTC()
	doc := &Document{
		ID:          uuid.NewString(),
		Filename:    filename,
		FileKey:     fileKey,
		ContentType: contentType,
		FileSize:    fileSize,
		Status:      DocumentUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(id, filename, file_key, content_type, file_size, status, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.FileKey, doc.ContentType, doc.FileSize, doc.Status, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// GetDocument returns a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, file_key, content_type, file_size, status, created_at, updated_at
		 FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, file_key, content_type, file_size, status, created_at, updated_at
		 FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus sets a document's processing status.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, status DocumentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		status, s.clock().UTC(), id)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document; chunks cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceChunks deletes any existing chunks for the document and inserts the
// given texts with dense zero-based indices, in one transaction.
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, texts []string) ([]Chunk, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return nil, fmt.Errorf("delete existing chunks: %w", err)
	}

	now := s.clock().UTC()
	chunks := make([]Chunk, 0, len(texts))
	for i, text := range texts {
		c := Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Index:      i,
			Text:       text,
			AudioState: AudioPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks(id, document_id, chunk_index, text, audio_state, created_at, updated_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.DocumentID, c.Index, c.Text, c.AudioState, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert chunk %d: %w", i, err)
		}
		chunks = append(chunks, c)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// GetChunk returns a chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, chunk_index, text, audio_state, audio_key, last_error, created_at, updated_at
		 FROM chunks WHERE id = ?`, id)
	return scanChunk(row)
}

// ListChunks returns a document's chunks ordered by index.
func (s *Store) ListChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, chunk_index, text, audio_state, audio_key, last_error, created_at, updated_at
		 FROM chunks WHERE document_id = ? ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChunks(rows)
}

// ChunksAfter returns up to limit chunks of a document with index strictly
// greater than after, ordered by index. Used to pick prefetch targets.
func (s *Store) ChunksAfter(ctx context.Context, documentID string, after, limit int) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, chunk_index, text, audio_state, audio_key, last_error, created_at, updated_at
		 FROM chunks WHERE document_id = ? AND chunk_index > ? ORDER BY chunk_index ASC LIMIT ?`,
		documentID, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChunks(rows)
}

// SetChunkAudio records a completed generation: state, audio key, cleared error.
func (s *Store) SetChunkAudio(ctx context.Context, id, audioKey string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET audio_state = ?, audio_key = ?, last_error = '', updated_at = ? WHERE id = ?`,
		AudioCompleted, audioKey, s.clock().UTC(), id)
	if err != nil {
		return fmt.Errorf("set chunk audio: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetChunkError records a failed generation attempt.
func (s *Store) SetChunkError(ctx context.Context, id, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET audio_state = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		AudioError, message, s.clock().UTC(), id)
	if err != nil {
		return fmt.Errorf("set chunk error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Filename, &d.FileKey, &d.ContentType, &d.FileSize, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	err := row.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &c.AudioState, &c.AudioKey, &c.LastError, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func collectChunks(rows *sql.Rows) ([]Chunk, error) {
	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	return chunks, rows.Err()
}
