// Package sqlite provides the embedded vector store. Chunks live in a
// single SQLite database with one logical collection per project;
// embeddings are stored as little-endian float32 blobs and similarity
// search is an exact cosine scan over the collection. No external
// service is required, mirroring the local-first default of the managed
// alternative.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name        TEXT PRIMARY KEY,
	dimensions  INTEGER NOT NULL,
	model       TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id            TEXT PRIMARY KEY,
	collection    TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
	document_name TEXT NOT NULL,
	position      INTEGER NOT NULL,
	content       TEXT NOT NULL,
	embedding     BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(collection, document_name);
`

// Store is a SQLite-backed vector store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the vector database under dataDir.
// If dataDir is empty, defaults to ~/.docquery/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".docquery", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "vectors.db")

	// WAL mode for better concurrency between uploads and queries
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// EnsureCollection creates the collection row if missing. A collection
// is pinned to the embedding model that first populated it; re-ensuring
// with a different model fails rather than mixing vector geometries.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimensions int, model string) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: invalid dimensions %d", domain.ErrVectorStore, dimensions)
	}

	var existing string
	err := s.db.QueryRowContext(ctx,
		"SELECT model FROM collections WHERE name = ?", name).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO collections (name, dimensions, model, created_at) VALUES (?, ?, ?, ?)",
			name, dimensions, model, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("%w: creating collection %s: %v", domain.ErrVectorStore, name, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("%w: reading collection %s: %v", domain.ErrVectorStore, name, err)
	}

	if model != "" && existing != "" && existing != model {
		return fmt.Errorf("%w: collection %s was built with model %s, refusing %s",
			domain.ErrVectorStore, name, existing, model)
	}
	return nil
}

// Upsert inserts chunks in one transaction.
func (s *Store) Upsert(ctx context.Context, name string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin upsert: %v", domain.ErrVectorStore, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, collection, document_name, position, content, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare upsert: %v", domain.ErrVectorStore, err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		blob := float32SliceToBytes(chunk.Embedding)
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, name, chunk.DocumentName, chunk.Index, chunk.Text, blob); err != nil {
			return fmt.Errorf("%w: upsert chunk %s: %v", domain.ErrVectorStore, chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit upsert: %v", domain.ErrVectorStore, err)
	}
	return nil
}

// Search scans the collection and returns the k nearest chunks by
// cosine similarity.
func (s *Store) Search(ctx context.Context, name string, vector []float32, k int) ([]driven.VectorHit, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document_name, position, content, embedding FROM chunks WHERE collection = ?", name)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %v", domain.ErrVectorStore, name, err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var chunk domain.Chunk
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentName, &chunk.Index, &chunk.Text, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %v", domain.ErrVectorStore, err)
		}
		embedding := bytesToFloat32Slice(blob)
		hits = append(hits, driven.VectorHit{
			Chunk: chunk,
			Score: cosine(vector, embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate chunks: %v", domain.ErrVectorStore, err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteDocument removes all chunks of one document.
func (s *Store) DeleteDocument(ctx context.Context, name, documentName string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE collection = ? AND document_name = ?", name, documentName)
	if err != nil {
		return 0, fmt.Errorf("%w: delete document %s: %v", domain.ErrVectorStore, documentName, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", domain.ErrVectorStore, err)
	}
	return int(removed), nil
}

// Count returns the number of chunks in the collection.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE collection = ?", name).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", domain.ErrVectorStore, name, err)
	}
	return count, nil
}

// DropCollection removes the collection and, via the foreign key
// cascade, all its chunks.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name); err != nil {
		return fmt.Errorf("%w: drop collection %s: %v", domain.ErrVectorStore, name, err)
	}
	return nil
}

// float32SliceToBytes converts a []float32 to a little-endian byte slice
// for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a stored byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// cosine computes cosine similarity between two vectors.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
