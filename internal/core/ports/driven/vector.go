package driven

import (
	"context"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// VectorStore persists embedded chunks in per-project collections and
// supports cosine similarity search. Collections are isolated: chunks are
// never shared across projects.
//
// Implementations:
//   - sqlite: embedded store, no external service required
//   - qdrant: remote Qdrant server over REST
//   - memory: in-process store for tests
type VectorStore interface {
	// EnsureCollection creates the collection if missing and records the
	// embedding model that owns its geometry. Re-ensuring with a
	// different model fails with domain.ErrVectorStore rather than
	// letting incompatible vectors coexist.
	EnsureCollection(ctx context.Context, collection string, dimensions int, model string) error

	// Upsert inserts chunks with their embeddings into the collection.
	Upsert(ctx context.Context, collection string, chunks []domain.Chunk) error

	// Search returns the k nearest chunks to the query vector, highest
	// similarity first.
	Search(ctx context.Context, collection string, vector []float32, k int) ([]VectorHit, error)

	// DeleteDocument removes all chunks of one document from the
	// collection and returns how many were removed.
	DeleteDocument(ctx context.Context, collection, documentName string) (int, error)

	// Count returns the number of chunks in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// DropCollection removes the collection and all its chunks.
	DropCollection(ctx context.Context, collection string) error
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// Chunk is the matched chunk, embedding omitted.
	Chunk domain.Chunk

	// Score is the cosine similarity (higher is closer).
	Score float64
}
