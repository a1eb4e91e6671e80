// Package memory provides an in-process vector store used by tests and
// single-shot development runs. Search is an exact cosine scan.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

type collection struct {
	dimensions int
	model      string
	chunks     []domain.Chunk
}

// Store is a map-backed vector store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewStore creates an empty in-memory vector store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// EnsureCollection creates the collection if missing and pins its
// embedding model.
func (s *Store) EnsureCollection(_ context.Context, name string, dimensions int, model string) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: invalid dimensions %d", domain.ErrVectorStore, dimensions)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[name]; ok {
		if model != "" && col.model != "" && col.model != model {
			return fmt.Errorf("%w: collection %s was built with model %s, refusing %s",
				domain.ErrVectorStore, name, col.model, model)
		}
		return nil
	}
	s.collections[name] = &collection{dimensions: dimensions, model: model}
	return nil
}

// Upsert inserts chunks into the collection.
func (s *Store) Upsert(_ context.Context, name string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("%w: collection %s does not exist", domain.ErrVectorStore, name)
	}
	for _, chunk := range chunks {
		if len(chunk.Embedding) != col.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, collection %s expects %d",
				domain.ErrVectorStore, chunk.ID, len(chunk.Embedding), name, col.dimensions)
		}
	}
	col.chunks = append(col.chunks, chunks...)
	return nil
}

// Search returns the k nearest chunks by cosine similarity.
func (s *Store) Search(_ context.Context, name string, vector []float32, k int) ([]driven.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s does not exist", domain.ErrVectorStore, name)
	}

	hits := make([]driven.VectorHit, 0, len(col.chunks))
	for _, chunk := range col.chunks {
		hit := driven.VectorHit{Chunk: chunk, Score: cosine(vector, chunk.Embedding)}
		hit.Chunk.Embedding = nil
		hits = append(hits, hit)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteDocument removes all chunks of one document.
func (s *Store) DeleteDocument(_ context.Context, name, documentName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return 0, fmt.Errorf("%w: collection %s does not exist", domain.ErrVectorStore, name)
	}

	kept := col.chunks[:0]
	removed := 0
	for _, chunk := range col.chunks {
		if chunk.DocumentName == documentName {
			removed++
			continue
		}
		kept = append(kept, chunk)
	}
	col.chunks = kept
	return removed, nil
}

// Count returns the number of chunks in the collection.
func (s *Store) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return 0, nil
	}
	return len(col.chunks), nil
}

// DropCollection removes the collection entirely.
func (s *Store) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// cosine computes cosine similarity between two vectors.
// Mismatched or zero vectors score 0.
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
