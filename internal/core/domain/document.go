package domain

import (
	"sort"
	"time"
)

// Document is the metadata record for a successfully indexed document.
// It is written to the registry only after ingestion fully succeeds and
// is never left in a partially-indexed state.
type Document struct {
	// Name is unique within its project.
	Name string

	// IndexedAt is the timestamp of successful indexing.
	IndexedAt time.Time

	// ChunkCount is the number of chunks indexed for this document.
	// Only populated for local projects; the managed service does not
	// expose chunk counts.
	ChunkCount int
}

// DocumentSummary is the caller-facing view of a document record.
type DocumentSummary struct {
	Name       string
	IndexedAt  time.Time
	ChunkCount int
}

// Summary derives the caller-facing view.
func (d Document) Summary() DocumentSummary {
	return DocumentSummary{
		Name:       d.Name,
		IndexedAt:  d.IndexedAt,
		ChunkCount: d.ChunkCount,
	}
}

// Chunk is a bounded text span from a document, the atomic unit of
// embedding and retrieval. Chunks live in a project-scoped vector
// collection and are never shared across projects; the registry does not
// persist them.
type Chunk struct {
	// ID is the unique chunk identifier (UUID).
	ID string

	// DocumentName is the source document within the project.
	DocumentName string

	// Index is the ordinal position within the document.
	Index int

	// Text is the chunk content.
	Text string

	// Embedding is the vector representation, fixed dimensionality per
	// collection.
	Embedding []float32
}

// sortDocumentNames orders names by the project's document insertion
// order (IndexedAt ascending, name ascending on ties).
func sortDocumentNames(p Project, names []string) {
	sort.Slice(names, func(i, j int) bool {
		a, b := p.Documents[names[i]], p.Documents[names[j]]
		if !a.IndexedAt.Equal(b.IndexedAt) {
			return a.IndexedAt.Before(b.IndexedAt)
		}
		return names[i] < names[j]
	})
}
