// Package chunker splits extracted document text into overlapping,
// order-preserving chunks for embedding and retrieval.
package chunker

import (
	"github.com/google/uuid"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 2000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Chunker splits text into fixed-size chunks with overlap.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave forward progress per step
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Split chunks the text of one document. Chunks preserve original order
// and each is tagged with the document name and its ordinal index.
// Empty text produces no chunks.
func (c *Chunker) Split(documentName, text string) []domain.Chunk {
	if text == "" {
		return nil
	}

	// Sizes count runes, not bytes, so a chunk boundary can never
	// split a multi-byte character.
	runes := []rune(text)
	total := len(runes)
	step := c.chunkSize - c.overlap
	chunks := make([]domain.Chunk, 0, total/step+1)

	index := 0
	for start := 0; start < total; start += step {
		end := start + c.chunkSize
		if end > total {
			end = total
		}

		chunks = append(chunks, domain.Chunk{
			ID:           uuid.New().String(),
			DocumentName: documentName,
			Index:        index,
			Text:         string(runes[start:end]),
		})
		index++

		if end == total {
			break
		}
	}

	return chunks
}
