// Package local implements the retrieval backend that owns the full
// ingestion pipeline on this machine: extraction, chunking, embedding
// and vector storage. Queries embed the question, rank stored chunks
// and ground the answer with a local generation model.
package local

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/docquery/internal/chunker"
	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/extractors"
	"github.com/custodia-labs/docquery/internal/logger"
)

// Ensure Backend implements the interface.
var _ driven.Backend = (*Backend)(nil)

// upsertBatchSize bounds how many chunks go to the vector store per
// write, so one oversized document cannot produce an unbounded request.
const upsertBatchSize = 64

// defaultSystemPrompt is used when the project has no prompt of its own.
const defaultSystemPrompt = "You are a careful assistant. Answer the question using only the provided context. If the context does not contain the answer, say you do not know."

// Backend indexes and queries documents entirely on this machine.
type Backend struct {
	extractors *extractors.Registry
	chunker    *chunker.Chunker
	embedder   driven.EmbeddingService
	store      driven.VectorStore
	llm        driven.LLMService

	now func() time.Time

	// locks serializes writes per project. Reads do not take the lock;
	// the vector store is safe for concurrent use.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option configures the backend.
type Option func(*Backend)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBackend creates a local backend over the given pipeline components.
func NewBackend(
	reg *extractors.Registry,
	ch *chunker.Chunker,
	embedder driven.EmbeddingService,
	store driven.VectorStore,
	llm driven.LLMService,
	opts ...Option,
) *Backend {
	b := &Backend{
		extractors: reg,
		chunker:    ch,
		embedder:   embedder,
		store:      store,
		llm:        llm,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kind identifies which projects this backend serves.
func (b *Backend) Kind() domain.BackendKind {
	return domain.BackendLocal
}

// CreateStore derives a project ID from the display name and creation
// time and provisions its vector collection, pinned to the configured
// embedding model.
func (b *Backend) CreateStore(ctx context.Context, displayName string) (string, error) {
	id := domain.LocalProjectID(displayName, b.now().UTC())
	collection := domain.CollectionName(id)
	if err := b.store.EnsureCollection(ctx, collection, b.embedder.Dimensions(), b.embedder.ModelName()); err != nil {
		return "", err
	}
	logger.Debug("Created local store %s (collection %s)", id, collection)
	return id, nil
}

// Upload runs the full ingestion pipeline: extract, chunk, embed,
// upsert. The document is indexed atomically: if any step fails after
// chunks have been written, the written chunks are removed before the
// error is returned, so a failed upload leaves no trace in the store.
func (b *Backend) Upload(ctx context.Context, project domain.Project, name string, content []byte) (domain.DocumentSummary, error) {
	unlock := b.lockProject(project.ID)
	defer unlock()

	text, err := b.extractors.Extract(ctx, name, content)
	if err != nil {
		return domain.DocumentSummary{}, err
	}
	if strings.TrimSpace(text) == "" {
		return domain.DocumentSummary{}, fmt.Errorf("%w: %s contains no extractable text", domain.ErrExtraction, name)
	}

	chunks := b.chunker.Split(name, text)
	logger.Debug("Split %s into %d chunks", name, len(chunks))

	embeddings, err := b.embedder.EmbedBatch(ctx, chunkTexts(chunks))
	if err != nil {
		// Nothing has been written yet; the embedding error carries its
		// own domain classification.
		return domain.DocumentSummary{}, err
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	collection := domain.CollectionName(project.ID)
	if err := b.store.EnsureCollection(ctx, collection, b.embedder.Dimensions(), b.embedder.ModelName()); err != nil {
		return domain.DocumentSummary{}, err
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := b.store.Upsert(ctx, collection, chunks[start:end]); err != nil {
			b.rollback(collection, name)
			return domain.DocumentSummary{}, fmt.Errorf("%w: indexing %s failed after %d chunks: %v",
				domain.ErrIndexing, name, start, err)
		}
	}

	return domain.DocumentSummary{
		Name:       name,
		IndexedAt:  b.now().UTC(),
		ChunkCount: len(chunks),
	}, nil
}

// DeleteDocument removes the document's chunks from the project's
// collection.
func (b *Backend) DeleteDocument(ctx context.Context, project domain.Project, name string) error {
	unlock := b.lockProject(project.ID)
	defer unlock()

	removed, err := b.store.DeleteDocument(ctx, domain.CollectionName(project.ID), name)
	if err != nil {
		return err
	}
	logger.Debug("Removed %d chunks for %s", removed, name)
	return nil
}

// Query embeds the question, retrieves the top-k chunks and generates
// an answer grounded in them. Passages come back ranked by score, ties
// broken by document indexing order then chunk position.
func (b *Backend) Query(ctx context.Context, project domain.Project, question string, topK int) (string, []domain.Passage, error) {
	vector, err := b.embedder.Embed(ctx, question)
	if err != nil {
		return "", nil, err
	}

	hits, err := b.store.Search(ctx, domain.CollectionName(project.ID), vector, topK)
	if err != nil {
		return "", nil, err
	}

	passages := rankPassages(project, hits)
	if len(passages) == 0 {
		return "", nil, fmt.Errorf("%w: no indexed content matched", domain.ErrEmptyCorpus)
	}

	answer, err := b.llm.Generate(ctx, buildPrompt(project, question, passages), driven.GenerateOptions{})
	if err != nil {
		return "", nil, err
	}
	return answer, passages, nil
}

// DeleteStore drops the project's vector collection.
func (b *Backend) DeleteStore(ctx context.Context, project domain.Project) error {
	unlock := b.lockProject(project.ID)
	defer unlock()

	return b.store.DropCollection(ctx, domain.CollectionName(project.ID))
}

// lockProject takes the per-project write lock and returns its release.
func (b *Backend) lockProject(projectID string) func() {
	b.locksMu.Lock()
	mu, ok := b.locks[projectID]
	if !ok {
		mu = &sync.Mutex{}
		b.locks[projectID] = mu
	}
	b.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// rollback removes whatever chunks a failed upload managed to write.
// Best effort: the store may be the thing that just failed.
func (b *Backend) rollback(collection, documentName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := b.store.DeleteDocument(ctx, collection, documentName)
	if err != nil {
		logger.Warn("Rollback of %s failed, %v", documentName, err)
		return
	}
	logger.Debug("Rolled back %d partial chunks for %s", removed, documentName)
}

// rankPassages orders hits by score descending. Equal scores fall back
// to the project's document indexing order, then chunk position, so
// results are deterministic.
func rankPassages(project domain.Project, hits []driven.VectorHit) []domain.Passage {
	docOrder := make(map[string]int, len(project.Documents))
	for i, name := range project.DocumentNames() {
		docOrder[name] = i
	}

	sorted := make([]driven.VectorHit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		oi, oj := docOrder[sorted[i].Chunk.DocumentName], docOrder[sorted[j].Chunk.DocumentName]
		if oi != oj {
			return oi < oj
		}
		return sorted[i].Chunk.Index < sorted[j].Chunk.Index
	})

	passages := make([]domain.Passage, len(sorted))
	for i, hit := range sorted {
		passages[i] = domain.Passage{
			DocumentName: hit.Chunk.DocumentName,
			ChunkIndex:   hit.Chunk.Index,
			Text:         hit.Chunk.Text,
			Score:        hit.Score,
		}
	}
	return passages
}

// buildPrompt assembles the grounding prompt from the project's system
// prompt, the retrieved passages and the question.
func buildPrompt(project domain.Project, question string, passages []domain.Passage) string {
	systemPrompt := project.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\nContext:\n")
	for _, passage := range passages {
		fmt.Fprintf(&sb, "[%s] %s\n\n", passage.DocumentName, passage.Text)
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

func chunkTexts(chunks []domain.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	return texts
}
