package local

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docquery/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/docquery/internal/chunker"
	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/extractors"
	"github.com/custodia-labs/docquery/internal/extractors/plaintext"
)

// stubEmbedder returns a fixed-dimension vector for any text.
type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = embedding
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int   { return 3 }
func (s *stubEmbedder) ModelName() string { return "test-embed" }

// stubLLM records prompts and returns a canned answer.
type stubLLM struct {
	mu      sync.Mutex
	prompts []string
}

func (s *stubLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return "canned answer", nil
}

func (s *stubLLM) ModelName() string { return "test-llm" }

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// gatedEmbedder blocks batch embedding of marked content until
// released, holding one project's write lock open mid-pipeline.
type gatedEmbedder struct {
	stubEmbedder
	entered chan struct{}
	release chan struct{}
}

func (g *gatedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) > 0 && strings.Contains(texts[0], "hold") {
		close(g.entered)
		<-g.release
	}
	return g.stubEmbedder.EmbedBatch(ctx, texts)
}

// flakyStore fails Upsert once a number of writes have succeeded, to
// exercise rollback of partially indexed documents.
type flakyStore struct {
	driven.VectorStore
	mu            sync.Mutex
	upsertsBefore int
	upserts       int
}

func (f *flakyStore) Upsert(ctx context.Context, name string, chunks []domain.Chunk) error {
	f.mu.Lock()
	f.upserts++
	fail := f.upserts > f.upsertsBefore
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: disk full", domain.ErrVectorStore)
	}
	return f.VectorStore.Upsert(ctx, name, chunks)
}

func newTestBackend(t *testing.T, store driven.VectorStore, opts ...Option) (*Backend, *stubLLM) {
	t.Helper()
	llm := &stubLLM{}
	b := NewBackend(
		extractors.NewRegistry(plaintext.New()),
		chunker.New(chunker.WithChunkSize(10), chunker.WithOverlap(0)),
		&stubEmbedder{},
		store,
		llm,
		opts...,
	)
	return b, llm
}

func testProject(id string) domain.Project {
	return domain.Project{
		ID:        id,
		Backend:   domain.BackendLocal,
		Documents: map[string]domain.Document{},
	}
}

func TestCreateStore(t *testing.T) {
	store := memory.NewStore()
	fixed := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	b, _ := newTestBackend(t, store, WithClock(func() time.Time { return fixed }))

	id, err := b.CreateStore(context.Background(), "My Project")
	require.NoError(t, err)
	assert.Equal(t, "local_20240315_103000_my_project", id)

	// Collection exists and is pinned to the embedding model.
	err = store.EnsureCollection(context.Background(), domain.CollectionName(id), 3, "other-model")
	assert.ErrorIs(t, err, domain.ErrVectorStore)
}

func TestUpload_IndexesChunks(t *testing.T) {
	store := memory.NewStore()
	b, _ := newTestBackend(t, store)
	project := testProject("local_x")

	summary, err := b.Upload(context.Background(), project, "notes.txt", []byte(strings.Repeat("abcde", 10)))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", summary.Name)
	assert.Equal(t, 5, summary.ChunkCount)
	assert.False(t, summary.IndexedAt.IsZero())

	count, err := store.Count(context.Background(), domain.CollectionName(project.ID))
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestUpload_UnsupportedFormat(t *testing.T) {
	store := memory.NewStore()
	b, _ := newTestBackend(t, store)

	_, err := b.Upload(context.Background(), testProject("local_x"), "img.xyz", []byte("data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	count, err := store.Count(context.Background(), domain.CollectionName("local_x"))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpload_EmptyDocument(t *testing.T) {
	b, _ := newTestBackend(t, memory.NewStore())

	_, err := b.Upload(context.Background(), testProject("local_x"), "blank.txt", []byte("   \n\t  "))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestUpload_RollsBackPartialIndexing(t *testing.T) {
	inner := memory.NewStore()
	store := &flakyStore{VectorStore: inner, upsertsBefore: 1}
	b, _ := newTestBackend(t, store)
	project := testProject("local_x")

	// Enough text for two upsert batches: the first lands, the second
	// fails, and the first must be rolled back.
	content := []byte(strings.Repeat("x", (upsertBatchSize+5)*10))
	_, err := b.Upload(context.Background(), project, "big.txt", content)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexing)

	count, err := inner.Count(context.Background(), domain.CollectionName(project.ID))
	require.NoError(t, err)
	assert.Zero(t, count, "failed upload must leave no chunks behind")
}

func TestUpload_EmbeddingFailureWritesNothing(t *testing.T) {
	store := memory.NewStore()
	llm := &stubLLM{}
	b := NewBackend(
		extractors.NewRegistry(plaintext.New()),
		chunker.New(),
		&stubEmbedder{err: fmt.Errorf("%w: model offline", domain.ErrEmbedding)},
		store,
		llm,
	)

	_, err := b.Upload(context.Background(), testProject("local_x"), "a.txt", []byte("hello world"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbedding)

	count, err := store.Count(context.Background(), domain.CollectionName("local_x"))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestQuery_GroundsAnswerInPassages(t *testing.T) {
	store := memory.NewStore()
	b, llm := newTestBackend(t, store)
	project := testProject("local_x")

	_, err := b.Upload(context.Background(), project, "go.txt", []byte("gopher facts"))
	require.NoError(t, err)

	answer, passages, err := b.Query(context.Background(), project, "what is a gopher", 3)
	require.NoError(t, err)
	assert.Equal(t, "canned answer", answer)
	require.NotEmpty(t, passages)
	assert.Equal(t, "go.txt", passages[0].DocumentName)

	require.Equal(t, 1, llm.calls())
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "gopher facts")
	assert.Contains(t, prompt, "what is a gopher")
}

func TestQuery_UsesProjectSystemPrompt(t *testing.T) {
	store := memory.NewStore()
	b, llm := newTestBackend(t, store)
	project := testProject("local_x")
	project.SystemPrompt = "Answer like a pirate."

	_, err := b.Upload(context.Background(), project, "a.txt", []byte("treasure map"))
	require.NoError(t, err)

	_, _, err = b.Query(context.Background(), project, "where", 3)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(llm.prompts[0], "Answer like a pirate."))
}

func TestQuery_TieBreaksByDocumentOrder(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	project := domain.Project{
		ID:      "local_x",
		Backend: domain.BackendLocal,
		Documents: map[string]domain.Document{
			"first.txt":  {Name: "first.txt", IndexedAt: older},
			"second.txt": {Name: "second.txt", IndexedAt: newer},
		},
	}

	hits := []driven.VectorHit{
		{Chunk: domain.Chunk{DocumentName: "second.txt", Index: 0, Text: "b"}, Score: 0.5},
		{Chunk: domain.Chunk{DocumentName: "first.txt", Index: 1, Text: "a1"}, Score: 0.5},
		{Chunk: domain.Chunk{DocumentName: "first.txt", Index: 0, Text: "a0"}, Score: 0.5},
		{Chunk: domain.Chunk{DocumentName: "second.txt", Index: 3, Text: "top"}, Score: 0.9},
	}

	passages := rankPassages(project, hits)
	require.Len(t, passages, 4)
	assert.Equal(t, "top", passages[0].Text)
	assert.Equal(t, "a0", passages[1].Text)
	assert.Equal(t, "a1", passages[2].Text)
	assert.Equal(t, "b", passages[3].Text)
}

func TestQuery_EmptyStoreSkipsGeneration(t *testing.T) {
	store := memory.NewStore()
	b, llm := newTestBackend(t, store)
	project := testProject("local_x")
	require.NoError(t, store.EnsureCollection(context.Background(), domain.CollectionName(project.ID), 3, "test-embed"))

	_, _, err := b.Query(context.Background(), project, "anything", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
	assert.Zero(t, llm.calls(), "generation must not run without retrieved context")
}

func TestDeleteDocument(t *testing.T) {
	store := memory.NewStore()
	b, _ := newTestBackend(t, store)
	project := testProject("local_x")

	_, err := b.Upload(context.Background(), project, "a.txt", []byte("keep me around"))
	require.NoError(t, err)
	_, err = b.Upload(context.Background(), project, "b.txt", []byte("remove me soon"))
	require.NoError(t, err)

	require.NoError(t, b.DeleteDocument(context.Background(), project, "b.txt"))

	hits, err := store.Search(context.Background(), domain.CollectionName(project.ID), []float32{1, 1, 0}, 10)
	require.NoError(t, err)
	for _, hit := range hits {
		assert.Equal(t, "a.txt", hit.Chunk.DocumentName)
	}
}

func TestDeleteStore(t *testing.T) {
	store := memory.NewStore()
	b, _ := newTestBackend(t, store)
	project := testProject("local_x")

	_, err := b.Upload(context.Background(), project, "a.txt", []byte("short lived"))
	require.NoError(t, err)

	require.NoError(t, b.DeleteStore(context.Background(), project))

	count, err := store.Count(context.Background(), domain.CollectionName(project.ID))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpload_IndependentProjectsDoNotBlock(t *testing.T) {
	store := memory.NewStore()
	embedder := &gatedEmbedder{entered: make(chan struct{}), release: make(chan struct{})}
	b := NewBackend(
		extractors.NewRegistry(plaintext.New()),
		chunker.New(chunker.WithChunkSize(10), chunker.WithOverlap(0)),
		embedder,
		store,
		&stubLLM{},
	)

	slowDone := make(chan error, 1)
	go func() {
		_, err := b.Upload(context.Background(), testProject("local_a"), "slow.txt", []byte("hold this upload"))
		slowDone <- err
	}()

	// Wait until the first upload is mid-pipeline with project A's
	// write lock held.
	select {
	case <-embedder.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first upload never reached the embedder")
	}

	// An upload into a different project must complete while A is
	// still blocked.
	fastDone := make(chan error, 1)
	go func() {
		_, err := b.Upload(context.Background(), testProject("local_b"), "fast.txt", []byte("independent"))
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("upload into an unrelated project was blocked")
	}

	close(embedder.release)
	require.NoError(t, <-slowDone)

	count, err := store.Count(context.Background(), domain.CollectionName("local_b"))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUpload_ConcurrentSameProject(t *testing.T) {
	store := memory.NewStore()
	b, _ := newTestBackend(t, store)
	project := testProject("local_x")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("doc%d.txt", i)
			_, err := b.Upload(context.Background(), project, name, []byte(strings.Repeat("z", 30)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, err := store.Count(context.Background(), domain.CollectionName(project.ID))
	require.NoError(t, err)
	assert.Equal(t, 30, count)
}
