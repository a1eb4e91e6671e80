// Package qdrant provides a vector store backed by a Qdrant server over
// its REST API. Each project maps to one Qdrant collection created with
// cosine distance; chunk metadata rides in the point payload.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultTimeout bounds each Qdrant request.
const DefaultTimeout = 15 * time.Second

// Config holds connection settings for a Qdrant server.
type Config struct {
	// URL is the Qdrant base URL, e.g. http://localhost:6333.
	URL string

	// APIKey is sent in the api-key header when non-empty.
	APIKey string

	// Timeout is the per-request timeout (default 15s).
	Timeout time.Duration
}

// Store is a minimal REST client to Qdrant.
type Store struct {
	url    string
	apiKey string
	client *http.Client
}

// NewStore creates a Qdrant-backed vector store.
func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Store{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection with cosine distance if it
// does not exist. Qdrant enforces dimensionality server-side, so the
// embedding model tag is not persisted here.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimensions int, _ string) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: invalid dimensions %d", domain.ErrVectorStore, dimensions)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 200 if the collection already exists with the same
	// schema; a schema conflict propagates as an error.
	return s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", name), body, nil)
}

// Upsert inserts chunks as points with payload metadata.
func (s *Store) Upsert(ctx context.Context, name string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, len(chunks))
	for i, chunk := range chunks {
		points[i] = map[string]any{
			"id":     chunk.ID,
			"vector": chunk.Embedding,
			"payload": map[string]any{
				"document_name": chunk.DocumentName,
				"chunk_index":   chunk.Index,
				"text":          chunk.Text,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", name), body, nil)
}

// Search returns the k nearest points, payload round-tripped back into
// chunks.
func (s *Store) Search(ctx context.Context, name string, vector []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		k = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", name), req, &resp); err != nil {
		return nil, err
	}

	hits := make([]driven.VectorHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := domain.Chunk{ID: r.ID}
		if v, ok := r.Payload["document_name"].(string); ok {
			chunk.DocumentName = v
		}
		if v, ok := r.Payload["chunk_index"].(float64); ok {
			chunk.Index = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		hits = append(hits, driven.VectorHit{Chunk: chunk, Score: r.Score})
	}
	return hits, nil
}

// DeleteDocument removes all points whose payload names the document.
func (s *Store) DeleteDocument(ctx context.Context, name, documentName string) (int, error) {
	// Count first so callers can report how many chunks went away;
	// Qdrant's delete-by-filter response does not include a count.
	count, err := s.countByDocument(ctx, name, documentName)
	if err != nil {
		return 0, err
	}

	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_name", "match": map[string]any{"value": documentName}},
			},
		},
	}
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", name), body, nil); err != nil {
		return 0, err
	}
	return count, nil
}

// Count returns the number of points in the collection.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", name),
		map[string]any{"exact": true}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// DropCollection deletes the collection.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	return s.do(ctx, http.MethodDelete, fmt.Sprintf("/collections/%s", name), nil, nil)
}

func (s *Store) countByDocument(ctx context.Context, name, documentName string) (int, error) {
	body := map[string]any{
		"exact": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_name", "match": map[string]any{"value": documentName}},
			},
		},
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", name), body, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// do executes one JSON request against the Qdrant API.
func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", domain.ErrVectorStore, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", domain.ErrVectorStore, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrVectorStore, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: %s: %s", domain.ErrVectorStore, method, path, resp.Status, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", domain.ErrVectorStore, err)
		}
	}
	return nil
}
