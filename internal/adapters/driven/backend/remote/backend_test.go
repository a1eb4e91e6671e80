package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

func testConfig(url string) Config {
	return Config{
		BaseURL:      url,
		APIKey:       "test-key",
		PollInterval: time.Millisecond,
	}
}

func testProject(id string) domain.Project {
	return domain.Project{ID: id, Backend: domain.BackendRemote}
}

func TestCreateStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/fileSearchStores", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "My Docs", body["displayName"])

		json.NewEncoder(w).Encode(storeResource{
			Name:        "fileSearchStores/abc-123",
			DisplayName: "My Docs",
		})
	}))
	defer srv.Close()

	b := NewBackend(testConfig(srv.URL))
	id, err := b.CreateStore(context.Background(), "My Docs")
	require.NoError(t, err)
	assert.Equal(t, "fileSearchStores/abc-123", id)
}

func TestUpload_PollsAndVerifies(t *testing.T) {
	var polls atomic.Int32
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/fileSearchStores/s1:uploadToFileSearchStore":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			assert.Equal(t, "notes.txt", header.Filename)
			json.NewEncoder(w).Encode(operation{Name: "operations/op-1", Done: false})

		case r.URL.Path == "/operations/op-1":
			done := polls.Add(1) >= 2
			json.NewEncoder(w).Encode(operation{Name: "operations/op-1", Done: done})

		case r.URL.Path == "/fileSearchStores/s1/documents":
			json.NewEncoder(w).Encode(map[string]any{
				"documents": []documentResource{
					{Name: "fileSearchStores/s1/documents/old", DisplayName: "notes.txt", CreateTime: created.Add(-time.Hour)},
					{Name: "fileSearchStores/s1/documents/new", DisplayName: "notes.txt", CreateTime: created},
				},
			})

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	b := NewBackend(testConfig(srv.URL))
	summary, err := b.Upload(context.Background(), testProject("fileSearchStores/s1"), "notes.txt", []byte("content"))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", summary.Name)
	assert.Equal(t, created, summary.IndexedAt)
	assert.Zero(t, summary.ChunkCount)
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestUpload_MissingAfterIndexing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/fileSearchStores/s1:uploadToFileSearchStore":
			json.NewEncoder(w).Encode(operation{Name: "operations/op-1", Done: true})
		case r.URL.Path == "/fileSearchStores/s1/documents":
			json.NewEncoder(w).Encode(map[string]any{"documents": []documentResource{}})
		}
	}))
	defer srv.Close()

	b := NewBackend(testConfig(srv.URL))
	_, err := b.Upload(context.Background(), testProject("fileSearchStores/s1"), "notes.txt", []byte("content"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteDocument_ResolvesResourceName(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/fileSearchStores/s1/documents" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"documents": []documentResource{
					{Name: "fileSearchStores/s1/documents/d1", DisplayName: "a.txt"},
					{Name: "fileSearchStores/s1/documents/d2", DisplayName: "b.txt"},
				},
			})
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			assert.Equal(t, "true", r.URL.Query().Get("force"))
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("{}"))
		}
	}))
	defer srv.Close()

	b := NewBackend(testConfig(srv.URL))
	require.NoError(t, b.DeleteDocument(context.Background(), testProject("fileSearchStores/s1"), "b.txt"))
	assert.Equal(t, "/fileSearchStores/s1/documents/d2", deleted)
}

func TestQuery_NormalizesGroundingMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "tools")
		system := body["systemInstruction"].(map[string]any)
		parts := system["parts"].([]any)
		assert.Equal(t, "Be brief.", parts[0].(map[string]any)["text"])

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": "The answer."}},
				},
				"groundingMetadata": map[string]any{
					"groundingChunks": []map[string]any{
						{"retrievedContext": map[string]any{"title": "a.txt", "text": "evidence one"}},
						{"retrievedContext": map[string]any{"title": "b.txt", "text": "evidence two"}},
					},
				},
			}},
		})
	}))
	defer srv.Close()

	b := NewBackend(testConfig(srv.URL))
	project := testProject("fileSearchStores/s1")
	project.SystemPrompt = "Be brief."

	answer, passages, err := b.Query(context.Background(), project, "why", 3)
	require.NoError(t, err)
	assert.Equal(t, "The answer.", answer)
	require.Len(t, passages, 2)
	assert.Equal(t, "a.txt", passages[0].DocumentName)
	assert.Equal(t, "evidence one", passages[0].Text)
	assert.Equal(t, "b.txt", passages[1].DocumentName)
}

func TestDeleteStore_Forces(t *testing.T) {
	var gotForce string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/fileSearchStores/s1", r.URL.Path)
		gotForce = r.URL.Query().Get("force")
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	b := NewBackend(testConfig(srv.URL))
	require.NoError(t, b.DeleteStore(context.Background(), testProject("fileSearchStores/s1")))
	assert.Equal(t, "true", gotForce)
}

func TestRetry_ServerErrorsBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewBackend(testConfig(srv.URL))
	err := b.DeleteStore(context.Background(), testProject("fileSearchStores/s1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteService)
	assert.Equal(t, int32(1+maxRetries), calls.Load())
}

func TestRetry_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "no such store", http.StatusNotFound)
	}))
	defer srv.Close()

	b := NewBackend(testConfig(srv.URL))
	err := b.DeleteStore(context.Background(), testProject("fileSearchStores/missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteService)
	assert.Equal(t, int32(1), calls.Load())
}
