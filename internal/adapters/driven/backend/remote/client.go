package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/logger"
)

// Default client settings.
const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 60 * time.Second

	// defaultRateLimit caps outbound calls so bulk ingestion stays under
	// the service's per-minute quota.
	defaultRateLimit = rate.Limit(5)
	defaultBurst     = 5

	maxRetries   = 2
	retryBackoff = 500 * time.Millisecond
)

// Config holds connection settings for the managed file-search service.
type Config struct {
	// BaseURL is the API base URL (default: the public v1beta endpoint).
	BaseURL string

	// APIKey authenticates every request via the x-goog-api-key header.
	APIKey string

	// Model is the generation model used for grounded queries.
	Model string

	// Timeout is the per-request timeout (default 60s).
	Timeout time.Duration

	// PollInterval is how often upload indexing operations are polled.
	PollInterval time.Duration
}

// client is a minimal REST client for the file-search service. All
// failures are wrapped in domain.ErrRemoteService; transient ones (5xx,
// network) are retried a bounded number of times with backoff.
type client struct {
	http         *http.Client
	baseURL      string
	apiKey       string
	model        string
	limiter      *rate.Limiter
	pollInterval time.Duration
}

func newClient(cfg Config) *client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &client{
		http:         &http.Client{Timeout: cfg.Timeout},
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		limiter:      rate.NewLimiter(defaultRateLimit, defaultBurst),
		pollInterval: cfg.PollInterval,
	}
}

// storeResource is a file-search store as the service reports it.
type storeResource struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	CreateTime  time.Time `json:"createTime"`
}

// documentResource is an indexed document within a store.
type documentResource struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	State       string    `json:"state"`
	CreateTime  time.Time `json:"createTime"`
}

// operation tracks a long-running indexing job.
type operation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// createStore provisions a new file-search store and returns its
// resource name (e.g. "fileSearchStores/abc-123").
func (c *client) createStore(ctx context.Context, displayName string) (string, error) {
	var store storeResource
	err := c.do(ctx, http.MethodPost, "/fileSearchStores",
		map[string]any{"displayName": displayName}, &store)
	if err != nil {
		return "", err
	}
	if store.Name == "" {
		return "", fmt.Errorf("%w: store created without a resource name", domain.ErrRemoteService)
	}
	return store.Name, nil
}

// deleteStore permanently removes a store and everything in it.
// force=true confirms removal of all contained resources.
func (c *client) deleteStore(ctx context.Context, storeID string) error {
	return c.do(ctx, http.MethodDelete, "/"+storeID+"?force=true", nil, nil)
}

// listDocuments returns the documents indexed in a store.
func (c *client) listDocuments(ctx context.Context, storeID string) ([]documentResource, error) {
	var resp struct {
		Documents []documentResource `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, "/"+storeID+"/documents", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// uploadDocument sends the document bytes for indexing and blocks until
// the indexing operation completes. The service assigns the document
// resource name; the display name is what queries cite.
func (c *client) uploadDocument(ctx context.Context, storeID, displayName string, content []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRemoteService, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	meta, err := writer.CreateFormField("metadata")
	if err != nil {
		return fmt.Errorf("%w: build upload: %v", domain.ErrRemoteService, err)
	}
	if err := json.NewEncoder(meta).Encode(map[string]any{"displayName": displayName}); err != nil {
		return fmt.Errorf("%w: build upload: %v", domain.ErrRemoteService, err)
	}
	part, err := writer.CreateFormFile("file", displayName)
	if err != nil {
		return fmt.Errorf("%w: build upload: %v", domain.ErrRemoteService, err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("%w: build upload: %v", domain.ErrRemoteService, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%w: build upload: %v", domain.ErrRemoteService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+storeID+":uploadToFileSearchStore", &body)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", domain.ErrRemoteService, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: upload %s: %v", domain.ErrRemoteService, displayName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: upload %s: %s: %s", domain.ErrRemoteService, displayName, resp.Status, msg)
	}

	var op operation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return fmt.Errorf("%w: decode upload response: %v", domain.ErrRemoteService, err)
	}
	return c.waitOperation(ctx, op)
}

// waitOperation polls an indexing operation until it finishes.
func (c *client) waitOperation(ctx context.Context, op operation) error {
	for !op.Done {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for indexing: %v", domain.ErrRemoteService, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		var next operation
		if err := c.do(ctx, http.MethodGet, "/"+op.Name, nil, &next); err != nil {
			return err
		}
		op = next
	}
	if op.Error != nil {
		return fmt.Errorf("%w: indexing failed: %s", domain.ErrRemoteService, op.Error.Message)
	}
	return nil
}

// deleteDocument removes an indexed document by its resource name.
// force=true removes the document's embeddings along with it.
func (c *client) deleteDocument(ctx context.Context, documentResourceName string) error {
	return c.do(ctx, http.MethodDelete, "/"+documentResourceName+"?force=true", nil, nil)
}

// groundedQuery asks the generation model a question restricted to the
// store's documents via the file-search tool, returning the answer and
// the grounding chunks that back it.
func (c *client) groundedQuery(ctx context.Context, storeID, question, systemPrompt string) (string, []domain.Passage, error) {
	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": question}}},
		},
		"tools": []map[string]any{
			{"fileSearch": map[string]any{"fileSearchStoreNames": []string{storeID}}},
		},
	}
	if systemPrompt != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": systemPrompt}},
		}
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			GroundingMetadata struct {
				GroundingChunks []struct {
					RetrievedContext struct {
						Title string `json:"title"`
						Text  string `json:"text"`
					} `json:"retrievedContext"`
				} `json:"groundingChunks"`
			} `json:"groundingMetadata"`
		} `json:"candidates"`
	}

	path := fmt.Sprintf("/models/%s:generateContent", c.model)
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", nil, err
	}
	if len(resp.Candidates) == 0 {
		return "", nil, fmt.Errorf("%w: no answer candidates returned", domain.ErrRemoteService)
	}

	candidate := resp.Candidates[0]
	var answer string
	for _, part := range candidate.Content.Parts {
		answer += part.Text
	}

	passages := make([]domain.Passage, 0, len(candidate.GroundingMetadata.GroundingChunks))
	for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
		passages = append(passages, domain.Passage{
			DocumentName: chunk.RetrievedContext.Title,
			Text:         chunk.RetrievedContext.Text,
		})
	}
	return answer, passages, nil
}

// do executes one JSON request with rate limiting and bounded retry of
// transient failures.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", domain.ErrRemoteService, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("Remote retry %d for %s %s: %v", attempt, method, path, lastErr)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", domain.ErrRemoteService, ctx.Err())
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrRemoteService, err)
		}

		retryable, err := c.doOnce(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *client) doOnce(ctx context.Context, method, path string, payload []byte, out any) (bool, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("%w: create request: %v", domain.ErrRemoteService, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("%w: %s %s: %v", domain.ErrRemoteService, method, path, err)
		}
		return true, fmt.Errorf("%w: %s %s: %v", domain.ErrRemoteService, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retryable := resp.StatusCode >= 500
		return retryable, fmt.Errorf("%w: %s %s: %s: %s", domain.ErrRemoteService, method, path, resp.Status, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("%w: decode response: %v", domain.ErrRemoteService, err)
		}
	}
	return false, nil
}
