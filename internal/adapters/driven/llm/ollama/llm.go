// Package ollama provides a generation service adapter using Ollama.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "gemma3:4b"
	DefaultTimeout = 120 * time.Second

	maxRetries   = 2
	retryBackoff = time.Second
)

// Config holds configuration for the Ollama generation service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the generation model to use (default: gemma3:4b).
	Model string

	// Timeout bounds each generation call (default: 120s).
	Timeout time.Duration
}

// LLMService generates text using Ollama.
type LLMService struct {
	client  *http.Client
	baseURL string
	model   string
	timeout time.Duration
}

// generateRequest is the Ollama API request format.
type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// generateResponse is the Ollama API response format.
type generateResponse struct {
	Response string `json:"response"`
}

// NewLLMService creates a new Ollama generation service.
func NewLLMService(cfg Config) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &LLMService{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// Generate produces a text completion from a prompt. The call is
// bounded by the configured timeout on top of any caller deadline;
// timeout or endpoint failure surfaces as domain.ErrGeneration.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("Generation retry %d after error: %v", attempt, lastErr)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", domain.ErrGeneration, ctx.Err())
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}

		answer, retryable, err := s.generateOnce(ctx, prompt, opts)
		if err == nil {
			return answer, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

func (s *LLMService) generateOnce(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, bool, error) {
	reqBody := generateRequest{
		Model:  s.model,
		Prompt: prompt,
		Stream: false,
	}
	options := make(map[string]any)
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if len(options) > 0 {
		reqBody.Options = options
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", false, fmt.Errorf("%w: marshal request: %v", domain.ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/api/generate",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", false, fmt.Errorf("%w: create request: %v", domain.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// A cancelled or expired context is final; transport errors are
		// worth one more try.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", false, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
		}
		return "", true, fmt.Errorf("%w: send request: %v", domain.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retryable := resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("%w: ollama status %d: %s", domain.ErrGeneration, resp.StatusCode, body)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", false, fmt.Errorf("%w: decode response: %v", domain.ErrGeneration, err)
	}
	return genResp.Response, false, nil
}

// ModelName returns the name of the model being used.
func (s *LLMService) ModelName() string {
	return s.model
}
