package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/retry"
)

// Ollama defaults.
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama3.2"
)

// OllamaConfig configures the Ollama generator.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Ollama calls a local Ollama server's /api/generate endpoint.
type Ollama struct {
	client  *http.Client
	baseURL string
	model   string
}

type ollamaRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Format  json.RawMessage `json:"format,omitempty"`
	Options *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllama creates an Ollama generator.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Ollama{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
	}
}

// Generate produces a completion for the request.
func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	body := ollamaRequest{
		Model:  o.model,
		Prompt: req.Prompt,
		System: req.System,
	}
	switch {
	case len(req.Schema) > 0:
		body.Format = req.Schema
	case req.JSON:
		body.Format = json.RawMessage(`"json"`)
	}
	if req.MaxTokens > 0 || req.Temperature != nil {
		body.Options = &ollamaOptions{NumPredict: req.MaxTokens, Temperature: req.Temperature}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w: %w", label.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w: %w", label.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", fmt.Errorf("ollama: %w: %w", label.ErrUpstreamUnavailable, &retry.RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		})
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama status %d: %w: %s", resp.StatusCode, label.ErrUpstreamUnavailable, retry.Truncate(string(respBody), 200))
	}

	var or ollamaResponse
	if err := json.Unmarshal(respBody, &or); err != nil {
		return "", fmt.Errorf("decode response: %w: %w", label.ErrUpstreamUnavailable, err)
	}
	if or.Error != "" {
		return "", fmt.Errorf("ollama error: %w: %s", label.ErrUpstreamUnavailable, or.Error)
	}
	return or.Response, nil
}

// Model returns the model name.
func (o *Ollama) Model() string {
	return o.model
}

// Close releases idle connections.
func (o *Ollama) Close() {
	o.client.CloseIdleConnections()
}
