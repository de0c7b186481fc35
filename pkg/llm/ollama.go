package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultOllamaBaseURL is the default local Ollama endpoint.
const DefaultOllamaBaseURL = "http://localhost:11434"

// OllamaProvider implements Provider against an Ollama-style chat endpoint:
// POST {baseURL}/api/chat with a non-streaming request, expecting
// {message:{content}} back.
type OllamaProvider struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// ollamaRequest is the request body for /api/chat.
type ollamaRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []Message     `json:"messages"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

// ollamaResponse is the subset of the /api/chat response we consume.
type ollamaResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithOllamaHTTPClient overrides the HTTP client (used in tests).
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) {
		p.httpClient = client
	}
}

// NewOllamaProvider creates a provider for an Ollama-style endpoint.
// If baseURL is empty the default local endpoint is used.
func NewOllamaProvider(baseURL, model string, opts ...OllamaOption) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}

	p := &OllamaProvider{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		baseURL:    baseURL,
		model:      model,
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Complete sends a non-streaming chat request and returns the reply content.
func (p *OllamaProvider) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	reqBody := ollamaRequest{
		Model:    p.model,
		Stream:   false,
		Messages: messages,
		Options:  ollamaOptions{Temperature: opts.Temperature},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}

	return parsed.Message.Content, nil
}
