package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// CompatClient speaks the OpenAI chat-completions wire format against any
// compatible endpoint (local inference servers, proxies). Requests are spaced
// by a minimum interval to stay polite with shared gateways.
type CompatClient struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

const compatMinInterval = 500 * time.Millisecond

// NewCompatClient builds a client for an OpenAI-compatible endpoint.
func NewCompatClient(cfg Config) (*CompatClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("compat provider requires a base URL")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("compat provider requires a model name")
	}
	return &CompatClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

type compatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatRequest struct {
	Model       string          `json:"model"`
	Messages    []compatMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type compatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends one chat completion request.
func (c *CompatClient) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < compatMinInterval {
		time.Sleep(compatMinInterval - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	var messages []compatMessage
	if systemPrompt != "" {
		messages = append(messages, compatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, compatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(compatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   1024,
		Temperature: 0.9,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("compat request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("compat endpoint returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out compatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("compat endpoint error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("compat endpoint returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Name identifies the provider.
func (c *CompatClient) Name() string {
	return "compat:" + c.model
}
