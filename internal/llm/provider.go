// Package llm abstracts text-generation providers. Callers depend only on
// the Provider interface; the factory picks a concrete client from runtime
// configuration. Structured calls (JSON-shaped decisions) live with the
// callers, which parse the returned text and fall back to heuristics on
// malformed output.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider generates text. Implementations must honour ctx cancellation.
type Provider interface {
	// Generate produces a completion for prompt. systemPrompt may be empty.
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
	// Name identifies the provider for logs.
	Name() string
}

// Config selects and parameterises a provider.
type Config struct {
	Provider string // "gemini", "openai", or "compat"
	APIKey   string
	Model    string
	BaseURL  string // compat endpoints only
	Timeout  time.Duration
}

// New builds a provider from config.
func New(cfg Config) (Provider, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiClient(cfg)
	case "openai":
		return NewOpenAIClient(cfg)
	case "compat":
		return NewCompatClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (use gemini, openai, or compat)", cfg.Provider)
	}
}
