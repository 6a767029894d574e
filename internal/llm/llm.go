// Package llm defines the chat provider abstraction, the concrete OpenAI and
// Ollama clients, and the primary/fallback router on top of them.
package llm

import (
	"context"
	"fmt"
)

// Role identifies which slot in the router produced a response.
type Role string

const (
	RolePrimary  Role = "primary"
	RoleFallback Role = "fallback"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Options are per-request generation parameters. Providers translate them
// to their own wire format and drop what they cannot express.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Result is a completed chat turn plus its provenance.
type Result struct {
	Text     string
	Role     Role
	Provider string
	Model    string
}

// Provider is a chat completion backend.
type Provider interface {
	// Chat sends the conversation and returns the assistant text.
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
	// Kind names the backend type, e.g. "openai" or "ollama".
	Kind() string
	// Model names the configured model.
	Model() string
	// CredentialConfigured reports whether the provider has the credential
	// it needs to serve requests.
	CredentialConfigured() bool
}

// NewProvider constructs a provider by kind.
func NewProvider(kind, baseURL, model, apiKey string) (Provider, error) {
	switch kind {
	case "openai":
		return NewOpenAIProvider(baseURL, model, apiKey), nil
	case "ollama":
		return NewOllamaProvider(baseURL, model), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", kind)
	}
}
