// Package llm provides a thin client for generative text APIs.
// It supports Google Gemini and any OpenAI-compatible endpoint, and classifies
// provider failures so callers can tell a transient rate limit apart from a
// definitive daily-quota exhaustion.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider represents an LLM provider.
type Provider string

const (
	Gemini Provider = "gemini"
	OpenAI Provider = "openai"
)

// Config holds configuration for a single model client.
type Config struct {
	Provider    Provider      `yaml:"provider" json:"provider"`
	Model       string        `yaml:"model" json:"model"`
	APIKey      string        `yaml:"api_key" json:"api_key"`
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    Gemini,
		Model:       "gemini-2.0-flash",
		Timeout:     60 * time.Second,
		MaxTokens:   8192,
		Temperature: 0.4,
	}
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request holds the parameters for a generation request.
type Request struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	JSONMode    bool      `json:"json_mode,omitempty"`
}

// Response holds the result of a generation.
type Response struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensIn     int    `json:"tokens_in"`
	TokensOut    int    `json:"tokens_out"`
	Model        string `json:"model"`
	LatencyMs    int64  `json:"latency_ms"`
}

// Client is the interface to a single configured model.
//
// The client performs exactly one call per Generate invocation: retry and
// model-fallback policy belongs to the caller, which needs the classified
// *APIError to decide between backing off and advancing to another model.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Model returns the model identifier this client is bound to.
	Model() string

	Provider() Provider
}

// NewClient creates a client for the configured provider.
func NewClient(cfg Config) (Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	switch cfg.Provider {
	case Gemini:
		return newGeminiClient(cfg)
	case OpenAI:
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
