package llm

import (
	"context"
	"fmt"

	"tagging-mcp/internal/provider"
)

// Factory builds a Client for a resolved provider configuration.
type Factory func(ctx context.Context, cfg provider.Config) (Client, error)

// NewFactory returns a Factory that builds real provider clients with opts.
func NewFactory(opts Options) Factory {
	return func(ctx context.Context, cfg provider.Config) (Client, error) {
		return NewClient(ctx, cfg, opts)
	}
}

// NewClient creates a provider client from cfg.
func NewClient(ctx context.Context, cfg provider.Config, opts Options) (Client, error) {
	switch cfg.Name {
	case provider.Claude:
		return NewAnthropicClient(cfg.APIKey, cfg.Model, opts)
	case provider.OpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.Model, opts)
	case provider.Gemini:
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, opts)
	case provider.Groq:
		return NewGroqClient(cfg.APIKey, cfg.Model, opts)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Name)
	}
}
