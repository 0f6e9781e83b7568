// Package llm sends one structured classification request to a provider and returns its raw JSON.
package llm

import (
	"context"
	"errors"
	"time"

	"tagging-mcp/internal/taxonomy"
)

// Client is a minimal LLM interface to allow pluggable providers.
type Client interface {
	// Classify sends one request and returns the model's JSON payload undecoded.
	Classify(ctx context.Context, req Request) (string, error)
}

// Request is a single classification call.
type Request struct {
	System     string
	User       string
	SchemaName string
	Schema     *taxonomy.JSONSchema
}

// Options tune every client built by a Factory.
type Options struct {
	Timeout   time.Duration
	MaxTokens int
	// BaseURL overrides the provider endpoint. Empty means the provider default.
	BaseURL string
}

const (
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 1024

	// DefaultSchemaName names the structured output in provider requests.
	DefaultSchemaName = "classification"
)

var (
	// ErrRateLimited marks a provider 429 response.
	ErrRateLimited = errors.New("rate limited by provider")
	// ErrEmptyResponse is returned when the provider sends back no content.
	ErrEmptyResponse = errors.New("empty response from provider")
)

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}
	return o
}

func schemaName(req Request) string {
	if req.SchemaName == "" {
		return DefaultSchemaName
	}
	return req.SchemaName
}
