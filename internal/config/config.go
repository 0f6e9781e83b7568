package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for the tagging server and CLI.
type Config struct {
	// Server
	Port      int    `env:"PORT" envDefault:"8080"`
	Transport string `env:"TRANSPORT" envDefault:"stdio"` // "stdio" or "http"
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // "json" or "text"
	// HTTPTimeout bounds one HTTP request, which may be a whole tagging run.
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10m"`

	// Tagging
	DefaultProvider string        `env:"DEFAULT_PROVIDER" envDefault:"groq"`
	MaxConcurrency  int           `env:"MAX_CONCURRENCY" envDefault:"8"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	MaxTokens       int           `env:"MAX_TOKENS" envDefault:"1024"`
	PreviewRows     int           `env:"PREVIEW_ROWS" envDefault:"5"`

	// Provider credentials, consulted only when a tool call carries no api_key.
	AnthropicKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIKey    string `env:"OPENAI_API_KEY"`
	GeminiKey    string `env:"GEMINI_API_KEY"`
	GroqKey      string `env:"GROQ_API_KEY"`

	// Events
	EventsProvider string `env:"EVENTS_PROVIDER" envDefault:"none"` // "none" or "nats"
	EventsURL      string `env:"EVENTS_URL"`
	EventsSubject  string `env:"EVENTS_SUBJECT" envDefault:"tagging.runs"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
