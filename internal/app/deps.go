package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"tagging-mcp/internal/config"
	"tagging-mcp/internal/events"
	"tagging-mcp/internal/llm"
	"tagging-mcp/internal/logger"
	"tagging-mcp/internal/provider"
	"tagging-mcp/internal/tools"
)

// Deps bundles common runtime dependencies for the server and CLI.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Resolver *provider.Resolver
	LLM      llm.Factory
	Events   events.Bus
	Tools    *tools.Service
}

// Build loads env, config, and shared components.
func Build() (Deps, error) {
	if err := LoadEnv(); err != nil {
		return Deps{}, err
	}
	return BuildFrom(config.Load(), nil)
}

// LoadEnv loads a .env file from the working directory into the environment.
// A missing file is not an error.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

// BuildFrom wires Deps from an explicit config. progress is forwarded to every tagging run.
func BuildFrom(cfg config.Config, progress func(done, total int)) (Deps, error) {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	bus, err := buildEvents(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize events: %w", err)
	}
	resolver := provider.NewResolver(Credentials(cfg))
	factory := buildLLM(cfg, log)
	svc := tools.NewService(log, resolver, factory, bus, tools.Options{
		DefaultProvider: cfg.DefaultProvider,
		PreviewRows:     cfg.PreviewRows,
		MaxConcurrency:  cfg.MaxConcurrency,
		Progress:        progress,
	})
	return Deps{
		Config:   cfg,
		Log:      log,
		Resolver: resolver,
		LLM:      factory,
		Events:   bus,
		Tools:    svc,
	}, nil
}

// Credentials maps configured provider keys onto the resolver's credential set.
func Credentials(cfg config.Config) provider.Credentials {
	return provider.Credentials{
		provider.Claude: cfg.AnthropicKey,
		provider.OpenAI: cfg.OpenAIKey,
		provider.Gemini: cfg.GeminiKey,
		provider.Groq:   cfg.GroqKey,
	}
}

func buildEvents(cfg config.Config, log *slog.Logger) (events.Bus, error) {
	switch cfg.EventsProvider {
	case "", "none":
		return events.Noop{}, nil
	case "nats":
		if cfg.EventsURL == "" {
			return nil, fmt.Errorf("EVENTS_URL is required when EVENTS_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.EventsURL, nats.Name("tagging-mcp"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("publishing run events to NATS", "subject", cfg.EventsSubject)
		return events.NewNATS(log, nc, cfg.EventsSubject), nil
	default:
		return nil, fmt.Errorf("invalid EVENTS_PROVIDER: %s (valid options: none, nats)", cfg.EventsProvider)
	}
}

func buildLLM(cfg config.Config, log *slog.Logger) llm.Factory {
	build := llm.NewFactory(llm.Options{
		Timeout:   cfg.RequestTimeout,
		MaxTokens: cfg.MaxTokens,
	})
	return func(ctx context.Context, pc provider.Config) (llm.Client, error) {
		client, err := build(ctx, pc)
		if err != nil {
			return nil, err
		}
		log.Debug("built LLM client", "provider", pc.Name, "model", pc.Model)
		return client, nil
	}
}
