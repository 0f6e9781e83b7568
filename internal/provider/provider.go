// Package provider resolves a requested LLM provider, model and key into a client configuration.
package provider

import (
	"sort"
	"strings"

	"tagging-mcp/internal/apperr"
)

// Name is a supported provider identifier.
type Name string

const (
	Claude Name = "claude"
	OpenAI Name = "openai"
	Gemini Name = "gemini"
	Groq   Name = "groq"
)

// Info describes one provider for callers and for resolution.
type Info struct {
	Name         Name     `json:"name"`
	EnvVar       string   `json:"env_var"`
	DefaultModel string   `json:"default_model"`
	Models       []string `json:"models"`
}

var catalog = map[Name]Info{
	Claude: {
		Name:         Claude,
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: "claude-3-5-sonnet-20241022",
		Models:       []string{"claude-3-5-sonnet-20241022", "claude-3-opus-20240229", "claude-3-sonnet-20240229"},
	},
	OpenAI: {
		Name:         OpenAI,
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: "gpt-4",
		Models:       []string{"gpt-4", "gpt-4-turbo", "gpt-3.5-turbo"},
	},
	Gemini: {
		Name:         Gemini,
		EnvVar:       "GEMINI_API_KEY",
		DefaultModel: "gemini-1.5-pro",
		Models:       []string{"gemini-1.5-pro", "gemini-1.5-flash"},
	},
	Groq: {
		Name:         Groq,
		EnvVar:       "GROQ_API_KEY",
		DefaultModel: "llama-3.1-70b-versatile",
		Models:       []string{"llama-3.1-70b-versatile", "mixtral-8x7b-32768"},
	},
}

// Catalog returns every supported provider sorted by name.
func Catalog() []Info {
	out := make([]Info, 0, len(catalog))
	for _, info := range catalog {
		info.Models = append([]string(nil), info.Models...)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the supported provider names sorted.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}

// Lookup finds a provider by case-insensitive name.
func Lookup(name string) (Info, bool) {
	info, ok := catalog[Name(strings.ToLower(strings.TrimSpace(name)))]
	return info, ok
}

// Credentials holds configured API keys per provider. It is populated from configuration
// once at startup; the resolver never reads the process environment.
type Credentials map[Name]string

// Config is the resolved configuration used to construct a provider client.
type Config struct {
	Name   Name
	Model  string
	APIKey string
	// KeySource is "parameter" or the environment variable the key came from.
	KeySource string
}

// Resolver maps tool parameters onto a Config.
type Resolver struct {
	creds Credentials
}

// NewResolver returns a Resolver backed by creds.
func NewResolver(creds Credentials) *Resolver {
	return &Resolver{creds: creds}
}

// Resolve validates name, fills in the default model and picks the API key: an explicit
// key wins over the configured credential.
func (r *Resolver) Resolve(name, model, apiKey string) (Config, error) {
	info, err := r.Validate(name)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{Name: info.Name, Model: strings.TrimSpace(model)}
	if cfg.Model == "" {
		cfg.Model = info.DefaultModel
	}
	switch {
	case strings.TrimSpace(apiKey) != "":
		cfg.APIKey = strings.TrimSpace(apiKey)
		cfg.KeySource = "parameter"
	case r.creds[info.Name] != "":
		cfg.APIKey = r.creds[info.Name]
		cfg.KeySource = info.EnvVar
	default:
		return Config{}, apperr.New(apperr.KindCredential,
			"no API key for provider %q: pass api_key or set %s", info.Name, info.EnvVar)
	}
	return cfg, nil
}

// Validate checks that name is a supported provider without looking at credentials.
func (r *Resolver) Validate(name string) (Info, error) {
	info, ok := Lookup(name)
	if !ok {
		return Info{}, apperr.New(apperr.KindValidation,
			"unsupported provider %q; use one of: %s", name, strings.Join(Names(), ", "))
	}
	return info, nil
}

// Configured reports whether a credential is available for name without a parameter key.
func (r *Resolver) Configured(name Name) bool {
	return r.creds[name] != ""
}
