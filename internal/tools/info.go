package tools

import (
	"tagging-mcp/internal/provider"
	"tagging-mcp/internal/taxonomy"
)

// Server identity reported by get_tagging_info and the protocol handshake.
const (
	ServerName        = "Tagging MCP"
	ServerDescription = "MCP server for tagging CSV rows with LLM structured outputs, one request per row in parallel"
	Version           = "0.1.0"
)

// ProviderInfo is a provider entry of get_tagging_info.
type ProviderInfo struct {
	provider.Info
	Configured bool `json:"configured"`
}

// InfoResult is the response of get_tagging_info.
type InfoResult struct {
	Status      string         `json:"status"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Version     string         `json:"version"`
	Tools       []string       `json:"tools"`
	Providers   []ProviderInfo `json:"supported_providers"`
	Defaults    map[string]any `json:"defaults"`
	Features    []string       `json:"features"`
}

// Info runs get_tagging_info. It never touches the network or the file system.
func (s *Service) Info() InfoResult {
	catalog := provider.Catalog()
	providers := make([]ProviderInfo, len(catalog))
	for i, info := range catalog {
		providers[i] = ProviderInfo{Info: info, Configured: s.resolver.Configured(info.Name)}
	}
	return InfoResult{
		Status:      "success",
		Name:        ServerName,
		Description: ServerDescription,
		Version:     Version,
		Tools:       []string{ToolPreviewCSV, ToolTagCSV, ToolTagCSVAdvanced, ToolTaggingInfo},
		Providers:   providers,
		Defaults: map[string]any{
			"provider":          s.opts.DefaultProvider,
			"text_column":       DefaultTextColumn,
			"field_name":        taxonomy.DefaultFieldName,
			"include_reasoning": false,
			"preview_rows":      s.opts.PreviewRows,
			"max_concurrency":   s.tagger.Limit(),
		},
		Features: []string{
			"Parallel LLM inference with bounded concurrency",
			"Multiple LLM provider support",
			"Structured output constrained to the taxonomy",
			"Simple and multi-field taxonomies",
			"Per-row confidence and optional reasoning",
			"Per-row error capture without aborting the batch",
		},
	}
}
