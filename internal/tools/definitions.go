package tools

import (
	"tagging-mcp/internal/csvio"
	"tagging-mcp/internal/provider"
	"tagging-mcp/internal/taxonomy"
)

// Definition describes a tool to protocol clients.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func runProperties(props map[string]any) map[string]any {
	props["csv_path"] = str("Path to the input CSV file (UTF-8, header row required).")
	props["text_column"] = map[string]any{"type": "string", "description": "Column holding the text to classify.", "default": DefaultTextColumn}
	props["provider"] = map[string]any{"type": "string", "description": "LLM provider.", "enum": provider.Names()}
	props["model"] = str("Model identifier. Defaults to the provider's default model.")
	props["api_key"] = str("API key. Defaults to the provider's environment variable.")
	props["output_path"] = str("Where to write the tagged CSV. Omit to only return a preview.")
	props["include_reasoning"] = map[string]any{"type": "boolean", "description": "Also return per-label thinking and a reflection.", "default": false}
	return props
}

// confidenceNote tells callers what each row costs and returns regardless of include_reasoning.
const confidenceNote = "A confidence in [0,1] is always requested and written as <field>_confidence; " +
	"include_reasoning adds <field>_thinking and <field>_reflection."

// Definitions lists every tool with its JSON input schema.
func Definitions() []Definition {
	return []Definition{
		{
			Name:        ToolPreviewCSV,
			Description: "Preview the first rows of a CSV file to understand its structure.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"csv_path": str("Path to the CSV file."),
					"rows": map[string]any{
						"type":        "integer",
						"description": "Number of rows to preview. 0 or omitted means the server default (PREVIEW_ROWS, 5 unless configured); the row count is always reported in full.",
						"default":     csvio.DefaultPreviewRows,
						"minimum":     0,
						"maximum":     1000,
					},
				},
				"required": []string{"csv_path"},
			},
		},
		{
			Name:        ToolTagCSV,
			Description: "Tag every row of a CSV file with one label from a list, using one LLM request per row. " + confidenceNote,
			InputSchema: map[string]any{
				"type": "object",
				"properties": runProperties(map[string]any{
					"taxonomy":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 1, "description": "Allowed labels."},
					"field_name": map[string]any{"type": "string", "description": "Name of the output column.", "default": taxonomy.DefaultFieldName},
				}),
				"required": []string{"csv_path", "taxonomy"},
			},
		},
		{
			Name:        ToolTagCSVAdvanced,
			Description: "Tag every row of a CSV file along several fields, each with described values. " + confidenceNote,
			InputSchema: map[string]any{
				"type": "object",
				"properties": runProperties(map[string]any{
					"taxonomy": map[string]any{
						"type":        "object",
						"description": `Map of field name to {"description": string, "values": {label: description}}.`,
						"additionalProperties": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"description": map[string]any{"type": "string"},
								"values":      map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
							},
							"required": []string{"values"},
						},
					},
				}),
				"required": []string{"csv_path", "taxonomy"},
			},
		},
		{
			Name:        ToolTaggingInfo,
			Description: "Get information about the tagging server and supported providers.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}
