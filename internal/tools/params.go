package tools

import (
	"bytes"
	"encoding/json"
	"strings"

	"tagging-mcp/internal/apperr"
	"tagging-mcp/internal/httputil"
	"tagging-mcp/internal/taxonomy"
)

// DefaultTextColumn is used when text_column is omitted.
const DefaultTextColumn = "text"

// PreviewParams are the arguments of preview_csv.
type PreviewParams struct {
	CSVPath string `json:"csv_path" validate:"required"`
	Rows    int    `json:"rows" validate:"gte=0,lte=1000"`
}

// RunParams are the arguments shared by both tagging tools.
type RunParams struct {
	CSVPath          string `json:"csv_path" validate:"required"`
	TextColumn       string `json:"text_column"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	APIKey           string `json:"api_key"`
	OutputPath       string `json:"output_path"`
	IncludeReasoning bool   `json:"include_reasoning"`
}

// TagParams are the arguments of tag_csv.
type TagParams struct {
	RunParams
	Taxonomy  []string `json:"taxonomy"`
	FieldName string   `json:"field_name"`
}

// TagAdvancedParams are the arguments of tag_csv_advanced.
type TagAdvancedParams struct {
	RunParams
	Taxonomy taxonomy.Specs `json:"taxonomy"`
}

// decodeParams strictly decodes tool arguments; absent arguments decode as an empty object.
func decodeParams(raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "invalid arguments")
	}
	return nil
}

func validateParams(p any) error {
	if err := httputil.Validator.Struct(p); err != nil {
		return apperr.New(apperr.KindValidation, "invalid arguments: %s", strings.Join(httputil.FieldErrors(err), "; "))
	}
	return nil
}

func (p *RunParams) applyDefaults(defaultProvider string) {
	if p.TextColumn == "" {
		p.TextColumn = DefaultTextColumn
	}
	if p.Provider == "" {
		p.Provider = defaultProvider
	}
}
