package taxonomy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// JSON property names of one field's classification.
const (
	PropThinking   = "thinking"
	PropReflection = "reflection"
	PropValue      = "selected_value"
	PropConfidence = "confidence"
)

// JSONSchema is the subset of JSON Schema every supported provider accepts.
// Order lists property names in the order the model should produce them.
type JSONSchema struct {
	Type                 string                 `json:"type"`
	Description          string                 `json:"description,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`
	Order                []string               `json:"-"`
}

// Map returns the schema as a generic JSON value, as SDKs taking `any` expect.
func (s *JSONSchema) Map() map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}

func object(order []string, props map[string]*JSONSchema) *JSONSchema {
	closed := false
	return &JSONSchema{
		Type:                 "object",
		Properties:           props,
		Required:             append([]string(nil), order...),
		AdditionalProperties: &closed,
		Order:                order,
	}
}

// fieldSchema is the per-field response object. Reasoning properties come first so the
// model explains before it commits to a value.
func fieldSchema(f Field, includeReasoning bool) *JSONSchema {
	props := map[string]*JSONSchema{
		PropValue: {
			Type:        "string",
			Description: fmt.Sprintf("The single best label for %q.", f.Name),
			Enum:        f.Labels(),
		},
		PropConfidence: {
			Type:        "number",
			Description: "Confidence in the selected value, from 0 to 1.",
		},
	}
	order := []string{PropValue, PropConfidence}
	if includeReasoning {
		labels := f.Labels()
		thinking := make(map[string]*JSONSchema, len(labels))
		for _, l := range labels {
			thinking[l] = &JSONSchema{Type: "string", Description: fmt.Sprintf("Why the text does or does not fit %q.", l)}
		}
		props[PropThinking] = object(labels, thinking)
		props[PropThinking].Description = "A short explanation for every label."
		props[PropReflection] = &JSONSchema{Type: "string", Description: "A brief reflection on the final choice."}
		order = append([]string{PropThinking, PropReflection}, order...)
	}
	s := object(order, props)
	s.Description = f.Description
	return s
}

// ResponseSchema implements Schema: the field object itself.
func (s *Simple) ResponseSchema(includeReasoning bool) *JSONSchema {
	return fieldSchema(s.field, includeReasoning)
}

// ResponseSchema implements Schema: one property per field.
func (a *Advanced) ResponseSchema(includeReasoning bool) *JSONSchema {
	order := make([]string, 0, len(a.fields))
	props := make(map[string]*JSONSchema, len(a.fields))
	for _, f := range a.fields {
		order = append(order, f.Name)
		props[f.Name] = fieldSchema(f, includeReasoning)
	}
	return object(order, props)
}

type rawField struct {
	Thinking      map[string]string `json:"thinking"`
	Reflection    string            `json:"reflection"`
	SelectedValue *string           `json:"selected_value"`
	Confidence    *float64          `json:"confidence"`
}

// Decode implements Schema.
func (s *Simple) Decode(raw []byte, includeReasoning bool) (map[string]Decoded, error) {
	var rf rawField
	if err := json.Unmarshal(CleanJSON(raw), &rf); err != nil {
		return nil, fmt.Errorf("malformed structured output: %w", err)
	}
	d, err := decodeField(s.field, rf, includeReasoning)
	if err != nil {
		return nil, err
	}
	return map[string]Decoded{s.field.Name: d}, nil
}

// Decode implements Schema.
func (a *Advanced) Decode(raw []byte, includeReasoning bool) (map[string]Decoded, error) {
	var byField map[string]rawField
	if err := json.Unmarshal(CleanJSON(raw), &byField); err != nil {
		return nil, fmt.Errorf("malformed structured output: %w", err)
	}
	out := make(map[string]Decoded, len(a.fields))
	for _, f := range a.fields {
		rf, ok := byField[f.Name]
		if !ok {
			return nil, fmt.Errorf("structured output is missing field %q", f.Name)
		}
		d, err := decodeField(f, rf, includeReasoning)
		if err != nil {
			return nil, err
		}
		out[f.Name] = d
	}
	return out, nil
}

func decodeField(f Field, rf rawField, includeReasoning bool) (Decoded, error) {
	if rf.SelectedValue == nil {
		return Decoded{}, fmt.Errorf("structured output for %q has no %s", f.Name, PropValue)
	}
	label, ok := f.Canonical(*rf.SelectedValue)
	if !ok {
		return Decoded{}, fmt.Errorf("value %q for %q is not in the taxonomy", *rf.SelectedValue, f.Name)
	}
	d := Decoded{Value: label}
	if rf.Confidence != nil {
		c := clamp(*rf.Confidence)
		d.Confidence = &c
	}
	if includeReasoning {
		d.Thinking = rf.Thinking
		d.Reflection = rf.Reflection
	}
	return d, nil
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// CleanJSON strips markdown code fences and any prose around the outermost JSON object.
func CleanJSON(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return bytes.TrimSpace([]byte(s))
}
