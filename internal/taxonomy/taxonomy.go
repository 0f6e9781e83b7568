// Package taxonomy turns caller-supplied label sets into a closed, provider-agnostic
// structured-output schema.
//
// Two variants exist: Simple (one field, plain labels) and Advanced (several named fields,
// each with described values). Both implement Schema so the tagging pipeline never branches
// on taxonomy shape.
package taxonomy

import (
	"strings"

	"tagging-mcp/internal/apperr"
)

// Kind identifies the Schema variant.
type Kind string

const (
	KindSimple   Kind = "simple"
	KindAdvanced Kind = "advanced"
)

// DefaultFieldName is the output column used by simple taxonomies when none is given.
const DefaultFieldName = "category"

// Value is one allowed label of a field.
type Value struct {
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Field is one classification dimension with a closed set of values.
type Field struct {
	Name        string
	Description string
	Values      []Value
}

// Labels returns the field's labels in declared order.
func (f Field) Labels() []string {
	out := make([]string, len(f.Values))
	for i, v := range f.Values {
		out[i] = v.Label
	}
	return out
}

// Canonical maps a model-returned label onto the field's declared label.
// Exact matches win; otherwise a trimmed, case-insensitive match is accepted.
func (f Field) Canonical(label string) (string, bool) {
	for _, v := range f.Values {
		if v.Label == label {
			return v.Label, true
		}
	}
	trimmed := strings.TrimSpace(label)
	for _, v := range f.Values {
		if strings.EqualFold(v.Label, trimmed) {
			return v.Label, true
		}
	}
	return "", false
}

// Schema is the normalized form of a taxonomy.
type Schema interface {
	Kind() Kind
	// Fields returns the classification fields in output order.
	Fields() []Field
	// ResponseSchema describes the JSON object a provider must return for one row.
	ResponseSchema(includeReasoning bool) *JSONSchema
	// Decode parses one provider response into per-field results keyed by field name.
	Decode(raw []byte, includeReasoning bool) (map[string]Decoded, error)
}

// Decoded is the validated classification of one field for one row.
type Decoded struct {
	Value      string
	Confidence *float64
	Thinking   map[string]string
	Reflection string
}

// Simple is a single-field taxonomy built from a list of labels.
type Simple struct {
	field Field
}

// NewSimple validates labels and returns a single-field schema named fieldName.
func NewSimple(fieldName string, labels []string) (*Simple, error) {
	if strings.TrimSpace(fieldName) == "" {
		fieldName = DefaultFieldName
	}
	if err := validateName("field_name", fieldName); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, apperr.New(apperr.KindValidation, "taxonomy must contain at least one label")
	}
	values := make([]Value, 0, len(labels))
	for _, l := range labels {
		values = append(values, Value{Label: l})
	}
	field := Field{Name: fieldName, Values: values}
	if err := validateValues(field); err != nil {
		return nil, err
	}
	return &Simple{field: field}, nil
}

func (s *Simple) Kind() Kind { return KindSimple }

func (s *Simple) Fields() []Field { return []Field{s.field} }

// FieldSpec is the caller-facing description of one advanced field.
type FieldSpec struct {
	Name        string
	Description string
	Values      []Value
}

// Advanced is a multi-field taxonomy.
type Advanced struct {
	fields []Field
}

// NewAdvanced validates specs and returns a multi-field schema preserving spec order.
func NewAdvanced(specs []FieldSpec) (*Advanced, error) {
	if len(specs) == 0 {
		return nil, apperr.New(apperr.KindValidation, "taxonomy must contain at least one field")
	}
	seen := make(map[string]bool, len(specs))
	fields := make([]Field, 0, len(specs))
	for _, spec := range specs {
		if err := validateName("field name", spec.Name); err != nil {
			return nil, err
		}
		if seen[spec.Name] {
			return nil, apperr.New(apperr.KindValidation, "duplicate field name %q in taxonomy", spec.Name)
		}
		seen[spec.Name] = true
		field := Field{Name: spec.Name, Description: spec.Description, Values: spec.Values}
		if len(field.Values) == 0 {
			return nil, apperr.New(apperr.KindValidation, "field %q must have at least one value", spec.Name)
		}
		if err := validateValues(field); err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return &Advanced{fields: fields}, nil
}

func (a *Advanced) Kind() Kind { return KindAdvanced }

func (a *Advanced) Fields() []Field {
	out := make([]Field, len(a.fields))
	copy(out, a.fields)
	return out
}

func validateName(what, name string) error {
	if name == "" || strings.TrimSpace(name) == "" {
		return apperr.New(apperr.KindValidation, "%s must not be empty", what)
	}
	if strings.TrimSpace(name) != name {
		return apperr.New(apperr.KindValidation, "%s %q must not have leading or trailing spaces", what, name)
	}
	return nil
}

func validateValues(f Field) error {
	seen := make(map[string]bool, len(f.Values))
	for _, v := range f.Values {
		if strings.TrimSpace(v.Label) == "" {
			return apperr.New(apperr.KindValidation, "field %q contains an empty label", f.Name)
		}
		if seen[v.Label] {
			return apperr.New(apperr.KindValidation, "duplicate label %q in field %q", v.Label, f.Name)
		}
		seen[v.Label] = true
	}
	return nil
}
