package taxonomy

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Specs is an advanced taxonomy as supplied by a caller:
//
//	{"department": {"description": "...", "values": {"sales": "...", "support": "..."}}}
//
// Decoding keeps declared key order and keeps duplicates so NewAdvanced can reject them;
// "values" may also be a plain list of labels.
type Specs []FieldSpec

// UnmarshalJSON implements json.Unmarshaler.
func (s *Specs) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*s = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf("taxonomy: %w", err)
	}
	out := Specs{}
	for dec.More() {
		name, err := nextKey(dec)
		if err != nil {
			return fmt.Errorf("taxonomy: %w", err)
		}
		var raw struct {
			Description string          `json:"description"`
			Values      json.RawMessage `json:"values"`
		}
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("taxonomy field %q: %w", name, err)
		}
		values, err := decodeValuesJSON(raw.Values)
		if err != nil {
			return fmt.Errorf("taxonomy field %q: %w", name, err)
		}
		out = append(out, FieldSpec{Name: name, Description: raw.Description, Values: values})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return fmt.Errorf("taxonomy: %w", err)
	}
	*s = out
	return nil
}

// MarshalJSON writes the caller-facing object form in field order.
func (s Specs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(`:{"description":`)
		desc, err := json.Marshal(f.Description)
		if err != nil {
			return nil, err
		}
		buf.Write(desc)
		buf.WriteString(`,"values":{`)
		for j, v := range f.Values {
			if j > 0 {
				buf.WriteByte(',')
			}
			label, err := json.Marshal(v.Label)
			if err != nil {
				return nil, err
			}
			vd, err := json.Marshal(v.Description)
			if err != nil {
				return nil, err
			}
			buf.Write(label)
			buf.WriteByte(':')
			buf.Write(vd)
		}
		buf.WriteString("}}")
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler with the same shape as UnmarshalJSON.
func (s *Specs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("taxonomy: line %d: expected a mapping of field names", node.Line)
	}
	out := Specs{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, body := node.Content[i], node.Content[i+1]
		spec := FieldSpec{Name: key.Value}
		if body.Kind != yaml.MappingNode {
			return fmt.Errorf("taxonomy field %q: line %d: expected a mapping", key.Value, body.Line)
		}
		for j := 0; j+1 < len(body.Content); j += 2 {
			k, v := body.Content[j], body.Content[j+1]
			switch k.Value {
			case "description":
				spec.Description = v.Value
			case "values":
				values, err := decodeValuesYAML(v)
				if err != nil {
					return fmt.Errorf("taxonomy field %q: %w", key.Value, err)
				}
				spec.Values = values
			}
		}
		out = append(out, spec)
	}
	*s = out
	return nil
}

func decodeValuesJSON(data json.RawMessage) ([]Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || isNull(data) {
		return nil, nil
	}
	if data[0] == '[' {
		var labels []string
		if err := json.Unmarshal(data, &labels); err != nil {
			return nil, err
		}
		values := make([]Value, len(labels))
		for i, l := range labels {
			values[i] = Value{Label: l}
		}
		return values, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("values: %w", err)
	}
	var values []Value
	for dec.More() {
		label, err := nextKey(dec)
		if err != nil {
			return nil, fmt.Errorf("values: %w", err)
		}
		var desc string
		if err := dec.Decode(&desc); err != nil {
			return nil, fmt.Errorf("value %q: description must be a string", label)
		}
		values = append(values, Value{Label: label, Description: desc})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("values: %w", err)
	}
	return values, nil
}

func decodeValuesYAML(node *yaml.Node) ([]Value, error) {
	switch node.Kind {
	case yaml.SequenceNode:
		values := make([]Value, 0, len(node.Content))
		for _, item := range node.Content {
			values = append(values, Value{Label: item.Value})
		}
		return values, nil
	case yaml.MappingNode:
		values := make([]Value, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			values = append(values, Value{Label: node.Content[i].Value, Description: node.Content[i+1].Value})
		}
		return values, nil
	default:
		return nil, fmt.Errorf("line %d: values must be a mapping or a list", node.Line)
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func nextKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
