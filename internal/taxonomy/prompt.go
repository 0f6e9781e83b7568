package taxonomy

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt renders classification instructions for s.
func SystemPrompt(s Schema, includeReasoning bool) string {
	var b strings.Builder
	b.WriteString("You are a text classification expert. Your task is to analyze text and assign labels from a predefined taxonomy.\n\n")

	for _, f := range s.Fields() {
		if s.Kind() == KindAdvanced {
			fmt.Fprintf(&b, "Field %q", f.Name)
			if f.Description != "" {
				fmt.Fprintf(&b, ": %s", f.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("Available labels:\n")
		for _, v := range f.Values {
			if v.Description != "" {
				fmt.Fprintf(&b, "- %s: %s\n", v.Label, v.Description)
			} else {
				fmt.Fprintf(&b, "- %s\n", v.Label)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Rules:\n")
	b.WriteString("- Choose exactly one label per field\n")
	b.WriteString("- Only use labels from the provided list, spelled exactly as listed\n")
	b.WriteString("- Be precise and choose the most relevant label\n")
	b.WriteString("- Provide your confidence as a number between 0 and 1\n")
	if includeReasoning {
		b.WriteString("- Briefly explain for every label why it does or does not fit, then reflect on your choice\n")
	}

	schema, err := json.Marshal(s.ResponseSchema(includeReasoning))
	if err == nil {
		b.WriteString("\nRespond with a single JSON object matching this JSON schema and nothing else:\n")
		b.Write(schema)
		b.WriteString("\n")
	}
	return b.String()
}

// UserPrompt wraps one row's text.
func UserPrompt(text string) string {
	return "Analyze and tag the following text:\n\n" + text
}
