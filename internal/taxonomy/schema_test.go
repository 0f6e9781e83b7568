package taxonomy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentiment(t *testing.T) *Simple {
	t.Helper()
	s, err := NewSimple("sentiment", []string{"positive", "negative"})
	require.NoError(t, err)
	return s
}

func TestSimpleResponseSchema(t *testing.T) {
	s := sentiment(t)

	plain := s.ResponseSchema(false)
	assert.Equal(t, "object", plain.Type)
	assert.Equal(t, []string{PropValue, PropConfidence}, plain.Required)
	assert.Equal(t, []string{"positive", "negative"}, plain.Properties[PropValue].Enum)
	assert.NotContains(t, plain.Properties, PropThinking)
	require.NotNil(t, plain.AdditionalProperties)
	assert.False(t, *plain.AdditionalProperties)

	reasoning := s.ResponseSchema(true)
	assert.Equal(t, []string{PropThinking, PropReflection, PropValue, PropConfidence}, reasoning.Order)
	assert.Equal(t, []string{"positive", "negative"}, reasoning.Properties[PropThinking].Required)
}

func TestAdvancedResponseSchemaMap(t *testing.T) {
	a, err := NewAdvanced([]FieldSpec{
		{Name: "department", Description: "Owning team", Values: []Value{{Label: "sales"}, {Label: "support"}}},
		{Name: "priority", Values: []Value{{Label: "high"}, {Label: "low"}}},
	})
	require.NoError(t, err)

	m := a.ResponseSchema(false).Map()
	assert.Equal(t, "object", m["type"])
	assert.Equal(t, false, m["additionalProperties"])
	props := m["properties"].(map[string]any)
	dept := props["department"].(map[string]any)
	assert.Equal(t, "Owning team", dept["description"])
	assert.Equal(t, []any{"department", "priority"}, m["required"])
}

func TestSimpleDecode(t *testing.T) {
	s := sentiment(t)

	tests := []struct {
		name      string
		raw       string
		reasoning bool
		wantValue string
		wantConf  float64
		wantErr   string
	}{
		{name: "plain", raw: `{"selected_value":"positive","confidence":0.92}`, wantValue: "positive", wantConf: 0.92},
		{name: "fenced", raw: "```json\n{\"selected_value\":\"negative\",\"confidence\":0.5}\n```", wantValue: "negative", wantConf: 0.5},
		{name: "clamped", raw: `{"selected_value":"negative","confidence":7}`, wantValue: "negative", wantConf: 1},
		{name: "case folded", raw: `{"selected_value":"POSITIVE","confidence":0.1}`, wantValue: "positive", wantConf: 0.1},
		{name: "outside taxonomy", raw: `{"selected_value":"neutral","confidence":0.9}`, wantErr: "not in the taxonomy"},
		{name: "missing value", raw: `{"confidence":0.9}`, wantErr: "no selected_value"},
		{name: "not json", raw: `I think it is positive`, wantErr: "malformed structured output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Decode([]byte(tt.raw), tt.reasoning)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			d := got["sentiment"]
			assert.Equal(t, tt.wantValue, d.Value)
			require.NotNil(t, d.Confidence)
			assert.InDelta(t, tt.wantConf, *d.Confidence, 1e-9)
		})
	}
}

func TestDecodeDropsReasoningUnlessRequested(t *testing.T) {
	s := sentiment(t)
	raw := []byte(`{"thinking":{"positive":"upbeat","negative":"no complaints"},"reflection":"clear","selected_value":"positive","confidence":0.8}`)

	without, err := s.Decode(raw, false)
	require.NoError(t, err)
	assert.Nil(t, without["sentiment"].Thinking)
	assert.Empty(t, without["sentiment"].Reflection)

	with, err := s.Decode(raw, true)
	require.NoError(t, err)
	assert.Equal(t, "upbeat", with["sentiment"].Thinking["positive"])
	assert.Equal(t, "clear", with["sentiment"].Reflection)
}

func TestAdvancedDecode(t *testing.T) {
	a, err := NewAdvanced([]FieldSpec{
		{Name: "department", Values: []Value{{Label: "sales"}, {Label: "support"}}},
		{Name: "priority", Values: []Value{{Label: "high"}, {Label: "low"}}},
	})
	require.NoError(t, err)

	got, err := a.Decode([]byte(`{"department":{"selected_value":"support","confidence":0.7},"priority":{"selected_value":"high"}}`), false)
	require.NoError(t, err)
	assert.Equal(t, "support", got["department"].Value)
	assert.Equal(t, "high", got["priority"].Value)
	assert.Nil(t, got["priority"].Confidence)

	_, err = a.Decode([]byte(`{"department":{"selected_value":"support","confidence":0.7}}`), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing field "priority"`)
}

func TestSystemPromptListsLabelsAndSchema(t *testing.T) {
	a, err := NewAdvanced([]FieldSpec{
		{Name: "priority", Description: "Urgency", Values: []Value{{Label: "high", Description: "Act now"}, {Label: "low"}}},
	})
	require.NoError(t, err)

	prompt := SystemPrompt(a, true)
	assert.Contains(t, prompt, `Field "priority": Urgency`)
	assert.Contains(t, prompt, "- high: Act now")
	assert.Contains(t, prompt, "- low\n")
	assert.Contains(t, prompt, "explain for every label")

	schema, err := json.Marshal(a.ResponseSchema(true))
	require.NoError(t, err)
	assert.Contains(t, prompt, string(schema))

	assert.NotContains(t, SystemPrompt(sentiment(t), false), "explain")
	assert.Equal(t, "Analyze and tag the following text:\n\nhello", UserPrompt("hello"))
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(CleanJSON([]byte("Sure! {\"a\":1} Hope that helps."))))
	assert.Equal(t, `{"a":1}`, string(CleanJSON([]byte("```\n{\"a\":1}\n```"))))
	assert.Equal(t, `nope`, string(CleanJSON([]byte(" nope "))))
}
