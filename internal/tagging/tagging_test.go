package tagging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tagging-mcp/internal/apperr"
	"tagging-mcp/internal/csvio"
	"tagging-mcp/internal/llm"
	"tagging-mcp/internal/taxonomy"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func forText(text string) any {
	return mock.MatchedBy(func(r llm.Request) bool {
		return strings.HasSuffix(r.User, "\n\n"+text)
	})
}

func sentiment(t *testing.T) taxonomy.Schema {
	t.Helper()
	s, err := taxonomy.NewSimple("sentiment", []string{"positive", "negative"})
	require.NoError(t, err)
	return s
}

func departments(t *testing.T) taxonomy.Schema {
	t.Helper()
	a, err := taxonomy.NewAdvanced([]taxonomy.FieldSpec{
		{Name: "department", Values: []taxonomy.Value{{Label: "sales"}, {Label: "support"}}},
		{Name: "priority", Values: []taxonomy.Value{{Label: "high"}, {Label: "low"}}},
	})
	require.NoError(t, err)
	return a
}

func TestTagAllRowsSucceed(t *testing.T) {
	client := &llm.MockClient{}
	client.On("Classify", mock.Anything, forText("I love it")).
		Return(`{"selected_value":"positive","confidence":0.9}`, nil).Once()
	client.On("Classify", mock.Anything, forText("Terrible")).
		Return(`{"selected_value":"negative","confidence":0.8}`, nil).Once()

	out := New(discardLogger(), 4).Tag(context.Background(), Request{
		Client: client,
		Schema: sentiment(t),
		Texts:  []string{"I love it", "Terrible"},
	})

	client.AssertExpectations(t)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 0, out.Failed)
	assert.Equal(t, StatusSuccess, out.Status())
	assert.Equal(t, "positive", out.Rows[0].Fields["sentiment"].Value)
	assert.Equal(t, "negative", out.Rows[1].Fields["sentiment"].Value)
}

func TestTagIsolatesRowFailures(t *testing.T) {
	client := &llm.MockClient{}
	client.On("Classify", mock.Anything, forText("ok")).
		Return(`{"selected_value":"positive","confidence":0.9}`, nil).Once()
	client.On("Classify", mock.Anything, forText("busy")).
		Return("", llm.ErrRateLimited).Once()

	out := New(discardLogger(), 2).Tag(context.Background(), Request{
		Client: client,
		Schema: sentiment(t),
		Texts:  []string{"ok", "busy"},
	})

	client.AssertNumberOfCalls(t, "Classify", 2)
	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, StatusPartial, out.Status())
	require.Error(t, out.Rows[1].Err)
	assert.ErrorIs(t, out.Rows[1].Err, llm.ErrRateLimited)
	assert.Equal(t, apperr.KindClassification, apperr.KindOf(out.Rows[1].Err))
	assert.Nil(t, out.Rows[1].Fields)
}

func TestTagRejectsValuesOutsideTaxonomy(t *testing.T) {
	client := &llm.MockClient{}
	client.On("Classify", mock.Anything, mock.Anything).
		Return(`{"selected_value":"neutral","confidence":0.5}`, nil)

	out := New(discardLogger(), 1).Tag(context.Background(), Request{
		Client: client,
		Schema: sentiment(t),
		Texts:  []string{"meh", "hm"},
	})

	assert.Equal(t, 2, out.Failed)
	assert.Equal(t, StatusFailed, out.Status())
	assert.ErrorContains(t, out.Rows[0].Err, "not in the taxonomy")
}

func TestTagOneRequestPerRowWithSharedPrompt(t *testing.T) {
	schema := sentiment(t)
	texts := []string{"a", "b", "", "d", "e", "f", "g"}
	client := &llm.MockClient{}
	client.On("Classify", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
		return r.System == taxonomy.SystemPrompt(schema, true) && r.Schema != nil
	})).Return(`{"thinking":{"positive":"x","negative":"y"},"reflection":"r","selected_value":"negative","confidence":0.3}`, nil)

	var progress atomic.Int32
	out := New(discardLogger(), 3).Tag(context.Background(), Request{
		Client:           client,
		Schema:           schema,
		Texts:            texts,
		IncludeReasoning: true,
		Progress: func(done, total int) {
			assert.Equal(t, len(texts), total)
			progress.Add(1)
		},
	})

	client.AssertNumberOfCalls(t, "Classify", len(texts))
	assert.Equal(t, int32(len(texts)), progress.Load())
	require.Len(t, out.Rows, len(texts))
	for i, row := range out.Rows {
		assert.Equal(t, i, row.Index)
		require.NoError(t, row.Err)
		assert.Equal(t, "r", row.Fields["sentiment"].Reflection)
	}
}

func TestTagEmptyRun(t *testing.T) {
	client := &llm.MockClient{}
	out := New(discardLogger(), 0).Tag(context.Background(), Request{Client: client, Schema: sentiment(t)})
	client.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
	assert.Equal(t, 0, out.Total)
	assert.Equal(t, StatusSuccess, out.Status())
}

func TestSummarize(t *testing.T) {
	lo, hi := 0.2, 0.8
	out := Outcome{Rows: []RowResult{
		{Index: 0, Fields: map[string]taxonomy.Decoded{"sentiment": {Value: "positive", Confidence: &hi}}},
		{Index: 1, Fields: map[string]taxonomy.Decoded{"sentiment": {Value: "positive", Confidence: &lo}}},
		{Index: 2, Err: errors.New("boom")},
	}}

	s := out.Summarize(sentiment(t))
	fs := s.Fields["sentiment"]
	assert.Equal(t, map[string]int{"positive": 2, "negative": 0}, fs.Counts)
	require.NotNil(t, fs.MeanConfidence)
	assert.InDelta(t, 0.5, *fs.MeanConfidence, 1e-9)
	assert.InDelta(t, 0.2, *fs.MinConfidence, 1e-9)
	assert.InDelta(t, 0.8, *fs.MaxConfidence, 1e-9)
	assert.Equal(t, []RowError{{Row: 2, Error: "boom"}}, s.Errors)
}

func TestSummarizeCapsErrors(t *testing.T) {
	var out Outcome
	for i := 0; i < 10; i++ {
		out.Rows = append(out.Rows, RowResult{Index: i, Err: errors.New("x")})
	}
	s := out.Summarize(sentiment(t))
	assert.Len(t, s.Errors, maxSummaryErrors)
	assert.Nil(t, s.Fields["sentiment"].MeanConfidence)
}

func table(texts ...string) csvio.Table {
	t := csvio.Table{Columns: []string{"id", "text"}}
	for i, text := range texts {
		t.Rows = append(t.Rows, csvio.Row{Index: i, Values: map[string]string{"id": string(rune('a' + i)), "text": text}})
	}
	return t
}

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{"sentiment", "sentiment_confidence", "error"}, Columns(sentiment(t), false))
	assert.Equal(t,
		[]string{"sentiment", "sentiment_confidence", "sentiment_thinking", "sentiment_reflection", "error"},
		Columns(sentiment(t), true))
	assert.Equal(t,
		[]string{"department", "department_confidence", "priority", "priority_confidence", "error"},
		Columns(departments(t), false))
}

func TestCheckColumns(t *testing.T) {
	assert.NoError(t, CheckColumns([]string{"id", "text"}, sentiment(t), true))

	err := CheckColumns([]string{"text", "sentiment", "error"}, sentiment(t), false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "sentiment, error")

	assert.NoError(t, CheckColumns([]string{"text", "sentiment_thinking"}, sentiment(t), false))
}

func TestCheckColumnsRejectsCollidingFields(t *testing.T) {
	errorField, err := taxonomy.NewSimple(ErrorColumn, []string{"a", "b"})
	require.NoError(t, err)
	pair, err := taxonomy.NewAdvanced([]taxonomy.FieldSpec{
		{Name: "x", Values: []taxonomy.Value{{Label: "a"}}},
		{Name: "x_confidence", Values: []taxonomy.Value{{Label: "b"}}},
	})
	require.NoError(t, err)
	reasoning, err := taxonomy.NewAdvanced([]taxonomy.FieldSpec{
		{Name: "x", Values: []taxonomy.Value{{Label: "a"}}},
		{Name: "x_reflection", Values: []taxonomy.Value{{Label: "b"}}},
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		schema    taxonomy.Schema
		reasoning bool
		wantDup   string
	}{
		{name: "field named error", schema: errorField, wantDup: "error"},
		{name: "field and confidence suffix", schema: pair, wantDup: "x_confidence"},
		{name: "field and reflection suffix with reasoning", schema: reasoning, reasoning: true, wantDup: "x_reflection"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckColumns([]string{"id", "text"}, tt.schema, tt.reasoning)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Contains(t, err.Error(), "duplicate output columns: "+tt.wantDup)
		})
	}

	assert.NoError(t, CheckColumns([]string{"id", "text"}, reasoning, false), "x_reflection is only appended with reasoning")
}

func TestMerge(t *testing.T) {
	conf := 0.9
	tbl := table("great", "rate limited")
	out := Outcome{Rows: []RowResult{
		{Index: 0, Fields: map[string]taxonomy.Decoded{"sentiment": {Value: "positive", Confidence: &conf}}},
		{Index: 1, Err: errors.New("provider request failed: 429")},
	}}

	m := Merge(tbl, out, sentiment(t), false)
	assert.Equal(t, []string{"id", "text", "sentiment", "sentiment_confidence", "error"}, m.Columns)
	require.Len(t, m.Rows, 2)
	assert.Equal(t, "great", m.Rows[0]["text"])
	assert.Equal(t, "positive", m.Rows[0]["sentiment"])
	assert.Equal(t, "0.9", m.Rows[0]["sentiment_confidence"])
	assert.Equal(t, "", m.Rows[0]["error"])

	assert.Equal(t, "rate limited", m.Rows[1]["text"])
	assert.Equal(t, "", m.Rows[1]["sentiment"])
	assert.Equal(t, "provider request failed: 429", m.Rows[1]["error"])
	assert.Equal(t, "rate limited", tbl.Rows[1].Values["text"], "input rows are not modified")
	assert.NotContains(t, tbl.Rows[0].Values, "sentiment")

	assert.Equal(t, [][]string{
		{"great", "positive", "0.9", ""},
		{"rate limited", "", "", "provider request failed: 429"},
	}, dropID(m.Records()))

	head := m.Head(5)
	require.Len(t, head, 2)
	assert.Nil(t, head[1]["sentiment"])
	assert.Nil(t, head[0]["error"])
	assert.Equal(t, "a", head[0]["id"])
	assert.Len(t, m.Head(1), 1)
}

func TestMergeReasoningColumns(t *testing.T) {
	conf := 0.4
	out := Outcome{Rows: []RowResult{{
		Index: 0,
		Fields: map[string]taxonomy.Decoded{"sentiment": {
			Value: "negative", Confidence: &conf,
			Thinking:   map[string]string{"positive": "no", "negative": "yes"},
			Reflection: "clearly negative",
		}},
	}}}

	m := Merge(table("bad"), out, sentiment(t), true)
	assert.JSONEq(t, `{"positive":"no","negative":"yes"}`, m.Rows[0]["sentiment_thinking"])
	assert.Equal(t, "clearly negative", m.Rows[0]["sentiment_reflection"])

	plain := Merge(table("bad"), out, sentiment(t), false)
	assert.NotContains(t, plain.Columns, "sentiment_thinking")
	assert.NotContains(t, plain.Rows[0], "sentiment_reflection")
}

func TestMergeAdvancedColumns(t *testing.T) {
	out := Outcome{Rows: []RowResult{{
		Index: 0,
		Fields: map[string]taxonomy.Decoded{
			"department": {Value: "support"},
			"priority":   {Value: "high"},
		},
	}}}
	m := Merge(table("refund please"), out, departments(t), false)
	assert.Equal(t, []string{"id", "text", "department", "department_confidence", "priority", "priority_confidence", "error"}, m.Columns)
	assert.Equal(t, "support", m.Rows[0]["department"])
	assert.Equal(t, "high", m.Rows[0]["priority"])
	assert.Equal(t, "", m.Rows[0]["priority_confidence"])
}

func dropID(records [][]string) [][]string {
	out := make([][]string, len(records))
	for i, r := range records {
		out[i] = r[1:]
	}
	return out
}
