// Package tagging classifies the text of every CSV row against a taxonomy and merges the
// results back onto the rows.
package tagging

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"tagging-mcp/internal/apperr"
	"tagging-mcp/internal/batch"
	"tagging-mcp/internal/llm"
	"tagging-mcp/internal/taxonomy"
)

// Request is one tagging run over already loaded texts.
type Request struct {
	Client           llm.Client
	Schema           taxonomy.Schema
	Texts            []string
	IncludeReasoning bool
	// Progress, when set, is called after every row with the number of finished rows.
	// It may be called from several goroutines.
	Progress func(done, total int)
}

// RowResult is the classification of one row. Fields is nil when Err is set.
type RowResult struct {
	Index  int
	Fields map[string]taxonomy.Decoded
	Err    error
}

// Outcome holds one result per input row, in input order.
type Outcome struct {
	Rows      []RowResult
	Total     int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Tagger runs classification requests with bounded concurrency.
type Tagger struct {
	log   *slog.Logger
	limit int
}

// New returns a Tagger issuing at most limit provider calls at a time.
func New(log *slog.Logger, limit int) *Tagger {
	if limit <= 0 {
		limit = batch.DefaultLimit
	}
	return &Tagger{log: log, limit: limit}
}

// Tag sends exactly one classification request per text. Row failures never abort the run.
func (t *Tagger) Tag(ctx context.Context, req Request) Outcome {
	start := time.Now()
	base := llm.Request{
		System:     taxonomy.SystemPrompt(req.Schema, req.IncludeReasoning),
		SchemaName: llm.DefaultSchemaName,
		Schema:     req.Schema.ResponseSchema(req.IncludeReasoning),
	}
	total := len(req.Texts)
	var done atomic.Int64

	results := batch.Run(ctx, total, t.limit, func(ctx context.Context, i int) (map[string]taxonomy.Decoded, error) {
		defer func() {
			if req.Progress != nil {
				req.Progress(int(done.Add(1)), total)
			}
		}()
		call := base
		call.User = taxonomy.UserPrompt(req.Texts[i])
		raw, err := req.Client.Classify(ctx, call)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindClassification, err, "provider request failed")
		}
		fields, err := req.Schema.Decode([]byte(raw), req.IncludeReasoning)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindClassification, err, "invalid classification")
		}
		return fields, nil
	})

	out := Outcome{Rows: make([]RowResult, total), Total: total}
	for i, r := range results {
		out.Rows[i] = RowResult{Index: i, Fields: r.Value, Err: r.Err}
		if r.Err != nil {
			out.Failed++
			t.log.Warn("row classification failed", "row", i, "err", r.Err)
			continue
		}
		out.Succeeded++
	}
	out.Duration = time.Since(start)
	t.log.Info("tagging run finished",
		"total", out.Total,
		"succeeded", out.Succeeded,
		"failed", out.Failed,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out
}

// Status values reported for a completed run.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Status summarizes row outcomes: success when every row succeeded, failed when none did.
// An empty run is a success.
func (o Outcome) Status() string {
	switch {
	case o.Failed == 0:
		return StatusSuccess
	case o.Succeeded == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// Limit reports the maximum number of concurrent provider calls.
func (t *Tagger) Limit() int {
	return t.limit
}
