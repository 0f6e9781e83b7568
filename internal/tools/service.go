// Package tools implements the four CSV tagging tools independently of any transport.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tagging-mcp/internal/apperr"
	"tagging-mcp/internal/csvio"
	"tagging-mcp/internal/events"
	"tagging-mcp/internal/llm"
	"tagging-mcp/internal/provider"
	"tagging-mcp/internal/tagging"
	"tagging-mcp/internal/taxonomy"
)

// Tool names as exposed to callers.
const (
	ToolPreviewCSV     = "preview_csv"
	ToolTagCSV         = "tag_csv"
	ToolTagCSVAdvanced = "tag_csv_advanced"
	ToolTaggingInfo    = "get_tagging_info"
)

// Options configures a Service.
type Options struct {
	DefaultProvider string
	PreviewRows     int
	MaxConcurrency  int
	// Progress is forwarded to every tagging run. Optional.
	Progress func(done, total int)
}

// Service runs the tools. It holds no per-call state.
type Service struct {
	log      *slog.Logger
	resolver *provider.Resolver
	factory  llm.Factory
	tagger   *tagging.Tagger
	bus      events.Bus
	opts     Options
}

// NewService wires a Service. A nil bus disables run events.
func NewService(log *slog.Logger, resolver *provider.Resolver, factory llm.Factory, bus events.Bus, opts Options) *Service {
	if opts.DefaultProvider == "" {
		opts.DefaultProvider = string(provider.Groq)
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = csvio.DefaultPreviewRows
	}
	if bus == nil {
		bus = events.Noop{}
	}
	return &Service{
		log:      log,
		resolver: resolver,
		factory:  factory,
		tagger:   tagging.New(log, opts.MaxConcurrency),
		bus:      bus,
		opts:     opts,
	}
}

// Call runs the named tool with JSON arguments. The returned value is always
// JSON-serializable; isError reports whether the tool call failed.
func (s *Service) Call(ctx context.Context, name string, args json.RawMessage) (result any, isError bool) {
	switch name {
	case ToolPreviewCSV:
		var p PreviewParams
		if err := decodeParams(args, &p); err != nil {
			return NewFailure(err), true
		}
		res, err := s.Preview(ctx, p)
		if err != nil {
			return NewFailure(err), true
		}
		return res, false
	case ToolTagCSV:
		var p TagParams
		if err := decodeParams(args, &p); err != nil {
			return NewFailure(err), true
		}
		return tagOutcome(s.TagSimple(ctx, p))
	case ToolTagCSVAdvanced:
		var p TagAdvancedParams
		if err := decodeParams(args, &p); err != nil {
			return NewFailure(err), true
		}
		return tagOutcome(s.TagAdvanced(ctx, p))
	case ToolTaggingInfo:
		return s.Info(), false
	default:
		return NewFailure(apperr.New(apperr.KindNotFound, "unknown tool %q", name)), true
	}
}

func tagOutcome(res TagResult, err error) (any, bool) {
	if err == nil {
		return res, false
	}
	if res.Error != nil {
		return res, true
	}
	return NewFailure(err), true
}

// Preview runs preview_csv.
func (s *Service) Preview(_ context.Context, p PreviewParams) (PreviewResult, error) {
	if err := validateParams(p); err != nil {
		return PreviewResult{}, err
	}
	if p.Rows == 0 {
		p.Rows = s.opts.PreviewRows
	}
	pv, err := csvio.ReadPreview(p.CSVPath, p.Rows)
	if err != nil {
		return PreviewResult{}, err
	}
	rows := make([]map[string]string, len(pv.Rows))
	for i, r := range pv.Rows {
		rows[i] = r.Values
	}
	return PreviewResult{
		Status:   tagging.StatusSuccess,
		Columns:  pv.Columns,
		RowCount: pv.RowCount,
		Preview:  rows,
	}, nil
}

// TagSimple runs tag_csv.
func (s *Service) TagSimple(ctx context.Context, p TagParams) (TagResult, error) {
	return s.run(ctx, ToolTagCSV, p.RunParams, p, func() (taxonomy.Schema, error) {
		return taxonomy.NewSimple(p.FieldName, p.Taxonomy)
	})
}

// TagAdvanced runs tag_csv_advanced.
func (s *Service) TagAdvanced(ctx context.Context, p TagAdvancedParams) (TagResult, error) {
	return s.run(ctx, ToolTagCSVAdvanced, p.RunParams, p, func() (taxonomy.Schema, error) {
		return taxonomy.NewAdvanced(p.Taxonomy)
	})
}

// run validates everything that can fail before the first provider call, then classifies,
// merges and optionally writes. Nothing is dispatched unless every check passed.
func (s *Service) run(ctx context.Context, tool string, rp RunParams, params any, buildSchema func() (taxonomy.Schema, error)) (TagResult, error) {
	if err := validateParams(params); err != nil {
		return TagResult{}, err
	}
	rp.applyDefaults(s.opts.DefaultProvider)
	if err := csvio.Exists(rp.CSVPath); err != nil {
		return TagResult{}, err
	}
	schema, err := buildSchema()
	if err != nil {
		return TagResult{}, err
	}
	cfg, err := s.resolver.Resolve(rp.Provider, rp.Model, rp.APIKey)
	if err != nil {
		return TagResult{}, err
	}
	table, err := csvio.Load(rp.CSVPath, rp.TextColumn)
	if err != nil {
		return TagResult{}, err
	}
	if err := tagging.CheckColumns(table.Columns, schema, rp.IncludeReasoning); err != nil {
		return TagResult{}, err
	}
	client, err := s.factory(ctx, cfg)
	if err != nil {
		return TagResult{}, apperr.Wrap(apperr.KindCredential, err, "failed to initialize %s client", cfg.Name)
	}

	runID := uuid.New()
	log := s.log.With("run_id", runID, "tool", tool, "provider", cfg.Name, "model", cfg.Model)
	log.Info("tagging run started", "rows", len(table.Rows), "key_source", cfg.KeySource, "include_reasoning", rp.IncludeReasoning)

	texts := make([]string, len(table.Rows))
	for i, row := range table.Rows {
		texts[i] = row.Values[rp.TextColumn]
	}
	out := s.tagger.Tag(ctx, tagging.Request{
		Client:           client,
		Schema:           schema,
		Texts:            texts,
		IncludeReasoning: rp.IncludeReasoning,
		Progress:         s.opts.Progress,
	})
	merged := tagging.Merge(table, out, schema, rp.IncludeReasoning)

	res := TagResult{
		Status:     out.Status(),
		RunID:      runID.String(),
		Provider:   string(cfg.Name),
		Model:      cfg.Model,
		TotalRows:  out.Total,
		Succeeded:  out.Succeeded,
		Failed:     out.Failed,
		Columns:    merged.Columns,
		OutputPath: rp.OutputPath,
		Preview:    merged.Head(s.opts.PreviewRows),
		Summary:    out.Summarize(schema),
	}
	res.Message = fmt.Sprintf("Tagged %d of %d rows", out.Succeeded, out.Total)
	if out.Failed > 0 {
		res.Message += fmt.Sprintf("; %d failed", out.Failed)
	}

	var writeErr error
	if rp.OutputPath != "" {
		writeErr = csvio.Write(rp.OutputPath, merged.Columns, merged.Records())
		if writeErr != nil {
			log.Error("failed to write output", "output_path", rp.OutputPath, "err", writeErr)
			body := NewErrorBody(writeErr)
			res.Status = StatusError
			res.Error = &body
			res.Message += "; classification finished but the output file could not be written"
		} else {
			res.Written = true
			res.Message += "; output written to " + rp.OutputPath
		}
	}

	s.publish(ctx, log, events.RunCompleted{
		RunID:      runID,
		Tool:       tool,
		CSVPath:    rp.CSVPath,
		OutputPath: rp.OutputPath,
		Provider:   string(cfg.Name),
		Model:      cfg.Model,
		Status:     res.Status,
		Total:      out.Total,
		Succeeded:  out.Succeeded,
		Failed:     out.Failed,
		Written:    res.Written,
		DurationMS: out.Duration.Milliseconds(),
	})
	return res, writeErr
}

func (s *Service) publish(ctx context.Context, log *slog.Logger, ev events.RunCompleted) {
	ev.FinishedAt = time.Now().UTC()
	if err := events.PublishWithRetry(context.WithoutCancel(ctx), s.bus, ev, 3, 100*time.Millisecond); err != nil {
		log.Warn("failed to publish run event", "err", err)
	}
}
