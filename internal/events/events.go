// Package events publishes a record of every finished tagging run.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tagging-mcp/internal/retry"
)

// Type enumerates supported event categories.
type Type string

const TypeRunCompleted Type = "run.completed"

// RunCompleted describes one finished tag_csv or tag_csv_advanced call.
type RunCompleted struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	RunID      uuid.UUID `json:"run_id"`
	Tool       string    `json:"tool"`
	CSVPath    string    `json:"csv_path"`
	OutputPath string    `json:"output_path,omitempty"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Status     string    `json:"status"`
	Total      int       `json:"total_rows"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Written    bool      `json:"written"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

type Handler func(context.Context, RunCompleted) error

// Bus exposes a minimal contract to publish and consume run events.
type Bus interface {
	Publish(ctx context.Context, ev RunCompleted) error
	// Subscribe delivers events to handler until ctx is done.
	Subscribe(ctx context.Context, handler Handler) error
}

// PublishWithRetry attempts to publish with retries and exponential backoff.
func PublishWithRetry(ctx context.Context, b Bus, ev RunCompleted, attempts int, base time.Duration) error {
	return retry.Do(ctx, attempts, base, func(ctx context.Context) error {
		return b.Publish(ctx, ev)
	})
}
