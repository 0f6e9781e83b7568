package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NewNATS constructs a thin NATS-based bus publishing on subject.
func NewNATS(log *slog.Logger, nc *nats.Conn, subject string) Bus {
	return &natsBus{log: log, nc: nc, subject: subject}
}

type natsBus struct {
	log     *slog.Logger
	nc      *nats.Conn
	subject string
}

func (b *natsBus) Publish(_ context.Context, ev RunCompleted) error {
	if ev.RunID == uuid.Nil {
		return errors.New("run id required")
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Type == "" {
		ev.Type = TypeRunCompleted
	}
	if ev.FinishedAt.IsZero() {
		ev.FinishedAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.nc.Publish(b.subject, body)
}

func (b *natsBus) Subscribe(ctx context.Context, handler Handler) error {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		b.handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (b *natsBus) handleMessage(ctx context.Context, msg *nats.Msg, handler Handler) {
	var ev RunCompleted
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		b.log.Error("failed to decode event", "subject", msg.Subject, "err", err)
		return
	}
	if err := handler(ctx, ev); err != nil {
		b.log.Error("event handler failed", "id", ev.ID, "run_id", ev.RunID, "err", err)
	}
}
