package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bdobrica/Hanashi/common/trace"
	"github.com/bdobrica/Hanashi/internal/hanashi/observability"
	"github.com/bdobrica/Hanashi/internal/hanashi/store"
)

// Drain dispatches up to QueueBatch pending items and returns how many it
// claimed. Claimed items always end completed or failed; failures are not
// retried.
func (o *Orchestrator) Drain(ctx context.Context) (int, error) {
	n := 0
	for n < o.cfg.QueueBatch {
		item, found, err := o.store.PopPending(ctx)
		if err != nil {
			return n, fmt.Errorf("pop pending: %w", err)
		}
		if !found {
			break
		}
		n++
		o.dispatch(ctx, item)
	}
	return n, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, item *store.QueuedItem) {
	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	logger := observability.ForConversation(ctx, item.ConversationID).With("queue_id", item.ID)

	h, err := o.EnsureActor(ctx, item.ConversationID)
	if err != nil {
		logger.Error("actor unavailable", "err", err)
		o.fail(ctx, logger, item)
		return
	}

	if err := h.Deliver(ctx, item.Text, o.cfg.DeliveryTimeout); err != nil {
		logger.Error("delivery failed, tearing actor down", "err", err)
		o.fail(ctx, logger, item)
		if graceful, _ := o.actors.remove(item.ConversationID, h, o.cfg.ShutdownGrace); !graceful {
			logger.Warn("actor abandoned")
		}
		return
	}

	if err := o.store.MarkCompleted(ctx, item.ID); err != nil {
		logger.Error("failed to mark item completed", "err", err)
		return
	}
	logger.Debug("item delivered")
}

func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, item *store.QueuedItem) {
	if err := o.store.MarkFailed(ctx, item.ID); err != nil {
		logger.Error("failed to mark item failed", "err", err)
	}
}
