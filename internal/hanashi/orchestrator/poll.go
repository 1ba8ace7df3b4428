package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bdobrica/Hanashi/common/trace"
	"github.com/bdobrica/Hanashi/internal/hanashi/observability"
	"github.com/bdobrica/Hanashi/internal/hanashi/store"
	"github.com/bdobrica/Hanashi/internal/hanashi/transport"
	"github.com/bdobrica/Hanashi/internal/hanashi/trigger"
)

// Poll fetches new messages from every conversation and queues the ones that
// trigger the bot. Fetches run concurrently; ingestion is sequential, in
// conversation order and oldest message first. A failed fetch only skips its
// conversation.
func (o *Orchestrator) Poll(ctx context.Context) error {
	convs, err := o.transport.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	batches := make([][]transport.Message, len(convs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.PollConcurrency)
	for i, conv := range convs {
		g.Go(func() error {
			msgs, err := o.transport.ListMessagesAfter(gctx, conv.ID, o.cfg.Watermark)
			if err != nil {
				slog.Warn("fetch messages failed", "conversation_id", conv.ID, "err", err)
				return nil
			}
			batches[i] = msgs
			return nil
		})
	}
	_ = g.Wait()

	queued := 0
	for i, conv := range convs {
		msgs := batches[i]
		for j := len(msgs) - 1; j >= 0; j-- {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ok, err := o.ingest(ctx, conv.ID, msgs[j])
			if err != nil {
				slog.Error("ingest failed", "conversation_id", conv.ID, "message_id", msgs[j].ID, "err", err)
				continue
			}
			if ok {
				queued++
			}
		}
	}
	if queued > 0 {
		slog.Debug("poll complete", "conversations", len(convs), "queued", queued)
	}
	return nil
}

// ingest applies the filters to one message and records the outcome. queued
// is true when the message was put on the work queue. A message whose outcome
// could not be recorded stays out of the seen cache so the next poll retries
// it.
func (o *Orchestrator) ingest(ctx context.Context, conversationID string, msg transport.Message) (queued bool, err error) {
	if msg.ID == "" || o.seen.Contains(msg.ID) {
		return false, nil
	}

	switch {
	case msg.IsFromSelf:
		o.seen.Add(msg.ID, struct{}{})
		return false, nil
	case msg.Timestamp().Before(o.cfg.Watermark):
		o.seen.Add(msg.ID, struct{}{})
		return false, nil
	}

	done, err := o.store.IsProcessed(ctx, msg.ID)
	if err != nil {
		return false, err
	}
	if done {
		o.seen.Add(msg.ID, struct{}{})
		return false, nil
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		o.seen.Add(msg.ID, struct{}{})
		return false, nil
	}

	nickname, err := o.store.ConversationNickname(ctx, conversationID)
	if err != nil {
		slog.Warn("nickname lookup failed, using default", "conversation_id", conversationID, "err", err)
		nickname = store.DefaultNickname
	}

	reason := trigger.Explain(text, o.cfg.GlobalTriggers, nickname)
	if reason == trigger.NoMatch {
		if err := o.store.MarkProcessed(ctx, msg.ID, conversationID); err != nil {
			return false, err
		}
		o.seen.Add(msg.ID, struct{}{})
		return false, nil
	}

	item, err := o.store.EnqueueTriggered(ctx, msg.ID, conversationID, text)
	if err != nil {
		return false, err
	}
	o.seen.Add(msg.ID, struct{}{})
	if item == nil {
		return false, nil
	}

	logger := observability.ForConversation(trace.Ensure(ctx), conversationID)
	logger.Info("message queued", "message_id", msg.ID, "queue_id", item.ID, "trigger", reason.String())
	return true, nil
}
