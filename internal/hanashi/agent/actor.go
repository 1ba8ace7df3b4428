// Package agent runs one actor goroutine per conversation. The actor owns the
// conversation's configuration and its in-memory turn window, and turns each
// mailbox item into either a command result or an AI reply sent back through
// the transport.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/bdobrica/Hanashi/common/trace"
	"github.com/bdobrica/Hanashi/internal/hanashi/ai"
	"github.com/bdobrica/Hanashi/internal/hanashi/commands"
	"github.com/bdobrica/Hanashi/internal/hanashi/observability"
	"github.com/bdobrica/Hanashi/internal/hanashi/store"
)

// DefaultMailboxSize is the number of items an actor buffers before Deliver
// blocks.
const DefaultMailboxSize = 100

// User-visible fixed replies.
const (
	ApologyText     = "❌ Error processing message. Please try again."
	ImageSentText   = "✅ Generated and sent a picture!"
	ImageFailedText = "❌ Failed to generate image. Please try again."
	ImageAttachment = "generated-image.png"
)

// Store is the persistence an actor needs.
type Store interface {
	GetConversationConfig(ctx context.Context, conversationID string) (*store.ConversationConfig, error)
	SaveConversationConfig(ctx context.Context, cfg *store.ConversationConfig) error
	AppendTurn(ctx context.Context, conversationID string, turn store.Turn) error
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]store.Turn, error)
}

// Sender delivers replies to the chat.
type Sender interface {
	SendText(ctx context.Context, conversationID, text string) error
	SendAttachment(ctx context.Context, conversationID string, data []byte, filename string) error
}

// CommandHandler recognizes and executes chat commands.
type CommandHandler interface {
	Handle(ctx context.Context, text string, cfg *store.ConversationConfig) (commands.Result, bool)
}

// Deps are the collaborators shared by every actor.
type Deps struct {
	Store     Store
	AI        ai.Client
	Transport Sender
	Commands  CommandHandler
}

// Options tune a single actor.
type Options struct {
	MailboxSize int
	// GlobalTriggers seeds the config of a conversation seen for the first
	// time.
	GlobalTriggers []string
	// DefaultPrompt is the system prompt used until a persona is set.
	// Defaults to ai.DefaultSystemPrompt.
	DefaultPrompt string
}

type actor struct {
	handle *Handle
	deps   Deps
	cfg    *store.ConversationConfig
	window *Window
	prompt string
	now    func() time.Time
}

// Start loads the conversation's configuration and recent turns, then starts
// the actor goroutine. The actor's context is detached from ctx's
// cancellation; it ends through Handle.Shutdown.
func Start(ctx context.Context, conversationID string, deps Deps, opts Options) (*Handle, error) {
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultMailboxSize
	}
	if opts.DefaultPrompt == "" {
		opts.DefaultPrompt = ai.DefaultSystemPrompt
	}

	cfg, err := deps.Store.GetConversationConfig(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		fresh := store.NewConversationConfig(conversationID, opts.GlobalTriggers)
		cfg = &fresh
	} else if err != nil {
		return nil, fmt.Errorf("load config for %s: %w", conversationID, err)
	}

	recent, err := deps.Store.RecentTurns(ctx, conversationID, WindowSize)
	if err != nil {
		return nil, fmt.Errorf("load recent turns for %s: %w", conversationID, err)
	}

	actorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{
		conversationID: conversationID,
		mailbox:        make(chan envelope, opts.MailboxSize),
		done:           make(chan struct{}),
		cancel:         cancel,
	}
	h.state.Store(int32(StateCreated))

	a := &actor{
		handle: h,
		deps:   deps,
		cfg:    cfg,
		window: NewWindow(WindowSize, recent),
		prompt: opts.DefaultPrompt,
		now:    func() time.Time { return time.Now().UTC() },
	}
	go a.run(actorCtx)

	slog.Debug("actor started", "conversation_id", conversationID, "history", len(recent))
	return h, nil
}

func (a *actor) run(ctx context.Context) {
	h := a.handle
	defer func() {
		h.state.Store(int32(StateTerminated))
		h.cancel()
		close(h.done)
		slog.Debug("actor stopped", "conversation_id", h.conversationID)
	}()
	h.state.CompareAndSwap(int32(StateCreated), int32(StateRunning))

	for {
		select {
		case <-ctx.Done():
			h.state.Store(int32(StateTerminating))
			return
		case env := <-h.mailbox:
			if env.shutdown {
				h.state.Store(int32(StateTerminating))
				return
			}
			a.process(ctx, env)
		}
	}
}

// process handles one item. Failures, panics included, are logged and
// answered with a fixed apology; they never stop the actor.
func (a *actor) process(ctx context.Context, env envelope) {
	if env.traceID != "" {
		ctx = trace.WithTraceID(ctx, env.traceID)
	} else {
		ctx = trace.Ensure(ctx)
	}
	logger := observability.ForConversation(ctx, a.cfg.ConversationID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing message", "panic", r, "stack", string(debug.Stack()))
			a.apologize(ctx, logger)
		}
	}()

	if err := a.handleMessage(ctx, logger, env.text); err != nil {
		if ctx.Err() != nil {
			logger.Warn("message abandoned", "err", err)
			return
		}
		logger.Error("failed to process message", "err", err)
		a.apologize(ctx, logger)
	}
}

func (a *actor) apologize(ctx context.Context, logger *slog.Logger) {
	if err := a.deps.Transport.SendText(ctx, a.cfg.ConversationID, ApologyText); err != nil {
		logger.Error("failed to send apology", "err", err)
	}
}

func (a *actor) handleMessage(ctx context.Context, logger *slog.Logger, text string) error {
	id := a.cfg.ConversationID

	if res, ok := a.deps.Commands.Handle(ctx, text, a.cfg); ok {
		if res.PersonaChanged {
			a.window.Clear()
		}
		logger.Info("command executed", "persona_changed", res.PersonaChanged)
		if err := a.deps.Transport.SendText(ctx, id, res.Text); err != nil {
			return fmt.Errorf("send command result: %w", err)
		}
		return nil
	}

	userTurn := store.Turn{Role: store.RoleUser, Content: text, Timestamp: a.now()}
	a.window.Append(userTurn)

	// The turn row references the config row, so the config goes first.
	if err := a.deps.Store.SaveConversationConfig(ctx, a.cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := a.deps.Store.AppendTurn(ctx, id, userTurn); err != nil {
		return fmt.Errorf("persist user turn: %w", err)
	}

	reply, err := a.deps.AI.GenerateReply(ctx, ai.ReplyRequest{
		History:        toMessages(a.window.Turns()),
		SystemPrompt:   a.systemPrompt(),
		Alternate:      a.cfg.UseAlternate,
		AllowImageTool: true,
	})
	if err != nil {
		return fmt.Errorf("generate reply: %w", err)
	}

	if reply.Kind == ai.ReplyImageRequest {
		return a.sendImage(ctx, logger, reply.ImageDescription)
	}

	if err := a.deps.Transport.SendText(ctx, id, reply.Text); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	logger.Info("reply sent", "chars", len(reply.Text), "alternate", a.cfg.UseAlternate)
	return a.recordAssistant(ctx, reply.Text)
}

// sendImage generates and sends a picture, then confirms it in text. A
// generation or upload failure is reported to the chat instead of returned.
func (a *actor) sendImage(ctx context.Context, logger *slog.Logger, description string) error {
	id := a.cfg.ConversationID
	logger.Info("image requested", "description", description)

	confirmation := ImageSentText
	data, err := a.deps.AI.GenerateImage(ctx, description)
	if err == nil {
		err = a.deps.Transport.SendAttachment(ctx, id, data, ImageAttachment)
	}
	if err != nil {
		logger.Error("image generation failed", "err", err)
		confirmation = ImageFailedText
	}

	if err := a.deps.Transport.SendText(ctx, id, confirmation); err != nil {
		return fmt.Errorf("send image confirmation: %w", err)
	}
	return a.recordAssistant(ctx, confirmation)
}

func (a *actor) recordAssistant(ctx context.Context, text string) error {
	turn := store.Turn{Role: store.RoleAssistant, Content: text, Timestamp: a.now()}
	a.window.Append(turn)
	if err := a.deps.Store.AppendTurn(ctx, a.cfg.ConversationID, turn); err != nil {
		return fmt.Errorf("persist assistant turn: %w", err)
	}
	return nil
}

func (a *actor) systemPrompt() string {
	if a.cfg.PersonaPrompt != "" {
		return a.cfg.PersonaPrompt
	}
	return a.prompt
}

func toMessages(turns []store.Turn) []ai.Message {
	out := make([]ai.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, ai.Message{Role: ai.Role(t.Role), Content: t.Content})
	}
	return out
}
