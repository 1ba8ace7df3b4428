// Package orchestrator polls the chat transport, filters and queues
// triggered messages, and dispatches queued work to per-conversation actors.
//
// Everything runs on one control loop. Ingestion and dispatch are decoupled by
// the durable queue in the store, so a crash between the two loses nothing
// that was already queued.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bdobrica/Hanashi/internal/hanashi/agent"
	"github.com/bdobrica/Hanashi/internal/hanashi/ai"
	"github.com/bdobrica/Hanashi/internal/hanashi/commands"
	"github.com/bdobrica/Hanashi/internal/hanashi/store"
	"github.com/bdobrica/Hanashi/internal/hanashi/transport"
	"github.com/bdobrica/Hanashi/internal/hanashi/trigger"
)

// ErrClosed is returned by EnsureActor once shutdown has begun.
var ErrClosed = errors.New("orchestrator: shutting down")

// Store is the persistence the orchestrator and its actors need.
type Store interface {
	agent.Store
	ConversationNickname(ctx context.Context, conversationID string) (string, error)
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID, conversationID string) error
	EnqueueTriggered(ctx context.Context, messageID, conversationID, text string) (*store.QueuedItem, error)
	PopPending(ctx context.Context) (*store.QueuedItem, bool, error)
	MarkCompleted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
	PendingCount(ctx context.Context) (int, error)
	DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	FailStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config tunes the control loop. Zero fields take the defaults below.
type Config struct {
	PollInterval    time.Duration // default 3s
	QueueInterval   time.Duration // default 500ms
	CleanupInterval time.Duration // default 5m

	// QueueBatch is the most items dispatched per drain tick. Default 3.
	QueueBatch int
	// PollConcurrency bounds concurrent per-conversation fetches. Default 4.
	PollConcurrency int
	// DedupeCapacity is the size of the in-memory seen-message cache.
	// Default 1000.
	DedupeCapacity int

	MailboxSize     int           // default agent.DefaultMailboxSize
	DeliveryTimeout time.Duration // default 30s
	ShutdownGrace   time.Duration // default 5s

	Retention            time.Duration // turns and ledger, default 7 days
	QueueRetention       time.Duration // finished queue items, default 1 day
	StaleProcessingAfter time.Duration // default 10m

	// GlobalTriggers always trigger the bot. Defaults to
	// trigger.DefaultGlobal("@ava").
	GlobalTriggers []string
	// Watermark drops messages created before it. Defaults to the time New
	// was called, so history from before startup is never answered.
	Watermark time.Time
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.QueueInterval <= 0 {
		c.QueueInterval = 500 * time.Millisecond
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.QueueBatch <= 0 {
		c.QueueBatch = 3
	}
	if c.PollConcurrency <= 0 {
		c.PollConcurrency = 4
	}
	if c.DedupeCapacity <= 0 {
		c.DedupeCapacity = 1000
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = agent.DefaultMailboxSize
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 30 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 5 * time.Second
	}
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	if c.QueueRetention <= 0 {
		c.QueueRetention = 24 * time.Hour
	}
	if c.StaleProcessingAfter <= 0 {
		c.StaleProcessingAfter = 10 * time.Minute
	}
	if len(c.GlobalTriggers) == 0 {
		c.GlobalTriggers = trigger.DefaultGlobal("@ava")
	}
}

// Deps are the orchestrator's collaborators. Commands defaults to a
// commands.Handler over AI and Store.
type Deps struct {
	Store     Store
	Transport transport.Transport
	AI        ai.Client
	Commands  agent.CommandHandler
}

// Orchestrator owns the actor registry and the control loop.
type Orchestrator struct {
	cfg       Config
	store     Store
	transport transport.Transport
	agentDeps agent.Deps
	seen      *lru.Cache[string, struct{}]
	actors    *registry
	closed    atomic.Bool
	now       func() time.Time
}

// New returns an Orchestrator. It does not start polling; call Run.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Store == nil || deps.Transport == nil || deps.AI == nil {
		return nil, errors.New("orchestrator: store, transport and AI client are required")
	}
	cfg.applyDefaults()

	seen, err := lru.New[string, struct{}](cfg.DedupeCapacity)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}

	cmds := deps.Commands
	if cmds == nil {
		cmds = commands.NewHandler(deps.AI, deps.Store)
	}

	o := &Orchestrator{
		cfg:       cfg,
		store:     deps.Store,
		transport: deps.Transport,
		agentDeps: agent.Deps{
			Store:     deps.Store,
			AI:        deps.AI,
			Transport: deps.Transport,
			Commands:  cmds,
		},
		seen:   seen,
		actors: newRegistry(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	if o.cfg.Watermark.IsZero() {
		o.cfg.Watermark = o.now()
	}
	return o, nil
}

// Run polls, drains and cleans up on their own intervals until ctx is
// cancelled, then shuts every actor down. It polls once immediately.
func (o *Orchestrator) Run(ctx context.Context) error {
	pollTicker := time.NewTicker(o.cfg.PollInterval)
	defer pollTicker.Stop()
	queueTicker := time.NewTicker(o.cfg.QueueInterval)
	defer queueTicker.Stop()
	cleanupTicker := time.NewTicker(o.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	slog.Info("orchestrator started",
		"poll_interval", o.cfg.PollInterval,
		"queue_interval", o.cfg.QueueInterval,
		"watermark", o.cfg.Watermark,
		"triggers", o.cfg.GlobalTriggers,
	)

	if err := o.Poll(ctx); err != nil {
		slog.Warn("poll failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			o.Shutdown()
			return nil
		case <-pollTicker.C:
			if err := o.Poll(ctx); err != nil {
				slog.Warn("poll failed", "err", err)
			}
		case <-queueTicker.C:
			if _, err := o.Drain(ctx); err != nil {
				slog.Error("queue drain failed", "err", err)
			}
		case <-cleanupTicker.C:
			o.Cleanup(ctx)
		}
	}
}

// Shutdown stops accepting work and removes every live actor concurrently,
// each with the configured grace. It is safe to call more than once.
func (o *Orchestrator) Shutdown() {
	if !o.closed.CompareAndSwap(false, true) {
		return
	}
	graceful, abandoned := o.actors.removeAll(o.cfg.ShutdownGrace)
	slog.Info("orchestrator stopped", "actors_stopped", graceful, "actors_abandoned", abandoned)
}

// ActorCount returns the number of live actors.
func (o *Orchestrator) ActorCount() int {
	return o.actors.liveCount()
}

// PendingCount returns the durable queue depth.
func (o *Orchestrator) PendingCount(ctx context.Context) (int, error) {
	return o.store.PendingCount(ctx)
}

// EnsureActor returns the live actor for conversationID, starting one if
// needed. Concurrent callers for the same id get the same actor.
func (o *Orchestrator) EnsureActor(ctx context.Context, conversationID string) (*agent.Handle, error) {
	if o.closed.Load() {
		return nil, ErrClosed
	}
	return o.actors.ensure(conversationID, func() (*agent.Handle, error) {
		return agent.Start(ctx, conversationID, o.agentDeps, agent.Options{
			MailboxSize:    o.cfg.MailboxSize,
			GlobalTriggers: o.cfg.GlobalTriggers,
		})
	})
}
