package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bdobrica/Hanashi/common/trace"
)

var (
	// ErrActorStopped is returned when delivering to an actor that is
	// terminating or gone.
	ErrActorStopped = errors.New("agent: actor stopped")

	// ErrDeliveryTimeout is returned when an actor's mailbox stayed full for
	// the whole delivery timeout.
	ErrDeliveryTimeout = errors.New("agent: delivery timed out")
)

// State is the lifecycle of an actor.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// envelope is one mailbox entry. A shutdown envelope carries no text.
type envelope struct {
	text     string
	traceID  string
	shutdown bool
}

// Handle is the orchestrator's reference to a running actor.
type Handle struct {
	conversationID string
	mailbox        chan envelope
	done           chan struct{}
	state          atomic.Int32
	cancel         context.CancelFunc
	shutdownOnce   sync.Once
}

// ConversationID returns the conversation the actor serves.
func (h *Handle) ConversationID() string { return h.conversationID }

// State returns the actor's current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Done is closed when the actor goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Alive reports whether the actor still accepts work.
func (h *Handle) Alive() bool {
	s := h.State()
	return s == StateCreated || s == StateRunning
}

// Deliver queues text in the actor's mailbox. It blocks while the mailbox is
// full, up to timeout. The trace id on ctx, if any, follows the message.
func (h *Handle) Deliver(ctx context.Context, text string, timeout time.Duration) error {
	if !h.Alive() {
		return ErrActorStopped
	}
	env := envelope{text: text, traceID: trace.FromContext(ctx)}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case h.mailbox <- env:
		return nil
	case <-h.done:
		return ErrActorStopped
	case <-timer.C:
		return ErrDeliveryTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown asks the actor to stop after the items already in its mailbox and
// waits up to grace for it to exit. When grace runs out the actor is
// abandoned: its context is cancelled and Shutdown returns false without
// waiting further.
func (h *Handle) Shutdown(grace time.Duration) (graceful bool) {
	h.shutdownOnce.Do(func() {
		h.state.CompareAndSwap(int32(StateCreated), int32(StateTerminating))
		h.state.CompareAndSwap(int32(StateRunning), int32(StateTerminating))
	})

	deadline := time.NewTimer(grace)
	defer deadline.Stop()

	select {
	case h.mailbox <- envelope{shutdown: true}:
	case <-h.done:
		return true
	case <-deadline.C:
		h.cancel()
		return false
	}

	select {
	case <-h.done:
		return true
	case <-deadline.C:
		h.cancel()
		return false
	}
}
