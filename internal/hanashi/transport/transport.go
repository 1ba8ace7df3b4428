// Package transport defines the chat network interface the orchestrator polls
// and conversation actors reply through.
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrTransport wraps failures talking to the chat network: unreachable
// server, non-2xx status or a malformed response.
var ErrTransport = errors.New("transport: request failed")

// Conversation is one chat thread visible to the bot.
type Conversation struct {
	ID          string
	DisplayName string
	LastMessage *Message
}

// Message is one inbound chat message.
type Message struct {
	ID   string
	Text string
	// CreatedAt and DeliveredAt are zero when the network did not report them.
	CreatedAt   time.Time
	DeliveredAt time.Time
	IsFromSelf  bool
}

// Timestamp returns the best known time of the message: creation, then
// delivery, then zero.
func (m Message) Timestamp() time.Time {
	if !m.CreatedAt.IsZero() {
		return m.CreatedAt
	}
	return m.DeliveredAt
}

// Transport is a chat network the bot can read from and write to.
type Transport interface {
	ListConversations(ctx context.Context) ([]Conversation, error)
	// ListMessagesAfter returns messages in the conversation newer than
	// after, newest first.
	ListMessagesAfter(ctx context.Context, conversationID string, after time.Time) ([]Message, error)
	SendText(ctx context.Context, conversationID, text string) error
	SendAttachment(ctx context.Context, conversationID string, data []byte, filename string) error
}
