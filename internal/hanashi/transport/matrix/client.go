// Package matrix implements transport.Transport on a Matrix homeserver. Each
// joined room is a conversation; messages are read with /messages instead of
// a long-running sync so the orchestrator's polling model applies unchanged.
package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Hanashi/internal/hanashi/transport"
)

const messagePageSize = 50

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
}

// Client wraps a mautrix client.
type Client struct {
	client *mautrix.Client
	self   id.UserID
}

var _ transport.Transport = (*Client)(nil)

// New creates a Matrix transport.
func New(cfg Config) (*Client, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}
	slog.Warn("Matrix E2EE is not enabled; encrypted rooms will appear empty")
	return &Client{client: client, self: id.UserID(cfg.UserID)}, nil
}

// ListConversations returns every joined room.
func (c *Client) ListConversations(ctx context.Context) ([]transport.Conversation, error) {
	resp, err := c.client.JoinedRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: joined rooms: %v", transport.ErrTransport, err)
	}
	out := make([]transport.Conversation, 0, len(resp.JoinedRooms))
	for _, roomID := range resp.JoinedRooms {
		out = append(out, transport.Conversation{ID: roomID.String(), DisplayName: roomID.String()})
	}
	return out, nil
}

// ListMessagesAfter reads the latest page of room history backwards and keeps
// text messages newer than after. The result is newest first.
func (c *Client) ListMessagesAfter(ctx context.Context, conversationID string, after time.Time) ([]transport.Message, error) {
	resp, err := c.client.Messages(ctx, id.RoomID(conversationID), "", "", mautrix.DirectionBackward, nil, messagePageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: room messages for %s: %v", transport.ErrTransport, conversationID, err)
	}
	return convertEvents(resp.Chunk, c.self, after), nil
}

// SendText sends an m.text message.
func (c *Client) SendText(ctx context.Context, conversationID, text string) error {
	if _, err := c.client.SendText(ctx, id.RoomID(conversationID), text); err != nil {
		return fmt.Errorf("%w: send text to %s: %v", transport.ErrTransport, conversationID, err)
	}
	return nil
}

// SendAttachment uploads data to the media repository and posts an m.image
// event referencing it.
func (c *Client) SendAttachment(ctx context.Context, conversationID string, data []byte, filename string) error {
	upload, err := c.client.UploadBytesWithName(ctx, data, "image/png", filename)
	if err != nil {
		return fmt.Errorf("%w: upload %s: %v", transport.ErrTransport, filename, err)
	}

	content := event.MessageEventContent{
		MsgType: event.MsgImage,
		Body:    filename,
		URL:     upload.ContentURI.CUString(),
		Info: &event.FileInfo{
			MimeType: "image/png",
			Size:     len(data),
		},
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(conversationID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("%w: send image to %s: %v", transport.ErrTransport, conversationID, err)
	}
	return nil
}

// convertEvents keeps the m.room.message events newer than after, preserving
// the input order.
func convertEvents(events []*event.Event, self id.UserID, after time.Time) []transport.Message {
	var out []transport.Message
	for _, evt := range events {
		if evt == nil || evt.Type != event.EventMessage {
			continue
		}
		created := time.UnixMilli(evt.Timestamp).UTC()
		if !after.IsZero() && !created.After(after) {
			continue
		}
		if evt.Content.Parsed == nil {
			if err := evt.Content.ParseRaw(evt.Type); err != nil {
				slog.Debug("matrix: skipping unparsable event", "event_id", evt.ID, "err", err)
				continue
			}
		}
		msg := evt.Content.AsMessage()
		if msg == nil {
			continue
		}
		text := ""
		if msg.MsgType == event.MsgText || msg.MsgType == event.MsgNotice || msg.MsgType == event.MsgEmote {
			text = msg.Body
		}
		out = append(out, transport.Message{
			ID:         evt.ID.String(),
			Text:       text,
			CreatedAt:  created,
			IsFromSelf: evt.Sender == self,
		})
	}
	return out
}
