// Package bluebubbles implements transport.Transport against a BlueBubbles
// server's REST API.
package bluebubbles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/Hanashi/common/redact"
	"github.com/bdobrica/Hanashi/common/retry"
	"github.com/bdobrica/Hanashi/internal/hanashi/transport"
)

const (
	chatQueryLimit    = 500
	messageQueryLimit = 50
)

// Config configures the BlueBubbles client.
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:12345.
	BaseURL string
	// Password is sent as the password query parameter. Optional.
	Password string
	// Timeout for each HTTP request. Defaults to 30s.
	Timeout time.Duration
	// Retry applies to read queries only; sends are attempted once.
	Retry retry.Policy
}

// Client talks to a BlueBubbles server.
type Client struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

var _ transport.Transport = (*Client)(nil)

// New returns a BlueBubbles client.
func New(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.Default
	}
	return &Client{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, now: time.Now}
}

// --- wire types ---

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type chatQuery struct {
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
	With   []string `json:"with"`
	Sort   string   `json:"sort"`
}

type messageQuery struct {
	ChatGUID string `json:"chatGuid"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
	Sort     string `json:"sort"`
	After    *int64 `json:"after,omitempty"`
}

type sendTextRequest struct {
	ChatGUID string `json:"chatGuid"`
	Message  string `json:"message"`
	TempGUID string `json:"tempGuid"`
}

type bbMessage struct {
	GUID          string  `json:"guid"`
	Text          *string `json:"text"`
	DateCreated   *int64  `json:"dateCreated"`
	DateDelivered *int64  `json:"dateDelivered"`
	IsFromMe      *bool   `json:"isFromMe"`
}

type bbChat struct {
	GUID        string     `json:"guid"`
	DisplayName *string    `json:"displayName"`
	LastMessage *bbMessage `json:"lastMessage"`
}

func (m bbMessage) toMessage() transport.Message {
	msg := transport.Message{ID: m.GUID}
	if m.Text != nil {
		msg.Text = *m.Text
	}
	if m.DateCreated != nil && *m.DateCreated > 0 {
		msg.CreatedAt = time.UnixMilli(*m.DateCreated).UTC()
	}
	if m.DateDelivered != nil && *m.DateDelivered > 0 {
		msg.DeliveredAt = time.UnixMilli(*m.DateDelivered).UTC()
	}
	if m.IsFromMe != nil {
		msg.IsFromSelf = *m.IsFromMe
	}
	return msg
}

// ListConversations returns up to 500 chats ordered by last message.
func (c *Client) ListConversations(ctx context.Context) ([]transport.Conversation, error) {
	query := chatQuery{Limit: chatQueryLimit, Offset: 0, With: []string{"lastMessage"}, Sort: "lastmessage"}

	var chats []bbChat
	if err := c.query(ctx, "/chat/query", query, &chats); err != nil {
		return nil, fmt.Errorf("chat query: %w", err)
	}

	out := make([]transport.Conversation, 0, len(chats))
	for _, ch := range chats {
		conv := transport.Conversation{ID: ch.GUID}
		if ch.DisplayName != nil {
			conv.DisplayName = *ch.DisplayName
		}
		if ch.LastMessage != nil {
			last := ch.LastMessage.toMessage()
			conv.LastMessage = &last
		}
		out = append(out, conv)
	}
	slog.Debug("bluebubbles: listed chats", "count", len(out))
	return out, nil
}

// ListMessagesAfter returns up to 50 messages newer than after, newest first.
// A zero after fetches the latest messages without a lower bound.
func (c *Client) ListMessagesAfter(ctx context.Context, conversationID string, after time.Time) ([]transport.Message, error) {
	query := messageQuery{ChatGUID: conversationID, Limit: messageQueryLimit, Offset: 0, Sort: "DESC"}
	if !after.IsZero() {
		ms := after.UnixMilli()
		query.After = &ms
	}

	var msgs []bbMessage
	if err := c.query(ctx, "/message/query", query, &msgs); err != nil {
		return nil, fmt.Errorf("message query for %s: %w", conversationID, err)
	}

	out := make([]transport.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.toMessage())
	}
	return out, nil
}

// SendText posts a text message to the chat.
func (c *Client) SendText(ctx context.Context, conversationID, text string) error {
	body, err := json.Marshal(sendTextRequest{ChatGUID: conversationID, Message: text, TempGUID: c.tempGUID()})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}
	if _, err := c.do(ctx, "/message/text", "application/json", body); err != nil {
		return fmt.Errorf("send text to %s: %w", conversationID, err)
	}
	slog.Debug("bluebubbles: message sent", "chat", conversationID)
	return nil
}

// SendAttachment uploads data as a PNG attachment named filename.
func (c *Client) SendAttachment(ctx context.Context, conversationID string, data []byte, filename string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"chatGuid", conversationID},
		{"tempGuid", c.tempGUID()},
		{"name", filename},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("write form field %s: %w", f[0], err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachment"; filename=%q`, filename))
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create attachment part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write attachment: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart form: %w", err)
	}

	if _, err := c.do(ctx, "/message/attachment", w.FormDataContentType(), buf.Bytes()); err != nil {
		return fmt.Errorf("send attachment to %s: %w", conversationID, err)
	}
	slog.Debug("bluebubbles: attachment sent", "chat", conversationID, "bytes", len(data))
	return nil
}

// query posts a JSON body and decodes the envelope's data into out, retrying
// transient failures. A missing data field decodes to an empty result.
func (c *Client) query(ctx context.Context, endpoint string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	env, err := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) (*envelope, error) {
		return c.do(ctx, endpoint, "application/json", body)
	})
	if err != nil {
		return err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		slog.Warn("bluebubbles: response without data", "endpoint", endpoint, "error", string(env.Error))
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s data: %v", transport.ErrTransport, endpoint, err)
	}
	return nil
}

// do performs one POST and returns the decoded envelope. Errors are wrapped
// with transport.ErrTransport and scrubbed of the password. Non-retryable
// statuses are marked permanent.
func (c *Client) do(ctx context.Context, endpoint, contentType string, body []byte) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(c.scrub(err))
	}
	req.Header.Set("Content-Type", contentType)
	slog.Debug("bluebubbles: request", "url", redact.URL(req.URL.String()))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.scrub(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.scrub(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := fmt.Errorf("%w: %s returned status %d: %s", transport.ErrTransport, endpoint, resp.StatusCode, truncate(raw, 256))
		if retry.RetryableStatus(resp.StatusCode) {
			return nil, statusErr
		}
		return nil, retry.Permanent(statusErr)
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, retry.Permanent(fmt.Errorf("%w: decode %s response: %v", transport.ErrTransport, endpoint, err))
		}
	}
	return &env, nil
}

func (c *Client) url(endpoint string) string {
	u := c.cfg.BaseURL + "/api/v1" + endpoint
	if c.cfg.Password != "" {
		u += "?" + url.Values{"password": {c.cfg.Password}}.Encode()
	}
	return u
}

func (c *Client) scrub(err error) error {
	msg := redact.String(err.Error(), c.cfg.Password)
	return fmt.Errorf("%w: %s", transport.ErrTransport, msg)
}

// tempGUID builds the client-side id BlueBubbles uses to match a sent message
// with its echo: temp-<unix ms>-<9 chars of a uuid>.
func (c *Client) tempGUID() string {
	return fmt.Sprintf("temp-%d-%s", c.now().UnixMilli(), uuid.NewString()[:9])
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
