package orchestrator

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bdobrica/Hanashi/internal/hanashi/ai"
	"github.com/bdobrica/Hanashi/internal/hanashi/store"
	"github.com/bdobrica/Hanashi/internal/hanashi/transport"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "hanashi-*.db")
	if err != nil {
		t.Fatalf("create temp db: %v", err)
	}
	f.Close()

	s, err := store.New(f.Name())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeTransport serves a fixed set of conversations and records replies.
type fakeTransport struct {
	mu       sync.Mutex
	convs    []string
	messages map[string][]transport.Message // newest first
	failFor  map[string]bool
	texts    []string
}

func newFakeTransport(convs ...string) *fakeTransport {
	return &fakeTransport{convs: convs, messages: map[string][]transport.Message{}, failFor: map[string]bool{}}
}

// push adds msg as the newest message of conversation id.
func (f *fakeTransport) push(id string, msg transport.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[id] = append([]transport.Message{msg}, f.messages[id]...)
}

func (f *fakeTransport) ListConversations(ctx context.Context) ([]transport.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transport.Conversation, 0, len(f.convs))
	for _, id := range f.convs {
		out = append(out, transport.Conversation{ID: id})
	}
	return out, nil
}

func (f *fakeTransport) ListMessagesAfter(ctx context.Context, id string, after time.Time) ([]transport.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[id] {
		return nil, transport.ErrTransport
	}
	return append([]transport.Message(nil), f.messages[id]...), nil
}

func (f *fakeTransport) SendText(ctx context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) SendAttachment(ctx context.Context, id string, data []byte, filename string) error {
	return nil
}

func (f *fakeTransport) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func waitForTexts(t *testing.T, tr *fakeTransport, n int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := tr.sent(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d texts, got %v", n, tr.sent())
	return nil
}

// fakeAI echoes or blocks, and records reply requests.
type fakeAI struct {
	mu       sync.Mutex
	block    bool
	requests []ai.ReplyRequest
}

func (f *fakeAI) GenerateReply(ctx context.Context, req ai.ReplyRequest) (ai.Reply, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ai.Reply{}, ctx.Err()
	}
	return ai.TextReply("reply to " + req.History[len(req.History)-1].Content), nil
}

func (f *fakeAI) GeneratePersonaPrompt(ctx context.Context, description string) (string, error) {
	return "You are " + description + ".", nil
}

func (f *fakeAI) GenerateImage(ctx context.Context, description string) ([]byte, error) {
	return nil, errors.New("no images in tests")
}

func (f *fakeAI) requestsSeen() []ai.ReplyRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.ReplyRequest(nil), f.requests...)
}

// msgAt builds an inbound message created offset after base.
func msgAt(id, text string, base time.Time, offset time.Duration) transport.Message {
	return transport.Message{ID: id, Text: text, CreatedAt: base.Add(offset)}
}
