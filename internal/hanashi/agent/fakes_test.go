package agent_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bdobrica/Hanashi/internal/hanashi/ai"
	"github.com/bdobrica/Hanashi/internal/hanashi/store"
)

// memStore is an in-memory agent.Store.
type memStore struct {
	mu      sync.Mutex
	configs map[string]store.ConversationConfig
	turns   map[string][]store.Turn
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{configs: map[string]store.ConversationConfig{}, turns: map[string][]store.Turn{}}
}

func (m *memStore) GetConversationConfig(ctx context.Context, id string) (*store.ConversationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &cfg, nil
}

func (m *memStore) SaveConversationConfig(ctx context.Context, cfg *store.ConversationConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.configs[cfg.ConversationID] = *cfg
	return nil
}

func (m *memStore) AppendTurn(ctx context.Context, id string, turn store.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[id] = append(m.turns[id], turn)
	return nil
}

func (m *memStore) RecentTurns(ctx context.Context, id string, limit int) ([]store.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.turns[id]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]store.Turn(nil), all...), nil
}

func (m *memStore) turnsFor(id string) []store.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Turn(nil), m.turns[id]...)
}

func (m *memStore) configFor(id string) (store.ConversationConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[id]
	return cfg, ok
}

// fakeAI answers with a scripted function and records every request.
type fakeAI struct {
	mu       sync.Mutex
	reply    func(ctx context.Context, req ai.ReplyRequest) (ai.Reply, error)
	image    func(ctx context.Context, description string) ([]byte, error)
	persona  string
	requests []ai.ReplyRequest
}

func (f *fakeAI) GenerateReply(ctx context.Context, req ai.ReplyRequest) (ai.Reply, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.reply
	f.mu.Unlock()
	if fn == nil {
		return ai.TextReply("ok"), nil
	}
	return fn(ctx, req)
}

func (f *fakeAI) GeneratePersonaPrompt(ctx context.Context, description string) (string, error) {
	return f.persona, nil
}

func (f *fakeAI) GenerateImage(ctx context.Context, description string) ([]byte, error) {
	if f.image == nil {
		return []byte("png"), nil
	}
	return f.image(ctx, description)
}

func (f *fakeAI) requestsSeen() []ai.ReplyRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.ReplyRequest(nil), f.requests...)
}

// fakeTransport records what the actor sends.
type fakeTransport struct {
	mu          sync.Mutex
	texts       []string
	attachments []string
}

func (f *fakeTransport) SendText(ctx context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) SendAttachment(ctx context.Context, id string, data []byte, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachments = append(f.attachments, filename)
	return nil
}

func (f *fakeTransport) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// waitForTexts polls until the transport has sent at least n texts.
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
