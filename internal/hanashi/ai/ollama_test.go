package ai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bdobrica/Hanashi/internal/hanashi/ai"
)

func TestOllamaChat(t *testing.T) {
	var req struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		io.WriteString(w, `{"message":{"role":"assistant","content":"[REQUEST_PICTURE] a neon koi"},"done":true}`)
	}))
	t.Cleanup(srv.Close)

	o := ai.NewOllama(ai.OllamaConfig{BaseURL: srv.URL + "/", Retry: noRetry})
	reply, err := o.Chat(context.Background(), ai.ChatRequest{
		SystemPrompt: "be wild",
		Messages:     []ai.Message{{Role: ai.RoleUser, Content: "draw me something"}},
		ImageTool:    true,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Kind != ai.ReplyImageRequest || reply.ImageDescription != "a neon koi" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if req.Model != "llama3.2" || req.Stream {
		t.Errorf("unexpected request model=%q stream=%v", req.Model, req.Stream)
	}
	if len(req.Messages) != 2 || !strings.Contains(req.Messages[0].Content, "[REQUEST_PICTURE]") {
		t.Errorf("expected system hint about picture marker, got %+v", req.Messages)
	}
}

func TestOllamaChat_MarkerIgnoredWithoutImageTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"role":"assistant","content":"[REQUEST_PICTURE] nope"}}`)
	}))
	t.Cleanup(srv.Close)

	o := ai.NewOllama(ai.OllamaConfig{BaseURL: srv.URL, Retry: noRetry})
	reply, err := o.Chat(context.Background(), ai.ChatRequest{SystemPrompt: "x"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Kind != ai.ReplyText {
		t.Fatalf("expected text reply, got %+v", reply)
	}
}
