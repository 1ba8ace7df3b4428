package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bdobrica/Hanashi/common/retry"
	"github.com/bdobrica/Hanashi/internal/hanashi/ai"
)

var noRetry = retry.Policy{Attempts: 1, Backoff: time.Millisecond}

func newOpenAI(t *testing.T, handler http.HandlerFunc) *ai.OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return ai.NewOpenAI(ai.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Retry: noRetry})
}

func TestOpenAIChat_Text(t *testing.T) {
	var captured map[string]interface{}
	o := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization: got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ahoy"},"finish_reason":"stop"}]}`)
	})

	reply, err := o.Chat(context.Background(), ai.ChatRequest{
		SystemPrompt: "You are a pirate.",
		Messages:     []ai.Message{{Role: ai.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Kind != ai.ReplyText || reply.Text != "ahoy" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	if captured["model"] != "gpt-4o" {
		t.Errorf("model: got %v", captured["model"])
	}
	if captured["temperature"] != 0.7 {
		t.Errorf("temperature: got %v", captured["temperature"])
	}
	if _, ok := captured["tools"]; ok {
		t.Error("tools must be omitted when the image tool is not allowed")
	}
	msgs := captured["messages"].([]interface{})
	if len(msgs) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(msgs))
	}
	if sys := msgs[0].(map[string]interface{}); sys["role"] != "system" || sys["content"] != "You are a pirate." {
		t.Errorf("unexpected system message %v", sys)
	}
}

func TestOpenAIChat_ToolCall(t *testing.T) {
	var sawTool bool
	o := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sawTool = strings.Contains(string(body), `"name":"request_picture"`)
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"request_picture","arguments":"{\"description\":\"a red panda\"}"}}
		]},"finish_reason":"tool_calls"}]}`)
	})

	reply, err := o.Chat(context.Background(), ai.ChatRequest{SystemPrompt: "x", ImageTool: true})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !sawTool {
		t.Error("expected request_picture tool in request")
	}
	if reply.Kind != ai.ReplyImageRequest || reply.ImageDescription != "a red panda" {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestOpenAIChat_InvalidToolArgs(t *testing.T) {
	o := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","tool_calls":[
			{"id":"c","type":"function","function":{"name":"request_picture","arguments":"{}"}}
		]}}]}`)
	})
	_, err := o.Chat(context.Background(), ai.ChatRequest{ImageTool: true})
	if !errors.Is(err, ai.ErrAI) {
		t.Fatalf("expected ErrAI for schema violation, got %v", err)
	}
}

func TestOpenAIChat_StatusError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	o := ai.NewOpenAI(ai.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Retry:   retry.Policy{Attempts: 3, Backoff: time.Millisecond},
	})

	_, err := o.Chat(context.Background(), ai.ChatRequest{})
	if !errors.Is(err, ai.ErrAI) {
		t.Fatalf("expected ErrAI, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("401 must not be retried, got %d calls", n)
	}
}

func TestOpenAIChat_RetriesServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	t.Cleanup(srv.Close)
	o := ai.NewOpenAI(ai.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Retry:   retry.Policy{Attempts: 3, Backoff: time.Millisecond},
	})

	reply, err := o.Chat(context.Background(), ai.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Text != "ok" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("reply=%+v calls=%d", reply, calls)
	}
}

func TestOpenAIChat_NoKey(t *testing.T) {
	o := ai.NewOpenAI(ai.OpenAIConfig{})
	if _, err := o.Chat(context.Background(), ai.ChatRequest{}); !errors.Is(err, ai.ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestOpenAIGenerateImage_DownloadsURL(t *testing.T) {
	png := []byte("\x89PNG fake image")
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "dall-e-3" || req["size"] != "1024x1024" || req["quality"] != "standard" {
			t.Errorf("unexpected image request %v", req)
		}
		io.WriteString(w, `{"data":[{"url":"`+srv.URL+`/files/img.png"}]}`)
	})
	mux.HandleFunc("/files/img.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(png)
	})

	o := ai.NewOpenAI(ai.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Retry: noRetry})
	data, err := o.GenerateImage(context.Background(), "a lighthouse")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(data) != string(png) {
		t.Errorf("unexpected image bytes %q", data)
	}
}
