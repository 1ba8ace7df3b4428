package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bdobrica/Hanashi/common/retry"
)

const defaultOllamaModel = "llama3.2"

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	// BaseURL is the Ollama server, e.g. http://localhost:11434.
	BaseURL string
	// Model defaults to llama3.2.
	Model   string
	Timeout time.Duration
	Retry   retry.Policy
}

// Ollama implements Backend with the /api/chat endpoint. It has no native
// tool calling, so image requests are signalled with a text marker.
type Ollama struct {
	cfg    OllamaConfig
	client *http.Client
}

// NewOllama returns an Ollama backend.
func NewOllama(cfg OllamaConfig) *Ollama {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.Default
	}
	return &Ollama{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

// Chat sends a non-streaming chat request.
func (o *Ollama) Chat(ctx context.Context, req ChatRequest) (Reply, error) {
	if o.cfg.BaseURL == "" {
		return Reply{}, fmt.Errorf("ollama: %w", ErrNoProvider)
	}

	system := req.SystemPrompt
	if req.ImageTool {
		system += imageHintMarker
	}
	messages := make([]ollamaMessage, 0, len(req.Messages)+1)
	messages = append(messages, ollamaMessage{Role: string(RoleSystem), Content: system})
	for _, m := range req.Messages {
		messages = append(messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}

	var resp ollamaResponse
	body := ollamaRequest{Model: o.cfg.Model, Messages: messages, Stream: false}
	if err := postJSON(ctx, o.client, o.cfg.Retry, o.cfg.BaseURL+"/api/chat", nil, body, &resp); err != nil {
		return Reply{}, fmt.Errorf("ollama chat: %w", err)
	}
	if resp.Error != "" {
		return Reply{}, fmt.Errorf("ollama chat: %w: %s", ErrAI, resp.Error)
	}

	if !req.ImageTool {
		return TextReply(resp.Message.Content), nil
	}
	return decodeTextReply(resp.Message.Content), nil
}
