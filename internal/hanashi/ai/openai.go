package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bdobrica/Hanashi/common/retry"
)

const (
	defaultOpenAIBase       = "https://api.openai.com/v1"
	defaultOpenAIModel      = "gpt-4o"
	defaultOpenAIImageModel = "dall-e-3"
	defaultTemperature      = 0.7
)

// OpenAIConfig configures the OpenAI-compatible backend.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint. Defaults to https://api.openai.com/v1.
	BaseURL string
	// Model defaults to gpt-4o.
	Model string
	// ImageModel defaults to dall-e-3.
	ImageModel string
	// Timeout for each HTTP request. Defaults to 60s.
	Timeout time.Duration
	Retry   retry.Policy
}

// OpenAI implements Backend and ImageGenerator with the chat completions and
// image generation APIs.
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAI returns an OpenAI backend.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBase
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = defaultOpenAIImageModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.Default
	}
	return &OpenAI{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (o *OpenAI) Name() string { return "openai" }

// --- wire types (subset of the OpenAI API) ---

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
	Tools       []oaiTool    `json:"tools,omitempty"`
}

type oaiMessage struct {
	Role      string        `json:"role"`
	Content   *string       `json:"content"`
	ToolCalls []oaiToolCall `json:"tool_calls,omitempty"`
}

type oaiToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function oaiFunctionCall `json:"function"`
}

type oaiFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type oaiTool struct {
	Type     string         `json:"type"`
	Function oaiFunctionDef `json:"function"`
}

type oaiFunctionDef struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

type oaiResponse struct {
	Choices []struct {
		Message      oaiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiImageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
}

type oaiImageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Chat sends a chat completion request. With ImageTool set the
// request_picture function is offered and a call to it becomes an image
// request Reply.
func (o *OpenAI) Chat(ctx context.Context, req ChatRequest) (Reply, error) {
	if o.cfg.APIKey == "" {
		return Reply{}, fmt.Errorf("openai: %w", ErrNoProvider)
	}

	system := req.SystemPrompt
	if req.ImageTool {
		system += imageHintOpenAI
	}
	messages := make([]oaiMessage, 0, len(req.Messages)+1)
	messages = append(messages, oaiMessage{Role: string(RoleSystem), Content: &system})
	for _, m := range req.Messages {
		content := m.Content
		messages = append(messages, oaiMessage{Role: string(m.Role), Content: &content})
	}

	body := oaiRequest{
		Model:       o.cfg.Model,
		Messages:    messages,
		Temperature: defaultTemperature,
	}
	if req.ImageTool {
		body.Tools = []oaiTool{{
			Type: "function",
			Function: oaiFunctionDef{
				Name:        ImageToolName,
				Description: imageToolDescription,
				Parameters:  imageToolParameters(),
			},
		}}
	}

	var resp oaiResponse
	if err := postJSON(ctx, o.client, o.cfg.Retry, o.cfg.BaseURL+"/chat/completions", o.authHeader(), body, &resp); err != nil {
		return Reply{}, fmt.Errorf("openai chat: %w", err)
	}
	if resp.Error != nil {
		return Reply{}, fmt.Errorf("openai chat: %w: %s: %s", ErrAI, resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("openai chat: %w: no choices in response", ErrAI)
	}

	msg := resp.Choices[0].Message
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == ImageToolName {
			return ImageRequestFromArgs([]byte(tc.Function.Arguments))
		}
	}
	if msg.Content == nil {
		return TextReply(""), nil
	}
	if !req.ImageTool {
		return TextReply(*msg.Content), nil
	}
	return decodeTextReply(*msg.Content), nil
}

// GenerateImage creates a 1024x1024 image and returns its bytes, downloading
// the hosted URL when the API does not inline the data.
func (o *OpenAI) GenerateImage(ctx context.Context, description string) ([]byte, error) {
	if o.cfg.APIKey == "" {
		return nil, fmt.Errorf("openai image: %w", ErrNoProvider)
	}

	body := oaiImageRequest{
		Model:   o.cfg.ImageModel,
		Prompt:  description,
		N:       1,
		Size:    "1024x1024",
		Quality: "standard",
	}
	var resp oaiImageResponse
	if err := postJSON(ctx, o.client, o.cfg.Retry, o.cfg.BaseURL+"/images/generations", o.authHeader(), body, &resp); err != nil {
		return nil, fmt.Errorf("openai image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai image: %w: no image data in response", ErrAI)
	}

	img := resp.Data[0]
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("openai image: %w: decode b64_json: %v", ErrAI, err)
		}
		return data, nil
	}
	if img.URL == "" {
		return nil, fmt.Errorf("openai image: %w: empty image url", ErrAI)
	}
	data, err := getBytes(ctx, o.client, o.cfg.Retry, img.URL)
	if err != nil {
		return nil, fmt.Errorf("openai image: %w", err)
	}
	return data, nil
}

func (o *OpenAI) authHeader() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+o.cfg.APIKey)
	return h
}
