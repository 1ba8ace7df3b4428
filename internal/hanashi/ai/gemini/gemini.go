// Package gemini implements an ai.Backend on the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/bdobrica/Hanashi/internal/hanashi/ai"
)

const defaultModel = "gemini-2.5-flash"

// Config configures the Gemini backend.
type Config struct {
	APIKey string
	// Model defaults to gemini-2.5-flash.
	Model string
}

// Backend is an ai.Backend backed by google.golang.org/genai.
type Backend struct {
	client *genai.Client
	model  string
}

// New creates a Gemini backend.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ai.ErrNoProvider)
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Backend{client: client, model: model}, nil
}

func (b *Backend) Name() string { return "gemini" }

// Chat sends one GenerateContent call. Assistant turns map to the model role;
// system turns inside the history are sent as user content since Gemini only
// accepts a single system instruction.
func (b *Backend) Chat(ctx context.Context, req ai.ChatRequest) (ai.Reply, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == ai.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
	}
	if req.ImageTool {
		config.Tools = []*genai.Tool{imageTool()}
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, config)
	if err != nil {
		return ai.Reply{}, fmt.Errorf("gemini chat: %w: %v", ai.ErrAI, err)
	}

	if req.ImageTool {
		for _, call := range resp.FunctionCalls() {
			if call.Name != ai.ImageToolName {
				continue
			}
			args, err := json.Marshal(call.Args)
			if err != nil {
				return ai.Reply{}, fmt.Errorf("gemini chat: %w: encode tool args: %v", ai.ErrAI, err)
			}
			return ai.ImageRequestFromArgs(args)
		}
	}

	return ai.TextReply(strings.TrimSpace(resp.Text())), nil
}

func imageTool() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        ai.ImageToolName,
			Description: "Generate and send a picture to the chat",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"description": {
						Type:        genai.TypeString,
						Description: "Detailed description of the picture to generate",
					},
				},
				Required: []string{"description"},
			},
		}},
	}
}
