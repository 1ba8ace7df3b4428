package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultSystemPrompt is used for conversations without a persona.
const DefaultSystemPrompt = "You are MyAI, a casual assistant in a private friend group chat. Be brief and natural unless asked to elaborate. Match the group's tone and energy."

// personaEngineerPrompt instructs the model to write a persona system prompt
// from a short user description.
const personaEngineerPrompt = `You are a prompt engineer. Generate a detailed system prompt for an AI character based on the user's description. The prompt should:
1. Define the character's personality, mannerisms, and speaking style
2. Include specific behavioral traits and quirks
3. Be detailed enough to create a consistent character persona
4. Start with "You are [character description]..."

Keep it concise but comprehensive. Return only the system prompt, nothing else.`

// Router implements Client on top of a primary and an alternate Backend.
// Either backend may be nil; requests fall back to whichever is present.
type Router struct {
	primary   Backend
	alternate Backend
	images    ImageGenerator
}

// NewRouter returns a Router. It fails with ErrNoProvider when both chat
// backends are nil.
func NewRouter(primary, alternate Backend, images ImageGenerator) (*Router, error) {
	if primary == nil && alternate == nil {
		return nil, ErrNoProvider
	}
	return &Router{primary: primary, alternate: alternate, images: images}, nil
}

// pick returns the backend for a request, preferring the alternate one when
// asked for it.
func (r *Router) pick(alternate bool) Backend {
	if alternate && r.alternate != nil {
		return r.alternate
	}
	if r.primary != nil {
		return r.primary
	}
	return r.alternate
}

// GenerateReply answers the conversation history. An empty text reply is an
// error.
func (r *Router) GenerateReply(ctx context.Context, req ReplyRequest) (Reply, error) {
	backend := r.pick(req.Alternate)
	slog.Debug("generating reply", "backend", backend.Name(), "history", len(req.History), "image_tool", req.AllowImageTool)

	reply, err := backend.Chat(ctx, ChatRequest{
		SystemPrompt: req.SystemPrompt,
		Messages:     req.History,
		ImageTool:    req.AllowImageTool,
	})
	if err != nil {
		return Reply{}, err
	}
	if reply.Kind == ReplyText && strings.TrimSpace(reply.Text) == "" {
		return Reply{}, fmt.Errorf("%s: %w: empty reply", backend.Name(), ErrAI)
	}
	return reply, nil
}

// GeneratePersonaPrompt turns a short description into a persona system
// prompt using the primary backend.
func (r *Router) GeneratePersonaPrompt(ctx context.Context, description string) (string, error) {
	backend := r.pick(false)
	reply, err := backend.Chat(ctx, ChatRequest{
		SystemPrompt: personaEngineerPrompt,
		Messages:     []Message{{Role: RoleUser, Content: description}},
	})
	if err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(reply.Text)
	if prompt == "" {
		return "", fmt.Errorf("%s: %w: empty persona prompt", backend.Name(), ErrAI)
	}
	return prompt, nil
}

// GenerateImage delegates to the configured image generator.
func (r *Router) GenerateImage(ctx context.Context, description string) ([]byte, error) {
	if r.images == nil {
		return nil, fmt.Errorf("image generation: %w", ErrNoProvider)
	}
	data, err := r.images.GenerateImage(ctx, description)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image generation: %w: empty image", ErrAI)
	}
	return data, nil
}
