// Package ai generates chat replies, persona prompts and images for
// conversations.
//
// A Router picks a chat Backend per request (primary or alternate) and an
// ImageGenerator for pictures. Backends return a structured Reply: either
// plain text or a request for the bot to generate and send a picture.
package ai

import (
	"context"
	"errors"
)

var (
	// ErrAI wraps every failure talking to an AI provider: unreachable,
	// non-2xx, malformed or empty responses.
	ErrAI = errors.New("ai: provider request failed")

	// ErrNoProvider is returned when no backend can serve a request.
	ErrNoProvider = errors.New("ai: no provider configured")
)

// Role is the author of a message in the prompt history.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the prompt history.
type Message struct {
	Role    Role
	Content string
}

// ReplyKind discriminates Reply.
type ReplyKind int

const (
	ReplyText ReplyKind = iota
	ReplyImageRequest
)

func (k ReplyKind) String() string {
	if k == ReplyImageRequest {
		return "image_request"
	}
	return "text"
}

// Reply is the model's answer to a chat request.
type Reply struct {
	Kind ReplyKind
	// Text is set for ReplyText.
	Text string
	// ImageDescription is set for ReplyImageRequest.
	ImageDescription string
}

// TextReply builds a plain text Reply.
func TextReply(text string) Reply {
	return Reply{Kind: ReplyText, Text: text}
}

// ImageRequest builds a Reply asking for a picture of description.
func ImageRequest(description string) Reply {
	return Reply{Kind: ReplyImageRequest, ImageDescription: description}
}

// ReplyRequest is the input to Client.GenerateReply.
type ReplyRequest struct {
	// History is the conversation window, oldest first.
	History      []Message
	SystemPrompt string
	// Alternate routes the request to the alternate backend.
	Alternate bool
	// AllowImageTool lets the model answer with an image request.
	AllowImageTool bool
}

// Client is what conversation actors and commands depend on.
type Client interface {
	GenerateReply(ctx context.Context, req ReplyRequest) (Reply, error)
	GeneratePersonaPrompt(ctx context.Context, description string) (string, error)
	GenerateImage(ctx context.Context, description string) ([]byte, error)
}

// ChatRequest is one completion call against a single Backend.
type ChatRequest struct {
	SystemPrompt string
	Messages     []Message
	ImageTool    bool
}

// Backend is a chat completion provider.
type Backend interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (Reply, error)
}

// ImageGenerator turns a description into encoded image bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, description string) ([]byte, error)
}
