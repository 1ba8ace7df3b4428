package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bdobrica/Hanashi/internal/hanashi/store"
)

// ErrInvalidArgument marks a command argument that failed validation.
var ErrInvalidArgument = errors.New("commands: invalid argument")

const maxNicknameLen = 20

// PersonaGenerator synthesizes a persona system prompt from a description.
type PersonaGenerator interface {
	GeneratePersonaPrompt(ctx context.Context, description string) (string, error)
}

// ConfigSaver persists a conversation's configuration.
type ConfigSaver interface {
	SaveConversationConfig(ctx context.Context, cfg *store.ConversationConfig) error
}

// Result is what the caller relays back to the chat.
type Result struct {
	Text string
	// PersonaChanged is true when a new persona was stored, in which case
	// the caller drops its conversation window.
	PersonaChanged bool
}

// Handler executes commands against a conversation configuration. It never
// talks to the chat transport; all user-visible output is in Result.Text.
type Handler struct {
	persona PersonaGenerator
	configs ConfigSaver
	now     func() time.Time
}

// NewHandler returns a Handler.
func NewHandler(persona PersonaGenerator, configs ConfigSaver) *Handler {
	return &Handler{
		persona: persona,
		configs: configs,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle parses text and, when it holds a command, executes it against cfg.
// handled is false when text is an ordinary message.
func (h *Handler) Handle(ctx context.Context, text string, cfg *store.ConversationConfig) (res Result, handled bool) {
	cmd, ok := Parse(text)
	if !ok {
		return Result{}, false
	}
	return h.Execute(ctx, cmd, cfg), true
}

// Execute runs cmd. cfg is updated in place only when the change was saved.
// AI and store failures are reported in Result.Text.
func (h *Handler) Execute(ctx context.Context, cmd Command, cfg *store.ConversationConfig) Result {
	logger := slog.With("conversation_id", cfg.ConversationID, "command", cmd.Kind.String())

	switch cmd.Kind {
	case KindCharacter:
		return h.character(ctx, logger, cmd.Argument, cfg)
	case KindUnhinge:
		return h.unhinge(ctx, logger, cmd.Enabled, cfg)
	case KindName:
		return h.rename(ctx, logger, cmd.Argument, cfg)
	default:
		return Result{Text: fmt.Sprintf("❌ Unknown command %q", cmd.Kind.String())}
	}
}

func (h *Handler) character(ctx context.Context, logger *slog.Logger, description string, cfg *store.ConversationConfig) Result {
	logger.Info("generating persona", "description", description)

	prompt, err := h.persona.GeneratePersonaPrompt(ctx, description)
	if err != nil {
		logger.Error("persona generation failed", "err", err)
		return Result{Text: fmt.Sprintf("❌ Failed to generate character prompt: %v", err)}
	}

	next := *cfg
	next.PersonaPrompt = prompt
	next.UpdatedAt = h.now()
	next.HistoryResetAt = next.UpdatedAt
	if err := h.configs.SaveConversationConfig(ctx, &next); err != nil {
		logger.Error("saving persona failed", "err", err)
		return Result{Text: fmt.Sprintf("❌ Failed to save character config: %v", err)}
	}
	*cfg = next

	logger.Info("persona updated", "prompt_preview", preview(prompt, 100))
	return Result{
		Text:           fmt.Sprintf("✅ Character updated! I'm now: %s", description),
		PersonaChanged: true,
	}
}

func (h *Handler) unhinge(ctx context.Context, logger *slog.Logger, enabled bool, cfg *store.ConversationConfig) Result {
	next := *cfg
	next.UseAlternate = enabled
	next.UpdatedAt = h.now()
	if err := h.configs.SaveConversationConfig(ctx, &next); err != nil {
		logger.Error("saving unhinge flag failed", "err", err)
		return Result{Text: fmt.Sprintf("❌ Failed to save unhinge config: %v", err)}
	}
	*cfg = next

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	logger.Info("unhinge mode changed", "enabled", enabled)
	return Result{Text: "✅ Unhinge mode " + state}
}

func (h *Handler) rename(ctx context.Context, logger *slog.Logger, name string, cfg *store.ConversationConfig) Result {
	if err := ValidateNickname(name); err != nil {
		logger.Info("rejected nickname", "name", name, "err", err)
		return Result{Text: nicknameErrorText(err)}
	}

	old := cfg.Nickname
	next := *cfg
	next.Nickname = name
	next.UpdatedAt = h.now()
	if err := h.configs.SaveConversationConfig(ctx, &next); err != nil {
		logger.Error("saving nickname failed", "err", err)
		return Result{Text: fmt.Sprintf("❌ Failed to save trigger name: %v", err)}
	}
	*cfg = next

	logger.Info("nickname changed", "old", old, "new", name)
	return Result{Text: fmt.Sprintf(
		"✅ Trigger name changed from '%s' to '%s'. You can now say '%s, hello!' instead of using @",
		old, name, name,
	)}
}

var (
	errNicknameLength  = fmt.Errorf("%w: nickname must be 1-%d characters", ErrInvalidArgument, maxNicknameLen)
	errNicknameCharset = fmt.Errorf("%w: nickname must be alphanumeric", ErrInvalidArgument)
)

// ValidateNickname checks that name is 1-20 letters or digits.
func ValidateNickname(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > maxNicknameLen {
		return errNicknameLength
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return errNicknameCharset
		}
	}
	return nil
}

func nicknameErrorText(err error) string {
	if errors.Is(err, errNicknameLength) {
		return "❌ Trigger name must be 1-20 characters long"
	}
	return "❌ Trigger name must contain only letters and numbers"
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
