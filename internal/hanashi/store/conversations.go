package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultNickname is the trigger nickname given to conversations that have
// never been renamed.
const DefaultNickname = "myai"

// ConversationConfig is the per-conversation configuration row. It is created
// lazily with defaults and only ever mutated by chat commands.
type ConversationConfig struct {
	ConversationID string
	// PersonaPrompt is the system prompt synthesized by @character. Empty
	// means the default prompt is used.
	PersonaPrompt string
	// Triggers is the set of global trigger strings in effect when the
	// conversation was created.
	Triggers []string
	// Nickname is the word that triggers the bot without a command prefix.
	Nickname string
	// UseAlternate routes replies to the alternate AI provider.
	UseAlternate bool
	// HistoryResetAt hides turns recorded before it from RecentTurns. Zero
	// means the whole log is visible.
	HistoryResetAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewConversationConfig returns the default configuration for a conversation
// that has no persisted row yet.
func NewConversationConfig(conversationID string, triggers []string) ConversationConfig {
	now := time.Now().UTC()
	return ConversationConfig{
		ConversationID: conversationID,
		Triggers:       append([]string(nil), triggers...),
		Nickname:       DefaultNickname,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// GetConversationConfig loads the configuration for a conversation. Returns
// ErrNotFound when no row exists.
func (s *Store) GetConversationConfig(ctx context.Context, conversationID string) (*ConversationConfig, error) {
	var (
		cfg          ConversationConfig
		persona      sql.NullString
		triggersJSON string
		resetAt      sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, persona_prompt, triggers, nickname, use_alternate,
			history_reset_at, created_at, updated_at
		FROM conversation_configs
		WHERE conversation_id = ?
	`, conversationID).Scan(
		&cfg.ConversationID, &persona, &triggersJSON, &cfg.Nickname,
		&cfg.UseAlternate, &resetAt, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation config %s: %w", conversationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation config: %w", err)
	}

	cfg.PersonaPrompt = persona.String
	if resetAt.Valid {
		cfg.HistoryResetAt = resetAt.Time.UTC()
	}
	if err := json.Unmarshal([]byte(triggersJSON), &cfg.Triggers); err != nil {
		return nil, fmt.Errorf("decode triggers for %s: %w", conversationID, err)
	}
	if cfg.Nickname == "" {
		cfg.Nickname = DefaultNickname
	}

	return &cfg, nil
}

// SaveConversationConfig creates or replaces the configuration row. Zero
// timestamps are filled in with the current time before writing.
func (s *Store) SaveConversationConfig(ctx context.Context, cfg *ConversationConfig) error {
	if cfg.ConversationID == "" {
		return fmt.Errorf("save conversation config: empty conversation id")
	}
	now := s.now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = now
	}
	if cfg.Nickname == "" {
		cfg.Nickname = DefaultNickname
	}

	triggers := cfg.Triggers
	if triggers == nil {
		triggers = []string{}
	}
	triggersJSON, err := json.Marshal(triggers)
	if err != nil {
		return fmt.Errorf("encode triggers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_configs
			(conversation_id, persona_prompt, triggers, nickname, use_alternate,
			 history_reset_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			persona_prompt   = excluded.persona_prompt,
			triggers         = excluded.triggers,
			nickname         = excluded.nickname,
			use_alternate    = excluded.use_alternate,
			history_reset_at = excluded.history_reset_at,
			updated_at       = excluded.updated_at
	`, cfg.ConversationID, nullableString(cfg.PersonaPrompt), string(triggersJSON), cfg.Nickname,
		cfg.UseAlternate, nullableTime(cfg.HistoryResetAt), cfg.CreatedAt.UTC(), cfg.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save conversation config: %w", err)
	}
	return nil
}

// ConversationNickname returns the trigger nickname for a conversation, or
// DefaultNickname when the conversation has no persisted configuration.
func (s *Store) ConversationNickname(ctx context.Context, conversationID string) (string, error) {
	var nickname string
	err := s.db.QueryRowContext(ctx,
		`SELECT nickname FROM conversation_configs WHERE conversation_id = ?`, conversationID,
	).Scan(&nickname)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && nickname == "") {
		return DefaultNickname, nil
	}
	if err != nil {
		return DefaultNickname, fmt.Errorf("failed to get nickname: %w", err)
	}
	return nickname, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
