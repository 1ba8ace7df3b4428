package store

import (
	"context"
	"fmt"
	"time"
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single message in a conversation's history.
type Turn struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// AppendTurn adds a turn to the conversation log. The conversation config row
// must already exist.
func (s *Store) AppendTurn(ctx context.Context, conversationID string, turn Turn) error {
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, conversationID, string(turn.Role), turn.Content, ts.UTC())
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// RecentTurns returns at most limit turns for the conversation, oldest first.
// Turns recorded before the conversation's HistoryResetAt are skipped.
func (s *Store) RecentTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.role, t.content, t.created_at
		FROM turns t
		JOIN conversation_configs c ON c.conversation_id = t.conversation_id
		WHERE t.conversation_id = ?
		  AND (c.history_reset_at IS NULL OR t.created_at >= c.history_reset_at)
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t    Turn
			role string
		)
		if err := rows.Scan(&role, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = parseRole(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// DeleteTurnsBefore removes turns recorded before cutoff.
func (s *Store) DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old turns: %w", err)
	}
	return res.RowsAffected()
}

func parseRole(s string) Role {
	switch Role(s) {
	case RoleAssistant:
		return RoleAssistant
	case RoleSystem:
		return RoleSystem
	default:
		return RoleUser
	}
}
