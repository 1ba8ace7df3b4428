package store

import (
	"context"
	"fmt"
	"time"
)

// IsProcessed reports whether the inbound message id is already in the ledger.
func (s *Store) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_messages WHERE message_id = ?`, messageID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check processed message: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records the message id in the ledger. Recording an id twice is
// a no-op.
func (s *Store) MarkProcessed(ctx context.Context, messageID, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_messages (message_id, conversation_id, processed_at)
		VALUES (?, ?, ?)
	`, messageID, conversationID, s.now())
	if err != nil {
		return fmt.Errorf("failed to mark message processed: %w", err)
	}
	return nil
}

// EnqueueTriggered records the message id in the ledger and, only when the id
// was not already present, enqueues the text for dispatch. Both writes happen
// in one transaction. The returned item is nil when the message was a
// duplicate.
func (s *Store) EnqueueTriggered(ctx context.Context, messageID, conversationID, text string) (*QueuedItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin enqueue transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_messages (message_id, conversation_id, processed_at)
		VALUES (?, ?, ?)
	`, messageID, conversationID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record message in ledger: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger insert result: %w", err)
	}
	if inserted == 0 {
		return nil, nil
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO message_queue (conversation_id, message_text, status, queued_at)
		VALUES (?, ?, ?, ?)
	`, conversationID, text, string(StatusPending), now)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue item id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit enqueue: %w", err)
	}

	return &QueuedItem{
		ID:             id,
		ConversationID: conversationID,
		Text:           text,
		Status:         StatusPending,
		QueuedAt:       now,
	}, nil
}

// DeleteProcessedBefore prunes ledger entries recorded before cutoff.
func (s *Store) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_messages WHERE processed_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old ledger entries: %w", err)
	}
	return res.RowsAffected()
}
