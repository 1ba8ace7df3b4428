package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// QueueStatus is the lifecycle state of a queued item. It only moves forward:
// pending, then processing, then completed or failed.
type QueueStatus string

const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusCompleted  QueueStatus = "completed"
	StatusFailed     QueueStatus = "failed"
)

// Terminal reports whether no further transition is allowed from st.
func (st QueueStatus) Terminal() bool {
	return st == StatusCompleted || st == StatusFailed
}

// QueuedItem is a triggered message waiting for, or past, dispatch to its
// conversation actor.
type QueuedItem struct {
	ID                  int64
	ConversationID      string
	Text                string
	Status              QueueStatus
	QueuedAt            time.Time
	ProcessingStartedAt sql.NullTime
	FinishedAt          sql.NullTime
}

// PopPending claims the oldest pending item by moving it to processing. found
// is false when the queue has no pending items.
func (s *Store) PopPending(ctx context.Context) (item *QueuedItem, found bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin pop transaction: %w", err)
	}
	defer tx.Rollback()

	var it QueuedItem
	err = tx.QueryRowContext(ctx, `
		SELECT id, conversation_id, message_text, queued_at
		FROM message_queue
		WHERE status = ?
		ORDER BY id
		LIMIT 1
	`, string(StatusPending)).Scan(&it.ID, &it.ConversationID, &it.Text, &it.QueuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to select pending item: %w", err)
	}

	now := s.now()
	res, err := tx.ExecContext(ctx, `
		UPDATE message_queue
		SET status = ?, processing_started_at = ?
		WHERE id = ? AND status = ?
	`, string(StatusProcessing), now, it.ID, string(StatusPending))
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim queue item %d: %w", it.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, false, fmt.Errorf("claim queue item %d: %w", it.ID, ErrInvalidTransition)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit pop: %w", err)
	}

	it.Status = StatusProcessing
	it.ProcessingStartedAt = sql.NullTime{Time: now, Valid: true}
	return &it, true, nil
}

// MarkCompleted moves a processing item to completed.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	return s.finish(ctx, id, StatusCompleted)
}

// MarkFailed moves a processing item to failed.
func (s *Store) MarkFailed(ctx context.Context, id int64) error {
	return s.finish(ctx, id, StatusFailed)
}

func (s *Store) finish(ctx context.Context, id int64, status QueueStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE message_queue
		SET status = ?, finished_at = ?
		WHERE id = ? AND status = ?
	`, string(status), s.now(), id, string(StatusProcessing))
	if err != nil {
		return fmt.Errorf("failed to mark queue item %d %s: %w", id, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("queue item %d to %s: %w", id, status, ErrInvalidTransition)
	}
	return nil
}

// GetQueuedItem loads a queue item by id. Returns ErrNotFound when absent.
func (s *Store) GetQueuedItem(ctx context.Context, id int64) (*QueuedItem, error) {
	var (
		it     QueuedItem
		status string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, message_text, status, queued_at, processing_started_at, finished_at
		FROM message_queue
		WHERE id = ?
	`, id).Scan(&it.ID, &it.ConversationID, &it.Text, &status, &it.QueuedAt,
		&it.ProcessingStartedAt, &it.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("queue item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	it.Status = QueueStatus(status)
	return &it, nil
}

// PendingCount returns the number of items waiting for dispatch.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM message_queue WHERE status = ?`, string(StatusPending),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending items: %w", err)
	}
	return n, nil
}

// DeleteFinishedBefore removes completed and failed items enqueued before
// cutoff.
func (s *Store) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM message_queue
		WHERE status IN (?, ?) AND queued_at < ?
	`, string(StatusCompleted), string(StatusFailed), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished queue items: %w", err)
	}
	return res.RowsAffected()
}

// FailStaleProcessing marks items that entered processing before cutoff as
// failed and returns how many were affected.
func (s *Store) FailStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE message_queue
		SET status = ?, finished_at = ?
		WHERE status = ? AND processing_started_at < ?
	`, string(StatusFailed), s.now(), string(StatusProcessing), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale queue items: %w", err)
	}
	return res.RowsAffected()
}
