package store

import (
	"context"
	"time"
)

// EventStore is the transaction status-change outbox. Status transitions
// write an event row in the same unit as the UPDATE; the dispatcher job
// claims each event exactly once and routes it to its consumer.
type EventStore struct {
	db DB
}

func NewEventStore(db DB) *EventStore {
	return &EventStore{db: db}
}

type TransactionEvent struct {
	ID            string     `db:"id"`
	TransactionID string     `db:"transaction_id"`
	OldStatus     string     `db:"old_status"`
	NewStatus     string     `db:"new_status"`
	ProcessedAt   *time.Time `db:"processed_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

func (s *EventStore) Insert(ctx context.Context, tx Execer, id, transactionID, oldStatus, newStatus string) error {
	query := `
		INSERT INTO transaction_events (id, transaction_id, old_status, new_status)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.ExecContext(ctx, query, id, transactionID, oldStatus, newStatus)
	return err
}

func (s *EventStore) ListPending(ctx context.Context, limit int) ([]TransactionEvent, error) {
	var rows []TransactionEvent
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, transaction_id, old_status, new_status, processed_at, created_at
		FROM transaction_events
		WHERE processed_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Claim marks an event processed. Zero rows means another dispatcher run
// already consumed it.
func (s *EventStore) Claim(ctx context.Context, tx Execer, eventID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE transaction_events
		SET processed_at = NOW()
		WHERE id = $1 AND processed_at IS NULL
	`, eventID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
