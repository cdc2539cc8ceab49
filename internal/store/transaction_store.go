package store

import (
	"context"

	"invest/internal/models"
)

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

type TransactionInput struct {
	ID        string
	UserID    string
	Type      string
	Status    string
	Amount    int64
	NetAmount int64
	Currency  string
	Metadata  string
}

func (s *TransactionStore) Create(ctx context.Context, tx Execer, input TransactionInput) error {
	metadata := input.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	query := `
		INSERT INTO transactions (id, user_id, type, status, amount, net_amount, currency, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.Type, input.Status, input.Amount, input.NetAmount, input.Currency, metadata,
	)
	return err
}

func (s *TransactionStore) GetByID(ctx context.Context, q Getter, transactionID string) (models.Transaction, error) {
	var row models.Transaction
	err := q.GetContext(ctx, &row, `
		SELECT id, user_id, type, status, amount, net_amount, currency, metadata, created_at
		FROM transactions
		WHERE id = $1
	`, transactionID)
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

func (s *TransactionStore) GetForUpdate(ctx context.Context, tx Getter, transactionID string) (models.Transaction, error) {
	var row models.Transaction
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, type, status, amount, net_amount, currency, metadata, created_at
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, transactionID)
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

// ClaimStatus transitions a transaction from one exact status to another.
// Zero rows means the row was not in fromStatus, so the caller lost the race
// or the transition is illegal.
func (s *TransactionStore) ClaimStatus(ctx context.Context, tx Execer, transactionID, fromStatus, toStatus string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, toStatus, transactionID, fromStatus)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClaimMetadataFlag sets a boolean marker inside the metadata payload if it
// is not already set. The conditional write doubles as the at-most-once
// guard for commission and refund processing.
func (s *TransactionStore) ClaimMetadataFlag(ctx context.Context, tx Execer, transactionID, flag string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET metadata = jsonb_set(COALESCE(metadata, '{}')::jsonb, ARRAY[$1], 'true'::jsonb)::text,
		    updated_at = NOW()
		WHERE id = $2 AND COALESCE(metadata::jsonb ->> $1, '') <> 'true'
	`, flag, transactionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TransactionStore) ListByUser(ctx context.Context, userID, txType string, limit, offset int) ([]models.Transaction, error) {
	var rows []models.Transaction
	query := `
		SELECT id, user_id, type, status, amount, net_amount, currency, metadata, created_at
		FROM transactions
		WHERE user_id = $1
	`
	args := []any{userID}
	if txType != "" {
		query += ` AND type = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, txType, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}
	err := s.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) ListAll(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, type, status, amount, net_amount, currency, metadata, created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
