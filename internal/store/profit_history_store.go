package store

import (
	"context"

	"invest/internal/models"
)

type ProfitHistoryStore struct {
	db DB
}

func NewProfitHistoryStore(db DB) *ProfitHistoryStore {
	return &ProfitHistoryStore{db: db}
}

type ProfitHistoryInput struct {
	ID           string
	InvestmentID string
	TradeID      string
	UserID       string
	Amount       int64
	ProfitRate   string
	IsWithdrawn  bool
}

func (s *ProfitHistoryStore) Insert(ctx context.Context, tx Execer, input ProfitHistoryInput) error {
	query := `
		INSERT INTO profit_history (id, investment_id, trade_id, user_id, amount, profit_rate, is_withdrawn)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.InvestmentID, input.TradeID, input.UserID, input.Amount, input.ProfitRate, input.IsWithdrawn,
	)
	return err
}

func (s *ProfitHistoryStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.ProfitHistory, error) {
	var rows []models.ProfitHistory
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, investment_id, trade_id, user_id, amount, profit_rate, is_withdrawn, created_at
		FROM profit_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListForUpdate locks a user's profit rows in chronological order so the
// withdrawal and refund paths walk them oldest-first under the same lock
// discipline.
func (s *ProfitHistoryStore) ListForUpdate(ctx context.Context, tx Selecter, userID string, withdrawn bool) ([]models.ProfitHistory, error) {
	var rows []models.ProfitHistory
	err := tx.SelectContext(ctx, &rows, `
		SELECT id, investment_id, trade_id, user_id, amount, profit_rate, is_withdrawn, created_at
		FROM profit_history
		WHERE user_id = $1 AND is_withdrawn = $2
		ORDER BY created_at, id
		FOR UPDATE
	`, userID, withdrawn)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ProfitHistoryStore) SetWithdrawn(ctx context.Context, tx Execer, id string, withdrawn bool) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE profit_history
		SET is_withdrawn = $1, updated_at = NOW()
		WHERE id = $2 AND is_withdrawn = NOT $1
	`, withdrawn, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetAmount resizes a row after a withdrawal or refund splits it.
func (s *ProfitHistoryStore) SetAmount(ctx context.Context, tx Execer, id string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE profit_history
		SET amount = $1, updated_at = NOW()
		WHERE id = $2
	`, amount, id)
	return err
}

// SumUnwithdrawnByUser recomputes the withdrawable profit from source of
// truth for reconciliation.
func (s *ProfitHistoryStore) SumUnwithdrawnByUser(ctx context.Context, q Getter, userID string) (int64, error) {
	var sum int64
	err := q.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM profit_history
		WHERE user_id = $1 AND is_withdrawn = FALSE
	`, userID)
	return sum, err
}
