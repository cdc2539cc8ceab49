package store

import (
	"context"
	"time"

	"invest/internal/models"
)

type TradeStore struct {
	db DB
}

func NewTradeStore(db DB) *TradeStore {
	return &TradeStore{db: db}
}

type TradeInput struct {
	ID           string
	InvestmentID string
	UserID       string
	TradeAmount  int64
	ProfitRate   string
	ProfitAmount int64
	StartTime    time.Time
	EndTime      time.Time
}

// Create inserts a pending trade. A partial unique index on open trades per
// investment backs the one-open-trade invariant; a violation surfaces as a
// pq 23505.
func (s *TradeStore) Create(ctx context.Context, tx Execer, input TradeInput) error {
	query := `
		INSERT INTO trades (id, investment_id, user_id, trade_amount, profit_rate, profit_amount, status, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.InvestmentID, input.UserID, input.TradeAmount,
		input.ProfitRate, input.ProfitAmount, input.StartTime, input.EndTime,
	)
	return err
}

func (s *TradeStore) MarkRunning(ctx context.Context, tx Execer, tradeID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE trades
		SET status = 'running', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, tradeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (models.Trade, error) {
	var row models.Trade
	err := s.db.GetContext(ctx, &row, `
		SELECT id, investment_id, user_id, trade_amount, profit_rate, profit_amount,
		       status, start_time, end_time, completed_at, created_at
		FROM trades
		WHERE id = $1
	`, tradeID)
	if err != nil {
		return models.Trade{}, err
	}
	return row, nil
}

func (s *TradeStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Trade, error) {
	var rows []models.Trade
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, investment_id, user_id, trade_amount, profit_rate, profit_amount,
		       status, start_time, end_time, completed_at, created_at
		FROM trades
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TradeStore) HasOpen(ctx context.Context, q Getter, investmentID string) (bool, error) {
	var exists bool
	err := q.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM trades
			WHERE investment_id = $1 AND status IN ('pending', 'running')
		)
	`, investmentID)
	return exists, err
}

// ListDue returns running trades whose cycle has elapsed.
func (s *TradeStore) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Trade, error) {
	var rows []models.Trade
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, investment_id, user_id, trade_amount, profit_rate, profit_amount,
		       status, start_time, end_time, completed_at, created_at
		FROM trades
		WHERE status = 'running' AND end_time <= $1
		ORDER BY end_time
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimCompleted is the row claim for the completion job. Zero rows means a
// concurrent run or a user stop got there first.
func (s *TradeStore) ClaimCompleted(ctx context.Context, tx Execer, tradeID string, completedAt time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE trades
		SET status = 'completed', completed_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'running' AND end_time <= $1
	`, completedAt, tradeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClaimStopped is the row claim for a user-initiated early stop. It competes
// with ClaimCompleted on the same status transition, so exactly one wins.
func (s *TradeStore) ClaimStopped(ctx context.Context, tx Execer, tradeID string, stoppedAt time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE trades
		SET status = 'stopped', completed_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'running'
	`, stoppedAt, tradeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TradeStore) ClaimFailed(ctx context.Context, tx Execer, tradeID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE trades
		SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'running')
	`, tradeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListStuck finds trades abandoned by earlier failures: pending past the
// pending cutoff or running past the cycle end plus grace.
func (s *TradeStore) ListStuck(ctx context.Context, pendingBefore, runningEndBefore time.Time, limit int) ([]models.Trade, error) {
	var rows []models.Trade
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, investment_id, user_id, trade_amount, profit_rate, profit_amount,
		       status, start_time, end_time, completed_at, created_at
		FROM trades
		WHERE (status = 'pending' AND created_at <= $1)
		   OR (status = 'running' AND end_time <= $2)
		ORDER BY created_at
		LIMIT $3
	`, pendingBefore, runningEndBefore, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
