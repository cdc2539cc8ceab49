package store

import (
	"context"
	"time"

	"invest/internal/models"
)

type InvestmentStore struct {
	db DB
}

func NewInvestmentStore(db DB) *InvestmentStore {
	return &InvestmentStore{db: db}
}

type InvestmentInput struct {
	ID                 string
	UserID             string
	PackageID          string
	PrincipalAmount    int64
	WelcomeBonusAmount int64
	StartDate          time.Time
	MaturityDate       time.Time
}

func (s *InvestmentStore) Create(ctx context.Context, tx Execer, input InvestmentInput) error {
	query := `
		INSERT INTO investments (id, user_id, package_id, principal_amount, welcome_bonus_amount, total_profits, status, is_principal_withdrawable, start_date, maturity_date)
		VALUES ($1, $2, $3, $4, $5, 0, 'active', FALSE, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.PackageID, input.PrincipalAmount, input.WelcomeBonusAmount,
		input.StartDate, input.MaturityDate,
	)
	return err
}

func (s *InvestmentStore) GetByID(ctx context.Context, investmentID string) (models.Investment, error) {
	var row models.Investment
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, package_id, principal_amount, welcome_bonus_amount, total_profits,
		       status, is_principal_withdrawable, start_date, maturity_date, completed_at, created_at
		FROM investments
		WHERE id = $1
	`, investmentID)
	if err != nil {
		return models.Investment{}, err
	}
	return row, nil
}

func (s *InvestmentStore) GetForUpdate(ctx context.Context, tx Getter, investmentID string) (models.Investment, error) {
	var row models.Investment
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, package_id, principal_amount, welcome_bonus_amount, total_profits,
		       status, is_principal_withdrawable, start_date, maturity_date, completed_at, created_at
		FROM investments
		WHERE id = $1
		FOR UPDATE
	`, investmentID)
	if err != nil {
		return models.Investment{}, err
	}
	return row, nil
}

func (s *InvestmentStore) ListByUser(ctx context.Context, userID string) ([]models.Investment, error) {
	var rows []models.Investment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, package_id, principal_amount, welcome_bonus_amount, total_profits,
		       status, is_principal_withdrawable, start_date, maturity_date, completed_at, created_at
		FROM investments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *InvestmentStore) CountByUser(ctx context.Context, q Getter, userID string) (int64, error) {
	var count int64
	err := q.GetContext(ctx, &count, `SELECT COUNT(*) FROM investments WHERE user_id = $1`, userID)
	return count, err
}

// ListMatured returns active investments whose maturity date has passed and
// whose principal has not been unlocked yet.
func (s *InvestmentStore) ListMatured(ctx context.Context, now time.Time, limit int) ([]models.Investment, error) {
	var rows []models.Investment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, package_id, principal_amount, welcome_bonus_amount, total_profits,
		       status, is_principal_withdrawable, start_date, maturity_date, completed_at, created_at
		FROM investments
		WHERE status = 'active' AND maturity_date <= $1 AND is_principal_withdrawable = FALSE
		ORDER BY maturity_date
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimMature transitions active → completed and flips the withdrawable flag
// as one atomic claim. Zero rows means another run already settled it.
func (s *InvestmentStore) ClaimMature(ctx context.Context, tx Execer, investmentID string, completedAt time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE investments
		SET status = 'completed', is_principal_withdrawable = TRUE, completed_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'active' AND is_principal_withdrawable = FALSE
	`, completedAt, investmentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *InvestmentStore) AddProfit(ctx context.Context, tx Execer, investmentID string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE investments
		SET total_profits = total_profits + $1, updated_at = NOW()
		WHERE id = $2
	`, amount, investmentID)
	return err
}

// ListEligibleForTrade returns active investments with no open trade and no
// trade created since dayStart. Feeds the auto-initiation job.
func (s *InvestmentStore) ListEligibleForTrade(ctx context.Context, dayStart time.Time, limit int) ([]models.Investment, error) {
	var rows []models.Investment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT i.id, i.user_id, i.package_id, i.principal_amount, i.welcome_bonus_amount, i.total_profits,
		       i.status, i.is_principal_withdrawable, i.start_date, i.maturity_date, i.completed_at, i.created_at
		FROM investments i
		WHERE i.status = 'active'
		  AND NOT EXISTS (
			SELECT 1 FROM trades t
			WHERE t.investment_id = i.id AND t.status IN ('pending', 'running')
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM trades t
			WHERE t.investment_id = i.id AND t.created_at >= $1
		  )
		ORDER BY i.created_at
		LIMIT $2
	`, dayStart, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SumActiveTotalByUser recomputes the locked principal+bonus from source of
// truth for reconciliation.
func (s *InvestmentStore) SumActiveTotalByUser(ctx context.Context, q Getter, userID string) (int64, error) {
	var sum int64
	err := q.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(principal_amount + welcome_bonus_amount), 0)
		FROM investments
		WHERE user_id = $1 AND status = 'active'
	`, userID)
	return sum, err
}
