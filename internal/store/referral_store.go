package store

import (
	"context"

	"invest/internal/models"
)

type ReferralStore struct {
	db DB
}

func NewReferralStore(db DB) *ReferralStore {
	return &ReferralStore{db: db}
}

// Create links a referrer to a referred user. referred_user_id carries a
// unique constraint, so a second referral for the same user fails with 23505.
func (s *ReferralStore) Create(ctx context.Context, tx Execer, id, referrerID, referredUserID string) error {
	query := `
		INSERT INTO referrals (id, referrer_id, referred_user_id, commission_earned, is_active)
		VALUES ($1, $2, $3, 0, TRUE)
	`
	_, err := tx.ExecContext(ctx, query, id, referrerID, referredUserID)
	return err
}

func (s *ReferralStore) GetActiveByReferred(ctx context.Context, q Getter, referredUserID string) (models.Referral, error) {
	var row models.Referral
	err := q.GetContext(ctx, &row, `
		SELECT id, referrer_id, referred_user_id, commission_earned, is_active, created_at
		FROM referrals
		WHERE referred_user_id = $1 AND is_active = TRUE
	`, referredUserID)
	if err != nil {
		return models.Referral{}, err
	}
	return row, nil
}

func (s *ReferralStore) AddCommission(ctx context.Context, tx Execer, referralID string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE referrals
		SET commission_earned = commission_earned + $1, updated_at = NOW()
		WHERE id = $2
	`, amount, referralID)
	return err
}

func (s *ReferralStore) ListByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error) {
	var rows []models.Referral
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, referrer_id, referred_user_id, commission_earned, is_active, created_at
		FROM referrals
		WHERE referrer_id = $1
		ORDER BY created_at DESC
	`, referrerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
