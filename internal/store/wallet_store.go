package store

import (
	"context"

	"invest/internal/models"
)

// WalletStore owns the three balance partitions. Nothing outside ApplyDelta
// may change balance, profit_balance or locked_balance; the conditional
// UPDATE guards every partition against going negative.
type WalletStore struct {
	db DB
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

type WalletDelta struct {
	Balance int64
	Profit  int64
	Locked  int64
}

func (d WalletDelta) IsZero() bool {
	return d.Balance == 0 && d.Profit == 0 && d.Locked == 0
}

func (s *WalletStore) Create(ctx context.Context, tx Execer, id, userID, currency string) error {
	query := `
		INSERT INTO wallets (id, user_id, currency, balance, profit_balance, locked_balance)
		VALUES ($1, $2, $3, 0, 0, 0)
	`
	_, err := tx.ExecContext(ctx, query, id, userID, currency)
	return err
}

func (s *WalletStore) GetByUser(ctx context.Context, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, currency, balance, profit_balance, locked_balance, created_at
		FROM wallets
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetByUserForUpdate(ctx context.Context, tx Getter, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, currency, balance, profit_balance, locked_balance, created_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetForUpdate(ctx context.Context, tx Getter, walletID string) (models.Wallet, error) {
	var row models.Wallet
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, currency, balance, profit_balance, locked_balance, created_at
		FROM wallets
		WHERE id = $1
		FOR UPDATE
	`, walletID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

// ApplyDelta adjusts all three partitions in place. Returns the number of
// rows updated: zero means a delta would have driven a partition negative
// and nothing was changed.
func (s *WalletStore) ApplyDelta(ctx context.Context, tx Execer, walletID string, delta WalletDelta) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance + $1,
		    profit_balance = profit_balance + $2,
		    locked_balance = locked_balance + $3,
		    updated_at = NOW()
		WHERE id = $4
		  AND balance + $1 >= 0
		  AND profit_balance + $2 >= 0
		  AND locked_balance + $3 >= 0
	`, delta.Balance, delta.Profit, delta.Locked, walletID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetBalances overwrites the derived partitions. Reserved for the
// reconciliation job; regular code paths go through ApplyDelta.
func (s *WalletStore) SetBalances(ctx context.Context, tx Execer, walletID string, profitBalance, lockedBalance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET profit_balance = $1, locked_balance = $2, updated_at = NOW()
		WHERE id = $3
	`, profitBalance, lockedBalance, walletID)
	return err
}

func (s *WalletStore) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `SELECT id FROM wallets ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
