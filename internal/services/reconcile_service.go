package services

import (
	"context"

	"github.com/jmoiron/sqlx"

	"invest/internal/db"
	"invest/internal/models"
	"invest/internal/money"
	"invest/internal/store"
)

type walletReconciler interface {
	ListIDs(ctx context.Context) ([]string, error)
	GetForUpdate(ctx context.Context, tx store.Getter, walletID string) (models.Wallet, error)
	SetBalances(ctx context.Context, tx store.Execer, walletID string, profitBalance, lockedBalance int64) error
}

type lockedRecomputer interface {
	SumActiveTotalByUser(ctx context.Context, q store.Getter, userID string) (int64, error)
}

type profitRecomputer interface {
	SumUnwithdrawnByUser(ctx context.Context, q store.Getter, userID string) (int64, error)
}

// ReconcileService recomputes the derived wallet partitions from source of
// truth: locked_balance from active investments, profit_balance from
// unwithdrawn profit rows. A mismatch is corrected and always audited, never
// silently fixed.
type ReconcileService struct {
	runner      db.TxRunner
	wallets     walletReconciler
	investments lockedRecomputer
	profits     profitRecomputer
	audits      auditTrail
}

func NewReconcileService(
	runner db.TxRunner,
	wallets walletReconciler,
	investments lockedRecomputer,
	profits profitRecomputer,
	audits auditTrail,
) *ReconcileService {
	return &ReconcileService{
		runner:      runner,
		wallets:     wallets,
		investments: investments,
		profits:     profits,
		audits:      audits,
	}
}

// Run reconciles every wallet, one unit per wallet so a correction never
// blocks unrelated users.
func (s *ReconcileService) Run(ctx context.Context) (checked, corrected, failed int, err error) {
	ids, err := s.wallets.ListIDs(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	for _, walletID := range ids {
		fixed, err := s.reconcileWallet(ctx, walletID)
		if err != nil {
			failed++
			continue
		}
		checked++
		if fixed {
			corrected++
		}
	}
	return checked, corrected, failed, nil
}

func (s *ReconcileService) reconcileWallet(ctx context.Context, walletID string) (corrected bool, err error) {
	err = s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, err := s.wallets.GetForUpdate(ctx, tx, walletID)
		if err != nil {
			return err
		}
		wantLocked, err := s.investments.SumActiveTotalByUser(ctx, tx, wallet.UserID)
		if err != nil {
			return err
		}
		wantProfit, err := s.profits.SumUnwithdrawnByUser(ctx, tx, wallet.UserID)
		if err != nil {
			return err
		}
		if wallet.LockedBalance == wantLocked && wallet.ProfitBalance == wantProfit {
			return nil
		}
		if err := s.wallets.SetBalances(ctx, tx, walletID, wantProfit, wantLocked); err != nil {
			return err
		}
		corrected = true
		return s.audits.Log(ctx, tx, "system", "wallet.reconciled", "wallet", walletID, walletID,
			auditPayload(map[string]any{
				"locked_before": money.FormatMinor(wallet.LockedBalance),
				"locked_after":  money.FormatMinor(wantLocked),
				"profit_before": money.FormatMinor(wallet.ProfitBalance),
				"profit_after":  money.FormatMinor(wantProfit),
			}))
	})
	return corrected, err
}
