package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"invest/internal/db"
	"invest/internal/models"
	"invest/internal/money"
	"invest/internal/store"
)

// RefundService consumes withdrawal cancel/fail events and compensates: the
// withdrawn amount returns to profit_balance and the covering profit rows
// flip back to unwithdrawn, oldest first. The refunded flag claim on the
// withdrawal row makes the compensation at-most-once.
type RefundService struct {
	runner       db.TxRunner
	wallets      walletLedger
	transactions metadataClaimer
	profits      profitMarks
	audits       auditTrail
}

func NewRefundService(
	runner db.TxRunner,
	wallets walletLedger,
	transactions metadataClaimer,
	profits profitMarks,
	audits auditTrail,
) *RefundService {
	return &RefundService{
		runner:       runner,
		wallets:      wallets,
		transactions: transactions,
		profits:      profits,
		audits:       audits,
	}
}

const refundedFlag = "refunded"

// HandleWithdrawalTerminal refunds one cancelled or failed withdrawal.
func (s *RefundService) HandleWithdrawalTerminal(ctx context.Context, transactionID string) error {
	return s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		withdrawal, err := s.transactions.GetForUpdate(ctx, tx, transactionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return err
		}
		if withdrawal.Type != models.TxWithdrawal {
			return ErrIllegalTransition
		}
		if withdrawal.Status != models.TxCancelled && withdrawal.Status != models.TxFailed {
			return ErrIllegalTransition
		}
		rows, err := s.transactions.ClaimMetadataFlag(ctx, tx, transactionID, refundedFlag)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		wallet, err := s.wallets.GetByUserForUpdate(ctx, tx, withdrawal.UserID)
		if err != nil {
			return err
		}
		if err := applyWalletDelta(ctx, tx, s.wallets, wallet.ID, store.WalletDelta{Profit: withdrawal.Amount}); err != nil {
			return err
		}
		if err := s.unmarkProfitRows(ctx, tx, withdrawal.UserID, withdrawal.Amount); err != nil {
			return err
		}
		if err := s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:        uuid.NewString(),
			UserID:    withdrawal.UserID,
			Type:      models.TxWithdrawal,
			Status:    models.TxCancelled,
			Amount:    withdrawal.Amount,
			NetAmount: withdrawal.Amount,
			Currency:  wallet.Currency,
			Metadata:  auditPayload(map[string]any{"refund_of": transactionID}),
		}); err != nil {
			return err
		}
		return s.audits.Log(ctx, tx, "system", "withdrawal.refunded", "transaction", transactionID, transactionID,
			auditPayload(map[string]any{
				"amount":                money.FormatMinor(withdrawal.Amount),
				"profit_balance_before": money.FormatMinor(wallet.ProfitBalance),
				"profit_balance_after":  money.FormatMinor(wallet.ProfitBalance + withdrawal.Amount),
			}))
	})
}

// unmarkProfitRows reverses the withdrawal-time marking exactly: withdrawn
// rows flip back oldest first, and the final covering row splits so the
// unmarked sum equals the refund. Running out of rows is tolerated here;
// reconciliation reports any residue.
func (s *RefundService) unmarkProfitRows(ctx context.Context, tx *sqlx.Tx, userID string, amount int64) error {
	_, err := flipProfitRows(ctx, tx, s.profits, userID, amount, false)
	return err
}
