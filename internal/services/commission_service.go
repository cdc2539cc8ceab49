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

type metadataClaimer interface {
	transactionLedger
	ClaimMetadataFlag(ctx context.Context, tx store.Execer, transactionID, flag string) (int64, error)
}

// CommissionService consumes deposit-completed events and pays referral
// commission. The metadata flag claim on the deposit row makes a redelivered
// event a no-op, so the referrer is credited at most once per deposit.
type CommissionService struct {
	runner       db.TxRunner
	wallets      walletLedger
	referrals    referralLedger
	transactions metadataClaimer
	audits       auditTrail
	settings     settingsSource
}

func NewCommissionService(
	runner db.TxRunner,
	wallets walletLedger,
	referrals referralLedger,
	transactions metadataClaimer,
	audits auditTrail,
	settings settingsSource,
) *CommissionService {
	return &CommissionService{
		runner:       runner,
		wallets:      wallets,
		referrals:    referrals,
		transactions: transactions,
		audits:       audits,
		settings:     settings,
	}
}

const commissionPaidFlag = "commission_paid"

// HandleDepositCompleted pays the referrer for one completed deposit.
func (s *CommissionService) HandleDepositCompleted(ctx context.Context, transactionID string) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	rate, err := parseRate(settings.CommissionRate)
	if err != nil {
		return err
	}
	return s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		deposit, err := s.transactions.GetForUpdate(ctx, tx, transactionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return err
		}
		if deposit.Type != models.TxDeposit || deposit.Status != models.TxCompleted {
			return ErrIllegalTransition
		}
		rows, err := s.transactions.ClaimMetadataFlag(ctx, tx, transactionID, commissionPaidFlag)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		referral, err := s.referrals.GetActiveByReferred(ctx, tx, deposit.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		if referral.ReferrerID == deposit.UserID {
			return nil
		}
		if deposit.Amount < settings.MinCommissionDeposit {
			return nil
		}
		commission := money.ApplyRate(deposit.Amount, rate)
		if commission <= 0 {
			return nil
		}
		wallet, err := s.wallets.GetByUserForUpdate(ctx, tx, referral.ReferrerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		if err := applyWalletDelta(ctx, tx, s.wallets, wallet.ID, store.WalletDelta{Profit: commission}); err != nil {
			return err
		}
		if err := s.referrals.AddCommission(ctx, tx, referral.ID, commission); err != nil {
			return err
		}
		if err := s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:        uuid.NewString(),
			UserID:    referral.ReferrerID,
			Type:      models.TxReferral,
			Status:    models.TxCompleted,
			Amount:    commission,
			NetAmount: commission,
			Currency:  wallet.Currency,
			Metadata: auditPayload(map[string]any{
				"deposit_id":    transactionID,
				"referred_user": deposit.UserID,
			}),
		}); err != nil {
			return err
		}
		return s.audits.Log(ctx, tx, "system", "referral.commission_paid", "referral", referral.ID, transactionID,
			auditPayload(map[string]any{
				"deposit":    money.FormatMinor(deposit.Amount),
				"commission": money.FormatMinor(commission),
			}))
	})
}
