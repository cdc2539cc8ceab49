package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"invest/internal/db"
	"invest/internal/models"
	"invest/internal/money"
	"invest/internal/store"
)

type walletLedger interface {
	Create(ctx context.Context, tx store.Execer, id, userID, currency string) error
	GetByUser(ctx context.Context, userID string) (models.Wallet, error)
	GetByUserForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Wallet, error)
	ApplyDelta(ctx context.Context, tx store.Execer, walletID string, delta store.WalletDelta) (int64, error)
}

type transactionLedger interface {
	Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	GetByID(ctx context.Context, q store.Getter, transactionID string) (models.Transaction, error)
	GetForUpdate(ctx context.Context, tx store.Getter, transactionID string) (models.Transaction, error)
	ClaimStatus(ctx context.Context, tx store.Execer, transactionID, fromStatus, toStatus string) (int64, error)
}

type eventOutbox interface {
	Insert(ctx context.Context, tx store.Execer, id, transactionID, oldStatus, newStatus string) error
}

type profitMarks interface {
	Insert(ctx context.Context, tx store.Execer, input store.ProfitHistoryInput) error
	ListForUpdate(ctx context.Context, tx store.Selecter, userID string, withdrawn bool) ([]models.ProfitHistory, error)
	SetWithdrawn(ctx context.Context, tx store.Execer, id string, withdrawn bool) (int64, error)
	SetAmount(ctx context.Context, tx store.Execer, id string, amount int64) error
}

type auditTrail interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, correlationID, data string) error
}

type settingsSource interface {
	Get(ctx context.Context) (store.PlatformSettings, error)
}

// LedgerService owns every wallet mutation outside the scheduler. Each
// operation runs as one serializable unit that locks the wallet, applies the
// delta, writes the justifying transaction and an audit record together.
type LedgerService struct {
	runner       db.TxRunner
	wallets      walletLedger
	transactions transactionLedger
	events       eventOutbox
	profits      profitMarks
	audits       auditTrail
	settings     settingsSource
}

func NewLedgerService(
	runner db.TxRunner,
	wallets walletLedger,
	transactions transactionLedger,
	events eventOutbox,
	profits profitMarks,
	audits auditTrail,
	settings settingsSource,
) *LedgerService {
	return &LedgerService{
		runner:       runner,
		wallets:      wallets,
		transactions: transactions,
		events:       events,
		profits:      profits,
		audits:       audits,
		settings:     settings,
	}
}

// GetOrCreateWallet returns the user's wallet, creating it lazily on first
// need. A losing race against a concurrent create falls back to a re-read.
func (s *LedgerService) GetOrCreateWallet(ctx context.Context, userID string) (models.Wallet, error) {
	wallet, err := s.wallets.GetByUser(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{}, err
	}
	err = s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.wallets.Create(ctx, tx, uuid.NewString(), userID, "USD")
	})
	if err != nil && !isUniqueViolation(err) {
		return models.Wallet{}, err
	}
	return s.wallets.GetByUser(ctx, userID)
}

// CreateDeposit records a pending deposit intake. No balance moves until the
// transaction is settled to completed.
func (s *LedgerService) CreateDeposit(ctx context.Context, userID string, amount int64) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	transactionID := uuid.NewString()
	err := s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:        transactionID,
			UserID:    userID,
			Type:      models.TxDeposit,
			Status:    models.TxPending,
			Amount:    amount,
			NetAmount: amount,
			Currency:  "USD",
		}); err != nil {
			return err
		}
		return s.audits.Log(ctx, tx, userID, "deposit.created", "transaction", transactionID, transactionID,
			auditPayload(map[string]any{"amount": money.FormatMinor(amount)}))
	})
	if err != nil {
		return "", err
	}
	return transactionID, nil
}

// SettleDeposit moves a deposit to a terminal status on behalf of the
// payment layer. Completion credits the wallet and emits an outbox event in
// the same unit; the status claim makes a retried settlement a no-op.
func (s *LedgerService) SettleDeposit(ctx context.Context, actorID, transactionID, toStatus string) error {
	if toStatus != models.TxCompleted && toStatus != models.TxFailed && toStatus != models.TxCancelled {
		return ErrIllegalTransition
	}
	return s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		txn, err := s.transactions.GetForUpdate(ctx, tx, transactionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return err
		}
		if txn.Type != models.TxDeposit {
			return ErrIllegalTransition
		}
		if txn.Status != models.TxPending && txn.Status != models.TxProcessing {
			return ErrAlreadyProcessed
		}
		rows, err := s.transactions.ClaimStatus(ctx, tx, transactionID, txn.Status, toStatus)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		if toStatus == models.TxCompleted {
			wallet, err := s.wallets.GetByUserForUpdate(ctx, tx, txn.UserID)
			if err != nil {
				return err
			}
			if err := applyWalletDelta(ctx, tx, s.wallets, wallet.ID, store.WalletDelta{Balance: txn.NetAmount}); err != nil {
				return err
			}
		}
		if err := s.events.Insert(ctx, tx, uuid.NewString(), transactionID, txn.Status, toStatus); err != nil {
			return err
		}
		return s.audits.Log(ctx, tx, actorID, "deposit."+toStatus, "transaction", transactionID, transactionID,
			auditPayload(map[string]any{
				"amount":     money.FormatMinor(txn.Amount),
				"old_status": txn.Status,
				"new_status": toStatus,
			}))
	})
}

// RequestWithdrawal debits profit_balance and marks the covering profit rows
// withdrawn, oldest first, in the same unit that records the pending
// withdrawal. The fee is taken immediately as its own ledger entry.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, userID string, amount int64) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return "", err
	}
	fee, err := feeFor(amount, settings.WithdrawalFeeRate)
	if err != nil {
		return "", err
	}
	transactionID := uuid.NewString()
	err = s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, err := s.wallets.GetByUserForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWalletNotFound
			}
			return err
		}
		if err := applyWalletDelta(ctx, tx, s.wallets, wallet.ID, store.WalletDelta{Profit: -amount}); err != nil {
			return err
		}
		if err := s.markProfitRows(ctx, tx, userID, amount, true); err != nil {
			return err
		}
		if err := s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:        transactionID,
			UserID:    userID,
			Type:      models.TxWithdrawal,
			Status:    models.TxPending,
			Amount:    amount,
			NetAmount: amount - fee,
			Currency:  wallet.Currency,
		}); err != nil {
			return err
		}
		if fee > 0 {
			if err := s.transactions.Create(ctx, tx, store.TransactionInput{
				ID:        uuid.NewString(),
				UserID:    userID,
				Type:      models.TxFee,
				Status:    models.TxCompleted,
				Amount:    fee,
				NetAmount: fee,
				Currency:  wallet.Currency,
				Metadata:  auditPayload(map[string]any{"withdrawal_id": transactionID}),
			}); err != nil {
				return err
			}
		}
		return s.audits.Log(ctx, tx, userID, "withdrawal.requested", "transaction", transactionID, transactionID,
			auditPayload(map[string]any{
				"amount":                money.FormatMinor(amount),
				"fee":                   money.FormatMinor(fee),
				"profit_balance_before": money.FormatMinor(wallet.ProfitBalance),
				"profit_balance_after":  money.FormatMinor(wallet.ProfitBalance - amount),
			}))
	})
	if err != nil {
		return "", err
	}
	return transactionID, nil
}

// SettleWithdrawal advances a withdrawal's status. Cancellation and failure
// emit the outbox event that drives the refund consumer; the money itself
// moves there, not here.
func (s *LedgerService) SettleWithdrawal(ctx context.Context, actorID, transactionID, toStatus string) error {
	return s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		txn, err := s.transactions.GetForUpdate(ctx, tx, transactionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return err
		}
		if txn.Type != models.TxWithdrawal {
			return ErrIllegalTransition
		}
		if !legalWithdrawalTransition(txn.Status, toStatus) {
			return ErrIllegalTransition
		}
		rows, err := s.transactions.ClaimStatus(ctx, tx, transactionID, txn.Status, toStatus)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		if err := s.events.Insert(ctx, tx, uuid.NewString(), transactionID, txn.Status, toStatus); err != nil {
			return err
		}
		return s.audits.Log(ctx, tx, actorID, "withdrawal."+toStatus, "transaction", transactionID, transactionID,
			auditPayload(map[string]any{
				"amount":     money.FormatMinor(txn.Amount),
				"old_status": txn.Status,
				"new_status": toStatus,
			}))
	})
}

// applyWalletDelta enforces the non-negative guard: zero rows from the
// conditional UPDATE means a partition would have gone negative, so the unit
// fails.
func applyWalletDelta(ctx context.Context, tx *sqlx.Tx, wallets walletLedger, walletID string, delta store.WalletDelta) error {
	rows, err := wallets.ApplyDelta(ctx, tx, walletID, delta)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// markProfitRows flips is_withdrawn on rows oldest-first until the marked sum
// equals amount exactly, splitting the final covering row. The flag totals
// stay in lockstep with the profit partition, which is what reconciliation
// recomputes it from.
func (s *LedgerService) markProfitRows(ctx context.Context, tx *sqlx.Tx, userID string, amount int64, withdrawn bool) error {
	covered, err := flipProfitRows(ctx, tx, s.profits, userID, amount, withdrawn)
	if err != nil {
		return err
	}
	if covered < amount {
		return ErrInsufficientFunds
	}
	return nil
}

// flipProfitRows walks the user's rows carrying the opposite flag, oldest
// first, flipping whole rows while they fit. A row larger than the remaining
// amount is split: the row shrinks by the still-needed slice and the slice is
// inserted as its own row with the target flag, so the flipped sum never
// overshoots. Returns the flipped sum, which falls short only when the rows
// run out.
func flipProfitRows(ctx context.Context, tx *sqlx.Tx, profits profitMarks, userID string, amount int64, withdrawn bool) (int64, error) {
	rows, err := profits.ListForUpdate(ctx, tx, userID, !withdrawn)
	if err != nil {
		return 0, err
	}
	covered := int64(0)
	for _, row := range rows {
		if covered >= amount {
			break
		}
		needed := amount - covered
		if row.Amount > needed {
			if err := profits.SetAmount(ctx, tx, row.ID, row.Amount-needed); err != nil {
				return 0, err
			}
			if err := profits.Insert(ctx, tx, store.ProfitHistoryInput{
				ID:           uuid.NewString(),
				InvestmentID: row.InvestmentID,
				TradeID:      row.TradeID,
				UserID:       row.UserID,
				Amount:       needed,
				ProfitRate:   row.ProfitRate,
				IsWithdrawn:  withdrawn,
			}); err != nil {
				return 0, err
			}
			return amount, nil
		}
		updated, err := profits.SetWithdrawn(ctx, tx, row.ID, withdrawn)
		if err != nil {
			return 0, err
		}
		if updated == 0 {
			continue
		}
		covered += row.Amount
	}
	return covered, nil
}

func legalWithdrawalTransition(from, to string) bool {
	switch from {
	case models.TxPending:
		return to == models.TxProcessing || to == models.TxCompleted ||
			to == models.TxCancelled || to == models.TxFailed
	case models.TxProcessing:
		return to == models.TxCompleted || to == models.TxCancelled || to == models.TxFailed
	default:
		return false
	}
}

func feeFor(amount int64, rate string) (int64, error) {
	parsed, err := parseRate(rate)
	if err != nil {
		return 0, err
	}
	return money.ApplyRate(amount, parsed), nil
}

func auditPayload(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		return "{}"
	}
	return string(data)
}
