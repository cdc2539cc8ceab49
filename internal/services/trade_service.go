package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"invest/internal/db"
	"invest/internal/models"
	"invest/internal/money"
	"invest/internal/profit"
	"invest/internal/store"
)

type tradeLedger interface {
	Create(ctx context.Context, tx store.Execer, input store.TradeInput) error
	MarkRunning(ctx context.Context, tx store.Execer, tradeID string) (int64, error)
	GetByID(ctx context.Context, tradeID string) (models.Trade, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Trade, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Trade, error)
	ClaimCompleted(ctx context.Context, tx store.Execer, tradeID string, completedAt time.Time) (int64, error)
	ClaimStopped(ctx context.Context, tx store.Execer, tradeID string, stoppedAt time.Time) (int64, error)
	ClaimFailed(ctx context.Context, tx store.Execer, tradeID string) (int64, error)
	ListStuck(ctx context.Context, pendingBefore, runningEndBefore time.Time, limit int) ([]models.Trade, error)
}

type tradeInvestments interface {
	GetByID(ctx context.Context, investmentID string) (models.Investment, error)
	GetForUpdate(ctx context.Context, tx store.Getter, investmentID string) (models.Investment, error)
	AddProfit(ctx context.Context, tx store.Execer, investmentID string, amount int64) error
	ListEligibleForTrade(ctx context.Context, dayStart time.Time, limit int) ([]models.Investment, error)
}

type profitRecorder interface {
	Insert(ctx context.Context, tx store.Execer, input store.ProfitHistoryInput) error
}

// stuck thresholds for the cleanup job: pending trades are expected to turn
// running within the creating unit, running trades to settle at end_time.
const (
	stuckPendingAfter = time.Hour
	stuckRunningGrace = time.Hour
)

// TradeService drives the trade lifecycle. The profit is sampled and frozen
// at creation; completion pays it verbatim, an early stop pays the elapsed
// slice. Every terminal transition is a row claim, so the background
// completion job and a foreground stop compete cleanly for the same trade.
type TradeService struct {
	runner       db.TxRunner
	wallets      walletLedger
	investments  tradeInvestments
	trades       tradeLedger
	profits      profitRecorder
	packages     packageSource
	transactions transactionLedger
	audits       auditTrail
	rates        profit.RateSource
}

func NewTradeService(
	runner db.TxRunner,
	wallets walletLedger,
	investments tradeInvestments,
	trades tradeLedger,
	profits profitRecorder,
	packages packageSource,
	transactions transactionLedger,
	audits auditTrail,
	rates profit.RateSource,
) *TradeService {
	return &TradeService{
		runner:       runner,
		wallets:      wallets,
		investments:  investments,
		trades:       trades,
		profits:      profits,
		packages:     packages,
		transactions: transactions,
		audits:       audits,
		rates:        rates,
	}
}

// InitiateTrade starts a manual trade on the caller's investment.
func (s *TradeService) InitiateTrade(ctx context.Context, userID, investmentID string) (models.Trade, error) {
	investment, err := s.investments.GetByID(ctx, investmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Trade{}, ErrInvestmentNotFound
		}
		return models.Trade{}, err
	}
	if investment.UserID != userID {
		return models.Trade{}, ErrNotYourResource
	}
	return s.startTrade(ctx, investment, "user:"+userID, time.Now().UTC())
}

// startTrade samples the rate, freezes the profit and creates the trade as
// pending → running inside one unit. The partial unique index on open trades
// turns a concurrent double-initiation into a unique violation, surfaced as
// ErrTradeInProgress.
func (s *TradeService) startTrade(ctx context.Context, investment models.Investment, actorID string, now time.Time) (models.Trade, error) {
	if investment.Status != models.InvestmentActive {
		return models.Trade{}, ErrInvestmentNotActive
	}
	pkg, err := s.packages.GetByID(ctx, investment.PackageID)
	if err != nil {
		return models.Trade{}, err
	}
	quote, err := profit.QuoteTrade(s.rates, investment.TotalInvestment(), pkg.ProfitMin, pkg.ProfitMax)
	if err != nil {
		return models.Trade{}, err
	}
	trade := models.Trade{
		ID:           uuid.NewString(),
		InvestmentID: investment.ID,
		UserID:       investment.UserID,
		TradeAmount:  investment.TotalInvestment(),
		ProfitRate:   quote.Rate.String(),
		ProfitAmount: quote.AmountMinor,
		Status:       models.TradeRunning,
		StartTime:    now,
		EndTime:      now.Add(time.Duration(pkg.TradeCycleHrs) * time.Hour),
	}
	err = s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.investments.GetForUpdate(ctx, tx, investment.ID)
		if err != nil {
			return err
		}
		if locked.Status != models.InvestmentActive {
			return ErrInvestmentNotActive
		}
		if err := s.trades.Create(ctx, tx, store.TradeInput{
			ID:           trade.ID,
			InvestmentID: trade.InvestmentID,
			UserID:       trade.UserID,
			TradeAmount:  trade.TradeAmount,
			ProfitRate:   trade.ProfitRate,
			ProfitAmount: trade.ProfitAmount,
			StartTime:    trade.StartTime,
			EndTime:      trade.EndTime,
		}); err != nil {
			if isUniqueViolation(err) {
				return ErrTradeInProgress
			}
			return err
		}
		if _, err := s.trades.MarkRunning(ctx, tx, trade.ID); err != nil {
			return err
		}
		return s.audits.Log(ctx, tx, actorID, "trade.started", "trade", trade.ID, trade.InvestmentID,
			auditPayload(map[string]any{
				"trade_amount":  money.FormatMinor(trade.TradeAmount),
				"profit_rate":   trade.ProfitRate,
				"frozen_profit": money.FormatMinor(trade.ProfitAmount),
			}))
	})
	if err != nil {
		return models.Trade{}, err
	}
	return trade, nil
}

// StopTrade settles a running trade early at a pro-rata slice of the frozen
// profit. It competes with the completion job on the running → terminal
// transition; losing the claim means the trade already paid in full.
func (s *TradeService) StopTrade(ctx context.Context, userID, tradeID string) (int64, error) {
	trade, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTradeNotFound
		}
		return 0, err
	}
	if trade.UserID != userID {
		return 0, ErrNotYourResource
	}
	if trade.Status != models.TradeRunning {
		return 0, ErrTradeNotRunning
	}
	now := time.Now().UTC()
	payout := profit.ProRata(trade.ProfitAmount, trade.StartTime, now, trade.EndTime)
	err = s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.trades.ClaimStopped(ctx, tx, trade.ID, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrTradeAlreadySettled
		}
		return s.settlePayout(ctx, tx, trade, payout, "user:"+userID, "trade.stopped")
	})
	if err != nil {
		return 0, err
	}
	return payout, nil
}

// completeTrade pays the frozen profit for one due trade. Zero rows from the
// claim means a concurrent run or a user stop won.
func (s *TradeService) completeTrade(ctx context.Context, trade models.Trade, now time.Time) error {
	return s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.trades.ClaimCompleted(ctx, tx, trade.ID, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		return s.settlePayout(ctx, tx, trade, trade.ProfitAmount, "system", "trade.completed")
	})
}

// settlePayout writes the settlement bundle after a won claim: ProfitHistory,
// the investment's running total, the wallet credit and the profit
// transaction, all in the claiming unit.
func (s *TradeService) settlePayout(ctx context.Context, tx *sqlx.Tx, trade models.Trade, payout int64, actorID, action string) error {
	if err := s.profits.Insert(ctx, tx, store.ProfitHistoryInput{
		ID:           uuid.NewString(),
		InvestmentID: trade.InvestmentID,
		TradeID:      trade.ID,
		UserID:       trade.UserID,
		Amount:       payout,
		ProfitRate:   trade.ProfitRate,
	}); err != nil {
		return err
	}
	if err := s.investments.AddProfit(ctx, tx, trade.InvestmentID, payout); err != nil {
		return err
	}
	wallet, err := s.wallets.GetByUserForUpdate(ctx, tx, trade.UserID)
	if err != nil {
		return err
	}
	if err := applyWalletDelta(ctx, tx, s.wallets, wallet.ID, store.WalletDelta{Profit: payout}); err != nil {
		return err
	}
	if err := s.transactions.Create(ctx, tx, store.TransactionInput{
		ID:        uuid.NewString(),
		UserID:    trade.UserID,
		Type:      models.TxProfit,
		Status:    models.TxCompleted,
		Amount:    payout,
		NetAmount: payout,
		Currency:  wallet.Currency,
		Metadata:  auditPayload(map[string]any{"trade_id": trade.ID, "investment_id": trade.InvestmentID}),
	}); err != nil {
		return err
	}
	return s.audits.Log(ctx, tx, actorID, action, "trade", trade.ID, trade.InvestmentID,
		auditPayload(map[string]any{
			"payout":                money.FormatMinor(payout),
			"frozen_profit":         money.FormatMinor(trade.ProfitAmount),
			"profit_balance_before": money.FormatMinor(wallet.ProfitBalance),
			"profit_balance_after":  money.FormatMinor(wallet.ProfitBalance + payout),
		}))
}

// ProcessCompletedTrades settles every due trade. A trade that fails to
// settle is force-failed and the batch continues.
func (s *TradeService) ProcessCompletedTrades(ctx context.Context, now time.Time, limit int) (processed, failed int, err error) {
	due, err := s.trades.ListDue(ctx, now, limit)
	if err != nil {
		return 0, 0, err
	}
	for _, trade := range due {
		switch err := s.completeTrade(ctx, trade, now); {
		case err == nil:
			processed++
		case errors.Is(err, ErrAlreadyProcessed):
		default:
			failed++
			s.failTrade(ctx, trade, err)
		}
	}
	return processed, failed, nil
}

// failTrade parks a trade that could not settle. No wallet effect; the audit
// record carries the cause for investigation.
func (s *TradeService) failTrade(ctx context.Context, trade models.Trade, cause error) {
	_ = s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.trades.ClaimFailed(ctx, tx, trade.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		return s.audits.Log(ctx, tx, "system", "trade.failed", "trade", trade.ID, trade.InvestmentID,
			auditPayload(map[string]any{"cause": cause.Error()}))
	})
}

// AutoInitiateDailyTrades opens one trade per eligible investment: active,
// no open trade, none created since dayStart.
func (s *TradeService) AutoInitiateDailyTrades(ctx context.Context, now time.Time, limit int) (processed, failed int, err error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	eligible, err := s.investments.ListEligibleForTrade(ctx, dayStart, limit)
	if err != nil {
		return 0, 0, err
	}
	for _, investment := range eligible {
		switch _, err := s.startTrade(ctx, investment, "system", now); {
		case err == nil:
			processed++
		case errors.Is(err, ErrTradeInProgress), errors.Is(err, ErrInvestmentNotActive):
		default:
			failed++
		}
	}
	return processed, failed, nil
}

// CleanupStuckTrades force-fails trades abandoned mid-lifecycle: pending past
// an hour or running past end_time plus grace.
func (s *TradeService) CleanupStuckTrades(ctx context.Context, now time.Time, limit int) (processed, failed int, err error) {
	stuck, err := s.trades.ListStuck(ctx, now.Add(-stuckPendingAfter), now.Add(-stuckRunningGrace), limit)
	if err != nil {
		return 0, 0, err
	}
	for _, trade := range stuck {
		claimErr := s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
			rows, err := s.trades.ClaimFailed(ctx, tx, trade.ID)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrAlreadyProcessed
			}
			return s.audits.Log(ctx, tx, "system", "trade.failed", "trade", trade.ID, trade.InvestmentID,
				auditPayload(map[string]any{"cause": "stuck", "status": trade.Status}))
		})
		switch {
		case claimErr == nil:
			processed++
		case errors.Is(claimErr, ErrAlreadyProcessed):
		default:
			failed++
		}
	}
	return processed, failed, nil
}

func (s *TradeService) GetTrade(ctx context.Context, userID, tradeID string) (models.Trade, error) {
	trade, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Trade{}, ErrTradeNotFound
		}
		return models.Trade{}, err
	}
	if trade.UserID != userID {
		return models.Trade{}, ErrNotYourResource
	}
	return trade, nil
}

func (s *TradeService) ListTrades(ctx context.Context, userID string, limit, offset int) ([]models.Trade, error) {
	return s.trades.ListByUser(ctx, userID, limit, offset)
}
