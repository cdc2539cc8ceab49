package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"invest/internal/models"
	"invest/internal/store"
)

// errNoReferral is what the store surfaces when no active referral exists.
var errNoReferral = sql.ErrNoRows

var errBoom = errors.New("boom")

func fakeUniqueViolation() error {
	return &pq.Error{Code: "23505"}
}

// stubRunner executes the unit directly. The nil *sqlx.Tx is never touched
// because every store behind it is a stub too.
type stubRunner struct {
	err error
}

func (r stubRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if r.err != nil {
		return r.err
	}
	return fn(nil)
}

type stubWallets struct {
	createFn             func(ctx context.Context, id, userID, currency string) error
	getByUserFn          func(ctx context.Context, userID string) (models.Wallet, error)
	getByUserForUpdateFn func(ctx context.Context, userID string) (models.Wallet, error)
	getForUpdateFn       func(ctx context.Context, walletID string) (models.Wallet, error)
	applyDeltaFn         func(ctx context.Context, walletID string, delta store.WalletDelta) (int64, error)
	setBalancesFn        func(ctx context.Context, walletID string, profitBalance, lockedBalance int64) error
	listIDsFn            func(ctx context.Context) ([]string, error)
}

func (s stubWallets) Create(ctx context.Context, _ store.Execer, id, userID, currency string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, id, userID, currency)
}

func (s stubWallets) GetByUser(ctx context.Context, userID string) (models.Wallet, error) {
	if s.getByUserFn == nil {
		return models.Wallet{ID: "wallet-1", UserID: userID, Currency: "USD"}, nil
	}
	return s.getByUserFn(ctx, userID)
}

func (s stubWallets) GetByUserForUpdate(ctx context.Context, _ store.Getter, userID string) (models.Wallet, error) {
	if s.getByUserForUpdateFn == nil {
		return models.Wallet{ID: "wallet-1", UserID: userID, Currency: "USD"}, nil
	}
	return s.getByUserForUpdateFn(ctx, userID)
}

func (s stubWallets) GetForUpdate(ctx context.Context, _ store.Getter, walletID string) (models.Wallet, error) {
	if s.getForUpdateFn == nil {
		return models.Wallet{ID: walletID, UserID: "user-1", Currency: "USD"}, nil
	}
	return s.getForUpdateFn(ctx, walletID)
}

func (s stubWallets) ApplyDelta(ctx context.Context, _ store.Execer, walletID string, delta store.WalletDelta) (int64, error) {
	if s.applyDeltaFn == nil {
		return 1, nil
	}
	return s.applyDeltaFn(ctx, walletID, delta)
}

func (s stubWallets) SetBalances(ctx context.Context, _ store.Execer, walletID string, profitBalance, lockedBalance int64) error {
	if s.setBalancesFn == nil {
		return nil
	}
	return s.setBalancesFn(ctx, walletID, profitBalance, lockedBalance)
}

func (s stubWallets) ListIDs(ctx context.Context) ([]string, error) {
	if s.listIDsFn == nil {
		return nil, nil
	}
	return s.listIDsFn(ctx)
}

type stubTransactions struct {
	createFn            func(ctx context.Context, input store.TransactionInput) error
	getByIDFn           func(ctx context.Context, transactionID string) (models.Transaction, error)
	getForUpdateFn      func(ctx context.Context, transactionID string) (models.Transaction, error)
	claimStatusFn       func(ctx context.Context, transactionID, fromStatus, toStatus string) (int64, error)
	claimMetadataFlagFn func(ctx context.Context, transactionID, flag string) (int64, error)
}

func (s stubTransactions) Create(ctx context.Context, _ store.Execer, input store.TransactionInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, input)
}

func (s stubTransactions) GetByID(ctx context.Context, _ store.Getter, transactionID string) (models.Transaction, error) {
	if s.getByIDFn == nil {
		return models.Transaction{ID: transactionID}, nil
	}
	return s.getByIDFn(ctx, transactionID)
}

func (s stubTransactions) GetForUpdate(ctx context.Context, _ store.Getter, transactionID string) (models.Transaction, error) {
	if s.getForUpdateFn == nil {
		return models.Transaction{ID: transactionID}, nil
	}
	return s.getForUpdateFn(ctx, transactionID)
}

func (s stubTransactions) ClaimStatus(ctx context.Context, _ store.Execer, transactionID, fromStatus, toStatus string) (int64, error) {
	if s.claimStatusFn == nil {
		return 1, nil
	}
	return s.claimStatusFn(ctx, transactionID, fromStatus, toStatus)
}

func (s stubTransactions) ClaimMetadataFlag(ctx context.Context, _ store.Execer, transactionID, flag string) (int64, error) {
	if s.claimMetadataFlagFn == nil {
		return 1, nil
	}
	return s.claimMetadataFlagFn(ctx, transactionID, flag)
}

type stubOutbox struct {
	insertFn func(ctx context.Context, id, transactionID, oldStatus, newStatus string) error
}

func (s stubOutbox) Insert(ctx context.Context, _ store.Execer, id, transactionID, oldStatus, newStatus string) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, id, transactionID, oldStatus, newStatus)
}

type stubQueue struct {
	listPendingFn func(ctx context.Context, limit int) ([]store.TransactionEvent, error)
	claimFn       func(ctx context.Context, eventID string) (int64, error)
}

func (s stubQueue) ListPending(ctx context.Context, limit int) ([]store.TransactionEvent, error) {
	if s.listPendingFn == nil {
		return nil, nil
	}
	return s.listPendingFn(ctx, limit)
}

func (s stubQueue) Claim(ctx context.Context, _ store.Execer, eventID string) (int64, error) {
	if s.claimFn == nil {
		return 1, nil
	}
	return s.claimFn(ctx, eventID)
}

type stubProfits struct {
	insertFn        func(ctx context.Context, input store.ProfitHistoryInput) error
	listForUpdateFn func(ctx context.Context, userID string, withdrawn bool) ([]models.ProfitHistory, error)
	setWithdrawnFn  func(ctx context.Context, id string, withdrawn bool) (int64, error)
	setAmountFn     func(ctx context.Context, id string, amount int64) error
	sumFn           func(ctx context.Context, userID string) (int64, error)
}

func (s stubProfits) Insert(ctx context.Context, _ store.Execer, input store.ProfitHistoryInput) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, input)
}

func (s stubProfits) ListForUpdate(ctx context.Context, _ store.Selecter, userID string, withdrawn bool) ([]models.ProfitHistory, error) {
	if s.listForUpdateFn == nil {
		return nil, nil
	}
	return s.listForUpdateFn(ctx, userID, withdrawn)
}

func (s stubProfits) SetWithdrawn(ctx context.Context, _ store.Execer, id string, withdrawn bool) (int64, error) {
	if s.setWithdrawnFn == nil {
		return 1, nil
	}
	return s.setWithdrawnFn(ctx, id, withdrawn)
}

func (s stubProfits) SetAmount(ctx context.Context, _ store.Execer, id string, amount int64) error {
	if s.setAmountFn == nil {
		return nil
	}
	return s.setAmountFn(ctx, id, amount)
}

func (s stubProfits) SumUnwithdrawnByUser(ctx context.Context, _ store.Getter, userID string) (int64, error) {
	if s.sumFn == nil {
		return 0, nil
	}
	return s.sumFn(ctx, userID)
}

type auditEntry struct {
	actorID string
	action  string
	entity  string
}

type stubAudits struct {
	entries *[]auditEntry
}

func (s stubAudits) Log(_ context.Context, _ store.Execer, actorID, action, entityType, entityID, correlationID, data string) error {
	if s.entries != nil {
		*s.entries = append(*s.entries, auditEntry{actorID: actorID, action: action, entity: entityID})
	}
	return nil
}

type stubSettings struct {
	settings store.PlatformSettings
	err      error
}

func (s stubSettings) Get(context.Context) (store.PlatformSettings, error) {
	return s.settings, s.err
}

func defaultSettings() store.PlatformSettings {
	return store.PlatformSettings{
		WeekendTradingEnabled:    false,
		TradingOpenHour:          8,
		TradingCloseHour:         18,
		CommissionRate:           "5",
		FirstInvestmentBonusRate: "2",
		MinCommissionDeposit:     1000,
		WithdrawalFeeRate:        "1",
	}
}

type stubInvestments struct {
	createFn       func(ctx context.Context, input store.InvestmentInput) error
	getByIDFn      func(ctx context.Context, investmentID string) (models.Investment, error)
	getForUpdateFn func(ctx context.Context, investmentID string) (models.Investment, error)
	listByUserFn   func(ctx context.Context, userID string) ([]models.Investment, error)
	countByUserFn  func(ctx context.Context, userID string) (int64, error)
	listMaturedFn  func(ctx context.Context, now time.Time, limit int) ([]models.Investment, error)
	claimMatureFn  func(ctx context.Context, investmentID string) (int64, error)
	addProfitFn    func(ctx context.Context, investmentID string, amount int64) error
	listEligibleFn func(ctx context.Context, dayStart time.Time, limit int) ([]models.Investment, error)
	sumActiveFn    func(ctx context.Context, userID string) (int64, error)
}

func (s stubInvestments) Create(ctx context.Context, _ store.Execer, input store.InvestmentInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, input)
}

func (s stubInvestments) GetByID(ctx context.Context, investmentID string) (models.Investment, error) {
	if s.getByIDFn == nil {
		return models.Investment{ID: investmentID, Status: models.InvestmentActive}, nil
	}
	return s.getByIDFn(ctx, investmentID)
}

func (s stubInvestments) GetForUpdate(ctx context.Context, _ store.Getter, investmentID string) (models.Investment, error) {
	if s.getForUpdateFn == nil {
		return models.Investment{ID: investmentID, Status: models.InvestmentActive}, nil
	}
	return s.getForUpdateFn(ctx, investmentID)
}

func (s stubInvestments) ListByUser(ctx context.Context, userID string) ([]models.Investment, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

func (s stubInvestments) CountByUser(ctx context.Context, _ store.Getter, userID string) (int64, error) {
	if s.countByUserFn == nil {
		return 1, nil
	}
	return s.countByUserFn(ctx, userID)
}

func (s stubInvestments) ListMatured(ctx context.Context, now time.Time, limit int) ([]models.Investment, error) {
	if s.listMaturedFn == nil {
		return nil, nil
	}
	return s.listMaturedFn(ctx, now, limit)
}

func (s stubInvestments) ClaimMature(ctx context.Context, _ store.Execer, investmentID string, _ time.Time) (int64, error) {
	if s.claimMatureFn == nil {
		return 1, nil
	}
	return s.claimMatureFn(ctx, investmentID)
}

func (s stubInvestments) AddProfit(ctx context.Context, _ store.Execer, investmentID string, amount int64) error {
	if s.addProfitFn == nil {
		return nil
	}
	return s.addProfitFn(ctx, investmentID, amount)
}

func (s stubInvestments) ListEligibleForTrade(ctx context.Context, dayStart time.Time, limit int) ([]models.Investment, error) {
	if s.listEligibleFn == nil {
		return nil, nil
	}
	return s.listEligibleFn(ctx, dayStart, limit)
}

func (s stubInvestments) SumActiveTotalByUser(ctx context.Context, _ store.Getter, userID string) (int64, error) {
	if s.sumActiveFn == nil {
		return 0, nil
	}
	return s.sumActiveFn(ctx, userID)
}

type stubPackages struct {
	getByIDFn    func(ctx context.Context, packageID string) (models.Package, error)
	listActiveFn func(ctx context.Context) ([]models.Package, error)
}

func (s stubPackages) GetByID(ctx context.Context, packageID string) (models.Package, error) {
	if s.getByIDFn == nil {
		return models.Package{
			ID: packageID, MinStake: 1000, ProfitMin: "2.5", ProfitMax: "5",
			BonusPercent: "10", DurationDays: 30, TradeCycleHrs: 24, IsActive: true,
		}, nil
	}
	return s.getByIDFn(ctx, packageID)
}

func (s stubPackages) ListActive(ctx context.Context) ([]models.Package, error) {
	if s.listActiveFn == nil {
		return nil, nil
	}
	return s.listActiveFn(ctx)
}

type stubReferrals struct {
	createFn        func(ctx context.Context, id, referrerID, referredUserID string) error
	getByReferredFn func(ctx context.Context, referredUserID string) (models.Referral, error)
	addCommissionFn func(ctx context.Context, referralID string, amount int64) error
}

func (s stubReferrals) Create(ctx context.Context, _ store.Execer, id, referrerID, referredUserID string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, id, referrerID, referredUserID)
}

func (s stubReferrals) GetActiveByReferred(ctx context.Context, _ store.Getter, referredUserID string) (models.Referral, error) {
	if s.getByReferredFn == nil {
		return models.Referral{}, errNoReferral
	}
	return s.getByReferredFn(ctx, referredUserID)
}

func (s stubReferrals) AddCommission(ctx context.Context, _ store.Execer, referralID string, amount int64) error {
	if s.addCommissionFn == nil {
		return nil
	}
	return s.addCommissionFn(ctx, referralID, amount)
}

type stubTrades struct {
	createFn         func(ctx context.Context, input store.TradeInput) error
	markRunningFn    func(ctx context.Context, tradeID string) (int64, error)
	getByIDFn        func(ctx context.Context, tradeID string) (models.Trade, error)
	listByUserFn     func(ctx context.Context, userID string, limit, offset int) ([]models.Trade, error)
	listDueFn        func(ctx context.Context, now time.Time, limit int) ([]models.Trade, error)
	claimCompletedFn func(ctx context.Context, tradeID string) (int64, error)
	claimStoppedFn   func(ctx context.Context, tradeID string) (int64, error)
	claimFailedFn    func(ctx context.Context, tradeID string) (int64, error)
	listStuckFn      func(ctx context.Context, pendingBefore, runningEndBefore time.Time, limit int) ([]models.Trade, error)
}

func (s stubTrades) Create(ctx context.Context, _ store.Execer, input store.TradeInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, input)
}

func (s stubTrades) MarkRunning(ctx context.Context, _ store.Execer, tradeID string) (int64, error) {
	if s.markRunningFn == nil {
		return 1, nil
	}
	return s.markRunningFn(ctx, tradeID)
}

func (s stubTrades) GetByID(ctx context.Context, tradeID string) (models.Trade, error) {
	if s.getByIDFn == nil {
		return models.Trade{ID: tradeID, Status: models.TradeRunning}, nil
	}
	return s.getByIDFn(ctx, tradeID)
}

func (s stubTrades) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Trade, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit, offset)
}

func (s stubTrades) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Trade, error) {
	if s.listDueFn == nil {
		return nil, nil
	}
	return s.listDueFn(ctx, now, limit)
}

func (s stubTrades) ClaimCompleted(ctx context.Context, _ store.Execer, tradeID string, _ time.Time) (int64, error) {
	if s.claimCompletedFn == nil {
		return 1, nil
	}
	return s.claimCompletedFn(ctx, tradeID)
}

func (s stubTrades) ClaimStopped(ctx context.Context, _ store.Execer, tradeID string, _ time.Time) (int64, error) {
	if s.claimStoppedFn == nil {
		return 1, nil
	}
	return s.claimStoppedFn(ctx, tradeID)
}

func (s stubTrades) ClaimFailed(ctx context.Context, _ store.Execer, tradeID string) (int64, error) {
	if s.claimFailedFn == nil {
		return 1, nil
	}
	return s.claimFailedFn(ctx, tradeID)
}

func (s stubTrades) ListStuck(ctx context.Context, pendingBefore, runningEndBefore time.Time, limit int) ([]models.Trade, error) {
	if s.listStuckFn == nil {
		return nil, nil
	}
	return s.listStuckFn(ctx, pendingBefore, runningEndBefore, limit)
}
