package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"invest/internal/auth"
	"invest/internal/config"
	"invest/internal/models"
	"invest/internal/scheduler"
	"invest/internal/store"
	"invest/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserService struct {
	registerFn func(ctx context.Context, username, email, password, referralCode string) (string, error)
	loginFn    func(ctx context.Context, email, password string) (string, string, error)
	profileFn  func(ctx context.Context, userID string) (map[string]any, error)
}

func (s stubUserService) Register(ctx context.Context, username, email, password, referralCode string) (string, error) {
	if s.registerFn == nil {
		return "user-1", nil
	}
	return s.registerFn(ctx, username, email, password, referralCode)
}

func (s stubUserService) Login(ctx context.Context, email, password string) (string, string, error) {
	if s.loginFn == nil {
		return "user-1", "token-1", nil
	}
	return s.loginFn(ctx, email, password)
}

func (s stubUserService) GetProfile(ctx context.Context, userID string) (map[string]any, error) {
	if s.profileFn == nil {
		return map[string]any{"id": userID}, nil
	}
	return s.profileFn(ctx, userID)
}

type stubLedgerService struct {
	walletFn           func(ctx context.Context, userID string) (models.Wallet, error)
	createDepositFn    func(ctx context.Context, userID string, amount int64) (string, error)
	settleDepositFn    func(ctx context.Context, actorID, transactionID, toStatus string) error
	withdrawFn         func(ctx context.Context, userID string, amount int64) (string, error)
	settleWithdrawalFn func(ctx context.Context, actorID, transactionID, toStatus string) error
}

func (s stubLedgerService) GetOrCreateWallet(ctx context.Context, userID string) (models.Wallet, error) {
	if s.walletFn == nil {
		return models.Wallet{ID: "wallet-1", UserID: userID, Currency: "USD", Balance: 100000}, nil
	}
	return s.walletFn(ctx, userID)
}

func (s stubLedgerService) CreateDeposit(ctx context.Context, userID string, amount int64) (string, error) {
	if s.createDepositFn == nil {
		return "tx-1", nil
	}
	return s.createDepositFn(ctx, userID, amount)
}

func (s stubLedgerService) SettleDeposit(ctx context.Context, actorID, transactionID, toStatus string) error {
	if s.settleDepositFn == nil {
		return nil
	}
	return s.settleDepositFn(ctx, actorID, transactionID, toStatus)
}

func (s stubLedgerService) RequestWithdrawal(ctx context.Context, userID string, amount int64) (string, error) {
	if s.withdrawFn == nil {
		return "tx-2", nil
	}
	return s.withdrawFn(ctx, userID, amount)
}

func (s stubLedgerService) SettleWithdrawal(ctx context.Context, actorID, transactionID, toStatus string) error {
	if s.settleWithdrawalFn == nil {
		return nil
	}
	return s.settleWithdrawalFn(ctx, actorID, transactionID, toStatus)
}

type stubInvestmentService struct {
	createFn       func(ctx context.Context, userID, packageID string, principal int64) (models.Investment, error)
	getFn          func(ctx context.Context, userID, investmentID string) (models.Investment, error)
	listFn         func(ctx context.Context, userID string) ([]models.Investment, error)
	listPackagesFn func(ctx context.Context) ([]models.Package, error)
}

func (s stubInvestmentService) CreateInvestment(ctx context.Context, userID, packageID string, principal int64) (models.Investment, error) {
	if s.createFn == nil {
		return models.Investment{ID: "inv-1", UserID: userID, PackageID: packageID, PrincipalAmount: principal, Status: models.InvestmentActive}, nil
	}
	return s.createFn(ctx, userID, packageID, principal)
}

func (s stubInvestmentService) GetInvestment(ctx context.Context, userID, investmentID string) (models.Investment, error) {
	if s.getFn == nil {
		return models.Investment{ID: investmentID, UserID: userID, Status: models.InvestmentActive}, nil
	}
	return s.getFn(ctx, userID, investmentID)
}

func (s stubInvestmentService) ListInvestments(ctx context.Context, userID string) ([]models.Investment, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, userID)
}

func (s stubInvestmentService) ListPackages(ctx context.Context) ([]models.Package, error) {
	if s.listPackagesFn == nil {
		return nil, nil
	}
	return s.listPackagesFn(ctx)
}

type stubTradeService struct {
	initiateFn func(ctx context.Context, userID, investmentID string) (models.Trade, error)
	stopFn     func(ctx context.Context, userID, tradeID string) (int64, error)
	getFn      func(ctx context.Context, userID, tradeID string) (models.Trade, error)
	listFn     func(ctx context.Context, userID string, limit, offset int) ([]models.Trade, error)
}

func (s stubTradeService) InitiateTrade(ctx context.Context, userID, investmentID string) (models.Trade, error) {
	if s.initiateFn == nil {
		return models.Trade{ID: "trade-1", InvestmentID: investmentID, UserID: userID, Status: models.TradeRunning}, nil
	}
	return s.initiateFn(ctx, userID, investmentID)
}

func (s stubTradeService) StopTrade(ctx context.Context, userID, tradeID string) (int64, error) {
	if s.stopFn == nil {
		return 500, nil
	}
	return s.stopFn(ctx, userID, tradeID)
}

func (s stubTradeService) GetTrade(ctx context.Context, userID, tradeID string) (models.Trade, error) {
	if s.getFn == nil {
		return models.Trade{ID: tradeID, UserID: userID, Status: models.TradeRunning}, nil
	}
	return s.getFn(ctx, userID, tradeID)
}

func (s stubTradeService) ListTrades(ctx context.Context, userID string, limit, offset int) ([]models.Trade, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, userID, limit, offset)
}

type stubReconcileService struct {
	runFn func(ctx context.Context) (int, int, int, error)
}

func (s stubReconcileService) Run(ctx context.Context) (int, int, int, error) {
	if s.runFn == nil {
		return 0, 0, 0, nil
	}
	return s.runFn(ctx)
}

type stubUserStore struct {
	getByEmailFn func(ctx context.Context, email string) (map[string]any, error)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (map[string]any, error) {
	if s.getByEmailFn == nil {
		return map[string]any{"id": "user-2"}, nil
	}
	return s.getByEmailFn(ctx, email)
}

type stubTransactionStore struct {
	listByUserFn func(ctx context.Context, userID, txType string, limit, offset int) ([]models.Transaction, error)
	listAllFn    func(ctx context.Context, limit, offset int) ([]models.Transaction, error)
}

func (s stubTransactionStore) ListByUser(ctx context.Context, userID, txType string, limit, offset int) ([]models.Transaction, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, txType, limit, offset)
}

func (s stubTransactionStore) ListAll(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, limit, offset)
}

type stubProfitStore struct {
	listFn func(ctx context.Context, userID string, limit, offset int) ([]models.ProfitHistory, error)
}

func (s stubProfitStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.ProfitHistory, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, userID, limit, offset)
}

type stubReferralStore struct {
	listFn func(ctx context.Context, referrerID string) ([]models.Referral, error)
}

func (s stubReferralStore) ListByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, referrerID)
}

type stubAdminStore struct {
	isAdminFn     func(ctx context.Context, userID string) (bool, bool, error)
	createAdminFn func(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	hasAnyAdminFn func(ctx context.Context) (bool, error)
}

func (s stubAdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	if s.isAdminFn == nil {
		return false, false, nil
	}
	return s.isAdminFn(ctx, userID)
}

func (s stubAdminStore) CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error {
	if s.createAdminFn == nil {
		return nil
	}
	return s.createAdminFn(ctx, tx, userID, isSuper, createdBy)
}

func (s stubAdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return true, nil
	}
	return s.hasAnyAdminFn(ctx)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, correlationID, data string) error
	listFn func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, correlationID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, correlationID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubJobRunner struct {
	triggerFn func(ctx context.Context, name string) (scheduler.Result, error)
	names     []string
}

func (s stubJobRunner) Trigger(ctx context.Context, name string) (scheduler.Result, error) {
	if s.triggerFn == nil {
		return scheduler.Result{}, nil
	}
	return s.triggerFn(ctx, name)
}

func (s stubJobRunner) JobNames() []string {
	return s.names
}

type testEnv struct {
	txRunner     fakeTxRunner
	users        stubUserService
	ledger       stubLedgerService
	investments  stubInvestmentService
	trades       stubTradeService
	reconciler   stubReconcileService
	userStore    stubUserStore
	transactions stubTransactionStore
	profits      stubProfitStore
	referrals    stubReferralStore
	admin        stubAdminStore
	audit        stubAuditStore
	jobs         stubJobRunner
}

func (e testEnv) router() http.Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	handler := New(e.txRunner, cfg, e.users, e.ledger, e.investments, e.trades, e.reconciler, e.userStore, e.transactions, e.profits, e.referrals, e.admin, e.audit, e.jobs, websocket.NewHub())
	return handler.Routes()
}

func authedJSONRequest(t *testing.T, method, target, userID string, payload any) *http.Request {
	t.Helper()
	body := bytes.NewBuffer(nil)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := auth.GenerateToken("secret", userID, time.Minute)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func jsonDecode(rec *httptest.ResponseRecorder, dest any) error {
	return json.NewDecoder(rec.Body).Decode(dest)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var parsed map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return parsed
}
