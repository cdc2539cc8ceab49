package handlers

import (
	"context"

	"invest/internal/models"
	"invest/internal/scheduler"
	"invest/internal/store"
)

type UserService interface {
	Register(ctx context.Context, username, email, password, referralCode string) (string, error)
	Login(ctx context.Context, email, password string) (string, string, error)
	GetProfile(ctx context.Context, userID string) (map[string]any, error)
}

type LedgerService interface {
	GetOrCreateWallet(ctx context.Context, userID string) (models.Wallet, error)
	CreateDeposit(ctx context.Context, userID string, amount int64) (string, error)
	SettleDeposit(ctx context.Context, actorID, transactionID, toStatus string) error
	RequestWithdrawal(ctx context.Context, userID string, amount int64) (string, error)
	SettleWithdrawal(ctx context.Context, actorID, transactionID, toStatus string) error
}

type InvestmentService interface {
	CreateInvestment(ctx context.Context, userID, packageID string, principal int64) (models.Investment, error)
	GetInvestment(ctx context.Context, userID, investmentID string) (models.Investment, error)
	ListInvestments(ctx context.Context, userID string) ([]models.Investment, error)
	ListPackages(ctx context.Context) ([]models.Package, error)
}

type TradeService interface {
	InitiateTrade(ctx context.Context, userID, investmentID string) (models.Trade, error)
	StopTrade(ctx context.Context, userID, tradeID string) (int64, error)
	GetTrade(ctx context.Context, userID, tradeID string) (models.Trade, error)
	ListTrades(ctx context.Context, userID string, limit, offset int) ([]models.Trade, error)
}

type ReconcileService interface {
	Run(ctx context.Context) (checked, corrected, failed int, err error)
}

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (map[string]any, error)
}

type TransactionStore interface {
	ListByUser(ctx context.Context, userID, txType string, limit, offset int) ([]models.Transaction, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Transaction, error)
}

type ProfitStore interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.ProfitHistory, error)
}

type ReferralStore interface {
	ListByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, correlationID, data string) error
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type JobRunner interface {
	Trigger(ctx context.Context, name string) (scheduler.Result, error)
	JobNames() []string
}
