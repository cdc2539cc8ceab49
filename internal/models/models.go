package models

import "time"

// Investment statuses.
const (
	InvestmentActive    = "active"
	InvestmentCompleted = "completed"
	InvestmentCancelled = "cancelled"
)

// Trade statuses.
const (
	TradePending   = "pending"
	TradeRunning   = "running"
	TradeCompleted = "completed"
	TradeFailed    = "failed"
	TradeStopped   = "stopped"
)

// Transaction types.
const (
	TxDeposit    = "deposit"
	TxWithdrawal = "withdrawal"
	TxInvestment = "investment"
	TxProfit     = "profit"
	TxBonus      = "bonus"
	TxReferral   = "referral"
	TxFee        = "fee"
)

// Transaction statuses.
const (
	TxPending    = "pending"
	TxProcessing = "processing"
	TxCompleted  = "completed"
	TxFailed     = "failed"
	TxCancelled  = "cancelled"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	ReferralCode string    `db:"referral_code" json:"referral_code"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Wallet holds a user's three balance partitions in minor units.
// balance is investable principal, profit_balance is withdrawable earnings,
// locked_balance is capital tied up in active investments.
type Wallet struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Currency      string    `db:"currency" json:"currency"`
	Balance       int64     `db:"balance" json:"balance"`
	ProfitBalance int64     `db:"profit_balance" json:"profit_balance"`
	LockedBalance int64     `db:"locked_balance" json:"locked_balance"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Package is the configuration template an investment is created against.
type Package struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	MinStake       int64     `db:"min_stake" json:"min_stake"`
	ProfitMin      string    `db:"profit_min" json:"profit_min"`
	ProfitMax      string    `db:"profit_max" json:"profit_max"`
	BonusPercent   string    `db:"bonus_percent" json:"bonus_percent"`
	DurationDays   int       `db:"duration_days" json:"duration_days"`
	TradeCycleHrs  int       `db:"trade_cycle_hours" json:"trade_cycle_hours"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type Investment struct {
	ID                       string     `db:"id" json:"id"`
	UserID                   string     `db:"user_id" json:"user_id"`
	PackageID                string     `db:"package_id" json:"package_id"`
	PrincipalAmount          int64      `db:"principal_amount" json:"principal_amount"`
	WelcomeBonusAmount       int64      `db:"welcome_bonus_amount" json:"welcome_bonus_amount"`
	TotalProfits             int64      `db:"total_profits" json:"total_profits"`
	Status                   string     `db:"status" json:"status"`
	IsPrincipalWithdrawable  bool       `db:"is_principal_withdrawable" json:"is_principal_withdrawable"`
	StartDate                time.Time  `db:"start_date" json:"start_date"`
	MaturityDate             time.Time  `db:"maturity_date" json:"maturity_date"`
	CompletedAt              *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
}

// TotalInvestment is principal plus welcome bonus, the amount held in
// locked_balance while the investment is active.
func (i Investment) TotalInvestment() int64 {
	return i.PrincipalAmount + i.WelcomeBonusAmount
}

type Trade struct {
	ID           string     `db:"id" json:"id"`
	InvestmentID string     `db:"investment_id" json:"investment_id"`
	UserID       string     `db:"user_id" json:"user_id"`
	TradeAmount  int64      `db:"trade_amount" json:"trade_amount"`
	ProfitRate   string     `db:"profit_rate" json:"profit_rate"`
	ProfitAmount int64      `db:"profit_amount" json:"profit_amount"`
	Status       string     `db:"status" json:"status"`
	StartTime    time.Time  `db:"start_time" json:"start_time"`
	EndTime      time.Time  `db:"end_time" json:"end_time"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

type ProfitHistory struct {
	ID           string    `db:"id" json:"id"`
	InvestmentID string    `db:"investment_id" json:"investment_id"`
	TradeID      string    `db:"trade_id" json:"trade_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Amount       int64     `db:"amount" json:"amount"`
	ProfitRate   string    `db:"profit_rate" json:"profit_rate"`
	IsWithdrawn  bool      `db:"is_withdrawn" json:"is_withdrawn"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Transaction struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Status    string    `db:"status" json:"status"`
	Amount    int64     `db:"amount" json:"amount"`
	NetAmount int64     `db:"net_amount" json:"net_amount"`
	Currency  string    `db:"currency" json:"currency"`
	Metadata  string    `db:"metadata" json:"metadata"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Referral struct {
	ID               string    `db:"id" json:"id"`
	ReferrerID       string    `db:"referrer_id" json:"referrer_id"`
	ReferredUserID   string    `db:"referred_user_id" json:"referred_user_id"`
	CommissionEarned int64     `db:"commission_earned" json:"commission_earned"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
