package services

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrPackageNotFound     = errors.New("package not found")
	ErrPackageInactive     = errors.New("package is not active")
	ErrBelowMinStake       = errors.New("amount is below the package minimum stake")
	ErrInvestmentNotFound  = errors.New("investment not found")
	ErrInvestmentNotActive = errors.New("investment is not active")
	ErrTradeNotFound       = errors.New("trade not found")
	ErrTradeInProgress     = errors.New("investment already has an open trade")
	ErrTradeNotRunning     = errors.New("trade is not running")
	ErrTradeAlreadySettled = errors.New("trade already settled")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrAlreadyProcessed    = errors.New("already processed")
	ErrNotYourResource     = errors.New("resource belongs to another user")
)

// isUniqueViolation reports a Postgres 23505, the signal that a concurrent
// writer already holds the slot guarded by a unique constraint.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505"
}
