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
	"invest/internal/store"
)

type investmentLedger interface {
	Create(ctx context.Context, tx store.Execer, input store.InvestmentInput) error
	GetByID(ctx context.Context, investmentID string) (models.Investment, error)
	GetForUpdate(ctx context.Context, tx store.Getter, investmentID string) (models.Investment, error)
	ListByUser(ctx context.Context, userID string) ([]models.Investment, error)
	CountByUser(ctx context.Context, q store.Getter, userID string) (int64, error)
	ListMatured(ctx context.Context, now time.Time, limit int) ([]models.Investment, error)
	ClaimMature(ctx context.Context, tx store.Execer, investmentID string, completedAt time.Time) (int64, error)
}

type packageSource interface {
	GetByID(ctx context.Context, packageID string) (models.Package, error)
	ListActive(ctx context.Context) ([]models.Package, error)
}

type referralLedger interface {
	GetActiveByReferred(ctx context.Context, q store.Getter, referredUserID string) (models.Referral, error)
	AddCommission(ctx context.Context, tx store.Execer, referralID string, amount int64) error
}

// InvestmentService creates investments against packages and settles them at
// maturity. Creation moves principal from balance into locked_balance and
// mints the welcome bonus into the locked partition alongside it; maturity
// releases the principal only.
type InvestmentService struct {
	runner       db.TxRunner
	wallets      walletLedger
	investments  investmentLedger
	packages     packageSource
	referrals    referralLedger
	transactions transactionLedger
	audits       auditTrail
	settings     settingsSource
}

func NewInvestmentService(
	runner db.TxRunner,
	wallets walletLedger,
	investments investmentLedger,
	packages packageSource,
	referrals referralLedger,
	transactions transactionLedger,
	audits auditTrail,
	settings settingsSource,
) *InvestmentService {
	return &InvestmentService{
		runner:       runner,
		wallets:      wallets,
		investments:  investments,
		packages:     packages,
		referrals:    referrals,
		transactions: transactions,
		audits:       audits,
		settings:     settings,
	}
}

func (s *InvestmentService) CreateInvestment(ctx context.Context, userID, packageID string, principal int64) (models.Investment, error) {
	if principal <= 0 {
		return models.Investment{}, ErrInvalidAmount
	}
	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Investment{}, ErrPackageNotFound
		}
		return models.Investment{}, err
	}
	if !pkg.IsActive {
		return models.Investment{}, ErrPackageInactive
	}
	if principal < pkg.MinStake {
		return models.Investment{}, ErrBelowMinStake
	}
	bonusRate, err := parseRate(pkg.BonusPercent)
	if err != nil {
		return models.Investment{}, err
	}
	bonus := money.ApplyRate(principal, bonusRate)

	investmentID := uuid.NewString()
	now := time.Now().UTC()
	input := store.InvestmentInput{
		ID:                 investmentID,
		UserID:             userID,
		PackageID:          packageID,
		PrincipalAmount:    principal,
		WelcomeBonusAmount: bonus,
		StartDate:          now,
		MaturityDate:       now.AddDate(0, 0, pkg.DurationDays),
	}
	err = s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, err := s.wallets.GetByUserForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWalletNotFound
			}
			return err
		}
		priorCount, err := s.investments.CountByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := applyWalletDelta(ctx, tx, s.wallets, wallet.ID, store.WalletDelta{
			Balance: -principal,
			Locked:  principal + bonus,
		}); err != nil {
			return err
		}
		if err := s.investments.Create(ctx, tx, input); err != nil {
			return err
		}
		if err := s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:        uuid.NewString(),
			UserID:    userID,
			Type:      models.TxInvestment,
			Status:    models.TxCompleted,
			Amount:    principal,
			NetAmount: principal,
			Currency:  wallet.Currency,
			Metadata:  auditPayload(map[string]any{"investment_id": investmentID, "package_id": packageID}),
		}); err != nil {
			return err
		}
		if bonus > 0 {
			if err := s.transactions.Create(ctx, tx, store.TransactionInput{
				ID:        uuid.NewString(),
				UserID:    userID,
				Type:      models.TxBonus,
				Status:    models.TxCompleted,
				Amount:    bonus,
				NetAmount: bonus,
				Currency:  wallet.Currency,
				Metadata:  auditPayload(map[string]any{"investment_id": investmentID, "reason": "welcome_bonus"}),
			}); err != nil {
				return err
			}
		}
		if priorCount == 0 {
			if err := s.payFirstInvestmentBonus(ctx, tx, userID, investmentID, principal); err != nil {
				return err
			}
		}
		return s.audits.Log(ctx, tx, userID, "investment.created", "investment", investmentID, investmentID,
			auditPayload(map[string]any{
				"principal":      money.FormatMinor(principal),
				"bonus":          money.FormatMinor(bonus),
				"balance_before": money.FormatMinor(wallet.Balance),
				"balance_after":  money.FormatMinor(wallet.Balance - principal),
				"locked_before":  money.FormatMinor(wallet.LockedBalance),
				"locked_after":   money.FormatMinor(wallet.LockedBalance + principal + bonus),
			}))
	})
	if err != nil {
		return models.Investment{}, err
	}
	return s.investments.GetByID(ctx, investmentID)
}

// payFirstInvestmentBonus awards the referrer a one-time bonus the first time
// a referred user invests. The guard is the prior-investment count taken
// under the same serializable unit as the insert.
func (s *InvestmentService) payFirstInvestmentBonus(ctx context.Context, tx *sqlx.Tx, userID, investmentID string, principal int64) error {
	referral, err := s.referrals.GetActiveByReferred(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if referral.ReferrerID == userID {
		return nil
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	rate, err := parseRate(settings.FirstInvestmentBonusRate)
	if err != nil {
		return err
	}
	amount := money.ApplyRate(principal, rate)
	if amount <= 0 {
		return nil
	}
	referrerWallet, err := s.wallets.GetByUserForUpdate(ctx, tx, referral.ReferrerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if err := applyWalletDelta(ctx, tx, s.wallets, referrerWallet.ID, store.WalletDelta{Profit: amount}); err != nil {
		return err
	}
	if err := s.referrals.AddCommission(ctx, tx, referral.ID, amount); err != nil {
		return err
	}
	if err := s.transactions.Create(ctx, tx, store.TransactionInput{
		ID:        uuid.NewString(),
		UserID:    referral.ReferrerID,
		Type:      models.TxReferral,
		Status:    models.TxCompleted,
		Amount:    amount,
		NetAmount: amount,
		Currency:  referrerWallet.Currency,
		Metadata: auditPayload(map[string]any{
			"reason":        "first_investment",
			"investment_id": investmentID,
			"referred_user": userID,
		}),
	}); err != nil {
		return err
	}
	return s.audits.Log(ctx, tx, "system", "referral.first_investment_bonus", "referral", referral.ID, investmentID,
		auditPayload(map[string]any{"amount": money.FormatMinor(amount)}))
}

func (s *InvestmentService) GetInvestment(ctx context.Context, userID, investmentID string) (models.Investment, error) {
	investment, err := s.investments.GetByID(ctx, investmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Investment{}, ErrInvestmentNotFound
		}
		return models.Investment{}, err
	}
	if investment.UserID != userID {
		return models.Investment{}, ErrNotYourResource
	}
	return investment, nil
}

func (s *InvestmentService) ListInvestments(ctx context.Context, userID string) ([]models.Investment, error) {
	return s.investments.ListByUser(ctx, userID)
}

func (s *InvestmentService) ListPackages(ctx context.Context) ([]models.Package, error) {
	return s.packages.ListActive(ctx)
}

// ProcessMaturity settles one matured investment. The status claim makes a
// concurrent run a benign no-op; only the principal returns to balance, the
// welcome bonus leaves the ledger with the lock.
func (s *InvestmentService) ProcessMaturity(ctx context.Context, investment models.Investment, now time.Time) error {
	return s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.investments.ClaimMature(ctx, tx, investment.ID, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}
		wallet, err := s.wallets.GetByUserForUpdate(ctx, tx, investment.UserID)
		if err != nil {
			return err
		}
		if err := applyWalletDelta(ctx, tx, s.wallets, wallet.ID, store.WalletDelta{
			Balance: investment.PrincipalAmount,
			Locked:  -investment.TotalInvestment(),
		}); err != nil {
			return err
		}
		if err := s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:        uuid.NewString(),
			UserID:    investment.UserID,
			Type:      models.TxInvestment,
			Status:    models.TxCompleted,
			Amount:    investment.PrincipalAmount,
			NetAmount: investment.PrincipalAmount,
			Currency:  wallet.Currency,
			Metadata:  auditPayload(map[string]any{"investment_id": investment.ID, "reason": "maturity_release"}),
		}); err != nil {
			return err
		}
		return s.audits.Log(ctx, tx, "system", "investment.matured", "investment", investment.ID, investment.ID,
			auditPayload(map[string]any{
				"principal":     money.FormatMinor(investment.PrincipalAmount),
				"bonus_expired": money.FormatMinor(investment.WelcomeBonusAmount),
				"locked_before": money.FormatMinor(wallet.LockedBalance),
				"locked_after":  money.FormatMinor(wallet.LockedBalance - investment.TotalInvestment()),
			}))
	})
}

// ProcessMaturities is the daily maturity batch. Per-row failures are
// isolated so one bad investment does not abort the rest.
func (s *InvestmentService) ProcessMaturities(ctx context.Context, now time.Time, limit int) (processed, failed int, err error) {
	matured, err := s.investments.ListMatured(ctx, now, limit)
	if err != nil {
		return 0, 0, err
	}
	for _, investment := range matured {
		switch err := s.ProcessMaturity(ctx, investment, now); {
		case err == nil:
			processed++
		case errors.Is(err, ErrAlreadyProcessed):
		default:
			failed++
		}
	}
	return processed, failed, nil
}
