package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"invest/internal/auth"
	"invest/internal/db"
	"invest/internal/store"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrBadReferralCode    = errors.New("unknown referral code")
)

type userDirectory interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash, referralCode string) error
	GetByEmail(ctx context.Context, email string) (map[string]any, error)
	GetByID(ctx context.Context, userID string) (map[string]any, error)
	GetByReferralCode(ctx context.Context, code string) (map[string]any, error)
}

type referralCreator interface {
	Create(ctx context.Context, tx store.Execer, id, referrerID, referredUserID string) error
}

// UserService registers and authenticates users. Registration creates the
// user, their wallet and the optional referral link in one unit, so a user
// either exists fully wired or not at all.
type UserService struct {
	runner    db.TxRunner
	users     userDirectory
	wallets   walletLedger
	referrals referralCreator
	audits    auditTrail
	jwtSecret string
	tokenTTL  time.Duration
}

func NewUserService(runner db.TxRunner, users userDirectory, wallets walletLedger, referrals referralCreator, audits auditTrail, jwtSecret string, tokenTTL time.Duration) *UserService {
	return &UserService{
		runner:    runner,
		users:     users,
		wallets:   wallets,
		referrals: referrals,
		audits:    audits,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

func (s *UserService) Register(ctx context.Context, username, email, password, referralCode string) (string, error) {
	referrerID := ""
	if referralCode != "" {
		referrer, err := s.users.GetByReferralCode(ctx, referralCode)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", ErrBadReferralCode
			}
			return "", err
		}
		referrerID, _ = referrer["id"].(string)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	userID := uuid.NewString()
	err = s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.users.Create(ctx, tx, userID, username, email, hash, newReferralCode()); err != nil {
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}
		if err := s.wallets.Create(ctx, tx, uuid.NewString(), userID, "USD"); err != nil {
			return err
		}
		if referrerID != "" && referrerID != userID {
			if err := s.referrals.Create(ctx, tx, uuid.NewString(), referrerID, userID); err != nil {
				return err
			}
		}
		return s.audits.Log(ctx, tx, userID, "user.registered", "user", userID, userID,
			auditPayload(map[string]any{"referred": referrerID != ""}))
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (string, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", err
	}
	hash, _ := user["password_hash"].(string)
	if !auth.CheckPassword(hash, password) {
		return "", "", ErrInvalidCredentials
	}
	userID, _ := user["id"].(string)
	token, err := auth.GenerateToken(s.jwtSecret, userID, s.tokenTTL)
	if err != nil {
		return "", "", err
	}
	return userID, token, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (map[string]any, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
