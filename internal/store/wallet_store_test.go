package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"invest/internal/models"
)

func TestWalletStoreApplyDelta(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "balance + $1 >= 0") ||
				!strings.Contains(query, "profit_balance + $2 >= 0") ||
				!strings.Contains(query, "locked_balance + $3 >= 0") {
				t.Fatalf("missing non-negative guards: %s", query)
			}
			if len(args) != 4 || args[0] != int64(-10000) || args[1] != int64(0) || args[2] != int64(11000) || args[3] != "wallet-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewWalletStore(stubDB{})
	rows, err := store.ApplyDelta(ctx, execer, "wallet-1", WalletDelta{Balance: -10000, Locked: 11000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row, got %d", rows)
	}
}

func TestWalletStoreApplyDeltaRejected(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(context.Context, string, ...any) (sql.Result, error) {
			return stubResult{rows: 0}, nil
		},
	}
	store := NewWalletStore(stubDB{})
	rows, err := store.ApplyDelta(ctx, execer, "wallet-1", WalletDelta{Balance: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected guard to reject, got %d rows", rows)
	}
}

func TestWalletStoreGetForUpdate(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("expected row lock: %s", query)
			}
			if len(args) != 1 || args[0] != "wallet-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*models.Wallet) = models.Wallet{ID: "wallet-1", Balance: 5000}
			return nil
		},
	}
	store := NewWalletStore(stubDB{})
	wallet, err := store.GetForUpdate(ctx, getter, "wallet-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wallet.Balance != 5000 {
		t.Fatalf("unexpected wallet: %#v", wallet)
	}
}

func TestWalletStoreSetBalances(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET profit_balance = $1, locked_balance = $2") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != int64(440) || args[1] != int64(11000) || args[2] != "wallet-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewWalletStore(stubDB{})
	if err := store.SetBalances(ctx, execer, "wallet-1", 440, 11000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWalletDeltaIsZero(t *testing.T) {
	if !(WalletDelta{}).IsZero() {
		t.Fatalf("expected zero delta")
	}
	if (WalletDelta{Profit: 1}).IsZero() {
		t.Fatalf("expected non-zero delta")
	}
}
