package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestProfitHistoryStoreSetWithdrawn(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "is_withdrawn = NOT $1") {
				t.Fatalf("toggle must require the opposite prior state: %s", query)
			}
			if args[0] != true || args[1] != "ph-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewProfitHistoryStore(stubDB{})
	rows, err := store.SetWithdrawn(ctx, execer, "ph-1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row, got %d", rows)
	}
}

func TestProfitHistoryStoreSumUnwithdrawn(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "is_withdrawn = FALSE") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*int64) = 440
			return nil
		},
	}
	store := NewProfitHistoryStore(stubDB{})
	sum, err := store.SumUnwithdrawnByUser(ctx, getter, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != 440 {
		t.Fatalf("unexpected sum: %d", sum)
	}
}

func TestProfitHistoryStoreInsert(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO profit_history") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 7 || args[4] != int64(440) || args[6] != false {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewProfitHistoryStore(stubDB{})
	err := store.Insert(ctx, execer, ProfitHistoryInput{
		ID: "ph-1", InvestmentID: "inv-1", TradeID: "trade-1", UserID: "user-1",
		Amount: 440, ProfitRate: "4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProfitHistoryStoreSetAmount(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET amount = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if args[0] != int64(150) || args[1] != "ph-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewProfitHistoryStore(stubDB{})
	if err := store.SetAmount(ctx, execer, "ph-1", 150); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
