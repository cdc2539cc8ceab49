package scheduler

import (
	"context"
	"time"

	"invest/internal/store"
)

const batchLimit = 500

type tradeJobs interface {
	ProcessCompletedTrades(ctx context.Context, now time.Time, limit int) (processed, failed int, err error)
	AutoInitiateDailyTrades(ctx context.Context, now time.Time, limit int) (processed, failed int, err error)
	CleanupStuckTrades(ctx context.Context, now time.Time, limit int) (processed, failed int, err error)
}

type maturityJob interface {
	ProcessMaturities(ctx context.Context, now time.Time, limit int) (processed, failed int, err error)
}

type reconcileJob interface {
	Run(ctx context.Context) (checked, corrected, failed int, err error)
}

type outboxJob interface {
	DispatchPending(ctx context.Context, limit int) (processed, failed int, err error)
}

type settingsSource interface {
	Get(ctx context.Context) (store.PlatformSettings, error)
}

// ProcessCompletedTradesJob settles due trades every minute. The weekend
// gate reads one settings snapshot per invocation.
func ProcessCompletedTradesJob(trades tradeJobs, settings settingsSource) Job {
	return Job{
		Name:     "process_completed_trades",
		Interval: time.Minute,
		Run: func(ctx context.Context, now time.Time) (Result, error) {
			snapshot, err := settings.Get(ctx)
			if err != nil {
				return Result{}, err
			}
			now = inTradingZone(now, snapshot.TradingTimezone)
			if isWeekend(now) && !snapshot.WeekendTradingEnabled {
				return skipped("weekend trading disabled"), nil
			}
			processed, failed, err := trades.ProcessCompletedTrades(ctx, now, batchLimit)
			if err != nil {
				return Result{}, err
			}
			return Result{Processed: processed, Failed: failed}, nil
		},
	}
}

// AutoInitiateDailyTradesJob opens the day's trades, hourly, inside the
// configured trading window.
func AutoInitiateDailyTradesJob(trades tradeJobs, settings settingsSource) Job {
	return Job{
		Name:     "auto_initiate_daily_trades",
		Interval: time.Hour,
		Run: func(ctx context.Context, now time.Time) (Result, error) {
			snapshot, err := settings.Get(ctx)
			if err != nil {
				return Result{}, err
			}
			now = inTradingZone(now, snapshot.TradingTimezone)
			if isWeekend(now) && !snapshot.WeekendTradingEnabled {
				return skipped("weekend trading disabled"), nil
			}
			if !withinTradingHours(now, snapshot.TradingOpenHour, snapshot.TradingCloseHour) {
				return skipped("outside trading hours"), nil
			}
			processed, failed, err := trades.AutoInitiateDailyTrades(ctx, now, batchLimit)
			if err != nil {
				return Result{}, err
			}
			return Result{Processed: processed, Failed: failed}, nil
		},
	}
}

// CheckInvestmentMaturityJob releases matured principal daily.
func CheckInvestmentMaturityJob(investments maturityJob) Job {
	return Job{
		Name:     "check_investment_maturity",
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context, now time.Time) (Result, error) {
			processed, failed, err := investments.ProcessMaturities(ctx, now, batchLimit)
			if err != nil {
				return Result{}, err
			}
			return Result{Processed: processed, Failed: failed}, nil
		},
	}
}

// CleanupFailedTradesJob force-fails stuck trades daily. It honors the same
// weekend gate as settlement: a trade due on a gated weekend is deferred, not
// stuck, and force-failing it would confiscate its frozen profit.
func CleanupFailedTradesJob(trades tradeJobs, settings settingsSource) Job {
	return Job{
		Name:     "cleanup_failed_trades",
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context, now time.Time) (Result, error) {
			snapshot, err := settings.Get(ctx)
			if err != nil {
				return Result{}, err
			}
			now = inTradingZone(now, snapshot.TradingTimezone)
			if isWeekend(now) && !snapshot.WeekendTradingEnabled {
				return skipped("weekend trading disabled"), nil
			}
			processed, failed, err := trades.CleanupStuckTrades(ctx, now, batchLimit)
			if err != nil {
				return Result{}, err
			}
			return Result{Processed: processed, Failed: failed}, nil
		},
	}
}

// ReconcileWalletBalancesJob recomputes derived balances twice daily.
func ReconcileWalletBalancesJob(reconciler reconcileJob) Job {
	return Job{
		Name:     "reconcile_wallet_balances",
		Interval: 12 * time.Hour,
		Run: func(ctx context.Context, _ time.Time) (Result, error) {
			_, corrected, failed, err := reconciler.Run(ctx)
			if err != nil {
				return Result{}, err
			}
			return Result{Processed: corrected, Failed: failed}, nil
		},
	}
}

// DispatchTransactionEventsJob drains the status-change outbox.
func DispatchTransactionEventsJob(outbox outboxJob) Job {
	return Job{
		Name:     "dispatch_transaction_events",
		Interval: 15 * time.Second,
		Run: func(ctx context.Context, _ time.Time) (Result, error) {
			processed, failed, err := outbox.DispatchPending(ctx, batchLimit)
			if err != nil {
				return Result{}, err
			}
			return Result{Processed: processed, Failed: failed}, nil
		},
	}
}

// inTradingZone converts now into the platform's trading timezone so the
// weekend and trading-window gates follow local wall time. An empty or
// unknown zone name falls back to UTC.
func inTradingZone(now time.Time, name string) time.Time {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return now.UTC()
	}
	return now.In(loc)
}

func isWeekend(now time.Time) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// withinTradingHours treats the window as [open, close) on a 24h clock.
func withinTradingHours(now time.Time, open, close int) bool {
	if open == close {
		return true
	}
	hour := now.Hour()
	if open < close {
		return hour >= open && hour < close
	}
	return hour >= open || hour < close
}
