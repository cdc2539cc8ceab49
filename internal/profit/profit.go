package profit

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"invest/internal/money"
)

// RateSource produces the profit rate for a new trade. The production
// implementation is random within the package's band; tests substitute a
// fixed source.
type RateSource interface {
	SampleRate(min, max decimal.Decimal) decimal.Decimal
}

// RandomRateSource draws uniformly from [min, max], rounded to two decimal
// places. Safe for concurrent use.
type RandomRateSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomRateSource() *RandomRateSource {
	return &RandomRateSource{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *RandomRateSource) SampleRate(min, max decimal.Decimal) decimal.Decimal {
	if max.LessThanOrEqual(min) {
		return min
	}
	s.mu.Lock()
	f := s.rng.Float64()
	s.mu.Unlock()
	span := max.Sub(min)
	return min.Add(span.Mul(decimal.NewFromFloat(f))).Round(2)
}

// FixedRateSource always returns the same rate. Used in tests and for
// admin-forced settlements.
type FixedRateSource struct {
	Rate decimal.Decimal
}

func (s FixedRateSource) SampleRate(min, max decimal.Decimal) decimal.Decimal {
	return s.Rate
}

// Quote is the frozen outcome of a trade, fixed at initiation time. The
// settled payout never resamples; an early stop pays a time slice of this
// amount.
type Quote struct {
	Rate        decimal.Decimal
	AmountMinor int64
}

// QuoteTrade samples a rate from the package band and freezes the full-cycle
// profit on the trade amount.
func QuoteTrade(src RateSource, tradeAmountMinor int64, profitMin, profitMax string) (Quote, error) {
	min, err := decimal.NewFromString(profitMin)
	if err != nil {
		return Quote{}, fmt.Errorf("parse profit_min: %w", err)
	}
	max, err := decimal.NewFromString(profitMax)
	if err != nil {
		return Quote{}, fmt.Errorf("parse profit_max: %w", err)
	}
	rate := src.SampleRate(min, max)
	return Quote{
		Rate:        rate,
		AmountMinor: money.ApplyRate(tradeAmountMinor, rate),
	}, nil
}

// ProRata returns the slice of the frozen profit earned between start and
// stop, relative to the full cycle ending at end. The fraction is clamped to
// [0, 1] so clock skew can never overpay or produce a negative payout.
func ProRata(frozenProfitMinor int64, start, stop, end time.Time) int64 {
	cycle := end.Sub(start)
	if cycle <= 0 {
		return frozenProfitMinor
	}
	elapsed := stop.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= cycle {
		return frozenProfitMinor
	}
	fraction := decimal.NewFromInt(int64(elapsed)).Div(decimal.NewFromInt(int64(cycle)))
	return decimal.NewFromInt(frozenProfitMinor).Mul(fraction).Round(0).IntPart()
}
