package profit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestQuoteTradeAppliesFrozenRate(t *testing.T) {
	src := FixedRateSource{Rate: decimal.RequireFromString("4")}
	quote, err := QuoteTrade(src, 11000, "2", "5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.Rate.Equal(decimal.RequireFromString("4")) {
		t.Fatalf("unexpected rate: %s", quote.Rate)
	}
	if quote.AmountMinor != 440 {
		t.Fatalf("expected 440 minor units, got %d", quote.AmountMinor)
	}
}

func TestQuoteTradeRejectsBadBand(t *testing.T) {
	src := FixedRateSource{Rate: decimal.Zero}
	if _, err := QuoteTrade(src, 1000, "bogus", "5"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := QuoteTrade(src, 1000, "2", "bogus"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRandomRateSourceStaysInBand(t *testing.T) {
	src := NewRandomRateSource()
	min := decimal.RequireFromString("2")
	max := decimal.RequireFromString("5")
	for i := 0; i < 1000; i++ {
		rate := src.SampleRate(min, max)
		if rate.LessThan(min) || rate.GreaterThan(max) {
			t.Fatalf("rate %s outside [2, 5]", rate)
		}
	}
}

func TestRandomRateSourceDegenerateBand(t *testing.T) {
	src := NewRandomRateSource()
	rate := src.SampleRate(decimal.RequireFromString("3"), decimal.RequireFromString("3"))
	if !rate.Equal(decimal.RequireFromString("3")) {
		t.Fatalf("expected the single band value, got %s", rate)
	}
}

func TestProRataHalfCycle(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	stop := start.Add(12 * time.Hour)
	if got := ProRata(1000, start, stop, end); got != 500 {
		t.Fatalf("expected 500, got %d", got)
	}
}

func TestProRataClampsEarlyAndLate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	if got := ProRata(1000, start, start.Add(-time.Hour), end); got != 0 {
		t.Fatalf("stop before start must pay nothing, got %d", got)
	}
	if got := ProRata(1000, start, end.Add(time.Hour), end); got != 1000 {
		t.Fatalf("stop past end must cap at the frozen profit, got %d", got)
	}
}

func TestProRataZeroCycle(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := ProRata(1000, start, start, start); got != 1000 {
		t.Fatalf("degenerate cycle pays the frozen profit, got %d", got)
	}
}

func TestProRataRounding(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	stop := start.Add(time.Hour)
	// 100 * 1/3 rounds half-up to 33.
	if got := ProRata(100, start, stop, end); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
}
