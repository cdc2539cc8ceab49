package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// parseRate parses a percentage stored as text, e.g. "2.5" for 2.5%.
func parseRate(rate string) (decimal.Decimal, error) {
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	return parsed, nil
}
