package store

import "context"

// PlatformSettings is the admin-managed configuration snapshot. Jobs read it
// once per invocation and never consult a live global.
type PlatformSettings struct {
	WeekendTradingEnabled    bool   `db:"weekend_trading_enabled"`
	TradingOpenHour          int    `db:"trading_open_hour"`
	TradingCloseHour         int    `db:"trading_close_hour"`
	TradingTimezone          string `db:"trading_timezone"`
	CommissionRate           string `db:"commission_rate"`
	FirstInvestmentBonusRate string `db:"first_investment_bonus_rate"`
	MinCommissionDeposit     int64  `db:"min_commission_deposit"`
	WithdrawalFeeRate        string `db:"withdrawal_fee_rate"`
}

type SettingsStore struct {
	db DB
}

func NewSettingsStore(db DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(ctx context.Context) (PlatformSettings, error) {
	var row PlatformSettings
	err := s.db.GetContext(ctx, &row, `
		SELECT weekend_trading_enabled, trading_open_hour, trading_close_hour, trading_timezone,
		       commission_rate, first_investment_bonus_rate, min_commission_deposit, withdrawal_fee_rate
		FROM platform_settings
		WHERE id = 1
	`)
	if err != nil {
		return PlatformSettings{}, err
	}
	return row, nil
}
