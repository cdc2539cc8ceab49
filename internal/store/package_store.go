package store

import (
	"context"

	"invest/internal/models"
)

type PackageStore struct {
	db DB
}

func NewPackageStore(db DB) *PackageStore {
	return &PackageStore{db: db}
}

func (s *PackageStore) GetByID(ctx context.Context, packageID string) (models.Package, error) {
	var row models.Package
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, min_stake, profit_min, profit_max, bonus_percent, duration_days, trade_cycle_hours, is_active, created_at
		FROM packages
		WHERE id = $1
	`, packageID)
	if err != nil {
		return models.Package{}, err
	}
	return row, nil
}

func (s *PackageStore) ListActive(ctx context.Context) ([]models.Package, error) {
	var rows []models.Package
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, min_stake, profit_min, profit_max, bonus_percent, duration_days, trade_cycle_hours, is_active, created_at
		FROM packages
		WHERE is_active = TRUE
		ORDER BY min_stake
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
