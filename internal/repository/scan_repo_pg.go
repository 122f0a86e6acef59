package repository

import (
	"context"

	"gorm.io/gorm"

	"loyalty/scanhub/internal/model"
)

type pgScanRepository struct {
	db *gorm.DB
}

func NewPGScanRepository(db *gorm.DB) ScanRepository {
	return &pgScanRepository{db: db}
}

func (r *pgScanRepository) Create(ctx context.Context, scan *model.ScanRecord) error {
	return r.db.WithContext(ctx).Create(scan).Error
}

func (r *pgScanRepository) ListByBusiness(ctx context.Context, businessID int64, limit int) ([]model.ScanRecord, error) {
	var scans []model.ScanRecord
	err := r.db.WithContext(ctx).
		Where("scanned_by_business_id = ?", businessID).
		Order("created_at DESC").
		Limit(limit).
		Find(&scans).Error
	if err != nil {
		return nil, err
	}
	return scans, nil
}
