package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"loyalty/scanhub/internal/model"
)

type pgDeviceRepository struct {
	db *gorm.DB
}

func NewPGDeviceRepository(db *gorm.DB) DeviceRepository {
	return &pgDeviceRepository{db: db}
}

func (r *pgDeviceRepository) Create(ctx context.Context, device *model.ScannerDevice) error {
	return r.db.WithContext(ctx).Create(device).Error
}

func (r *pgDeviceRepository) GetByID(ctx context.Context, id int64) (*model.ScannerDevice, error) {
	var device model.ScannerDevice
	err := r.db.WithContext(ctx).First(&device, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &device, nil
}

func (r *pgDeviceRepository) TouchSeen(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.ScannerDevice{}).
		Where("id = ?", id).
		Update("last_seen_at", at).Error
}
