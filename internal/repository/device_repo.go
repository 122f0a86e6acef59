package repository

import (
	"context"
	"time"

	"loyalty/scanhub/internal/model"
)

// DeviceRepository manages scanner device credentials.
type DeviceRepository interface {
	Create(ctx context.Context, device *model.ScannerDevice) error
	GetByID(ctx context.Context, id int64) (*model.ScannerDevice, error)
	// TouchSeen records a successful authentication.
	TouchSeen(ctx context.Context, id int64, at time.Time) error
}
