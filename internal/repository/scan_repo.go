package repository

import (
	"context"

	"loyalty/scanhub/internal/model"
)

type ScanRepository interface {
	Create(ctx context.Context, scan *model.ScanRecord) error
	ListByBusiness(ctx context.Context, businessID int64, limit int) ([]model.ScanRecord, error)
}
