package repository

import (
	"context"
	"errors"
	"time"

	"loyalty/scanhub/internal/model"
)

// ErrNotFound is returned by all repositories when the requested row does
// not exist.
var ErrNotFound = errors.New("record not found")

type CodeRepository interface {
	Create(ctx context.Context, code *model.CodeRecord) error
	GetByID(ctx context.Context, id int64) (*model.CodeRecord, error)
	// GetByIDForUpdate locks the row for the duration of the enclosing
	// transaction. Only meaningful on transaction-bound repositories.
	GetByIDForUpdate(ctx context.Context, id int64) (*model.CodeRecord, error)
	GetByUniqueID(ctx context.Context, uniqueID string) (*model.CodeRecord, error)
	// DemoteOtherPrimaries clears is_primary on every other active record of
	// the same (owner, code type).
	DemoteOtherPrimaries(ctx context.Context, ownerID int64, codeType model.CodeType, exceptID int64) error
	// MarkExpired flips an active record to expired. Reports whether the row
	// changed, so repeated expired scans stay idempotent.
	MarkExpired(ctx context.Context, id int64) (bool, error)
	MarkReplaced(ctx context.Context, id int64, replacedByID int64) error
	Revoke(ctx context.Context, id int64, reason string, at time.Time) error
	// RecordUse bumps uses_count and last_used_at.
	RecordUse(ctx context.Context, id int64, at time.Time) error
	// ListRotationDue returns active records created before the cutoff.
	ListRotationDue(ctx context.Context, createdBefore time.Time, limit int) ([]model.CodeRecord, error)
}
