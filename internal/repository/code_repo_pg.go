package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"loyalty/scanhub/internal/model"
)

type pgCodeRepository struct {
	db *gorm.DB
}

func NewPGCodeRepository(db *gorm.DB) CodeRepository {
	return &pgCodeRepository{db: db}
}

func (r *pgCodeRepository) Create(ctx context.Context, code *model.CodeRecord) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *pgCodeRepository) GetByID(ctx context.Context, id int64) (*model.CodeRecord, error) {
	var code model.CodeRecord
	if err := r.db.WithContext(ctx).First(&code, id).Error; err != nil {
		return nil, translate(err)
	}
	return &code, nil
}

func (r *pgCodeRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.CodeRecord, error) {
	var code model.CodeRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&code, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &code, nil
}

func (r *pgCodeRepository) GetByUniqueID(ctx context.Context, uniqueID string) (*model.CodeRecord, error) {
	var code model.CodeRecord
	if err := r.db.WithContext(ctx).Where("unique_id = ?", uniqueID).First(&code).Error; err != nil {
		return nil, translate(err)
	}
	return &code, nil
}

func (r *pgCodeRepository) DemoteOtherPrimaries(ctx context.Context, ownerID int64, codeType model.CodeType, exceptID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.CodeRecord{}).
		Where("owner_id = ? AND code_type = ? AND status = ? AND is_primary AND id <> ?",
			ownerID, codeType, model.CodeStatusActive, exceptID).
		UpdateColumn("is_primary", false).
		Error
}

func (r *pgCodeRepository) MarkExpired(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CodeRecord{}).
		Where("id = ? AND status = ?", id, model.CodeStatusActive).
		UpdateColumn("status", model.CodeStatusExpired)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *pgCodeRepository) MarkReplaced(ctx context.Context, id int64, replacedByID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CodeRecord{}).
		Where("id = ? AND status = ?", id, model.CodeStatusActive).
		Updates(map[string]interface{}{
			"status":         model.CodeStatusReplaced,
			"replaced_by_id": replacedByID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgCodeRepository) Revoke(ctx context.Context, id int64, reason string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.CodeRecord{}).
		Where("id = ? AND status = ?", id, model.CodeStatusActive).
		Updates(map[string]interface{}{
			"status":         model.CodeStatusRevoked,
			"revoked_reason": reason,
			"revoked_at":     at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgCodeRepository) RecordUse(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.CodeRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"uses_count":   gorm.Expr("uses_count + 1"),
			"last_used_at": at,
		}).
		Error
}

func (r *pgCodeRepository) ListRotationDue(ctx context.Context, createdBefore time.Time, limit int) ([]model.CodeRecord, error) {
	var codes []model.CodeRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.CodeStatusActive, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
