package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"loyalty/scanhub/internal/model"
)

type pgEntityRepository struct {
	db *gorm.DB
}

func NewPGEntityRepository(db *gorm.DB) EntityRepository {
	return &pgEntityRepository{db: db}
}

func (r *pgEntityRepository) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.WithContext(ctx).First(&customer, id).Error; err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

func (r *pgEntityRepository) GetBusiness(ctx context.Context, id int64) (*model.Business, error) {
	var business model.Business
	if err := r.db.WithContext(ctx).First(&business, id).Error; err != nil {
		return nil, translate(err)
	}
	return &business, nil
}

func (r *pgEntityRepository) GetProgram(ctx context.Context, id int64) (*model.LoyaltyProgram, error) {
	var program model.LoyaltyProgram
	if err := r.db.WithContext(ctx).First(&program, id).Error; err != nil {
		return nil, translate(err)
	}
	return &program, nil
}

func (r *pgEntityRepository) GetProgramByBusiness(ctx context.Context, businessID int64) (*model.LoyaltyProgram, error) {
	var program model.LoyaltyProgram
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND status = ?", businessID, model.EntityStatusActive).
		First(&program).Error
	if err != nil {
		return nil, translate(err)
	}
	return &program, nil
}

func (r *pgEntityRepository) GetLoyaltyCard(ctx context.Context, customerID, programID int64) (*model.LoyaltyCard, error) {
	var card model.LoyaltyCard
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND program_id = ?", customerID, programID).
		First(&card).Error
	if err != nil {
		return nil, translate(err)
	}
	return &card, nil
}

func (r *pgEntityRepository) GetPromo(ctx context.Context, id int64) (*model.Promo, error) {
	var promo model.Promo
	if err := r.db.WithContext(ctx).First(&promo, id).Error; err != nil {
		return nil, translate(err)
	}
	return &promo, nil
}

func (r *pgEntityRepository) GetPromoForUpdate(ctx context.Context, id int64) (*model.Promo, error) {
	var promo model.Promo
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&promo, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &promo, nil
}

func (r *pgEntityRepository) UpsertRelationship(ctx context.Context, customerID, businessID int64, at time.Time) (*model.CustomerBusiness, bool, error) {
	var rel model.CustomerBusiness
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ? AND business_id = ?", customerID, businessID).
		First(&rel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rel = model.CustomerBusiness{
			CustomerID:        customerID,
			BusinessID:        businessID,
			InteractionCount:  1,
			LastInteractionAt: at,
		}
		if err := r.db.WithContext(ctx).Create(&rel).Error; err != nil {
			return nil, false, err
		}
		return &rel, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	rel.InteractionCount++
	rel.LastInteractionAt = at
	err = r.db.WithContext(ctx).
		Model(&model.CustomerBusiness{}).
		Where("id = ?", rel.ID).
		Updates(map[string]interface{}{
			"interaction_count":   gorm.Expr("interaction_count + 1"),
			"last_interaction_at": at,
		}).Error
	if err != nil {
		return nil, false, err
	}
	return &rel, false, nil
}

func (r *pgEntityRepository) CreateRedemption(ctx context.Context, redemption *model.PromoRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}

func (r *pgEntityRepository) IncrementPromoUses(ctx context.Context, promoID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Promo{}).
		Where("id = ?", promoID).
		UpdateColumn("uses_count", gorm.Expr("uses_count + 1")).
		Error
}

func (r *pgEntityRepository) AddCardPoints(ctx context.Context, cardID int64, amount int) error {
	res := r.db.WithContext(ctx).
		Model(&model.LoyaltyCard{}).
		Where("id = ?", cardID).
		UpdateColumn("points", gorm.Expr("points + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgEntityRepository) CreatePointsTransaction(ctx context.Context, txn *model.PointsTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *pgEntityRepository) CreateAuditEvent(ctx context.Context, event *model.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
