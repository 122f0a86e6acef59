package repository

import (
	"context"
	"time"

	"loyalty/scanhub/internal/model"
)

// EntityRepository reads collaborator-owned entities for liveness checks and
// writes the rows the scan handlers own.
type EntityRepository interface {
	GetCustomer(ctx context.Context, id int64) (*model.Customer, error)
	GetBusiness(ctx context.Context, id int64) (*model.Business, error)
	GetProgram(ctx context.Context, id int64) (*model.LoyaltyProgram, error)
	GetProgramByBusiness(ctx context.Context, businessID int64) (*model.LoyaltyProgram, error)
	GetLoyaltyCard(ctx context.Context, customerID, programID int64) (*model.LoyaltyCard, error)
	GetPromo(ctx context.Context, id int64) (*model.Promo, error)
	// GetPromoForUpdate locks the promo row so the cap check and the
	// redemption insert act on one consistent view.
	GetPromoForUpdate(ctx context.Context, id int64) (*model.Promo, error)

	// UpsertRelationship creates the customer-business relationship with
	// interaction count 1, or increments the count and refreshes the
	// timestamp if it already exists. Reports whether the row was created.
	UpsertRelationship(ctx context.Context, customerID, businessID int64, at time.Time) (*model.CustomerBusiness, bool, error)
	CreateRedemption(ctx context.Context, redemption *model.PromoRedemption) error
	IncrementPromoUses(ctx context.Context, promoID int64) error
	AddCardPoints(ctx context.Context, cardID int64, amount int) error
	CreatePointsTransaction(ctx context.Context, txn *model.PointsTransaction) error
	CreateAuditEvent(ctx context.Context, event *model.AuditEvent) error
}
