package model

import (
	"time"
)

// Collaborator-owned entities. The scan engine only reads them for liveness
// checks and writes the narrow rows its handlers own (relationships,
// redemptions, ledger entries).

type EntityStatus string

const (
	EntityStatusActive   EntityStatus = "active"
	EntityStatusInactive EntityStatus = "inactive"
)

type Customer struct {
	ID        int64        `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:varchar(120)" json:"name"`
	Status    EntityStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

type Business struct {
	ID        int64        `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:varchar(120)" json:"name"`
	Status    EntityStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (Business) TableName() string { return "businesses" }

type LoyaltyProgram struct {
	ID         int64        `gorm:"primaryKey" json:"id"`
	BusinessID int64        `gorm:"not null;index" json:"business_id"`
	Name       string       `gorm:"type:varchar(120)" json:"name"`
	Status     EntityStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (LoyaltyProgram) TableName() string { return "loyalty_programs" }

type LoyaltyCard struct {
	ID         int64        `gorm:"primaryKey" json:"id"`
	ProgramID  int64        `gorm:"not null;index" json:"program_id"`
	CustomerID int64        `gorm:"not null;index" json:"customer_id"`
	Points     int          `gorm:"not null;default:0" json:"points"`
	Status     EntityStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (LoyaltyCard) TableName() string { return "loyalty_cards" }

type Promo struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	BusinessID int64      `gorm:"not null;index" json:"business_id"`
	Code       string     `gorm:"type:varchar(64);not null" json:"code"`
	StartsAt   *time.Time `json:"starts_at,omitempty"`
	EndsAt     *time.Time `json:"ends_at,omitempty"`
	UsageCap   int        `gorm:"not null;default:0" json:"usage_cap"`
	UsesCount  int        `gorm:"not null;default:0" json:"uses_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Promo) TableName() string { return "promos" }

// WithinWindow reports whether now falls inside the promo activation window.
func (p *Promo) WithinWindow(now time.Time) bool {
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return false
	}
	return true
}

// CapReached reports whether the usage cap is exhausted (0 = uncapped).
func (p *Promo) CapReached() bool {
	return p.UsageCap > 0 && p.UsesCount >= p.UsageCap
}

// CustomerBusiness is the customer-to-business relationship upserted by
// customer card scans.
type CustomerBusiness struct {
	ID                int64     `gorm:"primaryKey" json:"id"`
	CustomerID        int64     `gorm:"not null;uniqueIndex:idx_customer_business" json:"customer_id"`
	BusinessID        int64     `gorm:"not null;uniqueIndex:idx_customer_business" json:"business_id"`
	InteractionCount  int       `gorm:"not null;default:0" json:"interaction_count"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (CustomerBusiness) TableName() string { return "customer_businesses" }

type PromoRedemption struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	PromoID    int64     `gorm:"not null;index" json:"promo_id"`
	CustomerID int64     `gorm:"index" json:"customer_id"`
	BusinessID int64     `gorm:"not null;index" json:"business_id"`
	CodeID     int64     `gorm:"not null;index" json:"code_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (PromoRedemption) TableName() string { return "promo_redemptions" }

// PointsTransaction is the ledger row written when an operator explicitly
// awards points after a scan.
type PointsTransaction struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	CardID    int64     `gorm:"not null;index" json:"card_id"`
	Amount    int       `gorm:"not null" json:"amount"`
	Source    string    `gorm:"type:varchar(64);not null" json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

func (PointsTransaction) TableName() string { return "points_transactions" }

// AuditEvent records code lifecycle changes (rotation, revocation).
type AuditEvent struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Kind      string    `gorm:"type:varchar(40);not null;index" json:"kind"`
	CodeID    *int64    `gorm:"index" json:"code_id,omitempty"`
	Detail    JSONMap   `gorm:"type:jsonb" json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (AuditEvent) TableName() string { return "audit_events" }
