package model

import (
	"time"
)

type CodeType string

const (
	CodeTypeCustomerCard CodeType = "customer_card"
	CodeTypeLoyaltyCard  CodeType = "loyalty_card"
	CodeTypePromoCode    CodeType = "promo_code"
	CodeTypeMasterCard   CodeType = "master_card"
)

func (t CodeType) Valid() bool {
	switch t {
	case CodeTypeCustomerCard, CodeTypeLoyaltyCard, CodeTypePromoCode, CodeTypeMasterCard:
		return true
	}
	return false
}

type CodeStatus string

const (
	CodeStatusActive   CodeStatus = "active"
	CodeStatusRevoked  CodeStatus = "revoked"
	CodeStatusExpired  CodeStatus = "expired"
	CodeStatusReplaced CodeStatus = "replaced"
)

// CodeRecord is the persisted representation of one issued code.
// Records are never deleted; status transitions are one-directional and
// active is the only non-terminal state.
type CodeRecord struct {
	ID                int64       `gorm:"primaryKey" json:"id"`
	UniqueID          string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"unique_id"`
	OwnerID           int64       `gorm:"not null;index" json:"owner_id"`
	RelatedBusinessID *int64      `gorm:"index" json:"related_business_id,omitempty"`
	CodeType          CodeType    `gorm:"type:varchar(20);not null;index" json:"code_type"`
	Payload           CodePayload `gorm:"type:jsonb;not null" json:"payload"`
	Status            CodeStatus  `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	VerificationCode  string      `gorm:"type:char(6);not null" json:"verification_code"`
	IsPrimary         bool        `gorm:"not null;default:false" json:"is_primary"`
	UsesCount         int         `gorm:"not null;default:0" json:"uses_count"`
	LastUsedAt        *time.Time  `json:"last_used_at,omitempty"`
	ExpiryDate        *time.Time  `json:"expiry_date,omitempty"`
	RevokedReason     string      `gorm:"type:varchar(255)" json:"revoked_reason,omitempty"`
	RevokedAt         *time.Time  `json:"revoked_at,omitempty"`
	ReplacedByID      *int64      `json:"replaced_by_id,omitempty"`
	PreviousUniqueID  string      `gorm:"type:varchar(64)" json:"previous_unique_id,omitempty"`
	Signature         string      `gorm:"type:text;not null" json:"signature"`
	ImageRef          string      `gorm:"type:varchar(255)" json:"image_ref,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func (CodeRecord) TableName() string { return "code_records" }

// Age reports how long ago the code was issued.
func (r *CodeRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// IsExpired reports whether the hard expiry has passed.
func (r *CodeRecord) IsExpired(now time.Time) bool {
	return r.ExpiryDate != nil && now.After(*r.ExpiryDate)
}
