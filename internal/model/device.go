package model

import (
	"time"
)

// ScannerDevice is a business-side device authorized to call the scan API.
// The API secret is issued once at provisioning time and stored only as a
// bcrypt hash.
type ScannerDevice struct {
	ID         int64        `gorm:"primaryKey" json:"id"`
	BusinessID int64        `gorm:"not null;index" json:"business_id"`
	Name       string       `gorm:"type:varchar(120);not null" json:"name"`
	SecretHash string       `gorm:"type:varchar(100);not null" json:"-"`
	Status     EntityStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	LastSeenAt *time.Time   `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (ScannerDevice) TableName() string { return "scanner_devices" }
