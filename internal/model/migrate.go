package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for all models and creates custom indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&CodeRecord{},
		&ScanRecord{},
		&Customer{},
		&Business{},
		&LoyaltyProgram{},
		&LoyaltyCard{},
		&Promo{},
		&CustomerBusiness{},
		&PromoRedemption{},
		&PointsTransaction{},
		&AuditEvent{},
		&ScannerDevice{},
	); err != nil {
		return err
	}

	// At most one active primary code per (owner, code type).
	if err := db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_codes_primary_per_owner_type " +
			"ON code_records (owner_id, code_type) WHERE status = 'active' AND is_primary",
	).Error; err != nil {
		return err
	}

	// Promo codes are unique per business.
	return db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_promos_business_code " +
			"ON promos (business_id, code)",
	).Error
}
