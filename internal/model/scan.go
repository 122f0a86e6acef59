package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ScanOutcome string

const (
	ScanOutcomeValid      ScanOutcome = "valid"
	ScanOutcomeInvalid    ScanOutcome = "invalid"
	ScanOutcomeSuspicious ScanOutcome = "suspicious"
)

// JSONMap is a JSONB column holding structured detail.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		*m = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}
}

// ScanRecord is the audit row for one scan attempt. Written once per attempt
// on every outcome path and never mutated afterward.
type ScanRecord struct {
	ID                  int64       `gorm:"primaryKey" json:"id"`
	CodeID              *int64      `gorm:"index" json:"code_id,omitempty"`
	ScannedByBusinessID int64       `gorm:"not null;index" json:"scanned_by_business_id"`
	Outcome             ScanOutcome `gorm:"type:varchar(20);not null" json:"outcome"`
	PointsAwarded       *int        `json:"points_awarded,omitempty"`
	ResultDetail        JSONMap     `gorm:"type:jsonb" json:"result_detail,omitempty"`
	SourceAddress       string      `gorm:"type:varchar(64)" json:"source_address,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
}

func (ScanRecord) TableName() string { return "scan_records" }
