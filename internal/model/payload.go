package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// CodePayload is the type-tagged data blob embedded in a code. It is the only
// part of a scan a handler may trust, and only after it has been re-read from
// the store; the raw scanned image is never more than a lookup key.
//
// Kind selects the variant; the per-variant required fields are enforced by
// ValidateShape.
type CodePayload struct {
	Kind     CodeType `json:"kind"`
	UniqueID string   `json:"unique_id,omitempty"`

	// customer_card, loyalty_card
	OwnerID int64 `json:"owner_id,omitempty"`

	// loyalty_card
	ProgramID int64 `json:"program_id,omitempty"`
	CardID    int64 `json:"card_id,omitempty"`

	// promo_code
	PromoID   int64  `json:"promo_id,omitempty"`
	PromoCode string `json:"promo_code,omitempty"`

	// master_card
	BusinessID int64 `json:"business_id,omitempty"`
}

// ValidateShape checks that the payload structurally matches the expected
// code type: correct tag and per-type required fields present. The switch is
// exhaustive so a new code type cannot silently fall through.
func (p *CodePayload) ValidateShape(expected CodeType) error {
	if p.Kind != expected {
		return fmt.Errorf("payload kind %q does not match code type %q", p.Kind, expected)
	}
	switch p.Kind {
	case CodeTypeCustomerCard:
		if p.OwnerID <= 0 {
			return errors.New("customer card payload requires an owner reference")
		}
	case CodeTypeLoyaltyCard:
		if p.OwnerID <= 0 {
			return errors.New("loyalty card payload requires an owner reference")
		}
		if p.ProgramID <= 0 {
			return errors.New("loyalty card payload requires a program reference")
		}
	case CodeTypePromoCode:
		if p.PromoID <= 0 {
			return errors.New("promo payload requires a promo identifier")
		}
		if p.PromoCode == "" {
			return errors.New("promo payload requires a code string")
		}
	case CodeTypeMasterCard:
		if p.BusinessID <= 0 {
			return errors.New("master card payload requires a business reference")
		}
	default:
		return fmt.Errorf("unknown payload kind %q", p.Kind)
	}
	return nil
}

// Canonical returns the stable byte form of the payload used as MAC input.
func (p *CodePayload) Canonical() ([]byte, error) {
	return json.Marshal(p)
}

func (p CodePayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *CodePayload) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = CodePayload{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into CodePayload", value)
	}
}
