package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"loyalty/scanhub/internal/model"
	"loyalty/scanhub/internal/repository"
	"loyalty/scanhub/pkg/signature"
)

// ValidationResult is the trust handoff: on success VerifiedPayload is the
// persisted payload, never the raw scanned fields. The physical code is only
// a lookup key.
type ValidationResult struct {
	Record          *model.CodeRecord
	VerifiedPayload model.CodePayload
}

// Validator is the trust boundary deciding whether a scanned payload may be
// acted upon. Checks short-circuit on the first failure.
type Validator struct {
	codes    repository.CodeRepository
	entities repository.EntityRepository
	engine   *signature.Engine
	// rotationInterval bounds how long a leaked physical code image stays
	// exploitable; zero disables the staleness check.
	rotationInterval time.Duration
	logger           *zap.Logger
	now              func() time.Time
}

func NewValidator(
	codes repository.CodeRepository,
	entities repository.EntityRepository,
	engine *signature.Engine,
	rotationInterval time.Duration,
	logger *zap.Logger,
) *Validator {
	return &Validator{
		codes:            codes,
		entities:         entities,
		engine:           engine,
		rotationInterval: rotationInterval,
		logger:           logger,
		now:              time.Now,
	}
}

func (v *Validator) Validate(ctx context.Context, codeType model.CodeType, raw model.CodePayload) (*ValidationResult, error) {
	// 1. Shape check against the expected type.
	if !codeType.Valid() {
		return nil, NewValidationError(CodeUnknownType, fmt.Sprintf("unknown code type %q", codeType))
	}
	if raw.UniqueID == "" {
		return nil, NewValidationError(CodeMalformedPayload, "payload is missing the code reference")
	}
	if err := raw.ValidateShape(codeType); err != nil {
		return nil, NewValidationError(CodeMalformedPayload, err.Error())
	}

	// 2. Lookup. A forged reference yields the same failure as a plausible
	// but absent one; nothing in the message reveals which it was.
	record, err := v.codes.GetByUniqueID(ctx, raw.UniqueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewValidationError(CodeNotFound, "code not recognized")
		}
		return nil, classifyStoreErr(err)
	}

	// 3. Status check.
	if record.Status != model.CodeStatusActive {
		return nil, withCodeID(
			NewValidationError(CodeNotActive, fmt.Sprintf("code is %s", record.Status)),
			record.ID)
	}

	// 4. Signature check over the stored payload. A failure here means the
	// stored record itself does not verify, which is tampering or key abuse,
	// never ordinary user error. State is left untouched.
	canonical, err := record.Payload.Canonical()
	if err != nil {
		return nil, fmt.Errorf("encode stored payload: %w", err)
	}
	if err := v.engine.Verify(canonical, record.Signature); err != nil {
		code := CodeSignatureMismatch
		if errors.Is(err, signature.ErrStale) {
			code = CodeSignatureStale
		}
		v.logger.Error("code signature rejected",
			zap.Int64("code_id", record.ID),
			zap.String("unique_id", record.UniqueID),
			zap.Error(err),
		)
		return nil, withCodeID(NewSecurityError(code, "code could not be verified", err), record.ID)
	}

	// 5. Lazy expiry: flip the record once, then fail. MarkExpired only
	// touches active rows, so repeated expired scans stay idempotent.
	if record.IsExpired(v.now()) {
		if _, err := v.codes.MarkExpired(ctx, record.ID); err != nil {
			return nil, classifyStoreErr(err)
		}
		return nil, withCodeID(NewExpirationError(CodeExpired, "code is expired"), record.ID)
	}

	// 6. Rotation due: the code is otherwise valid, but too old to trust.
	if v.rotationInterval > 0 && record.Age(v.now()) > v.rotationInterval {
		return nil, withCodeID(
			NewValidationError(CodeNeedsRefresh, "code needs refresh, please reissue"),
			record.ID)
	}

	// 7. Referenced-entity liveness.
	if err := v.checkLiveness(ctx, record); err != nil {
		return nil, err
	}

	// 8. Trust handoff: only the persisted payload leaves the validator.
	return &ValidationResult{
		Record:          record,
		VerifiedPayload: record.Payload,
	}, nil
}

func (v *Validator) checkLiveness(ctx context.Context, record *model.CodeRecord) error {
	payload := record.Payload

	switch record.CodeType {
	case model.CodeTypeCustomerCard:
		return v.checkCustomer(ctx, payload.OwnerID, record.ID)

	case model.CodeTypeLoyaltyCard:
		if err := v.checkCustomer(ctx, payload.OwnerID, record.ID); err != nil {
			return err
		}
		program, err := v.entities.GetProgram(ctx, payload.ProgramID)
		if err != nil {
			return v.livenessErr(err, record.ID, "program")
		}
		if program.Status != model.EntityStatusActive {
			return withCodeID(NewExpirationError(CodeEntityInactive, "loyalty program is inactive"), record.ID)
		}
		card, err := v.entities.GetLoyaltyCard(ctx, payload.OwnerID, payload.ProgramID)
		if err != nil {
			return v.livenessErr(err, record.ID, "loyalty card")
		}
		if card.Status != model.EntityStatusActive {
			return withCodeID(NewExpirationError(CodeEntityInactive, "loyalty card is inactive"), record.ID)
		}
		return nil

	case model.CodeTypePromoCode:
		if _, err := v.entities.GetPromo(ctx, payload.PromoID); err != nil {
			return v.livenessErr(err, record.ID, "promo")
		}
		return nil

	case model.CodeTypeMasterCard:
		business, err := v.entities.GetBusiness(ctx, payload.BusinessID)
		if err != nil {
			return v.livenessErr(err, record.ID, "business")
		}
		if business.Status != model.EntityStatusActive {
			return withCodeID(NewExpirationError(CodeEntityInactive, "business is inactive"), record.ID)
		}
		return nil

	default:
		return NewValidationError(CodeUnknownType, fmt.Sprintf("unknown code type %q", record.CodeType))
	}
}

func (v *Validator) checkCustomer(ctx context.Context, customerID, codeID int64) error {
	customer, err := v.entities.GetCustomer(ctx, customerID)
	if err != nil {
		return v.livenessErr(err, codeID, "customer")
	}
	if customer.Status != model.EntityStatusActive {
		return withCodeID(NewExpirationError(CodeEntityInactive, "customer account is inactive"), codeID)
	}
	return nil
}

func (v *Validator) livenessErr(err error, codeID int64, entity string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return withCodeID(NewExpirationError(CodeEntityInactive, entity+" no longer exists"), codeID)
	}
	return classifyStoreErr(err)
}

func withCodeID(e *Error, codeID int64) *Error {
	e.CodeID = &codeID
	return e
}
