package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"loyalty/scanhub/internal/model"
	"loyalty/scanhub/internal/repository"
	"loyalty/scanhub/pkg/codegen"
	"loyalty/scanhub/pkg/signature"
)

// IssueParams describes one code issuance request.
type IssueParams struct {
	OwnerID    int64
	BusinessID *int64
	CodeType   model.CodeType
	Payload    model.CodePayload
	ImageRef   string
	IsPrimary  bool
	Expiry     *time.Time
}

// Issuer creates and persists new code records. Every issuance is one atomic
// unit of work; a partially-created record is never observable.
type Issuer struct {
	txm    repository.TxManager
	codes  repository.CodeRepository
	engine *signature.Engine
	logger *zap.Logger
	now    func() time.Time
}

func NewIssuer(txm repository.TxManager, codes repository.CodeRepository, engine *signature.Engine, logger *zap.Logger) *Issuer {
	return &Issuer{
		txm:    txm,
		codes:  codes,
		engine: engine,
		logger: logger,
		now:    time.Now,
	}
}

// Issue validates the request, generates identity material, signs the
// payload, and persists the record. When IsPrimary is set, every other
// active primary of the same (owner, code type) is demoted inside the same
// transaction.
func (s *Issuer) Issue(ctx context.Context, params IssueParams) (*model.CodeRecord, error) {
	if params.OwnerID <= 0 {
		return nil, NewValidationError(CodeMalformedPayload, "owner id must be positive")
	}
	if params.BusinessID != nil && *params.BusinessID <= 0 {
		return nil, NewValidationError(CodeMalformedPayload, "business id must be positive")
	}
	if params.CodeType == "" {
		return nil, NewValidationError(CodeUnknownType, "code type is required")
	}
	if !params.CodeType.Valid() {
		return nil, NewValidationError(CodeUnknownType, fmt.Sprintf("unknown code type %q", params.CodeType))
	}

	payload := params.Payload
	payload.Kind = params.CodeType
	payload.UniqueID = codegen.NewUniqueID()
	if payload.OwnerID == 0 &&
		(params.CodeType == model.CodeTypeCustomerCard || params.CodeType == model.CodeTypeLoyaltyCard) {
		payload.OwnerID = params.OwnerID
	}
	if err := payload.ValidateShape(params.CodeType); err != nil {
		return nil, NewValidationError(CodeMalformedPayload, err.Error())
	}

	verificationCode, err := codegen.NewVerificationCode()
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}

	canonical, err := payload.Canonical()
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	issuedAt := s.now()

	record := &model.CodeRecord{
		UniqueID:          payload.UniqueID,
		OwnerID:           params.OwnerID,
		RelatedBusinessID: params.BusinessID,
		CodeType:          params.CodeType,
		Payload:           payload,
		Status:            model.CodeStatusActive,
		VerificationCode:  verificationCode,
		IsPrimary:         params.IsPrimary,
		ExpiryDate:        params.Expiry,
		Signature:         s.engine.Sign(canonical, issuedAt),
		ImageRef:          params.ImageRef,
	}

	err = s.txm.RunInTx(ctx, func(ctx context.Context, repos *repository.TxRepos) error {
		if err := repos.Codes.Create(ctx, record); err != nil {
			return err
		}
		if params.IsPrimary {
			return repos.Codes.DemoteOtherPrimaries(ctx, params.OwnerID, params.CodeType, record.ID)
		}
		return nil
	})
	if err != nil {
		return nil, classifyStoreErr(err)
	}

	s.logger.Info("code issued",
		zap.Int64("code_id", record.ID),
		zap.String("code_type", string(record.CodeType)),
		zap.Int64("owner_id", record.OwnerID),
		zap.Bool("is_primary", record.IsPrimary),
	)
	return record, nil
}

// Revoke terminates an active code with a reason and records an audit event.
func (s *Issuer) Revoke(ctx context.Context, codeID int64, reason string) error {
	err := s.txm.RunInTx(ctx, func(ctx context.Context, repos *repository.TxRepos) error {
		record, err := repos.Codes.GetByIDForUpdate(ctx, codeID)
		if err != nil {
			return err
		}
		if record.Status != model.CodeStatusActive {
			return NewBusinessLogicError(CodeNotActive,
				fmt.Sprintf("code is %s", record.Status))
		}
		if err := repos.Codes.Revoke(ctx, codeID, reason, s.now()); err != nil {
			return err
		}
		return repos.Entities.CreateAuditEvent(ctx, &model.AuditEvent{
			Kind:      "code.revoked",
			CodeID:    &codeID,
			Detail:    model.JSONMap{"reason": reason},
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewValidationError(CodeNotFound, "code not recognized")
		}
		if _, ok := AsError(err); ok {
			return err
		}
		return classifyStoreErr(err)
	}

	s.logger.Info("code revoked", zap.Int64("code_id", codeID), zap.String("reason", reason))
	return nil
}

// GetByUniqueID fetches a code for the display surface.
func (s *Issuer) GetByUniqueID(ctx context.Context, uniqueID string) (*model.CodeRecord, error) {
	record, err := s.codes.GetByUniqueID(ctx, uniqueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewValidationError(CodeNotFound, "code not recognized")
		}
		return nil, classifyStoreErr(err)
	}
	return record, nil
}
