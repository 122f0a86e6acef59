package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"loyalty/scanhub/internal/metrics"
	"loyalty/scanhub/internal/model"
	"loyalty/scanhub/internal/repository"
	"loyalty/scanhub/pkg/codegen"
	"loyalty/scanhub/pkg/signature"
)

// RotationManager retires an aging code and atomically issues its
// replacement. The old record and its successor form a lineage through
// previous/replaced-by references; exactly one record per lineage is ever
// active.
type RotationManager struct {
	txm    repository.TxManager
	codes  repository.CodeRepository
	engine *signature.Engine
	retry  RetryPolicy
	logger *zap.Logger
	now    func() time.Time
}

func NewRotationManager(
	txm repository.TxManager,
	codes repository.CodeRepository,
	engine *signature.Engine,
	retry RetryPolicy,
	logger *zap.Logger,
) *RotationManager {
	return &RotationManager{
		txm:    txm,
		codes:  codes,
		engine: engine,
		retry:  retry,
		logger: logger,
		now:    time.Now,
	}
}

// Rotate replaces an active code with a freshly signed successor in one
// transaction. Transient store failures are retried with fixed backoff;
// exhausting the attempts leaves the original record untouched.
func (m *RotationManager) Rotate(ctx context.Context, codeID int64) (*model.CodeRecord, error) {
	var successor *model.CodeRecord

	err := m.retry.Do(ctx, func() error {
		successor = nil
		return m.rotateOnce(ctx, codeID, &successor)
	})
	if err != nil {
		metrics.RecordRotation("failed")
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewValidationError(CodeNotFound, "code not recognized")
		}
		if _, ok := AsError(err); ok {
			return nil, err
		}
		return nil, classifyStoreErr(err)
	}

	metrics.RecordRotation("success")
	m.logger.Info("code rotated",
		zap.Int64("old_code_id", codeID),
		zap.Int64("new_code_id", successor.ID),
	)
	return successor, nil
}

func (m *RotationManager) rotateOnce(ctx context.Context, codeID int64, out **model.CodeRecord) error {
	err := m.txm.RunInTx(ctx, func(ctx context.Context, repos *repository.TxRepos) error {
		current, err := repos.Codes.GetByIDForUpdate(ctx, codeID)
		if err != nil {
			return err
		}
		if current.Status != model.CodeStatusActive {
			return NewBusinessLogicError(CodeRotationRefused,
				fmt.Sprintf("cannot rotate a %s code", current.Status))
		}

		payload := current.Payload
		payload.UniqueID = codegen.NewUniqueID()

		verificationCode, err := codegen.NewVerificationCode()
		if err != nil {
			return fmt.Errorf("generate verification code: %w", err)
		}
		canonical, err := payload.Canonical()
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		issuedAt := m.now()

		replacement := &model.CodeRecord{
			UniqueID:          payload.UniqueID,
			OwnerID:           current.OwnerID,
			RelatedBusinessID: current.RelatedBusinessID,
			CodeType:          current.CodeType,
			Payload:           payload,
			Status:            model.CodeStatusActive,
			VerificationCode:  verificationCode,
			IsPrimary:         current.IsPrimary,
			ExpiryDate:        current.ExpiryDate,
			PreviousUniqueID:  current.UniqueID,
			Signature:         m.engine.Sign(canonical, issuedAt),
			ImageRef:          current.ImageRef,
		}
		if err := repos.Codes.Create(ctx, replacement); err != nil {
			return err
		}
		if err := repos.Codes.MarkReplaced(ctx, current.ID, replacement.ID); err != nil {
			return err
		}
		if err := repos.Entities.CreateAuditEvent(ctx, &model.AuditEvent{
			Kind:   "code.rotated",
			CodeID: &current.ID,
			Detail: model.JSONMap{
				"replaced_by_id": replacement.ID,
				"new_unique_id":  replacement.UniqueID,
			},
			CreatedAt: issuedAt,
		}); err != nil {
			return err
		}

		*out = replacement
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if _, ok := AsError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return NewTransientStoreError(err)
}

// RotateDue rotates up to limit active codes older than the interval. Meant
// for a periodic sweep caller; interval 0 disables rotation entirely.
func (m *RotationManager) RotateDue(ctx context.Context, interval time.Duration, limit int) (int, error) {
	if interval <= 0 {
		return 0, nil
	}

	due, err := m.codes.ListRotationDue(ctx, m.now().Add(-interval), limit)
	if err != nil {
		return 0, classifyStoreErr(err)
	}

	rotated := 0
	for _, code := range due {
		if _, err := m.Rotate(ctx, code.ID); err != nil {
			m.logger.Warn("scheduled rotation failed",
				zap.Int64("code_id", code.ID),
				zap.Error(err),
			)
			continue
		}
		rotated++
	}
	return rotated, nil
}
