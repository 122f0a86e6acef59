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
)

// DispatchState is the scan pipeline state machine. RateLimited, Invalid,
// Success, and Failed are terminal.
type DispatchState string

const (
	StatePending     DispatchState = "pending"
	StateRateLimited DispatchState = "rate_limited"
	StateInvalid     DispatchState = "invalid"
	StateProcessing  DispatchState = "processing"
	StateSuccess     DispatchState = "success"
	StateFailed      DispatchState = "failed"
)

// DispatchParams is one physical scan event.
type DispatchParams struct {
	CodeType          model.CodeType
	ScannerBusinessID int64
	RawPayload        model.CodePayload
	SourceAddress     string
	CustomerRef       *int64
	ProgramRef        *int64
	PromoRef          *int64
}

// ScanResult is the terminal outcome of one dispatch.
type ScanResult struct {
	State   DispatchState     `json:"state"`
	Outcome model.ScanOutcome `json:"outcome"`
	Message string            `json:"message"`
	// ErrorCode is the machine-readable failure classification, empty on success.
	ErrorCode     string        `json:"error_code,omitempty"`
	Detail        model.JSONMap `json:"detail,omitempty"`
	PointsAwarded *int          `json:"points_awarded,omitempty"`
	ScanID        int64         `json:"scan_id,omitempty"`
}

// Dispatcher turns one physical scan event into a validated, rate-limited,
// transactional business outcome. Each scan runs on its own goroutine; the
// store provides the only serialization across conflicting updates.
type Dispatcher struct {
	txm       repository.TxManager
	scans     repository.ScanRepository
	validator *Validator
	limiter   *RateLimiter
	analytics AnalyticsSink
	retry     RetryPolicy
	logger    *zap.Logger
	now       func() time.Time
}

func NewDispatcher(
	txm repository.TxManager,
	scans repository.ScanRepository,
	validator *Validator,
	limiter *RateLimiter,
	analytics AnalyticsSink,
	retry RetryPolicy,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		txm:       txm,
		scans:     scans,
		validator: validator,
		limiter:   limiter,
		analytics: analytics,
		retry:     retry,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch runs the scan pipeline. The returned result always carries a
// terminal state; failures are encoded in it rather than returned as errors
// so the audit and analytics tail runs on every path.
func (d *Dispatcher) Dispatch(ctx context.Context, params DispatchParams) *ScanResult {
	start := d.now()
	result := &ScanResult{State: StatePending}
	var codeID *int64

	defer func() {
		metrics.RecordScan(string(result.State), string(params.CodeType), d.now().Sub(start).Seconds())
	}()

	d.run(ctx, params, result, &codeID)

	// The audit row is written on every code path; a failure to write it is
	// logged but never overrides the primary outcome.
	d.writeScanRecord(ctx, params, result, codeID)
	d.writeAnalytics(ctx, params, result, codeID)

	return result
}

func (d *Dispatcher) run(ctx context.Context, params DispatchParams, result *ScanResult, codeID **int64) {
	if params.ScannerBusinessID <= 0 {
		d.conclude(result, NewValidationError(CodeMalformedPayload, "scanner business id must be positive"))
		return
	}

	// 1. Rate limit keyed by (scanner, source address). Denial is terminal
	// and touches the store no further, but is still logged and recorded.
	key := fmt.Sprintf("scan:%d:%s", params.ScannerBusinessID, params.SourceAddress)
	decision, err := d.limiter.Allow(ctx, key)
	if err != nil {
		d.conclude(result, err)
		return
	}
	if !decision.Allowed {
		result.State = StateRateLimited
		result.Outcome = model.ScanOutcomeSuspicious
		result.ErrorCode = CodeRateLimited
		result.Message = fmt.Sprintf("too many scan attempts, retry after %s",
			decision.ResetAt.UTC().Format(time.RFC3339))
		d.logger.Warn("scan rate limited",
			zap.Int64("business_id", params.ScannerBusinessID),
			zap.String("source", params.SourceAddress),
			zap.Time("reset_at", decision.ResetAt),
		)
		return
	}

	// 2. Validation.
	vr, err := d.validator.Validate(ctx, params.CodeType, params.RawPayload)
	if err != nil {
		if e, ok := AsError(err); ok {
			*codeID = e.CodeID
		}
		d.conclude(result, err)
		return
	}
	*codeID = &vr.Record.ID

	// 3. Type dispatch inside one transaction. Transient store failures are
	// retried as a whole; any other failure rolls the transaction back and
	// the attempt fails.
	result.State = StateProcessing
	var detail model.JSONMap
	var points *int
	err = d.retry.Do(ctx, func() error {
		return d.runHandlerTx(ctx, vr, params, &detail, &points)
	})
	if err != nil {
		d.conclude(result, err)
		return
	}

	result.State = StateSuccess
	result.Outcome = model.ScanOutcomeValid
	result.Message = "ok"
	result.Detail = detail
	result.PointsAwarded = points
}

func (d *Dispatcher) runHandlerTx(ctx context.Context, vr *ValidationResult, params DispatchParams, detail *model.JSONMap, points **int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("scan handler panicked", zap.Any("panic", r))
			err = fmt.Errorf("scan handler panicked: %v", r)
		}
	}()

	err = d.txm.RunInTx(ctx, func(ctx context.Context, repos *repository.TxRepos) error {
		dtl, pts, err := d.handle(ctx, repos, vr, params)
		if err != nil {
			return err
		}
		*detail = dtl
		*points = pts
		return nil
	})
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return NewTransientStoreError(err)
}

// handle routes the validated scan to its type handler. The switch is
// exhaustive over the payload variants; an unhandled type never falls
// through silently.
func (d *Dispatcher) handle(ctx context.Context, repos *repository.TxRepos, vr *ValidationResult, params DispatchParams) (model.JSONMap, *int, error) {
	record := vr.Record
	payload := vr.VerifiedPayload
	now := d.now()

	if err := repos.Codes.RecordUse(ctx, record.ID, now); err != nil {
		return nil, nil, err
	}

	switch record.CodeType {
	case model.CodeTypeCustomerCard:
		return d.handleCustomerCard(ctx, repos, payload, params, now)
	case model.CodeTypeLoyaltyCard:
		return d.handleLoyaltyCard(ctx, repos, payload)
	case model.CodeTypePromoCode:
		return d.handlePromoCode(ctx, repos, record, payload, params, now)
	case model.CodeTypeMasterCard:
		return d.handleMasterCard(ctx, repos, payload)
	default:
		return nil, nil, NewValidationError(CodeUnknownType,
			fmt.Sprintf("unknown code type %q", record.CodeType))
	}
}

// handleCustomerCard identifies a customer to the scanning business. It
// upserts the relationship and surfaces enrollment state for the operator;
// awarding points is a separate, explicit operator action.
func (d *Dispatcher) handleCustomerCard(ctx context.Context, repos *repository.TxRepos, payload model.CodePayload, params DispatchParams, now time.Time) (model.JSONMap, *int, error) {
	rel, created, err := repos.Entities.UpsertRelationship(ctx, payload.OwnerID, params.ScannerBusinessID, now)
	if err != nil {
		return nil, nil, err
	}

	detail := model.JSONMap{
		"customer_id":          payload.OwnerID,
		"relationship_created": created,
		"interaction_count":    rel.InteractionCount,
		"enrolled":             false,
	}

	program, err := repos.Entities.GetProgramByBusiness(ctx, params.ScannerBusinessID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, err
		}
		return detail, nil, nil
	}
	card, err := repos.Entities.GetLoyaltyCard(ctx, payload.OwnerID, program.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, err
		}
		detail["program_id"] = program.ID
		return detail, nil, nil
	}

	detail["enrolled"] = true
	detail["program_id"] = program.ID
	detail["card_id"] = card.ID
	detail["points"] = card.Points
	return detail, nil, nil
}

// handleLoyaltyCard returns card state for operator-driven point awarding.
func (d *Dispatcher) handleLoyaltyCard(ctx context.Context, repos *repository.TxRepos, payload model.CodePayload) (model.JSONMap, *int, error) {
	card, err := repos.Entities.GetLoyaltyCard(ctx, payload.OwnerID, payload.ProgramID)
	if err != nil {
		return nil, nil, err
	}
	program, err := repos.Entities.GetProgram(ctx, payload.ProgramID)
	if err != nil {
		return nil, nil, err
	}

	return model.JSONMap{
		"customer_id":  payload.OwnerID,
		"card_id":      card.ID,
		"program_id":   program.ID,
		"program_name": program.Name,
		"points":       card.Points,
	}, nil, nil
}

// handlePromoCode records a redemption after checking the activation window
// and usage cap. Breaching either is a business-logic failure, not a
// security one, and happens before any row is written.
func (d *Dispatcher) handlePromoCode(ctx context.Context, repos *repository.TxRepos, record *model.CodeRecord, payload model.CodePayload, params DispatchParams, now time.Time) (model.JSONMap, *int, error) {
	promo, err := repos.Entities.GetPromoForUpdate(ctx, payload.PromoID)
	if err != nil {
		return nil, nil, err
	}
	if !promo.WithinWindow(now) {
		return nil, nil, NewBusinessLogicError(CodePromoWindow, "promo is outside its activation window")
	}
	if promo.CapReached() {
		return nil, nil, NewBusinessLogicError(CodePromoCapReached, "promo usage cap reached")
	}

	redemption := &model.PromoRedemption{
		PromoID:    promo.ID,
		BusinessID: params.ScannerBusinessID,
		CodeID:     record.ID,
		CreatedAt:  now,
	}
	if params.CustomerRef != nil {
		redemption.CustomerID = *params.CustomerRef
	}
	if err := repos.Entities.CreateRedemption(ctx, redemption); err != nil {
		return nil, nil, err
	}
	if err := repos.Entities.IncrementPromoUses(ctx, promo.ID); err != nil {
		return nil, nil, err
	}

	detail := model.JSONMap{
		"promo_id":      promo.ID,
		"promo_code":    promo.Code,
		"redemption_id": redemption.ID,
	}
	if promo.UsageCap > 0 {
		detail["remaining_uses"] = promo.UsageCap - promo.UsesCount - 1
	}
	return detail, nil, nil
}

// handleMasterCard resolves the owning business so a staff device can bind
// to it.
func (d *Dispatcher) handleMasterCard(ctx context.Context, repos *repository.TxRepos, payload model.CodePayload) (model.JSONMap, *int, error) {
	business, err := repos.Entities.GetBusiness(ctx, payload.BusinessID)
	if err != nil {
		return nil, nil, err
	}
	return model.JSONMap{
		"business_id":   business.ID,
		"business_name": business.Name,
		"status":        string(business.Status),
	}, nil, nil
}

// conclude folds a pipeline error into the terminal result.
func (d *Dispatcher) conclude(result *ScanResult, err error) {
	e, ok := AsError(err)
	if !ok {
		result.State = StateFailed
		result.Outcome = model.ScanOutcomeInvalid
		result.ErrorCode = CodeStoreUnavailable
		result.Message = "scan could not be processed"
		d.logger.Error("scan failed with unclassified error", zap.Error(err))
		return
	}

	switch e.Kind {
	case KindValidation, KindExpiration:
		result.State = StateInvalid
		result.Outcome = model.ScanOutcomeInvalid
	case KindSecurity:
		result.State = StateInvalid
		result.Outcome = model.ScanOutcomeSuspicious
	case KindRateLimit:
		result.State = StateRateLimited
		result.Outcome = model.ScanOutcomeSuspicious
	case KindBusinessLogic:
		result.State = StateFailed
		result.Outcome = model.ScanOutcomeInvalid
	default:
		result.State = StateFailed
		result.Outcome = model.ScanOutcomeInvalid
	}
	result.ErrorCode = e.Code
	result.Message = e.Message
}

func (d *Dispatcher) writeScanRecord(ctx context.Context, params DispatchParams, result *ScanResult, codeID *int64) {
	scan := &model.ScanRecord{
		CodeID:              codeID,
		ScannedByBusinessID: params.ScannerBusinessID,
		Outcome:             result.Outcome,
		PointsAwarded:       result.PointsAwarded,
		SourceAddress:       params.SourceAddress,
		ResultDetail: model.JSONMap{
			"state":      string(result.State),
			"error_code": result.ErrorCode,
			"message":    result.Message,
		},
	}

	err := d.retry.Do(ctx, func() error {
		if err := d.scans.Create(ctx, scan); err != nil {
			return NewTransientStoreError(err)
		}
		return nil
	})
	if err != nil {
		d.logger.Error("failed to write scan record",
			zap.Int64("business_id", params.ScannerBusinessID),
			zap.Error(err),
		)
		return
	}
	result.ScanID = scan.ID
}

// writeAnalytics attempts the secondary analytics copy. It is best-effort:
// any failure is swallowed after a debug log.
func (d *Dispatcher) writeAnalytics(ctx context.Context, params DispatchParams, result *ScanResult, codeID *int64) {
	if d.analytics == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Debug("analytics sink panicked", zap.Any("panic", r))
		}
	}()
	err := d.analytics.RecordScan(ctx, &model.ScanRecord{
		ID:                  result.ScanID,
		CodeID:              codeID,
		ScannedByBusinessID: params.ScannerBusinessID,
		Outcome:             result.Outcome,
		SourceAddress:       params.SourceAddress,
	})
	if err != nil {
		d.logger.Debug("analytics write failed", zap.Error(err))
	}
}
