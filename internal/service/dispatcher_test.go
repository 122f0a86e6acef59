package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"loyalty/scanhub/internal/model"
	"loyalty/scanhub/internal/repository"
)

func newTestDispatcher(store *fakeStore, threshold int) *Dispatcher {
	engine := newTestEngine()
	validator := newTestValidator(store, engine, 0)
	limiter := NewRateLimiter(repository.NewMemoryCounterStore(), time.Minute, threshold)
	return NewDispatcher(
		store,
		scanRepoAdapter{store: store},
		validator,
		limiter,
		NewAuditAnalyticsSink(store),
		testRetry,
		zap.NewNop(),
	)
}

func TestDispatchCustomerCard(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, 100)
	ctx := context.Background()

	seedCustomer(store, 7, model.EntityStatusActive)
	record := seedCode(t, store, d.validator.engine, model.CodeTypeCustomerCard,
		model.CodePayload{OwnerID: 7}, nil)

	params := DispatchParams{
		CodeType:          model.CodeTypeCustomerCard,
		ScannerBusinessID: 5,
		RawPayload:        model.CodePayload{Kind: model.CodeTypeCustomerCard, UniqueID: record.UniqueID, OwnerID: 7},
		SourceAddress:     "10.0.0.1",
	}

	result := d.Dispatch(ctx, params)
	if result.State != StateSuccess {
		t.Fatalf("state = %q (%s), want success", result.State, result.Message)
	}
	if result.Outcome != model.ScanOutcomeValid {
		t.Errorf("outcome = %q, want valid", result.Outcome)
	}
	if result.PointsAwarded != nil {
		t.Errorf("points awarded = %v, scans must never award points", *result.PointsAwarded)
	}
	if result.Detail["relationship_created"] != true {
		t.Errorf("relationship_created = %v, want true", result.Detail["relationship_created"])
	}
	if result.Detail["interaction_count"] != 1 {
		t.Errorf("interaction_count = %v, want 1", result.Detail["interaction_count"])
	}
	if result.Detail["enrolled"] != false {
		t.Errorf("enrolled = %v, want false without a program", result.Detail["enrolled"])
	}
	if result.ScanID == 0 {
		t.Error("scan record id missing from result")
	}

	rel, ok := store.relationships[relKey(7, 5)]
	if !ok {
		t.Fatal("relationship row not created")
	}
	if rel.InteractionCount != 1 {
		t.Errorf("relationship interaction count = %d, want 1", rel.InteractionCount)
	}

	got, _ := store.GetByID(ctx, record.ID)
	if got.UsesCount != 1 {
		t.Errorf("code uses count = %d, want 1", got.UsesCount)
	}
	if len(store.scans) != 1 || store.scans[0].Outcome != model.ScanOutcomeValid {
		t.Errorf("scan audit row missing or wrong: %+v", store.scans)
	}

	var mirrored bool
	for _, event := range store.audits {
		if event.Kind == "scan.valid" {
			mirrored = true
		}
	}
	if !mirrored {
		t.Error("analytics mirror event missing")
	}

	// A repeat scan increments rather than re-creates.
	result = d.Dispatch(ctx, params)
	if result.State != StateSuccess {
		t.Fatalf("second state = %q, want success", result.State)
	}
	if result.Detail["relationship_created"] != false {
		t.Error("second scan reported relationship_created = true")
	}
	if result.Detail["interaction_count"] != 2 {
		t.Errorf("second interaction_count = %v, want 2", result.Detail["interaction_count"])
	}
}

func TestDispatchCustomerCardEnrollmentDetail(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, 100)

	seedCustomer(store, 7, model.EntityStatusActive)
	store.programs[3] = model.LoyaltyProgram{ID: 3, BusinessID: 5, Name: "Coffee Club", Status: model.EntityStatusActive}
	store.cards[11] = model.LoyaltyCard{ID: 11, ProgramID: 3, CustomerID: 7, Points: 42, Status: model.EntityStatusActive}
	record := seedCode(t, store, d.validator.engine, model.CodeTypeCustomerCard,
		model.CodePayload{OwnerID: 7}, nil)

	result := d.Dispatch(context.Background(), DispatchParams{
		CodeType:          model.CodeTypeCustomerCard,
		ScannerBusinessID: 5,
		RawPayload:        model.CodePayload{Kind: model.CodeTypeCustomerCard, UniqueID: record.UniqueID, OwnerID: 7},
		SourceAddress:     "10.0.0.2",
	})
	if result.State != StateSuccess {
		t.Fatalf("state = %q (%s), want success", result.State, result.Message)
	}
	if result.Detail["enrolled"] != true {
		t.Errorf("enrolled = %v, want true", result.Detail["enrolled"])
	}
	if result.Detail["card_id"] != int64(11) {
		t.Errorf("card_id = %v, want 11", result.Detail["card_id"])
	}
	if result.Detail["points"] != 42 {
		t.Errorf("points = %v, want 42", result.Detail["points"])
	}
}

func TestDispatchRateLimited(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, 1)
	ctx := context.Background()

	seedCustomer(store, 7, model.EntityStatusActive)
	record := seedCode(t, store, d.validator.engine, model.CodeTypeCustomerCard,
		model.CodePayload{OwnerID: 7}, nil)

	params := DispatchParams{
		CodeType:          model.CodeTypeCustomerCard,
		ScannerBusinessID: 5,
		RawPayload:        model.CodePayload{Kind: model.CodeTypeCustomerCard, UniqueID: record.UniqueID, OwnerID: 7},
		SourceAddress:     "hot-source",
	}

	if result := d.Dispatch(ctx, params); result.State != StateSuccess {
		t.Fatalf("first scan state = %q, want success", result.State)
	}

	result := d.Dispatch(ctx, params)
	if result.State != StateRateLimited {
		t.Fatalf("second scan state = %q, want rate_limited", result.State)
	}
	if result.Outcome != model.ScanOutcomeSuspicious {
		t.Errorf("outcome = %q, want suspicious", result.Outcome)
	}
	if result.ErrorCode != CodeRateLimited {
		t.Errorf("error code = %q, want %q", result.ErrorCode, CodeRateLimited)
	}

	// The denial never touches the code but is still recorded.
	got, _ := store.GetByID(ctx, record.ID)
	if got.UsesCount != 1 {
		t.Errorf("uses count = %d after denied scan, want 1", got.UsesCount)
	}
	if len(store.scans) != 2 {
		t.Fatalf("scan rows = %d, want 2", len(store.scans))
	}
	if store.scans[1].Outcome != model.ScanOutcomeSuspicious {
		t.Errorf("denied scan outcome = %q, want suspicious", store.scans[1].Outcome)
	}

	// A different source address is unaffected.
	params.SourceAddress = "other-source"
	if result := d.Dispatch(ctx, params); result.State != StateSuccess {
		t.Errorf("other source state = %q, want success", result.State)
	}
}

func TestDispatchUnknownCode(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, 100)

	result := d.Dispatch(context.Background(), DispatchParams{
		CodeType:          model.CodeTypeCustomerCard,
		ScannerBusinessID: 5,
		RawPayload:        model.CodePayload{Kind: model.CodeTypeCustomerCard, UniqueID: "never-issued", OwnerID: 7},
		SourceAddress:     "10.0.0.3",
	})
	if result.State != StateInvalid {
		t.Fatalf("state = %q, want invalid", result.State)
	}
	if result.ErrorCode != CodeNotFound {
		t.Errorf("error code = %q, want %q", result.ErrorCode, CodeNotFound)
	}
	if len(store.scans) != 1 {
		t.Fatalf("scan rows = %d, want 1", len(store.scans))
	}
	if store.scans[0].CodeID != nil {
		t.Errorf("scan row code id = %v, want nil for unknown code", store.scans[0].CodeID)
	}
}

func TestDispatchExpiredCode(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, 100)
	ctx := context.Background()

	seedCustomer(store, 7, model.EntityStatusActive)
	past := time.Now().Add(-time.Hour)
	record := seedCode(t, store, d.validator.engine, model.CodeTypeCustomerCard,
		model.CodePayload{OwnerID: 7},
		func(r *model.CodeRecord) { r.ExpiryDate = &past })

	result := d.Dispatch(ctx, DispatchParams{
		CodeType:          model.CodeTypeCustomerCard,
		ScannerBusinessID: 5,
		RawPayload:        model.CodePayload{Kind: model.CodeTypeCustomerCard, UniqueID: record.UniqueID, OwnerID: 7},
		SourceAddress:     "10.0.0.4",
	})
	if result.State != StateInvalid {
		t.Fatalf("state = %q, want invalid", result.State)
	}
	if result.ErrorCode != CodeExpired {
		t.Errorf("error code = %q, want %q", result.ErrorCode, CodeExpired)
	}

	got, _ := store.GetByID(ctx, record.ID)
	if got.Status != model.CodeStatusExpired {
		t.Errorf("record status = %q, want lazily flipped to expired", got.Status)
	}
	if len(store.scans) != 1 || store.scans[0].CodeID == nil || *store.scans[0].CodeID != record.ID {
		t.Errorf("scan row should reference code %d: %+v", record.ID, store.scans)
	}
}

func TestDispatchTamperedCode(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, 100)

	seedCustomer(store, 7, model.EntityStatusActive)
	record := seedCode(t, store, d.validator.engine, model.CodeTypeCustomerCard,
		model.CodePayload{OwnerID: 7},
		func(r *model.CodeRecord) { r.Payload.OwnerID = 8 })

	result := d.Dispatch(context.Background(), DispatchParams{
		CodeType:          model.CodeTypeCustomerCard,
		ScannerBusinessID: 5,
		RawPayload:        model.CodePayload{Kind: model.CodeTypeCustomerCard, UniqueID: record.UniqueID, OwnerID: 8},
		SourceAddress:     "10.0.0.5",
	})
	if result.State != StateInvalid {
		t.Fatalf("state = %q, want invalid", result.State)
	}
	if result.Outcome != model.ScanOutcomeSuspicious {
		t.Errorf("outcome = %q, tampering must be suspicious", result.Outcome)
	}
	if result.ErrorCode != CodeSignatureMismatch {
		t.Errorf("error code = %q, want %q", result.ErrorCode, CodeSignatureMismatch)
	}
}

func TestDispatchPromoRedemption(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, 100)
	ctx := context.Background()

	store.promos[9] = model.Promo{ID: 9, BusinessID: 5, Code: "SUMMER", UsageCap: 2, UsesCount: 1}
	record := seedCode(t, store, d.validator.engine, model.CodeTypePromoCode,
		model.CodePayload{PromoID: 9, PromoCode: "SUMMER"}, nil)

	customer := int64(7)
	params := DispatchParams{
		CodeType:          model.CodeTypePromoCode,
		ScannerBusinessID: 5,
		RawPayload:        model.CodePayload{Kind: model.CodeTypePromoCode, UniqueID: record.UniqueID, PromoID: 9, PromoCode: "SUMMER"},
		SourceAddress:     "10.0.0.6",
		CustomerRef:       &customer,
	}

	result := d.Dispatch(ctx, params)
	if result.State != StateSuccess {
		t.Fatalf("state = %q (%s), want success", result.State, result.Message)
	}
	if result.Detail["remaining_uses"] != 0 {
		t.Errorf("remaining_uses = %v, want 0", result.Detail["remaining_uses"])
	}
	if len(store.redemptions) != 1 {
		t.Fatalf("redemptions = %d, want 1", len(store.redemptions))
	}
	if store.redemptions[0].CustomerID != 7 || store.redemptions[0].PromoID != 9 {
		t.Errorf("redemption row wrong: %+v", store.redemptions[0])
	}
	if store.promos[9].UsesCount != 2 {
		t.Errorf("promo uses = %d, want 2", store.promos[9].UsesCount)
	}

	// Cap is now exhausted. The breach is business logic, not security, and
	// the whole transaction rolls back.
	params.SourceAddress = "10.0.0.7"
	result = d.Dispatch(ctx, params)
	if result.State != StateFailed {
		t.Fatalf("over-cap state = %q, want failed", result.State)
	}
	if result.ErrorCode != CodePromoCapReached {
		t.Errorf("error code = %q, want %q", result.ErrorCode, CodePromoCapReached)
	}
	if len(store.redemptions) != 1 {
		t.Errorf("over-cap scan wrote a redemption row")
	}
	got, _ := store.GetByID(ctx, record.ID)
	if got.UsesCount != 1 {
		t.Errorf("code uses count = %d after rolled-back scan, want 1", got.UsesCount)
	}
}

func TestDispatchPromoOutsideWindow(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, 100)

	ended := time.Now().Add(-time.Hour)
	store.promos[9] = model.Promo{ID: 9, BusinessID: 5, Code: "SUMMER", EndsAt: &ended}
	record := seedCode(t, store, d.validator.engine, model.CodeTypePromoCode,
		model.CodePayload{PromoID: 9, PromoCode: "SUMMER"}, nil)

	result := d.Dispatch(context.Background(), DispatchParams{
		CodeType:          model.CodeTypePromoCode,
		ScannerBusinessID: 5,
		RawPayload:        model.CodePayload{Kind: model.CodeTypePromoCode, UniqueID: record.UniqueID, PromoID: 9, PromoCode: "SUMMER"},
		SourceAddress:     "10.0.0.8",
	})
	if result.State != StateFailed {
		t.Fatalf("state = %q, want failed", result.State)
	}
	if result.ErrorCode != CodePromoWindow {
		t.Errorf("error code = %q, want %q", result.ErrorCode, CodePromoWindow)
	}
	if len(store.redemptions) != 0 {
		t.Error("expired promo wrote a redemption row")
	}
}

func TestDispatchLoyaltyCard(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, 100)

	seedCustomer(store, 7, model.EntityStatusActive)
	store.programs[3] = model.LoyaltyProgram{ID: 3, BusinessID: 5, Name: "Coffee Club", Status: model.EntityStatusActive}
	store.cards[11] = model.LoyaltyCard{ID: 11, ProgramID: 3, CustomerID: 7, Points: 42, Status: model.EntityStatusActive}
	record := seedCode(t, store, d.validator.engine, model.CodeTypeLoyaltyCard,
		model.CodePayload{OwnerID: 7, ProgramID: 3}, nil)

	result := d.Dispatch(context.Background(), DispatchParams{
		CodeType:          model.CodeTypeLoyaltyCard,
		ScannerBusinessID: 5,
		RawPayload:        model.CodePayload{Kind: model.CodeTypeLoyaltyCard, UniqueID: record.UniqueID, OwnerID: 7, ProgramID: 3},
		SourceAddress:     "10.0.0.9",
	})
	if result.State != StateSuccess {
		t.Fatalf("state = %q (%s), want success", result.State, result.Message)
	}
	if result.Detail["program_name"] != "Coffee Club" {
		t.Errorf("program_name = %v", result.Detail["program_name"])
	}
	if result.Detail["points"] != 42 {
		t.Errorf("points = %v, want 42", result.Detail["points"])
	}
	if result.PointsAwarded != nil {
		t.Error("loyalty scan awarded points; awarding is operator-only")
	}
}

func TestDispatchMasterCard(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, 100)

	seedBusiness(store, 5, model.EntityStatusActive)
	record := seedCode(t, store, d.validator.engine, model.CodeTypeMasterCard,
		model.CodePayload{BusinessID: 5}, nil)

	result := d.Dispatch(context.Background(), DispatchParams{
		CodeType:          model.CodeTypeMasterCard,
		ScannerBusinessID: 5,
		RawPayload:        model.CodePayload{Kind: model.CodeTypeMasterCard, UniqueID: record.UniqueID, BusinessID: 5},
		SourceAddress:     "10.0.0.10",
	})
	if result.State != StateSuccess {
		t.Fatalf("state = %q (%s), want success", result.State, result.Message)
	}
	if result.Detail["business_id"] != int64(5) {
		t.Errorf("business_id = %v, want 5", result.Detail["business_id"])
	}
	if result.Detail["business_name"] != "business" {
		t.Errorf("business_name = %v", result.Detail["business_name"])
	}
}

func TestDispatchRejectsInvalidScanner(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, 100)

	result := d.Dispatch(context.Background(), DispatchParams{
		CodeType:          model.CodeTypeCustomerCard,
		ScannerBusinessID: 0,
		RawPayload:        model.CodePayload{Kind: model.CodeTypeCustomerCard, UniqueID: "u", OwnerID: 7},
		SourceAddress:     "10.0.0.11",
	})
	if result.State != StateInvalid {
		t.Fatalf("state = %q, want invalid", result.State)
	}
	if result.ErrorCode != CodeMalformedPayload {
		t.Errorf("error code = %q, want %q", result.ErrorCode, CodeMalformedPayload)
	}
}
