package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loyalty/scanhub/internal/model"
	"loyalty/scanhub/internal/repository"
)

// fakeStore is an in-memory stand-in for the repository layer. It implements
// CodeRepository, ScanRepository, EntityRepository, and TxManager; RunInTx
// snapshots state and restores it when the unit of work fails, mimicking a
// rollback.
type fakeStore struct {
	mu sync.Mutex

	nextID int64

	codes         map[int64]model.CodeRecord
	scans         []model.ScanRecord
	customers     map[int64]model.Customer
	businesses    map[int64]model.Business
	programs      map[int64]model.LoyaltyProgram
	cards         map[int64]model.LoyaltyCard
	promos        map[int64]model.Promo
	relationships map[string]model.CustomerBusiness
	redemptions   []model.PromoRedemption
	pointsTxns    []model.PointsTransaction
	audits        []model.AuditEvent

	// failures injects one error per method name, consumed on first call.
	failures map[string]error
	// failAlways injects an error on every call to the method.
	failAlways map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		codes:         make(map[int64]model.CodeRecord),
		customers:     make(map[int64]model.Customer),
		businesses:    make(map[int64]model.Business),
		programs:      make(map[int64]model.LoyaltyProgram),
		cards:         make(map[int64]model.LoyaltyCard),
		promos:        make(map[int64]model.Promo),
		relationships: make(map[string]model.CustomerBusiness),
		failures:      make(map[string]error),
		failAlways:    make(map[string]error),
	}
}

func (s *fakeStore) failOnce(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *fakeStore) takeFailure(method string) error {
	if err, ok := s.failures[method]; ok {
		delete(s.failures, method)
		return err
	}
	return s.failAlways[method]
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func relKey(customerID, businessID int64) string {
	return fmt.Sprintf("%d:%d", customerID, businessID)
}

// --- TxManager ---

type snapshot struct {
	codes         map[int64]model.CodeRecord
	scans         []model.ScanRecord
	cards         map[int64]model.LoyaltyCard
	promos        map[int64]model.Promo
	relationships map[string]model.CustomerBusiness
	redemptions   []model.PromoRedemption
	pointsTxns    []model.PointsTransaction
	audits        []model.AuditEvent
	nextID        int64
}

func (s *fakeStore) snapshot() snapshot {
	snap := snapshot{
		codes:         make(map[int64]model.CodeRecord, len(s.codes)),
		cards:         make(map[int64]model.LoyaltyCard, len(s.cards)),
		promos:        make(map[int64]model.Promo, len(s.promos)),
		relationships: make(map[string]model.CustomerBusiness, len(s.relationships)),
		scans:         append([]model.ScanRecord(nil), s.scans...),
		redemptions:   append([]model.PromoRedemption(nil), s.redemptions...),
		pointsTxns:    append([]model.PointsTransaction(nil), s.pointsTxns...),
		audits:        append([]model.AuditEvent(nil), s.audits...),
		nextID:        s.nextID,
	}
	for k, v := range s.codes {
		snap.codes[k] = v
	}
	for k, v := range s.cards {
		snap.cards[k] = v
	}
	for k, v := range s.promos {
		snap.promos[k] = v
	}
	for k, v := range s.relationships {
		snap.relationships[k] = v
	}
	return snap
}

func (s *fakeStore) restore(snap snapshot) {
	s.codes = snap.codes
	s.cards = snap.cards
	s.promos = snap.promos
	s.relationships = snap.relationships
	s.scans = snap.scans
	s.redemptions = snap.redemptions
	s.pointsTxns = snap.pointsTxns
	s.audits = snap.audits
	s.nextID = snap.nextID
}

func (s *fakeStore) RunInTx(ctx context.Context, fn func(ctx context.Context, repos *repository.TxRepos) error) error {
	if err := s.takeFailure("RunInTx"); err != nil {
		return err
	}
	snap := s.snapshot()
	err := fn(ctx, &repository.TxRepos{Codes: s, Scans: scanRepoAdapter{store: s}, Entities: s})
	if err != nil {
		s.restore(snap)
	}
	return err
}

// --- CodeRepository ---

func (s *fakeStore) Create(ctx context.Context, code *model.CodeRecord) error {
	if err := s.takeFailure("Create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	code.ID = s.id()
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	s.codes[code.ID] = *code
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id int64) (*model.CodeRecord, error) {
	if err := s.takeFailure("GetByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &code, nil
}

func (s *fakeStore) GetByIDForUpdate(ctx context.Context, id int64) (*model.CodeRecord, error) {
	if err := s.takeFailure("GetByIDForUpdate"); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *fakeStore) GetByUniqueID(ctx context.Context, uniqueID string) (*model.CodeRecord, error) {
	if err := s.takeFailure("GetByUniqueID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, code := range s.codes {
		if code.UniqueID == uniqueID {
			return &code, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) DemoteOtherPrimaries(ctx context.Context, ownerID int64, codeType model.CodeType, exceptID int64) error {
	if err := s.takeFailure("DemoteOtherPrimaries"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, code := range s.codes {
		if code.OwnerID == ownerID && code.CodeType == codeType &&
			code.Status == model.CodeStatusActive && code.IsPrimary && id != exceptID {
			code.IsPrimary = false
			s.codes[id] = code
		}
	}
	return nil
}

func (s *fakeStore) MarkExpired(ctx context.Context, id int64) (bool, error) {
	if err := s.takeFailure("MarkExpired"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[id]
	if !ok || code.Status != model.CodeStatusActive {
		return false, nil
	}
	code.Status = model.CodeStatusExpired
	s.codes[id] = code
	return true, nil
}

func (s *fakeStore) MarkReplaced(ctx context.Context, id int64, replacedByID int64) error {
	if err := s.takeFailure("MarkReplaced"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[id]
	if !ok || code.Status != model.CodeStatusActive {
		return repository.ErrNotFound
	}
	code.Status = model.CodeStatusReplaced
	code.ReplacedByID = &replacedByID
	s.codes[id] = code
	return nil
}

func (s *fakeStore) Revoke(ctx context.Context, id int64, reason string, at time.Time) error {
	if err := s.takeFailure("Revoke"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[id]
	if !ok || code.Status != model.CodeStatusActive {
		return repository.ErrNotFound
	}
	code.Status = model.CodeStatusRevoked
	code.RevokedReason = reason
	code.RevokedAt = &at
	s.codes[id] = code
	return nil
}

func (s *fakeStore) RecordUse(ctx context.Context, id int64, at time.Time) error {
	if err := s.takeFailure("RecordUse"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[id]
	if !ok {
		return repository.ErrNotFound
	}
	code.UsesCount++
	code.LastUsedAt = &at
	s.codes[id] = code
	return nil
}

func (s *fakeStore) ListRotationDue(ctx context.Context, createdBefore time.Time, limit int) ([]model.CodeRecord, error) {
	if err := s.takeFailure("ListRotationDue"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []model.CodeRecord
	for _, code := range s.codes {
		if code.Status == model.CodeStatusActive && code.CreatedAt.Before(createdBefore) {
			due = append(due, code)
			if len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

// --- ScanRepository ---

func (s *fakeStore) CreateScan(scan *model.ScanRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scan.ID = s.id()
	s.scans = append(s.scans, *scan)
}

func (s *fakeStore) ListByBusiness(ctx context.Context, businessID int64, limit int) ([]model.ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ScanRecord
	for _, scan := range s.scans {
		if scan.ScannedByBusinessID == businessID {
			out = append(out, scan)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// --- EntityRepository ---

func (s *fakeStore) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	if err := s.takeFailure("GetCustomer"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &customer, nil
}

func (s *fakeStore) GetBusiness(ctx context.Context, id int64) (*model.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	business, ok := s.businesses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &business, nil
}

func (s *fakeStore) GetProgram(ctx context.Context, id int64) (*model.LoyaltyProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	program, ok := s.programs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &program, nil
}

func (s *fakeStore) GetProgramByBusiness(ctx context.Context, businessID int64) (*model.LoyaltyProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, program := range s.programs {
		if program.BusinessID == businessID && program.Status == model.EntityStatusActive {
			return &program, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) GetLoyaltyCard(ctx context.Context, customerID, programID int64) (*model.LoyaltyCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, card := range s.cards {
		if card.CustomerID == customerID && card.ProgramID == programID {
			return &card, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) GetPromo(ctx context.Context, id int64) (*model.Promo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	promo, ok := s.promos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &promo, nil
}

func (s *fakeStore) GetPromoForUpdate(ctx context.Context, id int64) (*model.Promo, error) {
	return s.GetPromo(ctx, id)
}

func (s *fakeStore) UpsertRelationship(ctx context.Context, customerID, businessID int64, at time.Time) (*model.CustomerBusiness, bool, error) {
	if err := s.takeFailure("UpsertRelationship"); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := relKey(customerID, businessID)
	rel, ok := s.relationships[key]
	if !ok {
		rel = model.CustomerBusiness{
			ID:                s.id(),
			CustomerID:        customerID,
			BusinessID:        businessID,
			InteractionCount:  1,
			LastInteractionAt: at,
		}
		s.relationships[key] = rel
		return &rel, true, nil
	}
	rel.InteractionCount++
	rel.LastInteractionAt = at
	s.relationships[key] = rel
	return &rel, false, nil
}

func (s *fakeStore) CreateRedemption(ctx context.Context, redemption *model.PromoRedemption) error {
	if err := s.takeFailure("CreateRedemption"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	redemption.ID = s.id()
	s.redemptions = append(s.redemptions, *redemption)
	return nil
}

func (s *fakeStore) IncrementPromoUses(ctx context.Context, promoID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	promo, ok := s.promos[promoID]
	if !ok {
		return repository.ErrNotFound
	}
	promo.UsesCount++
	s.promos[promoID] = promo
	return nil
}

func (s *fakeStore) AddCardPoints(ctx context.Context, cardID int64, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[cardID]
	if !ok {
		return repository.ErrNotFound
	}
	card.Points += amount
	s.cards[cardID] = card
	return nil
}

func (s *fakeStore) CreatePointsTransaction(ctx context.Context, txn *model.PointsTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn.ID = s.id()
	s.pointsTxns = append(s.pointsTxns, *txn)
	return nil
}

func (s *fakeStore) CreateAuditEvent(ctx context.Context, event *model.AuditEvent) error {
	if err := s.takeFailure("CreateAuditEvent"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = s.id()
	s.audits = append(s.audits, *event)
	return nil
}

// scanRepoAdapter exposes the fake's scan writes through ScanRepository.
type scanRepoAdapter struct{ store *fakeStore }

func (a scanRepoAdapter) Create(ctx context.Context, scan *model.ScanRecord) error {
	if err := a.store.takeFailure("CreateScanRecord"); err != nil {
		return err
	}
	a.store.CreateScan(scan)
	return nil
}

func (a scanRepoAdapter) ListByBusiness(ctx context.Context, businessID int64, limit int) ([]model.ScanRecord, error) {
	return a.store.ListByBusiness(ctx, businessID, limit)
}

var _ repository.CodeRepository = (*fakeStore)(nil)
var _ repository.EntityRepository = (*fakeStore)(nil)
var _ repository.TxManager = (*fakeStore)(nil)
var _ repository.ScanRepository = scanRepoAdapter{}
