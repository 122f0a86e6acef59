package service

import (
	"context"
	"testing"

	"loyalty/scanhub/internal/model"
)

func TestLedgerAwarder(t *testing.T) {
	store := newFakeStore()
	store.cards[11] = model.LoyaltyCard{ID: 11, ProgramID: 3, CustomerID: 7, Points: 10, Status: model.EntityStatusActive}
	awarder := NewLedgerAwarder(store)
	ctx := context.Background()

	if err := awarder.AwardPoints(ctx, 11, 5, "scan:42"); err != nil {
		t.Fatalf("AwardPoints() error = %v", err)
	}

	if got := store.cards[11].Points; got != 15 {
		t.Errorf("card points = %d, want 15", got)
	}
	if len(store.pointsTxns) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(store.pointsTxns))
	}
	txn := store.pointsTxns[0]
	if txn.CardID != 11 || txn.Amount != 5 || txn.Source != "scan:42" {
		t.Errorf("ledger row wrong: %+v", txn)
	}
}

func TestLedgerAwarderRejectsNonPositiveAmount(t *testing.T) {
	store := newFakeStore()
	awarder := NewLedgerAwarder(store)

	for _, amount := range []int{0, -5} {
		err := awarder.AwardPoints(context.Background(), 11, amount, "scan:42")
		if _, ok := AsError(err); !ok || KindOf(err) != KindBusinessLogic {
			t.Errorf("AwardPoints(%d) = %v, want business logic error", amount, err)
		}
	}
	if len(store.pointsTxns) != 0 {
		t.Error("rejected award wrote a ledger row")
	}
}

func TestAuditAnalyticsSink(t *testing.T) {
	store := newFakeStore()
	sink := NewAuditAnalyticsSink(store)

	codeID := int64(3)
	err := sink.RecordScan(context.Background(), &model.ScanRecord{
		ID:                  17,
		CodeID:              &codeID,
		ScannedByBusinessID: 5,
		Outcome:             model.ScanOutcomeSuspicious,
	})
	if err != nil {
		t.Fatalf("RecordScan() error = %v", err)
	}

	if len(store.audits) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(store.audits))
	}
	event := store.audits[0]
	if event.Kind != "scan.suspicious" {
		t.Errorf("event kind = %q, want scan.suspicious", event.Kind)
	}
	if event.CodeID == nil || *event.CodeID != 3 {
		t.Errorf("event code id = %v, want 3", event.CodeID)
	}
}
