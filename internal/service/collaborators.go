package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"loyalty/scanhub/internal/model"
	"loyalty/scanhub/internal/repository"
)

// Outbound collaborator interfaces. The scan engine consumes these; their
// full implementations live with the surrounding platform.

// PointsAwarder credits points to a loyalty card. Awarding is always an
// explicit operator action, never a scan side effect.
type PointsAwarder interface {
	AwardPoints(ctx context.Context, cardID int64, amount int, source string) error
}

// Notifier delivers a customer-facing notification. Delivery mechanics are
// out of scope here.
type Notifier interface {
	Notify(ctx context.Context, customerID int64, kind string, payload map[string]interface{}) error
}

// AnalyticsSink receives the secondary, best-effort copy of each scan
// attempt. Failures must never affect the primary outcome.
type AnalyticsSink interface {
	RecordScan(ctx context.Context, scan *model.ScanRecord) error
}

// LedgerAwarder writes a points ledger row and bumps the card balance in one
// transaction.
type LedgerAwarder struct {
	txm repository.TxManager
}

func NewLedgerAwarder(txm repository.TxManager) *LedgerAwarder {
	return &LedgerAwarder{txm: txm}
}

func (a *LedgerAwarder) AwardPoints(ctx context.Context, cardID int64, amount int, source string) error {
	if amount <= 0 {
		return NewBusinessLogicError("AWARD_AMOUNT_INVALID", "award amount must be positive")
	}
	err := a.txm.RunInTx(ctx, func(ctx context.Context, repos *repository.TxRepos) error {
		if err := repos.Entities.AddCardPoints(ctx, cardID, amount); err != nil {
			return err
		}
		return repos.Entities.CreatePointsTransaction(ctx, &model.PointsTransaction{
			CardID:    cardID,
			Amount:    amount,
			Source:    source,
			CreatedAt: time.Now(),
		})
	})
	return classifyStoreErr(err)
}

// LogNotifier logs notifications instead of delivering them. Stands in until
// the platform notification service is wired up.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, customerID int64, kind string, payload map[string]interface{}) error {
	n.logger.Info("notification",
		zap.Int64("customer_id", customerID),
		zap.String("kind", kind),
		zap.Any("payload", payload),
	)
	return nil
}

// AuditAnalyticsSink mirrors scan attempts into the audit event table.
type AuditAnalyticsSink struct {
	entities repository.EntityRepository
}

func NewAuditAnalyticsSink(entities repository.EntityRepository) *AuditAnalyticsSink {
	return &AuditAnalyticsSink{entities: entities}
}

func (s *AuditAnalyticsSink) RecordScan(ctx context.Context, scan *model.ScanRecord) error {
	return s.entities.CreateAuditEvent(ctx, &model.AuditEvent{
		Kind:   "scan." + string(scan.Outcome),
		CodeID: scan.CodeID,
		Detail: model.JSONMap{
			"business_id": scan.ScannedByBusinessID,
			"scan_id":     scan.ID,
		},
		CreatedAt: time.Now(),
	})
}
