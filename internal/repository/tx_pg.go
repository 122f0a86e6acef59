package repository

import (
	"context"

	"gorm.io/gorm"
)

type pgTxManager struct {
	db *gorm.DB
}

func NewPGTxManager(db *gorm.DB) TxManager {
	return &pgTxManager{db: db}
}

func (m *pgTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, repos *TxRepos) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &TxRepos{
			Codes:    NewPGCodeRepository(tx),
			Scans:    NewPGScanRepository(tx),
			Entities: NewPGEntityRepository(tx),
		}
		return fn(ctx, repos)
	})
}
