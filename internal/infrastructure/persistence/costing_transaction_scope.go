package persistence

import (
	"context"

	appcosting "github.com/stockledger/backend/internal/application/costing"
	"github.com/stockledger/backend/internal/domain/costing"
	"gorm.io/gorm"
)

// GormTransactionScope implements the costing transaction scope using
// GORM transactions. Every engine mutation runs through Execute, so lot,
// consumption and stock level writes commit or roll back together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appcosting.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides repository access within one transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Lots returns the lot repository scoped to the current transaction
func (r *gormTransactionalRepositories) Lots() costing.LotRepository {
	return NewGormLotRepository(r.tx)
}

// Consumptions returns the consumption ledger scoped to the current transaction
func (r *gormTransactionalRepositories) Consumptions() costing.ConsumptionRepository {
	return NewGormConsumptionRepository(r.tx)
}

// StockLevels returns the stock level repository scoped to the current transaction
func (r *gormTransactionalRepositories) StockLevels() costing.StockLevelRepository {
	return NewGormStockLevelRepository(r.tx)
}

var _ appcosting.TransactionScope = (*GormTransactionScope)(nil)
var _ appcosting.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
