package costing

import (
	"context"

	"github.com/stockledger/backend/internal/domain/costing"
)

// TransactionScope provides transactional access to the ledger repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically. The engine never opens nested independent transactions:
// every nested call receives the repositories of the enclosing scope.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories
// within one transaction. All repositories returned share the same
// underlying database transaction.
type TransactionalRepositories interface {
	// Lots returns the lot repository scoped to the current transaction
	Lots() costing.LotRepository
	// Consumptions returns the consumption ledger scoped to the current transaction
	Consumptions() costing.ConsumptionRepository
	// StockLevels returns the stock level projection scoped to the current transaction
	StockLevels() costing.StockLevelRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for tests with in-memory repositories.
type NoOpTransactionScope struct {
	lots         costing.LotRepository
	consumptions costing.ConsumptionRepository
	stockLevels  costing.StockLevelRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	lots costing.LotRepository,
	consumptions costing.ConsumptionRepository,
	stockLevels costing.StockLevelRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		lots:         lots,
		consumptions: consumptions,
		stockLevels:  stockLevels,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Lots returns the lot repository.
func (s *NoOpTransactionScope) Lots() costing.LotRepository {
	return s.lots
}

// Consumptions returns the consumption ledger.
func (s *NoOpTransactionScope) Consumptions() costing.ConsumptionRepository {
	return s.consumptions
}

// StockLevels returns the stock level projection.
func (s *NoOpTransactionScope) StockLevels() costing.StockLevelRepository {
	return s.stockLevels
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
