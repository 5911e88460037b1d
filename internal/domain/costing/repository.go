package costing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotRepository defines the interface for lot persistence.
//
// The ForUpdate variants acquire row-level locks (SELECT ... FOR UPDATE)
// and must only be called inside a transaction scope; every read-then-write
// against lots goes through them so that concurrent consumers cannot both
// pass the sufficiency check on the same stock.
type LotRepository interface {
	// FindByID finds a lot by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Lot, error)

	// FindByCode finds a lot by its globally unique code
	FindByCode(ctx context.Context, code string) (*Lot, error)

	// FindByIDForUpdate finds a lot by ID with a row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Lot, error)

	// FindActiveForUpdate returns the active lots for a (warehouse, product)
	// pair in strict FIFO order (entry date ascending, insertion sequence
	// ascending as tie-break), with row locks held.
	FindActiveForUpdate(ctx context.Context, warehouseID, productID uuid.UUID) ([]Lot, error)

	// FindBySource finds all lots created by a source document
	FindBySource(ctx context.Context, sourceType SourceType, sourceID string) ([]Lot, error)

	// CountBySourceID counts the lots carrying a source document ID across
	// all source types. Cancellation lots keep the original lot's source
	// type, so detecting an already-applied reversal needs the ID alone.
	CountBySourceID(ctx context.Context, sourceID string) (int64, error)

	// FindActiveByWarehouse lists a warehouse's active lots in FIFO order,
	// for valuation reads.
	FindActiveByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]Lot, error)

	// FindLatestByProduct returns the most recently created lot for a
	// product across all warehouses, for cost defaulting.
	FindLatestByProduct(ctx context.Context, productID uuid.UUID) (*Lot, error)

	// SumActiveQuantity sums remaining quantity over active lots for a
	// (warehouse, product) pair. This is the authoritative stock level.
	SumActiveQuantity(ctx context.Context, warehouseID, productID uuid.UUID) (decimal.Decimal, error)

	// Create inserts a new lot and populates its insertion sequence
	Create(ctx context.Context, lot *Lot) error

	// Save persists quantity/status/warehouse changes to an existing lot
	Save(ctx context.Context, lot *Lot) error
}

// ConsumptionRepository defines the interface for the append-only
// consumption ledger. Rows are never updated or deleted.
type ConsumptionRepository interface {
	// Create appends a consumption record
	Create(ctx context.Context, c *Consumption) error

	// FindByLot returns a lot's consumptions in append order
	FindByLot(ctx context.Context, lotID uuid.UUID) ([]Consumption, error)

	// FindByReference returns the consumptions recorded for a document line,
	// in append order. Used to reconstruct what a cancellation must reverse.
	FindByReference(ctx context.Context, referenceType, referenceID string) ([]Consumption, error)

	// CountByLot counts the consumptions recorded against a lot
	CountByLot(ctx context.Context, lotID uuid.UUID) (int64, error)
}

// StockLevelRepository defines the interface for the (warehouse, product)
// quantity projection.
type StockLevelRepository interface {
	// FindByWarehouseAndProduct finds the projection row for a pair
	FindByWarehouseAndProduct(ctx context.Context, warehouseID, productID uuid.UUID) (*StockLevel, error)

	// FindByWarehouse lists all projection rows for a warehouse
	FindByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]StockLevel, error)

	// GetOrCreateForUpdate returns the projection row for a pair with a row
	// lock held, creating a zero row on the pair's first stock movement.
	GetOrCreateForUpdate(ctx context.Context, warehouseID, productID uuid.UUID) (*StockLevel, error)

	// Save persists a quantity change to a projection row
	Save(ctx context.Context, level *StockLevel) error
}
