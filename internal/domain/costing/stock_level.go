package costing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// StockLevel is the denormalized (warehouse, product) -> quantity
// projection. The lot store remains the source of truth; this row exists
// purely to avoid aggregating lots on every stock-level read. It is only
// ever updated additively, inside the same transaction as the lot
// mutation that produced the delta.
type StockLevel struct {
	shared.BaseEntity
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
	Quantity    decimal.Decimal
}

// NewStockLevel creates a zero-quantity projection row for a
// (warehouse, product) pair on its first stock movement.
func NewStockLevel(warehouseID, productID uuid.UUID) *StockLevel {
	return &StockLevel{
		BaseEntity:  shared.NewBaseEntity(),
		WarehouseID: warehouseID,
		ProductID:   productID,
		Quantity:    decimal.Zero,
	}
}

// Apply adds the delta to the cached quantity. A negative result means the
// projection diverged from lot state, which the engine's locking protocol
// rules out; it is refused rather than stored.
func (s *StockLevel) Apply(delta decimal.Decimal) error {
	next := s.Quantity.Add(delta)
	if next.IsNegative() {
		return shared.NewConflictError(fmt.Sprintf(
			"stock level for warehouse %s product %s would become negative (%s)",
			s.WarehouseID, s.ProductID, next.String()))
	}
	s.Quantity = next
	s.Touch()
	return nil
}
