package costing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/costing"
)

// CreateLotInput carries everything needed to bring a batch of stock into
// a warehouse. ExchangeRate converts OriginalUnitCost to base currency;
// UnitCostBase may be supplied precomputed by callers that already
// converted, to avoid drift from converting twice.
type CreateLotInput struct {
	ProductID        uuid.UUID
	WarehouseID      uuid.UUID
	Quantity         decimal.Decimal
	OriginalCurrency string
	OriginalUnitCost decimal.Decimal
	ExchangeRate     decimal.Decimal
	UnitCostBase     *decimal.Decimal
	SourceType       costing.SourceType
	SourceID         string
	SourceLine       int
	ParentLotID      *uuid.UUID
	EntryDate        time.Time
}

// ConsumeInput identifies a FIFO draw request against a (warehouse, product) pair
type ConsumeInput struct {
	WarehouseID   uuid.UUID
	ProductID     uuid.UUID
	Quantity      decimal.Decimal
	Type          costing.ConsumptionType
	ReferenceType string
	ReferenceID   string
}

// ConsumeResult reports the per-lot draws and the total base-currency cost
// of a FIFO consumption.
type ConsumeResult struct {
	Consumptions []costing.Consumption
	TotalCost    decimal.Decimal
}

// CostInfo is the cost snapshot of a product's most recently created lot,
// used to default entry costs when a caller supplies none.
type CostInfo struct {
	Currency     string
	UnitCost     decimal.Decimal
	ExchangeRate decimal.Decimal
	UnitCostBase decimal.Decimal
	EntryDate    time.Time
}

// ValuationEntry is one (warehouse, product) line of a valuation summary,
// aggregated from active lots only.
type ValuationEntry struct {
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
	Quantity    decimal.Decimal
	TotalValue  decimal.Decimal
}
