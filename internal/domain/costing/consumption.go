package costing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// ConsumptionType identifies the kind of document line that drew stock
type ConsumptionType string

const (
	ConsumptionSale         ConsumptionType = "SALE"
	ConsumptionTransfer     ConsumptionType = "TRANSFER"
	ConsumptionAdjustment   ConsumptionType = "ADJUSTMENT"
	ConsumptionCancellation ConsumptionType = "CANCELLATION"
)

// IsValid returns true if the consumption type is one of the known values
func (c ConsumptionType) IsValid() bool {
	switch c {
	case ConsumptionSale, ConsumptionTransfer, ConsumptionAdjustment, ConsumptionCancellation:
		return true
	}
	return false
}

// Consumption is one draw against one lot. It is created exactly once per
// (lot, draw) event and is immutable thereafter; unit and total cost are
// copied from the lot at consumption time, never recomputed later.
type Consumption struct {
	shared.BaseEntity
	Seq           int64 // append order within the ledger
	LotID         uuid.UUID
	LotCode       string
	Type          ConsumptionType
	ReferenceType string
	ReferenceID   string
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal // base currency, at time of consumption
	TotalCost     decimal.Decimal
}

// NewConsumption records a draw of quantity against the given lot,
// capturing the lot's current base unit cost.
func NewConsumption(lot *Lot, ctype ConsumptionType, referenceType, referenceID string, quantity decimal.Decimal) *Consumption {
	return &Consumption{
		BaseEntity:    shared.NewBaseEntity(),
		LotID:         lot.ID,
		LotCode:       lot.Code,
		Type:          ctype,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Quantity:      quantity,
		UnitCost:      lot.UnitCostBase,
		TotalCost:     quantity.Mul(lot.UnitCostBase),
	}
}
