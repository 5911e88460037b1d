package costing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// SourceType identifies the kind of document that brought a lot into stock
type SourceType string

const (
	SourcePurchase   SourceType = "PURCHASE"
	SourceTransfer   SourceType = "TRANSFER"
	SourceAdjustment SourceType = "ADJUSTMENT"
	SourceMigration  SourceType = "MIGRATION"
)

// IsValid returns true if the source type is one of the known values
func (s SourceType) IsValid() bool {
	switch s {
	case SourcePurchase, SourceTransfer, SourceAdjustment, SourceMigration:
		return true
	}
	return false
}

// LotStatus represents the lifecycle state of a lot
type LotStatus string

const (
	LotStatusActive    LotStatus = "ACTIVE"
	LotStatusExhausted LotStatus = "EXHAUSTED"
)

// Lot is one purchased/created/transferred-in batch of a product at a
// warehouse. Its cost basis is frozen at creation and never recomputed,
// even if the exchange rate used is later corrected.
//
// Invariants:
//   - 0 <= CurrentQuantity <= InitialQuantity
//   - UnitCostBase = OriginalUnitCost * ExchangeRate (frozen)
//   - Status == EXHAUSTED iff CurrentQuantity == 0
//
// An exhausted lot is never reactivated; returning stock creates a new lot.
type Lot struct {
	shared.BaseEntity
	Code             string
	Seq              int64 // insertion sequence, FIFO tie-break for equal entry dates
	ProductID        uuid.UUID
	WarehouseID      uuid.UUID
	InitialQuantity  decimal.Decimal
	CurrentQuantity  decimal.Decimal
	UnitCostBase     decimal.Decimal
	OriginalCurrency string
	OriginalUnitCost decimal.Decimal
	ExchangeRate     decimal.Decimal
	SourceType       SourceType
	SourceID         string     // optional source document id
	ParentLotID      *uuid.UUID // set when the lot logically continues another (transfers, reversals)
	EntryDate        time.Time
	Status           LotStatus
}

// LotSpec carries everything needed to create a lot. UnitCostBase may be
// supplied precomputed by callers that already converted to base currency,
// to avoid floating-point drift from converting twice.
type LotSpec struct {
	Code             string
	ProductID        uuid.UUID
	WarehouseID      uuid.UUID
	Quantity         decimal.Decimal
	OriginalCurrency string
	OriginalUnitCost decimal.Decimal
	ExchangeRate     decimal.Decimal
	UnitCostBase     *decimal.Decimal
	SourceType       SourceType
	SourceID         string
	ParentLotID      *uuid.UUID
	EntryDate        time.Time
}

// NewLot creates a new ACTIVE lot from the spec
func NewLot(spec LotSpec) (*Lot, error) {
	if !spec.Quantity.IsPositive() {
		return nil, shared.NewValidationError("quantity", "must be greater than zero")
	}
	if !spec.ExchangeRate.IsPositive() {
		return nil, shared.NewValidationError("exchangeRate", "must be greater than zero")
	}
	if spec.OriginalCurrency == "" {
		return nil, shared.NewValidationError("originalCurrency", "is required")
	}
	if !spec.SourceType.IsValid() {
		return nil, shared.NewValidationError("sourceType", fmt.Sprintf("unknown source type %q", spec.SourceType))
	}
	if spec.Code == "" {
		return nil, shared.NewValidationError("code", "is required")
	}

	unitCostBase := spec.OriginalUnitCost.Mul(spec.ExchangeRate)
	if spec.UnitCostBase != nil {
		unitCostBase = *spec.UnitCostBase
	}

	return &Lot{
		BaseEntity:       shared.NewBaseEntity(),
		Code:             spec.Code,
		ProductID:        spec.ProductID,
		WarehouseID:      spec.WarehouseID,
		InitialQuantity:  spec.Quantity,
		CurrentQuantity:  spec.Quantity,
		UnitCostBase:     unitCostBase,
		OriginalCurrency: strings.ToUpper(spec.OriginalCurrency),
		OriginalUnitCost: spec.OriginalUnitCost,
		ExchangeRate:     spec.ExchangeRate,
		SourceType:       spec.SourceType,
		SourceID:         spec.SourceID,
		ParentLotID:      spec.ParentLotID,
		EntryDate:        spec.EntryDate,
		Status:           LotStatusActive,
	}, nil
}

// LotCode derives a human-traceable lot code from the source document,
// or from the source type and a timestamp when no source id exists.
func LotCode(sourceType SourceType, sourceID string, line int, at time.Time) string {
	if sourceID != "" {
		return fmt.Sprintf("%s-%s-%d", sourceType, sourceID, line)
	}
	return fmt.Sprintf("%s-%s", sourceType, at.UTC().Format("20060102150405.000000"))
}

// IsActive returns true if the lot still has stock to draw from
func (l *Lot) IsActive() bool {
	return l.Status == LotStatusActive
}

// Consume draws up to the requested quantity from the lot and returns the
// quantity actually drawn (min of remaining and requested). The lot flips
// to EXHAUSTED when its remaining quantity reaches zero.
func (l *Lot) Consume(quantity decimal.Decimal) (decimal.Decimal, error) {
	if !quantity.IsPositive() {
		return decimal.Zero, shared.NewValidationError("quantity", "must be greater than zero")
	}
	if !l.IsActive() {
		return decimal.Zero, shared.NewConflictError(fmt.Sprintf("lot %s is exhausted", l.Code))
	}

	drawn := decimal.Min(quantity, l.CurrentQuantity)
	l.CurrentQuantity = l.CurrentQuantity.Sub(drawn)
	if l.CurrentQuantity.IsZero() {
		l.Status = LotStatusExhausted
	}
	l.Touch()
	return drawn, nil
}

// CloseOut zeroes the lot's remaining quantity and marks it EXHAUSTED.
// Used when reversing an entry whose lot was never consumed: the entry
// simply never happened. Returns the quantity that was removed.
func (l *Lot) CloseOut() decimal.Decimal {
	removed := l.CurrentQuantity
	l.CurrentQuantity = decimal.Zero
	l.Status = LotStatusExhausted
	l.Touch()
	return removed
}

// MoveTo relocates the lot to another warehouse. Identity, cost basis and
// consumption history travel with it unchanged.
func (l *Lot) MoveTo(warehouseID uuid.UUID) error {
	if warehouseID == l.WarehouseID {
		return shared.NewValidationError("warehouse", "lot is already in the destination warehouse")
	}
	l.WarehouseID = warehouseID
	l.Touch()
	return nil
}

// ConsumedQuantity returns how much has been drawn from the lot so far
func (l *Lot) ConsumedQuantity() decimal.Decimal {
	return l.InitialQuantity.Sub(l.CurrentQuantity)
}

// RemainingValue returns the base-currency value of the remaining quantity
func (l *Lot) RemainingValue() decimal.Decimal {
	return l.CurrentQuantity.Mul(l.UnitCostBase)
}
