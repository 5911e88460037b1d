package documents

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/costing"
)

// Reference types recorded on consumption rows so a cancellation can find
// exactly what a posting consumed.
const (
	RefSalesShipment  = "sales_shipment"
	RefTransfer       = "transfer"
	RefTransferCancel = "transfer_cancellation"
	RefAdjustment     = "adjustment"
)

// ReceiptLine is one product line of a purchase receipt. ExchangeRate may
// be left zero for foreign currency lines; the posting then resolves the
// rate for the entry date and fails if none is registered.
type ReceiptLine struct {
	ProductID    uuid.UUID
	WarehouseID  uuid.UUID
	Quantity     decimal.Decimal
	Currency     string
	UnitCost     decimal.Decimal
	ExchangeRate decimal.Decimal
}

// PostReceiptRequest posts a purchase receipt, creating one lot per line
type PostReceiptRequest struct {
	ReceiptID string
	EntryDate time.Time
	Lines     []ReceiptLine
}

// PostReceiptResult reports the created lots and their base-currency value
type PostReceiptResult struct {
	Lots       []costing.Lot
	TotalValue decimal.Decimal
}

// ShipmentLine is one product line of a sales shipment
type ShipmentLine struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Quantity    decimal.Decimal
}

// PostShipmentRequest posts a sales shipment, consuming stock FIFO per line
type PostShipmentRequest struct {
	ShipmentID string
	Lines      []ShipmentLine
}

// ShipmentLineCost is the cost of goods sold for one shipment line
type ShipmentLineCost struct {
	Line         int
	Consumptions []costing.Consumption
	TotalCost    decimal.Decimal
}

// PostShipmentResult reports the per-line and total cost of goods sold
type PostShipmentResult struct {
	Lines     []ShipmentLineCost
	TotalCost decimal.Decimal
}

// TransferLine is one product line of a warehouse transfer
type TransferLine struct {
	ProductID uuid.UUID
	Quantity  decimal.Decimal
}

// PostTransferRequest posts a transfer between two warehouses
type PostTransferRequest struct {
	TransferID             string
	SourceWarehouseID      uuid.UUID
	DestinationWarehouseID uuid.UUID
	Lines                  []TransferLine
}

// PostTransferResult reports the lots created at the destination
type PostTransferResult struct {
	CreatedLots []costing.Lot
	TotalCost   decimal.Decimal
}

// AdjustmentLine is one signed line of a stock adjustment. Positive
// quantities enter stock and need a cost basis; Currency and UnitCost may
// be left empty to fall back to the product's last known cost. Negative
// quantities leave stock at FIFO cost.
type AdjustmentLine struct {
	ProductID    uuid.UUID
	WarehouseID  uuid.UUID
	Quantity     decimal.Decimal
	Currency     string
	UnitCost     decimal.Decimal
	ExchangeRate decimal.Decimal
}

// PostAdjustmentRequest posts a stock adjustment document
type PostAdjustmentRequest struct {
	AdjustmentID string
	EntryDate    time.Time
	Lines        []AdjustmentLine
}

// PostAdjustmentResult reports the adjustment's stock effects
type PostAdjustmentResult struct {
	CreatedLots  []costing.Lot
	Consumptions []costing.Consumption
}
