package handler

import (
	"time"

	"github.com/stockledger/backend/internal/domain/costing"
)

// parseDateTime parses a datetime string in the formats documents carry
func parseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// LotResponse represents a lot in API responses
// @Description Stock lot with frozen cost basis
type LotResponse struct {
	ID               string  `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Code             string  `json:"code" example:"PURCHASE-PO-2024-001-1"`
	WarehouseID      string  `json:"warehouse_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	ProductID        string  `json:"product_id" example:"550e8400-e29b-41d4-a716-446655440002"`
	InitialQuantity  float64 `json:"initial_quantity" example:"100.0"`
	CurrentQuantity  float64 `json:"current_quantity" example:"75.0"`
	OriginalCurrency string  `json:"original_currency" example:"USD"`
	OriginalUnitCost float64 `json:"original_unit_cost" example:"25.0"`
	ExchangeRate     float64 `json:"exchange_rate" example:"17.25"`
	UnitCostBase     float64 `json:"unit_cost_base" example:"431.25"`
	SourceType       string  `json:"source_type" example:"PURCHASE"`
	SourceID         string  `json:"source_id,omitempty" example:"PO-2024-001"`
	ParentLotID      string  `json:"parent_lot_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440003"`
	EntryDate        string  `json:"entry_date" example:"2024-01-15T00:00:00Z"`
	Status           string  `json:"status" example:"ACTIVE"`
}

// ConsumptionResponse represents a lot consumption in API responses
// @Description One FIFO draw against a lot
type ConsumptionResponse struct {
	ID              string  `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	LotID           string  `json:"lot_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	LotCode         string  `json:"lot_code" example:"PURCHASE-PO-2024-001-1"`
	Quantity        float64 `json:"quantity" example:"10.0"`
	UnitCost        float64 `json:"unit_cost" example:"431.25"`
	TotalCost       float64 `json:"total_cost" example:"4312.5"`
	ConsumptionType string  `json:"consumption_type" example:"SALE"`
	ReferenceType   string  `json:"reference_type" example:"sales_shipment"`
	ReferenceID     string  `json:"reference_id" example:"SH-2024-001"`
	ConsumedAt      string  `json:"consumed_at" example:"2024-01-15T10:30:00Z"`
}

func toLotResponse(lot costing.Lot) LotResponse {
	resp := LotResponse{
		ID:               lot.ID.String(),
		Code:             lot.Code,
		WarehouseID:      lot.WarehouseID.String(),
		ProductID:        lot.ProductID.String(),
		InitialQuantity:  lot.InitialQuantity.InexactFloat64(),
		CurrentQuantity:  lot.CurrentQuantity.InexactFloat64(),
		OriginalCurrency: lot.OriginalCurrency,
		OriginalUnitCost: lot.OriginalUnitCost.InexactFloat64(),
		ExchangeRate:     lot.ExchangeRate.InexactFloat64(),
		UnitCostBase:     lot.UnitCostBase.InexactFloat64(),
		SourceType:       string(lot.SourceType),
		SourceID:         lot.SourceID,
		EntryDate:        lot.EntryDate.Format(time.RFC3339),
		Status:           string(lot.Status),
	}
	if lot.ParentLotID != nil {
		resp.ParentLotID = lot.ParentLotID.String()
	}
	return resp
}

func toLotResponses(lots []costing.Lot) []LotResponse {
	out := make([]LotResponse, 0, len(lots))
	for _, lot := range lots {
		out = append(out, toLotResponse(lot))
	}
	return out
}

func toConsumptionResponse(c costing.Consumption) ConsumptionResponse {
	return ConsumptionResponse{
		ID:              c.ID.String(),
		LotID:           c.LotID.String(),
		LotCode:         c.LotCode,
		Quantity:        c.Quantity.InexactFloat64(),
		UnitCost:        c.UnitCost.InexactFloat64(),
		TotalCost:       c.TotalCost.InexactFloat64(),
		ConsumptionType: string(c.Type),
		ReferenceType:   c.ReferenceType,
		ReferenceID:     c.ReferenceID,
		ConsumedAt:      c.CreatedAt.Format(time.RFC3339),
	}
}

func toConsumptionResponses(consumptions []costing.Consumption) []ConsumptionResponse {
	out := make([]ConsumptionResponse, 0, len(consumptions))
	for _, c := range consumptions {
		out = append(out, toConsumptionResponse(c))
	}
	return out
}
