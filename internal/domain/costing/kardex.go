package costing

import "github.com/shopspring/decimal"

// KardexSummary totals a lot's movement history
type KardexSummary struct {
	InitialQuantity   decimal.Decimal
	ConsumedQuantity  decimal.Decimal
	RemainingQuantity decimal.Decimal
	ConsumedCost      decimal.Decimal
	RemainingValue    decimal.Decimal
}

// LotKardex is a lot together with its ordered consumption history and a
// computed summary. Purely derived; building it mutates nothing.
type LotKardex struct {
	Lot          Lot
	Consumptions []Consumption
	Summary      KardexSummary
}

// BuildKardex assembles the kardex view for a lot. Consumptions are
// expected in ledger append order.
func BuildKardex(lot *Lot, consumptions []Consumption) LotKardex {
	consumed := decimal.Zero
	consumedCost := decimal.Zero
	for _, c := range consumptions {
		consumed = consumed.Add(c.Quantity)
		consumedCost = consumedCost.Add(c.TotalCost)
	}

	return LotKardex{
		Lot:          *lot,
		Consumptions: consumptions,
		Summary: KardexSummary{
			InitialQuantity:   lot.InitialQuantity,
			ConsumedQuantity:  consumed,
			RemainingQuantity: lot.CurrentQuantity,
			ConsumedCost:      consumedCost,
			RemainingValue:    lot.RemainingValue(),
		},
	}
}
