package costing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKardex(t *testing.T) {
	t.Run("summarizes consumption history", func(t *testing.T) {
		lot, err := NewLot(validLotSpec())
		require.NoError(t, err)

		var consumptions []Consumption
		for _, qty := range []int64{4, 2} {
			drawn, err := lot.Consume(decimal.NewFromInt(qty))
			require.NoError(t, err)
			consumptions = append(consumptions, *NewConsumption(lot, ConsumptionSale, "sale_detail", "7", drawn))
		}

		kardex := BuildKardex(lot, consumptions)

		assert.True(t, kardex.Summary.InitialQuantity.Equal(decimal.NewFromInt(10)))
		assert.True(t, kardex.Summary.ConsumedQuantity.Equal(decimal.NewFromInt(6)))
		assert.True(t, kardex.Summary.RemainingQuantity.Equal(decimal.NewFromInt(4)))
		// 6 consumed * 100 unit cost
		assert.True(t, kardex.Summary.ConsumedCost.Equal(decimal.NewFromInt(600)))
		assert.True(t, kardex.Summary.RemainingValue.Equal(decimal.NewFromInt(400)))
		assert.Len(t, kardex.Consumptions, 2)
	})

	t.Run("conservation holds between lot and ledger", func(t *testing.T) {
		lot, err := NewLot(validLotSpec())
		require.NoError(t, err)

		var consumptions []Consumption
		for _, qty := range []int64{1, 2, 3} {
			drawn, err := lot.Consume(decimal.NewFromInt(qty))
			require.NoError(t, err)
			consumptions = append(consumptions, *NewConsumption(lot, ConsumptionTransfer, "transfer_detail", "9", drawn))
		}

		kardex := BuildKardex(lot, consumptions)
		assert.True(t, kardex.Summary.ConsumedQuantity.Equal(lot.InitialQuantity.Sub(lot.CurrentQuantity)))
	})

	t.Run("empty history yields zero consumed", func(t *testing.T) {
		lot, err := NewLot(validLotSpec())
		require.NoError(t, err)

		kardex := BuildKardex(lot, nil)
		assert.True(t, kardex.Summary.ConsumedQuantity.IsZero())
		assert.True(t, kardex.Summary.RemainingQuantity.Equal(lot.InitialQuantity))
	})
}

func TestNewConsumption(t *testing.T) {
	lot, err := NewLot(validLotSpec())
	require.NoError(t, err)

	c := NewConsumption(lot, ConsumptionSale, "sale_detail", "42", decimal.NewFromInt(5))

	assert.Equal(t, lot.ID, c.LotID)
	assert.Equal(t, lot.Code, c.LotCode)
	assert.Equal(t, ConsumptionSale, c.Type)
	assert.Equal(t, "sale_detail", c.ReferenceType)
	assert.Equal(t, "42", c.ReferenceID)
	assert.True(t, c.UnitCost.Equal(lot.UnitCostBase))
	// 5 * 100
	assert.True(t, c.TotalCost.Equal(decimal.NewFromInt(500)))
}

func TestStockLevel_Apply(t *testing.T) {
	t.Run("accumulates deltas", func(t *testing.T) {
		level := NewStockLevel(uuid.New(), uuid.New())

		require.NoError(t, level.Apply(decimal.NewFromInt(10)))
		require.NoError(t, level.Apply(decimal.NewFromInt(-4)))

		assert.True(t, level.Quantity.Equal(decimal.NewFromInt(6)))
	})

	t.Run("refuses a delta that would go negative", func(t *testing.T) {
		level := NewStockLevel(uuid.New(), uuid.New())
		require.NoError(t, level.Apply(decimal.NewFromInt(3)))

		err := level.Apply(decimal.NewFromInt(-5))
		require.Error(t, err)
		assert.True(t, level.Quantity.Equal(decimal.NewFromInt(3)))
	})
}
