package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	appcosting "github.com/stockledger/backend/internal/application/costing"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/currency"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.LotModel{},
		&models.ConsumptionModel{},
		&models.StockLevelModel{},
		&models.ExchangeRateModel{},
	)
	require.NoError(t, err)

	return db
}

func makeLot(t *testing.T, warehouseID, productID uuid.UUID, code string, qty, cost int64, entryDate time.Time) *costing.Lot {
	t.Helper()
	lot, err := costing.NewLot(costing.LotSpec{
		Code:             code,
		ProductID:        productID,
		WarehouseID:      warehouseID,
		Quantity:         decimal.NewFromInt(qty),
		OriginalCurrency: "MXN",
		OriginalUnitCost: decimal.NewFromInt(cost),
		ExchangeRate:     decimal.NewFromInt(1),
		SourceType:       costing.SourcePurchase,
		SourceID:         "PO-1",
		EntryDate:        entryDate,
	})
	require.NoError(t, err)
	return lot
}

func TestGormLotRepository(t *testing.T) {
	ctx := context.Background()
	warehouse, product := uuid.New(), uuid.New()

	t.Run("Create assigns increasing sequences", func(t *testing.T) {
		repo := NewGormLotRepository(setupTestDB(t))

		first := makeLot(t, warehouse, product, "L-1", 10, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		second := makeLot(t, warehouse, product, "L-2", 10, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Create(ctx, second))

		assert.Equal(t, int64(1), first.Seq)
		assert.Equal(t, int64(2), second.Seq)
	})

	t.Run("Create rejects duplicate sequences at the schema level", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormLotRepository(db)

		first := makeLot(t, warehouse, product, "L-seq-1", 10, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, repo.Create(ctx, first))

		clash := makeLot(t, warehouse, product, "L-seq-2", 10, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		clash.Seq = first.Seq
		err := db.Create(models.LotModelFromDomain(clash)).Error
		assert.Error(t, err)
	})

	t.Run("FindActiveForUpdate orders by entry date then sequence", func(t *testing.T) {
		repo := NewGormLotRepository(setupTestDB(t))

		newer := makeLot(t, warehouse, product, "L-newer", 5, 100, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
		older := makeLot(t, warehouse, product, "L-older", 5, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		sameDay := makeLot(t, warehouse, product, "L-sameday", 5, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, repo.Create(ctx, newer))
		require.NoError(t, repo.Create(ctx, older))
		require.NoError(t, repo.Create(ctx, sameDay))

		lots, err := repo.FindActiveForUpdate(ctx, warehouse, product)
		require.NoError(t, err)

		require.Len(t, lots, 3)
		assert.Equal(t, "L-older", lots[0].Code)
		assert.Equal(t, "L-sameday", lots[1].Code)
		assert.Equal(t, "L-newer", lots[2].Code)
	})

	t.Run("FindActiveForUpdate skips exhausted lots", func(t *testing.T) {
		repo := NewGormLotRepository(setupTestDB(t))

		lot := makeLot(t, warehouse, product, "L-gone", 5, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, repo.Create(ctx, lot))
		lot.CloseOut()
		require.NoError(t, repo.Save(ctx, lot))

		lots, err := repo.FindActiveForUpdate(ctx, warehouse, product)
		require.NoError(t, err)
		assert.Empty(t, lots)
	})

	t.Run("SumActiveQuantity is zero for an empty pair", func(t *testing.T) {
		repo := NewGormLotRepository(setupTestDB(t))

		total, err := repo.SumActiveQuantity(ctx, warehouse, product)
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	})

	t.Run("Save persists quantity, status and warehouse", func(t *testing.T) {
		repo := NewGormLotRepository(setupTestDB(t))

		lot := makeLot(t, warehouse, product, "L-moved", 8, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, repo.Create(ctx, lot))

		otherWarehouse := uuid.New()
		_, err := lot.Consume(decimal.NewFromInt(3))
		require.NoError(t, err)
		require.NoError(t, lot.MoveTo(otherWarehouse))
		require.NoError(t, repo.Save(ctx, lot))

		reloaded, err := repo.FindByID(ctx, lot.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.CurrentQuantity.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, otherWarehouse, reloaded.WarehouseID)
	})

	t.Run("FindByCode fails with NotFound for unknown codes", func(t *testing.T) {
		repo := NewGormLotRepository(setupTestDB(t))

		_, err := repo.FindByCode(ctx, "missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormStockLevelRepository(t *testing.T) {
	ctx := context.Background()
	warehouse, product := uuid.New(), uuid.New()

	t.Run("GetOrCreateForUpdate inserts a zero row once", func(t *testing.T) {
		repo := NewGormStockLevelRepository(setupTestDB(t))

		level, err := repo.GetOrCreateForUpdate(ctx, warehouse, product)
		require.NoError(t, err)
		assert.True(t, level.Quantity.IsZero())

		again, err := repo.GetOrCreateForUpdate(ctx, warehouse, product)
		require.NoError(t, err)
		assert.Equal(t, level.ID, again.ID)
	})

	t.Run("Save persists applied deltas", func(t *testing.T) {
		repo := NewGormStockLevelRepository(setupTestDB(t))

		level, err := repo.GetOrCreateForUpdate(ctx, warehouse, product)
		require.NoError(t, err)
		require.NoError(t, level.Apply(decimal.NewFromInt(7)))
		require.NoError(t, repo.Save(ctx, level))

		reloaded, err := repo.FindByWarehouseAndProduct(ctx, warehouse, product)
		require.NoError(t, err)
		assert.True(t, reloaded.Quantity.Equal(decimal.NewFromInt(7)))
	})
}

func TestGormExchangeRateRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Rate returns the stored rate for the calendar date", func(t *testing.T) {
		repo := NewGormExchangeRateRepository(setupTestDB(t))

		rate, err := currency.NewExchangeRate("usd", time.Date(2024, 3, 15, 17, 30, 0, 0, time.UTC), decimal.RequireFromString("17.25"))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, rate))

		// Lookup at any time of the same day resolves the same rate.
		got, err := repo.Rate(ctx, "USD", time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.RequireFromString("17.25")))
	})

	t.Run("missing rates are NotFound, never estimated", func(t *testing.T) {
		repo := NewGormExchangeRateRepository(setupTestDB(t))

		rate, err := currency.NewExchangeRate("USD", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("17.25"))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, rate))

		_, err = repo.Rate(ctx, "USD", time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("Save overwrites the rate for an existing date", func(t *testing.T) {
		repo := NewGormExchangeRateRepository(setupTestDB(t))

		day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
		first, err := currency.NewExchangeRate("USD", day, decimal.NewFromInt(17))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, first))

		second, err := currency.NewExchangeRate("USD", day, decimal.NewFromInt(18))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, second))

		got, err := repo.Rate(ctx, "USD", day)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(18)))
	})
}

// TestEngineWithGormScope drives the costing engine through real SQL
// transactions end to end.
func TestEngineWithGormScope(t *testing.T) {
	ctx := context.Background()
	warehouse, product := uuid.New(), uuid.New()

	newEngine := func(t *testing.T) (*appcosting.Engine, *gorm.DB) {
		t.Helper()
		db := setupTestDB(t)
		return appcosting.NewEngine(NewGormTransactionScope(db), "MXN", nil), db
	}

	entry := func(qty, cost int64, entryDate time.Time, sourceID string) appcosting.CreateLotInput {
		return appcosting.CreateLotInput{
			ProductID:        product,
			WarehouseID:      warehouse,
			Quantity:         decimal.NewFromInt(qty),
			OriginalCurrency: "MXN",
			OriginalUnitCost: decimal.NewFromInt(cost),
			ExchangeRate:     decimal.NewFromInt(1),
			SourceType:       costing.SourcePurchase,
			SourceID:         sourceID,
			SourceLine:       1,
			EntryDate:        entryDate,
		}
	}

	t.Run("FIFO consumption across two lots", func(t *testing.T) {
		engine, _ := newEngine(t)

		_, err := engine.CreateLot(ctx, entry(10, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "PO-A"))
		require.NoError(t, err)
		_, err = engine.CreateLot(ctx, entry(10, 120, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), "PO-B"))
		require.NoError(t, err)

		result, err := engine.ConsumeLots(ctx, appcosting.ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(15),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sales_shipment",
			ReferenceID:   "SH-1",
		})
		require.NoError(t, err)

		require.Len(t, result.Consumptions, 2)
		assert.True(t, result.TotalCost.Equal(decimal.NewFromInt(1600)))

		cached, err := engine.CachedStock(ctx, warehouse, product)
		require.NoError(t, err)
		assert.True(t, cached.Equal(decimal.NewFromInt(5)))

		authoritative, err := engine.StockFromLots(ctx, warehouse, product)
		require.NoError(t, err)
		assert.True(t, authoritative.Equal(cached))
	})

	t.Run("insufficient stock rolls the transaction back", func(t *testing.T) {
		engine, db := newEngine(t)

		_, err := engine.CreateLot(ctx, entry(10, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "PO-A"))
		require.NoError(t, err)

		_, err = engine.ConsumeLots(ctx, appcosting.ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(11),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sales_shipment",
			ReferenceID:   "SH-2",
		})
		var insufficientErr *shared.InsufficientStockError
		require.ErrorAs(t, err, &insufficientErr)

		var count int64
		require.NoError(t, db.Model(&models.ConsumptionModel{}).Count(&count).Error)
		assert.Zero(t, count)

		cached, err := engine.CachedStock(ctx, warehouse, product)
		require.NoError(t, err)
		assert.True(t, cached.Equal(decimal.NewFromInt(10)))
	})

	t.Run("consumption reversal recreates lots in place", func(t *testing.T) {
		engine, _ := newEngine(t)

		_, err := engine.CreateLot(ctx, entry(10, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "PO-A"))
		require.NoError(t, err)

		_, err = engine.ConsumeLots(ctx, appcosting.ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(6),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sales_shipment",
			ReferenceID:   "SH-3",
		})
		require.NoError(t, err)

		recreated, err := engine.ReverseConsumption(ctx, "sales_shipment", "SH-3")
		require.NoError(t, err)
		require.Len(t, recreated, 1)
		assert.True(t, recreated[0].InitialQuantity.Equal(decimal.NewFromInt(6)))
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), recreated[0].EntryDate.UTC())

		cached, err := engine.CachedStock(ctx, warehouse, product)
		require.NoError(t, err)
		assert.True(t, cached.Equal(decimal.NewFromInt(10)))
	})

	t.Run("consumption reversal refuses to run twice", func(t *testing.T) {
		engine, _ := newEngine(t)

		_, err := engine.CreateLot(ctx, entry(10, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "PO-A"))
		require.NoError(t, err)

		_, err = engine.ConsumeLots(ctx, appcosting.ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(4),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sales_shipment",
			ReferenceID:   "SH-4",
		})
		require.NoError(t, err)

		_, err = engine.ReverseConsumption(ctx, "sales_shipment", "SH-4")
		require.NoError(t, err)

		// The recreated lots record the reversal durably; a replayed
		// cancellation must not inflate stock.
		_, err = engine.ReverseConsumption(ctx, "sales_shipment", "SH-4")
		assert.ErrorIs(t, err, shared.ErrConflict)

		cached, err := engine.CachedStock(ctx, warehouse, product)
		require.NoError(t, err)
		assert.True(t, cached.Equal(decimal.NewFromInt(10)))
	})
}
