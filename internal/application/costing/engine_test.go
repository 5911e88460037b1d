package costing

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore backs the in-memory repositories used to exercise the engine
// without a database. Repositories hand out copies so that engine-side
// mutations only become visible through Save, mirroring GORM behavior.
type memStore struct {
	mu           sync.Mutex
	lots         map[uuid.UUID]costing.Lot
	lotSeq       int64
	consumptions []costing.Consumption
	conSeq       int64
	levels       map[string]costing.StockLevel
}

func newMemStore() *memStore {
	return &memStore{
		lots:   make(map[uuid.UUID]costing.Lot),
		levels: make(map[string]costing.StockLevel),
	}
}

func levelKey(warehouseID, productID uuid.UUID) string {
	return warehouseID.String() + "/" + productID.String()
}

type memLotRepo struct{ s *memStore }

func (r *memLotRepo) FindByID(_ context.Context, id uuid.UUID) (*costing.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lot, ok := r.s.lots[id]
	if !ok {
		return nil, shared.NewNotFoundError("lot", id.String())
	}
	return &lot, nil
}

func (r *memLotRepo) FindByCode(_ context.Context, code string) (*costing.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, lot := range r.s.lots {
		if lot.Code == code {
			return &lot, nil
		}
	}
	return nil, shared.NewNotFoundError("lot", code)
}

func (r *memLotRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*costing.Lot, error) {
	return r.FindByID(ctx, id)
}

func (r *memLotRepo) FindActiveForUpdate(_ context.Context, warehouseID, productID uuid.UUID) ([]costing.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var lots []costing.Lot
	for _, lot := range r.s.lots {
		if lot.WarehouseID == warehouseID && lot.ProductID == productID && lot.Status == costing.LotStatusActive {
			lots = append(lots, lot)
		}
	}
	sortFIFO(lots)
	return lots, nil
}

func (r *memLotRepo) FindBySource(_ context.Context, sourceType costing.SourceType, sourceID string) ([]costing.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var lots []costing.Lot
	for _, lot := range r.s.lots {
		if lot.SourceType == sourceType && lot.SourceID == sourceID {
			lots = append(lots, lot)
		}
	}
	sortFIFO(lots)
	return lots, nil
}

func (r *memLotRepo) CountBySourceID(_ context.Context, sourceID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, lot := range r.s.lots {
		if lot.SourceID == sourceID {
			count++
		}
	}
	return count, nil
}

func (r *memLotRepo) FindActiveByWarehouse(_ context.Context, warehouseID uuid.UUID) ([]costing.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var lots []costing.Lot
	for _, lot := range r.s.lots {
		if lot.WarehouseID == warehouseID && lot.Status == costing.LotStatusActive {
			lots = append(lots, lot)
		}
	}
	sortFIFO(lots)
	return lots, nil
}

func (r *memLotRepo) FindLatestByProduct(_ context.Context, productID uuid.UUID) (*costing.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *costing.Lot
	for _, lot := range r.s.lots {
		if lot.ProductID != productID {
			continue
		}
		if latest == nil || lot.Seq > latest.Seq {
			l := lot
			latest = &l
		}
	}
	if latest == nil {
		return nil, shared.NewNotFoundError("lot", productID.String())
	}
	return latest, nil
}

func (r *memLotRepo) SumActiveQuantity(_ context.Context, warehouseID, productID uuid.UUID) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, lot := range r.s.lots {
		if lot.WarehouseID == warehouseID && lot.ProductID == productID && lot.Status == costing.LotStatusActive {
			total = total.Add(lot.CurrentQuantity)
		}
	}
	return total, nil
}

func (r *memLotRepo) Create(_ context.Context, lot *costing.Lot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lotSeq++
	lot.Seq = r.s.lotSeq
	r.s.lots[lot.ID] = *lot
	return nil
}

func (r *memLotRepo) Save(_ context.Context, lot *costing.Lot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lots[lot.ID] = *lot
	return nil
}

func sortFIFO(lots []costing.Lot) {
	sort.Slice(lots, func(i, j int) bool {
		if lots[i].EntryDate.Equal(lots[j].EntryDate) {
			return lots[i].Seq < lots[j].Seq
		}
		return lots[i].EntryDate.Before(lots[j].EntryDate)
	})
}

type memConsumptionRepo struct{ s *memStore }

func (r *memConsumptionRepo) Create(_ context.Context, c *costing.Consumption) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.conSeq++
	c.Seq = r.s.conSeq
	r.s.consumptions = append(r.s.consumptions, *c)
	return nil
}

func (r *memConsumptionRepo) FindByLot(_ context.Context, lotID uuid.UUID) ([]costing.Consumption, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []costing.Consumption
	for _, c := range r.s.consumptions {
		if c.LotID == lotID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memConsumptionRepo) FindByReference(_ context.Context, referenceType, referenceID string) ([]costing.Consumption, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []costing.Consumption
	for _, c := range r.s.consumptions {
		if c.ReferenceType == referenceType && c.ReferenceID == referenceID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memConsumptionRepo) CountByLot(_ context.Context, lotID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, c := range r.s.consumptions {
		if c.LotID == lotID {
			count++
		}
	}
	return count, nil
}

type memStockLevelRepo struct{ s *memStore }

func (r *memStockLevelRepo) FindByWarehouseAndProduct(_ context.Context, warehouseID, productID uuid.UUID) (*costing.StockLevel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	level, ok := r.s.levels[levelKey(warehouseID, productID)]
	if !ok {
		return nil, shared.NewNotFoundError("stock level", levelKey(warehouseID, productID))
	}
	return &level, nil
}

func (r *memStockLevelRepo) FindByWarehouse(_ context.Context, warehouseID uuid.UUID) ([]costing.StockLevel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []costing.StockLevel
	for _, level := range r.s.levels {
		if level.WarehouseID == warehouseID {
			out = append(out, level)
		}
	}
	return out, nil
}

func (r *memStockLevelRepo) GetOrCreateForUpdate(_ context.Context, warehouseID, productID uuid.UUID) (*costing.StockLevel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := levelKey(warehouseID, productID)
	level, ok := r.s.levels[key]
	if !ok {
		level = *costing.NewStockLevel(warehouseID, productID)
		r.s.levels[key] = level
	}
	return &level, nil
}

func (r *memStockLevelRepo) Save(_ context.Context, level *costing.StockLevel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.levels[levelKey(level.WarehouseID, level.ProductID)] = *level
	return nil
}

func newTestEngine() (*Engine, *memStore) {
	store := newMemStore()
	scope := NewNoOpTransactionScope(
		&memLotRepo{s: store},
		&memConsumptionRepo{s: store},
		&memStockLevelRepo{s: store},
	)
	return NewEngine(scope, "MXN", zap.NewNop()), store
}

func (s *memStore) cachedQuantity(warehouseID, productID uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level, ok := s.levels[levelKey(warehouseID, productID)]; ok {
		return level.Quantity
	}
	return decimal.Zero
}

func (s *memStore) lotByCode(t *testing.T, code string) costing.Lot {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lot := range s.lots {
		if lot.Code == code {
			return lot
		}
	}
	t.Fatalf("lot %s not found", code)
	return costing.Lot{}
}

// assertLedgerInvariants checks conservation and cache consistency over
// the whole store: per lot, initial - current = sum of its consumptions;
// per (warehouse, product), the cached quantity equals the active-lot sum.
func assertLedgerInvariants(t *testing.T, s *memStore) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, lot := range s.lots {
		consumed := decimal.Zero
		for _, c := range s.consumptions {
			if c.LotID == lot.ID {
				consumed = consumed.Add(c.Quantity)
			}
		}
		// Close-outs from entry reversals remove quantity without a
		// consumption record; those lots have no consumptions at all.
		if consumed.IsZero() {
			continue
		}
		assert.Truef(t, lot.InitialQuantity.Sub(lot.CurrentQuantity).Equal(consumed),
			"conservation violated for lot %s", lot.Code)
	}

	sums := make(map[string]decimal.Decimal)
	for _, lot := range s.lots {
		if lot.Status != costing.LotStatusActive {
			continue
		}
		key := levelKey(lot.WarehouseID, lot.ProductID)
		sums[key] = sums[key].Add(lot.CurrentQuantity)
	}
	for key, level := range s.levels {
		assert.Truef(t, level.Quantity.Equal(sums[key]),
			"cache inconsistent for %s: cached %s, lots %s", key, level.Quantity, sums[key])
	}
}

func entryInput(warehouseID, productID uuid.UUID, qty, unitCost int64, entryDate time.Time, sourceID string, line int) CreateLotInput {
	return CreateLotInput{
		ProductID:        productID,
		WarehouseID:      warehouseID,
		Quantity:         decimal.NewFromInt(qty),
		OriginalCurrency: "MXN",
		OriginalUnitCost: decimal.NewFromInt(unitCost),
		ExchangeRate:     decimal.NewFromInt(1),
		SourceType:       costing.SourcePurchase,
		SourceID:         sourceID,
		SourceLine:       line,
		EntryDate:        entryDate,
	}
}

func TestEngine_CreateLot(t *testing.T) {
	ctx := context.Background()
	warehouse, product := uuid.New(), uuid.New()

	t.Run("creates lot and increments cache", func(t *testing.T) {
		engine, store := newTestEngine()

		lot, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, date(2024, 1, 1), "PO-1", 1))
		require.NoError(t, err)

		assert.Equal(t, "PURCHASE-PO-1-1", lot.Code)
		assert.Equal(t, costing.LotStatusActive, lot.Status)
		assert.True(t, store.cachedQuantity(warehouse, product).Equal(decimal.NewFromInt(10)))
		assertLedgerInvariants(t, store)
	})

	t.Run("converts foreign currency cost to base", func(t *testing.T) {
		engine, _ := newTestEngine()

		in := entryInput(warehouse, product, 5, 25, date(2024, 2, 1), "PO-2", 1)
		in.OriginalCurrency = "USD"
		in.ExchangeRate = decimal.RequireFromString("17.25")

		lot, err := engine.CreateLot(ctx, in)
		require.NoError(t, err)
		// 25 * 17.25 = 431.25
		assert.True(t, lot.UnitCostBase.Equal(decimal.RequireFromString("431.25")))
	})

	t.Run("defaults exchange rate to one for base currency", func(t *testing.T) {
		engine, _ := newTestEngine()

		in := entryInput(warehouse, product, 5, 40, date(2024, 2, 1), "PO-3", 1)
		in.ExchangeRate = decimal.Zero

		lot, err := engine.CreateLot(ctx, in)
		require.NoError(t, err)
		assert.True(t, lot.ExchangeRate.Equal(decimal.NewFromInt(1)))
		assert.True(t, lot.UnitCostBase.Equal(decimal.NewFromInt(40)))
	})

	t.Run("rejects non-positive quantity without writes", func(t *testing.T) {
		engine, store := newTestEngine()

		_, err := engine.CreateLot(ctx, entryInput(warehouse, product, 0, 100, date(2024, 1, 1), "PO-4", 1))
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.True(t, store.cachedQuantity(warehouse, product).IsZero())
		assert.Empty(t, store.lots)
	})

	t.Run("rejects missing rate for foreign currency", func(t *testing.T) {
		engine, _ := newTestEngine()

		in := entryInput(warehouse, product, 5, 40, date(2024, 2, 1), "PO-5", 1)
		in.OriginalCurrency = "USD"
		in.ExchangeRate = decimal.Zero

		_, err := engine.CreateLot(ctx, in)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestEngine_ConsumeLots_FIFO(t *testing.T) {
	ctx := context.Background()
	warehouse, product := uuid.New(), uuid.New()

	t.Run("draws only from the oldest lot when it suffices", func(t *testing.T) {
		engine, store := newTestEngine()
		for i, d := range []time.Time{date(2024, 1, 1), date(2024, 1, 5), date(2024, 1, 9)} {
			_, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, d, "PO-1", i+1))
			require.NoError(t, err)
		}

		result, err := engine.ConsumeLots(ctx, ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(4),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sale_detail",
			ReferenceID:   "1",
		})
		require.NoError(t, err)

		require.Len(t, result.Consumptions, 1)
		assert.Equal(t, "PURCHASE-PO-1-1", result.Consumptions[0].LotCode)
		assertLedgerInvariants(t, store)
	})

	t.Run("equal entry dates break ties by insertion order", func(t *testing.T) {
		engine, store := newTestEngine()
		sameDay := date(2024, 3, 1)
		_, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, sameDay, "PO-7", 1))
		require.NoError(t, err)
		_, err = engine.CreateLot(ctx, entryInput(warehouse, product, 10, 110, sameDay, "PO-8", 1))
		require.NoError(t, err)

		result, err := engine.ConsumeLots(ctx, ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(3),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sale_detail",
			ReferenceID:   "2",
		})
		require.NoError(t, err)

		require.Len(t, result.Consumptions, 1)
		assert.Equal(t, "PURCHASE-PO-7-1", result.Consumptions[0].LotCode)
		assertLedgerInvariants(t, store)
	})

	t.Run("walks lots in order and accumulates cost", func(t *testing.T) {
		// Lot A qty 10 @ 100 on 2024-01-01, lot B qty 10 @ 120 on 2024-01-05;
		// consuming 15 draws 10 from A and 5 from B for a total cost of 1600.
		engine, store := newTestEngine()
		_, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, date(2024, 1, 1), "PO-A", 1))
		require.NoError(t, err)
		_, err = engine.CreateLot(ctx, entryInput(warehouse, product, 10, 120, date(2024, 1, 5), "PO-B", 1))
		require.NoError(t, err)

		result, err := engine.ConsumeLots(ctx, ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(15),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sale_detail",
			ReferenceID:   "42",
		})
		require.NoError(t, err)

		require.Len(t, result.Consumptions, 2)
		assert.Equal(t, "PURCHASE-PO-A-1", result.Consumptions[0].LotCode)
		assert.True(t, result.Consumptions[0].Quantity.Equal(decimal.NewFromInt(10)))
		assert.True(t, result.Consumptions[0].TotalCost.Equal(decimal.NewFromInt(1000)))
		assert.Equal(t, "PURCHASE-PO-B-1", result.Consumptions[1].LotCode)
		assert.True(t, result.Consumptions[1].Quantity.Equal(decimal.NewFromInt(5)))
		assert.True(t, result.Consumptions[1].TotalCost.Equal(decimal.NewFromInt(600)))
		assert.True(t, result.TotalCost.Equal(decimal.NewFromInt(1600)))

		lotA := store.lotByCode(t, "PURCHASE-PO-A-1")
		assert.Equal(t, costing.LotStatusExhausted, lotA.Status)
		assert.True(t, lotA.CurrentQuantity.IsZero())

		lotB := store.lotByCode(t, "PURCHASE-PO-B-1")
		assert.Equal(t, costing.LotStatusActive, lotB.Status)
		assert.True(t, lotB.CurrentQuantity.Equal(decimal.NewFromInt(5)))

		assert.True(t, store.cachedQuantity(warehouse, product).Equal(decimal.NewFromInt(5)))
		assertLedgerInvariants(t, store)
	})

	t.Run("fails with both figures when stock is insufficient", func(t *testing.T) {
		engine, store := newTestEngine()
		_, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, date(2024, 1, 1), "PO-C", 1))
		require.NoError(t, err)

		_, err = engine.ConsumeLots(ctx, ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(25),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sale_detail",
			ReferenceID:   "3",
		})
		require.Error(t, err)

		var insufficientErr *shared.InsufficientStockError
		require.ErrorAs(t, err, &insufficientErr)
		assert.True(t, insufficientErr.Requested.Equal(decimal.NewFromInt(25)))
		assert.True(t, insufficientErr.Available.Equal(decimal.NewFromInt(10)))

		// No partial consumption: lot and cache untouched.
		lot := store.lotByCode(t, "PURCHASE-PO-C-1")
		assert.True(t, lot.CurrentQuantity.Equal(decimal.NewFromInt(10)))
		assert.True(t, store.cachedQuantity(warehouse, product).Equal(decimal.NewFromInt(10)))
		assert.Empty(t, store.consumptions)
	})

	t.Run("rejects unknown consumption type", func(t *testing.T) {
		engine, _ := newTestEngine()

		_, err := engine.ConsumeLots(ctx, ConsumeInput{
			WarehouseID: warehouse,
			ProductID:   product,
			Quantity:    decimal.NewFromInt(1),
			Type:        costing.ConsumptionType("LOAN"),
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestEngine_ReverseEntry(t *testing.T) {
	ctx := context.Background()
	warehouse, product := uuid.New(), uuid.New()

	t.Run("unwinds an unconsumed lot", func(t *testing.T) {
		engine, store := newTestEngine()
		lot, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, date(2024, 1, 1), "PO-1", 1))
		require.NoError(t, err)
		require.True(t, store.cachedQuantity(warehouse, product).Equal(decimal.NewFromInt(10)))

		require.NoError(t, engine.ReverseEntry(ctx, lot.ID))

		reversed := store.lotByCode(t, lot.Code)
		assert.Equal(t, costing.LotStatusExhausted, reversed.Status)
		assert.True(t, reversed.CurrentQuantity.IsZero())
		assert.True(t, store.cachedQuantity(warehouse, product).IsZero())
		assertLedgerInvariants(t, store)
	})

	t.Run("refuses a lot that already has consumptions", func(t *testing.T) {
		engine, store := newTestEngine()
		lot, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, date(2024, 1, 1), "PO-2", 1))
		require.NoError(t, err)
		_, err = engine.ConsumeLots(ctx, ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(2),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sale_detail",
			ReferenceID:   "9",
		})
		require.NoError(t, err)

		err = engine.ReverseEntry(ctx, lot.ID)
		assert.ErrorIs(t, err, shared.ErrConflict)
		assertLedgerInvariants(t, store)
	})

	t.Run("fails with NotFound for unknown lot", func(t *testing.T) {
		engine, _ := newTestEngine()
		err := engine.ReverseEntry(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestEngine_ReverseConsumption(t *testing.T) {
	ctx := context.Background()
	warehouse, product := uuid.New(), uuid.New()

	t.Run("recreates one lot per original consumption", func(t *testing.T) {
		// Lot A has 5 units, lot B has 10; consuming 7 draws 5 from A and 2
		// from B. Reversing must create lots of 5 and 2 carrying each source
		// lot's cost fields and entry date, not the cancellation date.
		engine, store := newTestEngine()
		inA := entryInput(warehouse, product, 5, 100, date(2024, 1, 1), "PO-A", 1)
		inA.OriginalCurrency = "USD"
		inA.OriginalUnitCost = decimal.NewFromInt(5)
		inA.ExchangeRate = decimal.NewFromInt(20)
		_, err := engine.CreateLot(ctx, inA)
		require.NoError(t, err)
		_, err = engine.CreateLot(ctx, entryInput(warehouse, product, 10, 120, date(2024, 1, 5), "PO-B", 1))
		require.NoError(t, err)

		_, err = engine.ConsumeLots(ctx, ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(7),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sale_detail",
			ReferenceID:   "55",
		})
		require.NoError(t, err)
		require.True(t, store.cachedQuantity(warehouse, product).Equal(decimal.NewFromInt(8)))

		recreated, err := engine.ReverseConsumption(ctx, "sale_detail", "55")
		require.NoError(t, err)
		require.Len(t, recreated, 2)

		fromA, fromB := recreated[0], recreated[1]
		assert.True(t, fromA.InitialQuantity.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, "USD", fromA.OriginalCurrency)
		assert.True(t, fromA.OriginalUnitCost.Equal(decimal.NewFromInt(5)))
		assert.True(t, fromA.ExchangeRate.Equal(decimal.NewFromInt(20)))
		assert.True(t, fromA.UnitCostBase.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, date(2024, 1, 1), fromA.EntryDate)
		require.NotNil(t, fromA.ParentLotID)

		assert.True(t, fromB.InitialQuantity.Equal(decimal.NewFromInt(2)))
		assert.True(t, fromB.UnitCostBase.Equal(decimal.NewFromInt(120)))
		assert.Equal(t, date(2024, 1, 5), fromB.EntryDate)

		assert.True(t, store.cachedQuantity(warehouse, product).Equal(decimal.NewFromInt(15)))
		assertLedgerInvariants(t, store)
	})

	t.Run("recreated lots resume their place in FIFO order", func(t *testing.T) {
		engine, _ := newTestEngine()
		_, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, date(2024, 1, 1), "PO-C", 1))
		require.NoError(t, err)
		_, err = engine.CreateLot(ctx, entryInput(warehouse, product, 10, 150, date(2024, 6, 1), "PO-D", 1))
		require.NoError(t, err)

		_, err = engine.ConsumeLots(ctx, ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(10),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sale_detail",
			ReferenceID:   "60",
		})
		require.NoError(t, err)
		_, err = engine.ReverseConsumption(ctx, "sale_detail", "60")
		require.NoError(t, err)

		// The recreated January lot must be drawn before the June lot.
		result, err := engine.ConsumeLots(ctx, ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(4),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sale_detail",
			ReferenceID:   "61",
		})
		require.NoError(t, err)
		require.Len(t, result.Consumptions, 1)
		assert.True(t, result.Consumptions[0].UnitCost.Equal(decimal.NewFromInt(100)))
	})

	t.Run("a reference can only be reversed once", func(t *testing.T) {
		engine, store := newTestEngine()
		_, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, date(2024, 1, 1), "PO-E", 1))
		require.NoError(t, err)
		_, err = engine.ConsumeLots(ctx, ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(4),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sale_detail",
			ReferenceID:   "70",
		})
		require.NoError(t, err)

		_, err = engine.ReverseConsumption(ctx, "sale_detail", "70")
		require.NoError(t, err)
		require.True(t, store.cachedQuantity(warehouse, product).Equal(decimal.NewFromInt(10)))

		// The cancellation lots themselves record that the reference was
		// reversed; replaying it must not create stock out of thin air.
		_, err = engine.ReverseConsumption(ctx, "sale_detail", "70")
		assert.ErrorIs(t, err, shared.ErrConflict)
		assert.True(t, store.cachedQuantity(warehouse, product).Equal(decimal.NewFromInt(10)))
		assertLedgerInvariants(t, store)
	})

	t.Run("reversing a reference with no consumptions creates nothing", func(t *testing.T) {
		engine, store := newTestEngine()
		recreated, err := engine.ReverseConsumption(ctx, "sale_detail", "nope")
		require.NoError(t, err)
		assert.Empty(t, recreated)
		assert.Empty(t, store.lots)
	})
}

func TestEngine_MoveLot(t *testing.T) {
	ctx := context.Background()
	source, dest, product := uuid.New(), uuid.New(), uuid.New()

	t.Run("relocates quantity between warehouse caches", func(t *testing.T) {
		engine, store := newTestEngine()
		lot, err := engine.CreateLot(ctx, entryInput(source, product, 10, 100, date(2024, 1, 1), "PO-1", 1))
		require.NoError(t, err)

		require.NoError(t, engine.MoveLot(ctx, lot.ID, dest))

		moved := store.lotByCode(t, lot.Code)
		assert.Equal(t, dest, moved.WarehouseID)
		assert.True(t, moved.CurrentQuantity.Equal(decimal.NewFromInt(10)))
		assert.True(t, moved.UnitCostBase.Equal(decimal.NewFromInt(100)))
		assert.True(t, store.cachedQuantity(source, product).IsZero())
		assert.True(t, store.cachedQuantity(dest, product).Equal(decimal.NewFromInt(10)))
		assertLedgerInvariants(t, store)
	})

	t.Run("refuses to move an exhausted lot", func(t *testing.T) {
		engine, _ := newTestEngine()
		lot, err := engine.CreateLot(ctx, entryInput(source, product, 5, 100, date(2024, 1, 1), "PO-2", 1))
		require.NoError(t, err)
		_, err = engine.ConsumeLots(ctx, ConsumeInput{
			WarehouseID:   source,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(5),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sale_detail",
			ReferenceID:   "5",
		})
		require.NoError(t, err)

		err = engine.MoveLot(ctx, lot.ID, dest)
		assert.ErrorIs(t, err, shared.ErrConflict)
	})
}

func TestEngine_Reads(t *testing.T) {
	ctx := context.Background()
	warehouse, product := uuid.New(), uuid.New()

	t.Run("StockFromLots sums active lots only", func(t *testing.T) {
		engine, _ := newTestEngine()
		lot, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, date(2024, 1, 1), "PO-1", 1))
		require.NoError(t, err)
		_, err = engine.CreateLot(ctx, entryInput(warehouse, product, 4, 100, date(2024, 1, 2), "PO-1", 2))
		require.NoError(t, err)
		require.NoError(t, engine.ReverseEntry(ctx, lot.ID))

		stock, err := engine.StockFromLots(ctx, warehouse, product)
		require.NoError(t, err)
		assert.True(t, stock.Equal(decimal.NewFromInt(4)))

		cached, err := engine.CachedStock(ctx, warehouse, product)
		require.NoError(t, err)
		assert.True(t, cached.Equal(stock))
	})

	t.Run("CachedStock returns zero for untouched pairs", func(t *testing.T) {
		engine, _ := newTestEngine()
		cached, err := engine.CachedStock(ctx, uuid.New(), uuid.New())
		require.NoError(t, err)
		assert.True(t, cached.IsZero())
	})

	t.Run("LastKnownCost returns the latest lot's cost fields", func(t *testing.T) {
		engine, _ := newTestEngine()
		_, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, date(2024, 1, 1), "PO-1", 1))
		require.NoError(t, err)
		later := entryInput(warehouse, product, 10, 80, date(2023, 12, 1), "PO-2", 1)
		later.OriginalCurrency = "USD"
		later.ExchangeRate = decimal.NewFromInt(17)
		_, err = engine.CreateLot(ctx, later)
		require.NoError(t, err)

		// Most recently created, not most recent entry date.
		info, err := engine.LastKnownCost(ctx, product)
		require.NoError(t, err)
		assert.Equal(t, "USD", info.Currency)
		assert.True(t, info.UnitCost.Equal(decimal.NewFromInt(80)))
		assert.True(t, info.UnitCostBase.Equal(decimal.NewFromInt(1360)))
	})

	t.Run("LastKnownCost fails for a product with no lots", func(t *testing.T) {
		engine, _ := newTestEngine()
		_, err := engine.LastKnownCost(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("LotKardex is idempotent", func(t *testing.T) {
		engine, _ := newTestEngine()
		lot, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, date(2024, 1, 1), "PO-1", 1))
		require.NoError(t, err)
		_, err = engine.ConsumeLots(ctx, ConsumeInput{
			WarehouseID:   warehouse,
			ProductID:     product,
			Quantity:      decimal.NewFromInt(3),
			Type:          costing.ConsumptionSale,
			ReferenceType: "sale_detail",
			ReferenceID:   "1",
		})
		require.NoError(t, err)

		first, err := engine.LotKardex(ctx, lot.ID)
		require.NoError(t, err)
		second, err := engine.LotKardex(ctx, lot.ID)
		require.NoError(t, err)

		assert.Equal(t, first.Summary, second.Summary)
		assert.Equal(t, len(first.Consumptions), len(second.Consumptions))
		assert.True(t, first.Summary.ConsumedQuantity.Equal(decimal.NewFromInt(3)))
		assert.True(t, first.Summary.RemainingQuantity.Equal(decimal.NewFromInt(7)))
	})

	t.Run("Valuation aggregates active lots per product", func(t *testing.T) {
		engine, _ := newTestEngine()
		otherProduct := uuid.New()
		_, err := engine.CreateLot(ctx, entryInput(warehouse, product, 10, 100, date(2024, 1, 1), "PO-1", 1))
		require.NoError(t, err)
		_, err = engine.CreateLot(ctx, entryInput(warehouse, product, 5, 120, date(2024, 1, 5), "PO-1", 2))
		require.NoError(t, err)
		_, err = engine.CreateLot(ctx, entryInput(warehouse, otherProduct, 2, 50, date(2024, 1, 3), "PO-2", 1))
		require.NoError(t, err)

		entries, err := engine.Valuation(ctx, warehouse)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		byProduct := make(map[uuid.UUID]ValuationEntry)
		for _, e := range entries {
			byProduct[e.ProductID] = e
		}
		// 10*100 + 5*120 = 1600
		assert.True(t, byProduct[product].Quantity.Equal(decimal.NewFromInt(15)))
		assert.True(t, byProduct[product].TotalValue.Equal(decimal.NewFromInt(1600)))
		assert.True(t, byProduct[otherProduct].TotalValue.Equal(decimal.NewFromInt(100)))
	})
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
