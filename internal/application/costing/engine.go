package costing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Engine is the lot-based FIFO costing engine. It is the only writer of
// lots, consumptions and stock levels; document services decide that a
// quantity enters or leaves a warehouse, the engine decides which lots
// are touched and what it costs.
//
// Every mutating operation runs inside one atomic transaction that locks
// the candidate lot rows and the stock level rows it will update before
// computing deltas. Callers grouping several stock effects into one
// logical movement use InTx and the Tx methods directly.
type Engine struct {
	scope        TransactionScope
	baseCurrency string
	logger       *zap.Logger
}

// NewEngine creates a costing engine. The base currency is configuration,
// not an assumption baked into arithmetic.
func NewEngine(scope TransactionScope, baseCurrency string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		scope:        scope,
		baseCurrency: baseCurrency,
		logger:       logger,
	}
}

// BaseCurrency returns the configured base currency code
func (e *Engine) BaseCurrency() string {
	return e.baseCurrency
}

// Tx is a transaction-bound view of the engine. All operations called on
// one Tx share a single database transaction; nested calls (consumption
// updating the stock level, reversal creating lots) reuse it instead of
// opening their own.
type Tx struct {
	repos  TransactionalRepositories
	engine *Engine
}

// InTx executes fn within one atomic transaction. Any error rolls back
// every lot, consumption and stock level write made through the Tx.
func (e *Engine) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	return e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return fn(&Tx{repos: repos, engine: e})
	})
}

// CreateLot brings a new batch of stock into a warehouse in its own transaction
func (e *Engine) CreateLot(ctx context.Context, in CreateLotInput) (*costing.Lot, error) {
	var lot *costing.Lot
	err := e.InTx(ctx, func(tx *Tx) error {
		var txErr error
		lot, txErr = tx.CreateLot(ctx, in)
		return txErr
	})
	return lot, err
}

// ConsumeLots draws stock FIFO from a (warehouse, product) pair in its own transaction
func (e *Engine) ConsumeLots(ctx context.Context, in ConsumeInput) (*ConsumeResult, error) {
	var result *ConsumeResult
	err := e.InTx(ctx, func(tx *Tx) error {
		var txErr error
		result, txErr = tx.ConsumeLots(ctx, in)
		return txErr
	})
	return result, err
}

// ReverseEntry unwinds an unconsumed lot in its own transaction
func (e *Engine) ReverseEntry(ctx context.Context, lotID uuid.UUID) error {
	return e.InTx(ctx, func(tx *Tx) error {
		return tx.ReverseEntry(ctx, lotID)
	})
}

// ReverseConsumption recreates the lots equivalent to a document line's
// consumptions, in its own transaction.
func (e *Engine) ReverseConsumption(ctx context.Context, referenceType, referenceID string) ([]costing.Lot, error) {
	var lots []costing.Lot
	err := e.InTx(ctx, func(tx *Tx) error {
		var txErr error
		lots, txErr = tx.ReverseConsumption(ctx, referenceType, referenceID)
		return txErr
	})
	return lots, err
}

// MoveLot relocates a whole lot to another warehouse in its own transaction
func (e *Engine) MoveLot(ctx context.Context, lotID, destinationWarehouseID uuid.UUID) error {
	return e.InTx(ctx, func(tx *Tx) error {
		return tx.MoveLot(ctx, lotID, destinationWarehouseID)
	})
}

// CreateLot validates the input, freezes the cost basis and inserts a new
// ACTIVE lot, then increments the (warehouse, product) stock level by the
// lot quantity. No consumption record is created for an entry.
func (t *Tx) CreateLot(ctx context.Context, in CreateLotInput) (*costing.Lot, error) {
	if !in.Quantity.IsPositive() {
		return nil, shared.NewValidationError("quantity", "must be greater than zero")
	}

	rate := in.ExchangeRate
	if !rate.IsPositive() && in.OriginalCurrency == t.engine.baseCurrency {
		rate = decimal.NewFromInt(1)
	}

	lot, err := costing.NewLot(costing.LotSpec{
		Code:             costing.LotCode(in.SourceType, in.SourceID, in.SourceLine, time.Now()),
		ProductID:        in.ProductID,
		WarehouseID:      in.WarehouseID,
		Quantity:         in.Quantity,
		OriginalCurrency: in.OriginalCurrency,
		OriginalUnitCost: in.OriginalUnitCost,
		ExchangeRate:     rate,
		UnitCostBase:     in.UnitCostBase,
		SourceType:       in.SourceType,
		SourceID:         in.SourceID,
		ParentLotID:      in.ParentLotID,
		EntryDate:        in.EntryDate,
	})
	if err != nil {
		return nil, err
	}

	if err := t.repos.Lots().Create(ctx, lot); err != nil {
		return nil, fmt.Errorf("failed to create lot: %w", err)
	}

	if err := t.applyStockDelta(ctx, lot.WarehouseID, lot.ProductID, lot.InitialQuantity); err != nil {
		return nil, err
	}

	t.engine.logger.Debug("lot created",
		zap.String("lot_code", lot.Code),
		zap.String("quantity", lot.InitialQuantity.String()),
		zap.String("unit_cost_base", lot.UnitCostBase.String()),
	)
	return lot, nil
}

// ConsumeLots walks the pair's active lots in strict FIFO order (entry
// date ascending, insertion sequence as tie-break) and draws until the
// requested quantity is covered. If the aggregate available quantity is
// short, it fails with InsufficientStockError before any write; partial
// consumption is never committed. The stock level is decremented once,
// after all lots are processed.
func (t *Tx) ConsumeLots(ctx context.Context, in ConsumeInput) (*ConsumeResult, error) {
	if !in.Quantity.IsPositive() {
		return nil, shared.NewValidationError("quantity", "must be greater than zero")
	}
	if !in.Type.IsValid() {
		return nil, shared.NewValidationError("consumptionType", fmt.Sprintf("unknown consumption type %q", in.Type))
	}

	lots, err := t.repos.Lots().FindActiveForUpdate(ctx, in.WarehouseID, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate lots: %w", err)
	}

	available := decimal.Zero
	for _, lot := range lots {
		available = available.Add(lot.CurrentQuantity)
	}
	if available.LessThan(in.Quantity) {
		return nil, &shared.InsufficientStockError{
			Requested: in.Quantity,
			Available: available,
		}
	}

	result := &ConsumeResult{TotalCost: decimal.Zero}
	stillNeeded := in.Quantity
	for i := range lots {
		if stillNeeded.IsZero() {
			break
		}
		lot := &lots[i]

		drawn, err := lot.Consume(stillNeeded)
		if err != nil {
			return nil, err
		}

		consumption := costing.NewConsumption(lot, in.Type, in.ReferenceType, in.ReferenceID, drawn)
		if err := t.repos.Consumptions().Create(ctx, consumption); err != nil {
			return nil, fmt.Errorf("failed to record consumption: %w", err)
		}
		if err := t.repos.Lots().Save(ctx, lot); err != nil {
			return nil, fmt.Errorf("failed to update lot %s: %w", lot.Code, err)
		}

		result.Consumptions = append(result.Consumptions, *consumption)
		result.TotalCost = result.TotalCost.Add(consumption.TotalCost)
		stillNeeded = stillNeeded.Sub(drawn)
	}

	if err := t.applyStockDelta(ctx, in.WarehouseID, in.ProductID, in.Quantity.Neg()); err != nil {
		return nil, err
	}

	t.engine.logger.Debug("lots consumed",
		zap.String("warehouse_id", in.WarehouseID.String()),
		zap.String("product_id", in.ProductID.String()),
		zap.String("quantity", in.Quantity.String()),
		zap.String("total_cost", result.TotalCost.String()),
		zap.Int("lots_touched", len(result.Consumptions)),
	)
	return result, nil
}

// ReverseEntry unwinds a lot that has zero consumptions: remaining
// quantity drops to zero, the lot is exhausted and the stock level is
// decremented, as if the entry never happened. The consumption check and
// the mutation share this transaction, so a concurrent sale cannot slip
// in between them.
func (t *Tx) ReverseEntry(ctx context.Context, lotID uuid.UUID) error {
	lot, err := t.repos.Lots().FindByIDForUpdate(ctx, lotID)
	if err != nil {
		return err
	}

	count, err := t.repos.Consumptions().CountByLot(ctx, lot.ID)
	if err != nil {
		return fmt.Errorf("failed to count consumptions for lot %s: %w", lot.Code, err)
	}
	if count > 0 {
		return shared.NewConflictError(fmt.Sprintf("lot %s already consumed, cannot cancel", lot.Code))
	}
	if !lot.IsActive() {
		return shared.NewConflictError(fmt.Sprintf("lot %s is already exhausted", lot.Code))
	}

	removed := lot.CloseOut()
	if err := t.repos.Lots().Save(ctx, lot); err != nil {
		return fmt.Errorf("failed to close out lot %s: %w", lot.Code, err)
	}

	return t.applyStockDelta(ctx, lot.WarehouseID, lot.ProductID, removed.Neg())
}

// ReverseConsumption undoes the stock effect of a cancelled document line.
// The original lots are not incremented; instead one new lot is created
// per original consumption record, carrying that record's captured
// currency, unit cost and exchange rate and the original lot's entry date
// so future FIFO draws and valuation stay chronologically stable.
func (t *Tx) ReverseConsumption(ctx context.Context, referenceType, referenceID string) ([]costing.Lot, error) {
	cancelSourceID := "CXL-" + referenceID

	// The recreated lots are the durable record that this reference was
	// already reversed. The idempotency store alone cannot carry that
	// fact: its keys expire and it may not be configured at all.
	reversed, err := t.repos.Lots().CountBySourceID(ctx, cancelSourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for prior reversal of %s/%s: %w", referenceType, referenceID, err)
	}
	if reversed > 0 {
		return nil, shared.NewConflictError(fmt.Sprintf("consumptions for %s/%s were already reversed", referenceType, referenceID))
	}

	consumptions, err := t.repos.Consumptions().FindByReference(ctx, referenceType, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load consumptions for %s/%s: %w", referenceType, referenceID, err)
	}

	created := make([]costing.Lot, 0, len(consumptions))
	for i, c := range consumptions {
		origLot, err := t.repos.Lots().FindByID(ctx, c.LotID)
		if err != nil {
			return nil, fmt.Errorf("failed to load lot for consumption %s: %w", c.ID, err)
		}

		baseCost := c.UnitCost
		lot, err := t.CreateLot(ctx, CreateLotInput{
			ProductID:        origLot.ProductID,
			WarehouseID:      origLot.WarehouseID,
			Quantity:         c.Quantity,
			OriginalCurrency: origLot.OriginalCurrency,
			OriginalUnitCost: origLot.OriginalUnitCost,
			ExchangeRate:     origLot.ExchangeRate,
			UnitCostBase:     &baseCost,
			SourceType:       origLot.SourceType,
			SourceID:         cancelSourceID,
			SourceLine:       i + 1,
			ParentLotID:      &origLot.ID,
			EntryDate:        origLot.EntryDate,
		})
		if err != nil {
			return nil, err
		}
		created = append(created, *lot)
	}
	return created, nil
}

// ReverseEntriesBySource unwinds every lot a source document created.
// Fails with a conflict if any of them has already been consumed.
func (t *Tx) ReverseEntriesBySource(ctx context.Context, sourceType costing.SourceType, sourceID string) error {
	lots, err := t.repos.Lots().FindBySource(ctx, sourceType, sourceID)
	if err != nil {
		return fmt.Errorf("failed to load lots for %s/%s: %w", sourceType, sourceID, err)
	}
	for _, lot := range lots {
		if err := t.ReverseEntry(ctx, lot.ID); err != nil {
			return err
		}
	}
	return nil
}

// DrawDownLot consumes one specific lot's full remaining quantity, used
// when a document cancellation must remove exactly the lots it created
// rather than whatever FIFO would pick. Fails with a conflict if the lot
// was already partially drawn by someone else.
func (t *Tx) DrawDownLot(ctx context.Context, lotID uuid.UUID, ctype costing.ConsumptionType, referenceType, referenceID string) (*costing.Consumption, error) {
	lot, err := t.repos.Lots().FindByIDForUpdate(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if !lot.IsActive() {
		return nil, shared.NewConflictError(fmt.Sprintf("lot %s is already exhausted", lot.Code))
	}
	if !lot.CurrentQuantity.Equal(lot.InitialQuantity) {
		return nil, shared.NewConflictError(fmt.Sprintf("lot %s was partially consumed, cannot draw it down whole", lot.Code))
	}

	drawn, err := lot.Consume(lot.CurrentQuantity)
	if err != nil {
		return nil, err
	}
	consumption := costing.NewConsumption(lot, ctype, referenceType, referenceID, drawn)
	if err := t.repos.Consumptions().Create(ctx, consumption); err != nil {
		return nil, fmt.Errorf("failed to record consumption: %w", err)
	}
	if err := t.repos.Lots().Save(ctx, lot); err != nil {
		return nil, fmt.Errorf("failed to update lot %s: %w", lot.Code, err)
	}
	if err := t.applyStockDelta(ctx, lot.WarehouseID, lot.ProductID, drawn.Neg()); err != nil {
		return nil, err
	}
	return consumption, nil
}

// LotsBySource lists the lots a source document created
func (t *Tx) LotsBySource(ctx context.Context, sourceType costing.SourceType, sourceID string) ([]costing.Lot, error) {
	return t.repos.Lots().FindBySource(ctx, sourceType, sourceID)
}

// Lot loads a lot inside the current transaction
func (t *Tx) Lot(ctx context.Context, id uuid.UUID) (*costing.Lot, error) {
	return t.repos.Lots().FindByID(ctx, id)
}

// LastKnownCost returns the cost fields of the product's most recently
// created lot, read inside the current transaction.
func (t *Tx) LastKnownCost(ctx context.Context, productID uuid.UUID) (*CostInfo, error) {
	lot, err := t.repos.Lots().FindLatestByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &CostInfo{
		Currency:     lot.OriginalCurrency,
		UnitCost:     lot.OriginalUnitCost,
		ExchangeRate: lot.ExchangeRate,
		UnitCostBase: lot.UnitCostBase,
		EntryDate:    lot.EntryDate,
	}, nil
}

// MoveLot relocates a whole lot: the source warehouse's stock level drops
// by the lot's remaining quantity, the lot's warehouse changes, and the
// destination's stock level rises by the same amount. Identity, cost
// basis and consumption history travel unchanged.
func (t *Tx) MoveLot(ctx context.Context, lotID, destinationWarehouseID uuid.UUID) error {
	lot, err := t.repos.Lots().FindByIDForUpdate(ctx, lotID)
	if err != nil {
		return err
	}
	if !lot.IsActive() {
		return shared.NewConflictError(fmt.Sprintf("lot %s is exhausted and cannot be moved", lot.Code))
	}

	quantity := lot.CurrentQuantity
	sourceWarehouseID := lot.WarehouseID

	if err := lot.MoveTo(destinationWarehouseID); err != nil {
		return err
	}
	if err := t.repos.Lots().Save(ctx, lot); err != nil {
		return fmt.Errorf("failed to relocate lot %s: %w", lot.Code, err)
	}

	if err := t.applyStockDelta(ctx, sourceWarehouseID, lot.ProductID, quantity.Neg()); err != nil {
		return err
	}
	return t.applyStockDelta(ctx, destinationWarehouseID, lot.ProductID, quantity)
}

// applyStockDelta locks the (warehouse, product) stock level row, creating
// it on the pair's first movement, and applies the delta.
func (t *Tx) applyStockDelta(ctx context.Context, warehouseID, productID uuid.UUID, delta decimal.Decimal) error {
	level, err := t.repos.StockLevels().GetOrCreateForUpdate(ctx, warehouseID, productID)
	if err != nil {
		return fmt.Errorf("failed to lock stock level: %w", err)
	}
	if err := level.Apply(delta); err != nil {
		return err
	}
	if err := t.repos.StockLevels().Save(ctx, level); err != nil {
		return fmt.Errorf("failed to update stock level: %w", err)
	}
	return nil
}

// StockFromLots returns the authoritative stock level: the sum of active
// lots' remaining quantity. Used wherever correctness matters more than
// latency, e.g. pre-consumption validation.
func (e *Engine) StockFromLots(ctx context.Context, warehouseID, productID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var txErr error
		total, txErr = repos.Lots().SumActiveQuantity(ctx, warehouseID, productID)
		return txErr
	})
	return total, err
}

// CachedStock returns the denormalized stock level for a pair. Zero is
// returned for pairs that never had a stock movement.
func (e *Engine) CachedStock(ctx context.Context, warehouseID, productID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		level, txErr := repos.StockLevels().FindByWarehouseAndProduct(ctx, warehouseID, productID)
		if txErr != nil {
			if errors.Is(txErr, shared.ErrNotFound) {
				return nil
			}
			return txErr
		}
		total = level.Quantity
		return nil
	})
	return total, err
}

// WarehouseStockLevels lists the cached stock levels for a warehouse
func (e *Engine) WarehouseStockLevels(ctx context.Context, warehouseID uuid.UUID) ([]costing.StockLevel, error) {
	var levels []costing.StockLevel
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var txErr error
		levels, txErr = repos.StockLevels().FindByWarehouse(ctx, warehouseID)
		return txErr
	})
	return levels, err
}

// LastKnownCost returns the cost fields of the product's most recently
// created lot, for defaulting entry costs when none was supplied.
// Returns a NotFound error if the product has never had a lot.
func (e *Engine) LastKnownCost(ctx context.Context, productID uuid.UUID) (*CostInfo, error) {
	var info *CostInfo
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		lot, txErr := repos.Lots().FindLatestByProduct(ctx, productID)
		if txErr != nil {
			return txErr
		}
		info = &CostInfo{
			Currency:     lot.OriginalCurrency,
			UnitCost:     lot.OriginalUnitCost,
			ExchangeRate: lot.ExchangeRate,
			UnitCostBase: lot.UnitCostBase,
			EntryDate:    lot.EntryDate,
		}
		return nil
	})
	return info, err
}

// LotKardex returns a lot with its ordered consumption history and a
// computed summary. Purely derived; repeated calls without intervening
// mutations return identical results.
func (e *Engine) LotKardex(ctx context.Context, lotID uuid.UUID) (*costing.LotKardex, error) {
	var kardex *costing.LotKardex
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		lot, txErr := repos.Lots().FindByID(ctx, lotID)
		if txErr != nil {
			return txErr
		}
		consumptions, txErr := repos.Consumptions().FindByLot(ctx, lot.ID)
		if txErr != nil {
			return txErr
		}
		k := costing.BuildKardex(lot, consumptions)
		kardex = &k
		return nil
	})
	return kardex, err
}

// Valuation aggregates a warehouse's active lots into per-product
// quantity and base-currency value lines.
func (e *Engine) Valuation(ctx context.Context, warehouseID uuid.UUID) ([]ValuationEntry, error) {
	var entries []ValuationEntry
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		lots, txErr := repos.Lots().FindActiveByWarehouse(ctx, warehouseID)
		if txErr != nil {
			return txErr
		}

		index := make(map[uuid.UUID]int)
		for _, lot := range lots {
			i, ok := index[lot.ProductID]
			if !ok {
				index[lot.ProductID] = len(entries)
				entries = append(entries, ValuationEntry{
					WarehouseID: warehouseID,
					ProductID:   lot.ProductID,
					Quantity:    lot.CurrentQuantity,
					TotalValue:  lot.RemainingValue(),
				})
				continue
			}
			entries[i].Quantity = entries[i].Quantity.Add(lot.CurrentQuantity)
			entries[i].TotalValue = entries[i].TotalValue.Add(lot.RemainingValue())
		}
		return nil
	})
	return entries, err
}
