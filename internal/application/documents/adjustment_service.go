package documents

import (
	"context"
	"errors"
	"strings"
	"time"

	appcosting "github.com/stockledger/backend/internal/application/costing"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/currency"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AdjustmentService posts and cancels stock adjustments. Positive lines
// create lots, negative lines consume FIFO. A positive line without an
// explicit cost falls back to the product's last known cost; a product
// that never had a lot cannot be adjusted in without one.
type AdjustmentService struct {
	engine *appcosting.Engine
	rates  currency.RateProvider
	guard  idempotencyGuard
	logger *zap.Logger
}

// NewAdjustmentService creates an AdjustmentService. The idempotency
// store may be nil to disable duplicate detection.
func NewAdjustmentService(engine *appcosting.Engine, rates currency.RateProvider, store shared.IdempotencyStore, logger *zap.Logger) *AdjustmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdjustmentService{
		engine: engine,
		rates:  rates,
		guard:  newIdempotencyGuard(store),
		logger: logger,
	}
}

// SetIdempotencyConfig overrides the guard's TTL and enablement
func (s *AdjustmentService) SetIdempotencyConfig(cfg shared.IdempotencyConfig) {
	s.guard.setConfig(cfg)
}

// PostAdjustment applies every line atomically
func (s *AdjustmentService) PostAdjustment(ctx context.Context, req PostAdjustmentRequest) (*PostAdjustmentResult, error) {
	if req.AdjustmentID == "" {
		return nil, shared.NewValidationError("adjustmentId", "is required")
	}
	if len(req.Lines) == 0 {
		return nil, shared.NewValidationError("lines", "at least one line is required")
	}
	for _, line := range req.Lines {
		if line.Quantity.IsZero() {
			return nil, shared.NewValidationError("quantity", "must not be zero")
		}
	}
	key := "adjustment:post:" + req.AdjustmentID
	if err := s.guard.check(ctx, key); err != nil {
		return nil, err
	}

	entryDate := req.EntryDate
	if entryDate.IsZero() {
		entryDate = time.Now().UTC()
	}

	result := &PostAdjustmentResult{}
	err := s.engine.InTx(ctx, func(tx *appcosting.Tx) error {
		for i, line := range req.Lines {
			if line.Quantity.IsNegative() {
				consumed, err := tx.ConsumeLots(ctx, appcosting.ConsumeInput{
					WarehouseID:   line.WarehouseID,
					ProductID:     line.ProductID,
					Quantity:      line.Quantity.Neg(),
					Type:          costing.ConsumptionAdjustment,
					ReferenceType: RefAdjustment,
					ReferenceID:   req.AdjustmentID,
				})
				if err != nil {
					return err
				}
				result.Consumptions = append(result.Consumptions, consumed.Consumptions...)
				continue
			}

			in, err := s.entryInput(ctx, tx, req.AdjustmentID, i+1, entryDate, line)
			if err != nil {
				return err
			}
			lot, err := tx.CreateLot(ctx, in)
			if err != nil {
				return err
			}
			result.CreatedLots = append(result.CreatedLots, *lot)
		}
		return nil
	})
	if err != nil {
		s.guard.release(ctx, key)
		return nil, err
	}

	s.logger.Info("adjustment posted",
		zap.String("adjustment_id", req.AdjustmentID),
		zap.Int("lots_created", len(result.CreatedLots)),
		zap.Int("consumptions", len(result.Consumptions)),
	)
	return result, nil
}

// entryInput builds the lot input for a positive adjustment line,
// resolving the cost basis from the line, the product's last known cost,
// or failing with a conflict when neither exists.
func (s *AdjustmentService) entryInput(ctx context.Context, tx *appcosting.Tx, adjustmentID string, line int, entryDate time.Time, l AdjustmentLine) (appcosting.CreateLotInput, error) {
	in := appcosting.CreateLotInput{
		ProductID:   l.ProductID,
		WarehouseID: l.WarehouseID,
		Quantity:    l.Quantity,
		SourceType:  costing.SourceAdjustment,
		SourceID:    adjustmentID,
		SourceLine:  line,
		EntryDate:   entryDate,
	}

	if l.UnitCost.IsPositive() {
		code := strings.ToUpper(l.Currency)
		if code == "" {
			code = s.engine.BaseCurrency()
		}
		rate := l.ExchangeRate
		if code != s.engine.BaseCurrency() && !rate.IsPositive() {
			resolved, err := s.rates.Rate(ctx, code, entryDate)
			if err != nil {
				return appcosting.CreateLotInput{}, err
			}
			rate = resolved
		}
		in.OriginalCurrency = code
		in.OriginalUnitCost = l.UnitCost
		in.ExchangeRate = rate
		return in, nil
	}

	last, err := tx.LastKnownCost(ctx, l.ProductID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return appcosting.CreateLotInput{}, shared.NewConflictError("product has no cost history, an explicit unit cost is required")
		}
		return appcosting.CreateLotInput{}, err
	}
	base := last.UnitCostBase
	in.OriginalCurrency = last.Currency
	in.OriginalUnitCost = last.UnitCost
	in.ExchangeRate = last.ExchangeRate
	in.UnitCostBase = &base
	return in, nil
}

// CancelAdjustment unwinds the adjustment: the lots it created are
// reversed, which fails if any was consumed since, and its consumptions
// are recreated as new lots.
func (s *AdjustmentService) CancelAdjustment(ctx context.Context, adjustmentID string) error {
	if adjustmentID == "" {
		return shared.NewValidationError("adjustmentId", "is required")
	}
	key := "adjustment:cancel:" + adjustmentID
	if err := s.guard.check(ctx, key); err != nil {
		return err
	}

	err := s.engine.InTx(ctx, func(tx *appcosting.Tx) error {
		if err := tx.ReverseEntriesBySource(ctx, costing.SourceAdjustment, adjustmentID); err != nil {
			return err
		}
		_, err := tx.ReverseConsumption(ctx, RefAdjustment, adjustmentID)
		return err
	})
	if err != nil {
		s.guard.release(ctx, key)
		return err
	}

	s.logger.Info("adjustment cancelled", zap.String("adjustment_id", adjustmentID))
	return nil
}
