package documents

import (
	"context"

	"github.com/shopspring/decimal"
	appcosting "github.com/stockledger/backend/internal/application/costing"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// TransferService posts and cancels warehouse transfers. A posting
// consumes stock FIFO at the source and recreates it as new lots at the
// destination, one lot per consumed source lot, so each parcel keeps its
// frozen cost basis and entry date across the move.
type TransferService struct {
	engine *appcosting.Engine
	guard  idempotencyGuard
	logger *zap.Logger
}

// NewTransferService creates a TransferService. The idempotency store
// may be nil to disable duplicate detection.
func NewTransferService(engine *appcosting.Engine, store shared.IdempotencyStore, logger *zap.Logger) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{
		engine: engine,
		guard:  newIdempotencyGuard(store),
		logger: logger,
	}
}

// SetIdempotencyConfig overrides the guard's TTL and enablement
func (s *TransferService) SetIdempotencyConfig(cfg shared.IdempotencyConfig) {
	s.guard.setConfig(cfg)
}

// PostTransfer moves stock between two warehouses in one atomic
// transaction. Insufficient stock at the source fails the whole transfer.
func (s *TransferService) PostTransfer(ctx context.Context, req PostTransferRequest) (*PostTransferResult, error) {
	if req.TransferID == "" {
		return nil, shared.NewValidationError("transferId", "is required")
	}
	if len(req.Lines) == 0 {
		return nil, shared.NewValidationError("lines", "at least one line is required")
	}
	if req.SourceWarehouseID == req.DestinationWarehouseID {
		return nil, shared.NewValidationError("destinationWarehouseId", "must differ from the source warehouse")
	}
	key := "transfer:post:" + req.TransferID
	if err := s.guard.check(ctx, key); err != nil {
		return nil, err
	}

	result := &PostTransferResult{TotalCost: decimal.Zero}
	err := s.engine.InTx(ctx, func(tx *appcosting.Tx) error {
		lotLine := 0
		for _, line := range req.Lines {
			consumed, err := tx.ConsumeLots(ctx, appcosting.ConsumeInput{
				WarehouseID:   req.SourceWarehouseID,
				ProductID:     line.ProductID,
				Quantity:      line.Quantity,
				Type:          costing.ConsumptionTransfer,
				ReferenceType: RefTransfer,
				ReferenceID:   req.TransferID,
			})
			if err != nil {
				return err
			}

			for _, c := range consumed.Consumptions {
				origLot, err := tx.Lot(ctx, c.LotID)
				if err != nil {
					return err
				}
				lotLine++
				baseCost := c.UnitCost
				lot, err := tx.CreateLot(ctx, appcosting.CreateLotInput{
					ProductID:        line.ProductID,
					WarehouseID:      req.DestinationWarehouseID,
					Quantity:         c.Quantity,
					OriginalCurrency: origLot.OriginalCurrency,
					OriginalUnitCost: origLot.OriginalUnitCost,
					ExchangeRate:     origLot.ExchangeRate,
					UnitCostBase:     &baseCost,
					SourceType:       costing.SourceTransfer,
					SourceID:         req.TransferID,
					SourceLine:       lotLine,
					ParentLotID:      &origLot.ID,
					EntryDate:        origLot.EntryDate,
				})
				if err != nil {
					return err
				}
				result.CreatedLots = append(result.CreatedLots, *lot)
			}
			result.TotalCost = result.TotalCost.Add(consumed.TotalCost)
		}
		return nil
	})
	if err != nil {
		s.guard.release(ctx, key)
		return nil, err
	}

	s.logger.Info("transfer posted",
		zap.String("transfer_id", req.TransferID),
		zap.String("source_warehouse_id", req.SourceWarehouseID.String()),
		zap.String("destination_warehouse_id", req.DestinationWarehouseID.String()),
		zap.String("total_cost", result.TotalCost.String()),
	)
	return result, nil
}

// CancelTransfer draws down the destination lots the transfer created and
// restores the source stock by reversing the transfer's consumptions.
// Fails with a conflict if any destination lot was already drawn on.
func (s *TransferService) CancelTransfer(ctx context.Context, transferID string) error {
	if transferID == "" {
		return shared.NewValidationError("transferId", "is required")
	}
	key := "transfer:cancel:" + transferID
	if err := s.guard.check(ctx, key); err != nil {
		return err
	}

	err := s.engine.InTx(ctx, func(tx *appcosting.Tx) error {
		destLots, err := tx.LotsBySource(ctx, costing.SourceTransfer, transferID)
		if err != nil {
			return err
		}
		for _, lot := range destLots {
			if _, err := tx.DrawDownLot(ctx, lot.ID, costing.ConsumptionCancellation, RefTransferCancel, transferID); err != nil {
				return err
			}
		}
		_, err = tx.ReverseConsumption(ctx, RefTransfer, transferID)
		return err
	})
	if err != nil {
		s.guard.release(ctx, key)
		return err
	}

	s.logger.Info("transfer cancelled", zap.String("transfer_id", transferID))
	return nil
}
