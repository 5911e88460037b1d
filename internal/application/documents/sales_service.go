package documents

import (
	"context"

	"github.com/shopspring/decimal"
	appcosting "github.com/stockledger/backend/internal/application/costing"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SalesService posts and cancels sales shipments. A posting consumes
// stock FIFO per line and returns the resulting cost of goods sold; a
// cancellation recreates the consumed stock as new lots carrying the
// original cost basis.
type SalesService struct {
	engine *appcosting.Engine
	guard  idempotencyGuard
	logger *zap.Logger
}

// NewSalesService creates a SalesService. The idempotency store may be
// nil to disable duplicate detection.
func NewSalesService(engine *appcosting.Engine, store shared.IdempotencyStore, logger *zap.Logger) *SalesService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SalesService{
		engine: engine,
		guard:  newIdempotencyGuard(store),
		logger: logger,
	}
}

// SetIdempotencyConfig overrides the guard's TTL and enablement
func (s *SalesService) SetIdempotencyConfig(cfg shared.IdempotencyConfig) {
	s.guard.setConfig(cfg)
}

// PostShipment consumes stock for every line in one atomic transaction.
// If any line cannot be covered the whole shipment fails and nothing is
// consumed.
func (s *SalesService) PostShipment(ctx context.Context, req PostShipmentRequest) (*PostShipmentResult, error) {
	if req.ShipmentID == "" {
		return nil, shared.NewValidationError("shipmentId", "is required")
	}
	if len(req.Lines) == 0 {
		return nil, shared.NewValidationError("lines", "at least one line is required")
	}
	key := "sales:post:" + req.ShipmentID
	if err := s.guard.check(ctx, key); err != nil {
		return nil, err
	}

	result := &PostShipmentResult{TotalCost: decimal.Zero}
	err := s.engine.InTx(ctx, func(tx *appcosting.Tx) error {
		for i, line := range req.Lines {
			consumed, err := tx.ConsumeLots(ctx, appcosting.ConsumeInput{
				WarehouseID:   line.WarehouseID,
				ProductID:     line.ProductID,
				Quantity:      line.Quantity,
				Type:          costing.ConsumptionSale,
				ReferenceType: RefSalesShipment,
				ReferenceID:   req.ShipmentID,
			})
			if err != nil {
				return err
			}
			result.Lines = append(result.Lines, ShipmentLineCost{
				Line:         i + 1,
				Consumptions: consumed.Consumptions,
				TotalCost:    consumed.TotalCost,
			})
			result.TotalCost = result.TotalCost.Add(consumed.TotalCost)
		}
		return nil
	})
	if err != nil {
		s.guard.release(ctx, key)
		return nil, err
	}

	s.logger.Info("sales shipment posted",
		zap.String("shipment_id", req.ShipmentID),
		zap.Int("lines", len(req.Lines)),
		zap.String("total_cost", result.TotalCost.String()),
	)
	return result, nil
}

// CancelShipment reverses the shipment's consumptions, recreating the
// stock as new lots with the original entry dates and cost basis.
func (s *SalesService) CancelShipment(ctx context.Context, shipmentID string) error {
	if shipmentID == "" {
		return shared.NewValidationError("shipmentId", "is required")
	}
	key := "sales:cancel:" + shipmentID
	if err := s.guard.check(ctx, key); err != nil {
		return err
	}

	err := s.engine.InTx(ctx, func(tx *appcosting.Tx) error {
		_, err := tx.ReverseConsumption(ctx, RefSalesShipment, shipmentID)
		return err
	})
	if err != nil {
		s.guard.release(ctx, key)
		return err
	}

	s.logger.Info("sales shipment cancelled", zap.String("shipment_id", shipmentID))
	return nil
}
