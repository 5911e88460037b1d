package documents

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	appcosting "github.com/stockledger/backend/internal/application/costing"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/currency"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// PurchaseService posts and cancels purchase receipts. A posting creates
// one lot per receipt line; a cancellation unwinds those lots, which only
// succeeds while none of them has been consumed.
type PurchaseService struct {
	engine *appcosting.Engine
	rates  currency.RateProvider
	guard  idempotencyGuard
	logger *zap.Logger
}

// NewPurchaseService creates a PurchaseService. The idempotency store may
// be nil to disable duplicate detection.
func NewPurchaseService(engine *appcosting.Engine, rates currency.RateProvider, store shared.IdempotencyStore, logger *zap.Logger) *PurchaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurchaseService{
		engine: engine,
		rates:  rates,
		guard:  newIdempotencyGuard(store),
		logger: logger,
	}
}

// SetIdempotencyConfig overrides the guard's TTL and enablement
func (s *PurchaseService) SetIdempotencyConfig(cfg shared.IdempotencyConfig) {
	s.guard.setConfig(cfg)
}

// PostReceipt creates the receipt's lots atomically. Foreign currency
// lines without an explicit exchange rate use the registered rate for the
// entry date; a missing rate fails the whole posting, it is never
// estimated.
func (s *PurchaseService) PostReceipt(ctx context.Context, req PostReceiptRequest) (*PostReceiptResult, error) {
	if req.ReceiptID == "" {
		return nil, shared.NewValidationError("receiptId", "is required")
	}
	if len(req.Lines) == 0 {
		return nil, shared.NewValidationError("lines", "at least one line is required")
	}
	key := "purchase:post:" + req.ReceiptID
	if err := s.guard.check(ctx, key); err != nil {
		return nil, err
	}

	entryDate := req.EntryDate
	if entryDate.IsZero() {
		entryDate = time.Now().UTC()
	}

	rates := make([]decimal.Decimal, len(req.Lines))
	for i, line := range req.Lines {
		rate, err := s.resolveRate(ctx, line.Currency, line.ExchangeRate, entryDate)
		if err != nil {
			s.guard.release(ctx, key)
			return nil, err
		}
		rates[i] = rate
	}

	result := &PostReceiptResult{TotalValue: decimal.Zero}
	err := s.engine.InTx(ctx, func(tx *appcosting.Tx) error {
		for i, line := range req.Lines {
			lot, err := tx.CreateLot(ctx, appcosting.CreateLotInput{
				ProductID:        line.ProductID,
				WarehouseID:      line.WarehouseID,
				Quantity:         line.Quantity,
				OriginalCurrency: s.lineCurrency(line.Currency),
				OriginalUnitCost: line.UnitCost,
				ExchangeRate:     rates[i],
				SourceType:       costing.SourcePurchase,
				SourceID:         req.ReceiptID,
				SourceLine:       i + 1,
				EntryDate:        entryDate,
			})
			if err != nil {
				return err
			}
			result.Lots = append(result.Lots, *lot)
			result.TotalValue = result.TotalValue.Add(lot.RemainingValue())
		}
		return nil
	})
	if err != nil {
		s.guard.release(ctx, key)
		return nil, err
	}

	s.logger.Info("purchase receipt posted",
		zap.String("receipt_id", req.ReceiptID),
		zap.Int("lines", len(req.Lines)),
		zap.String("total_value", result.TotalValue.String()),
	)
	return result, nil
}

// CancelReceipt unwinds every lot the receipt created. Fails with a
// conflict if any of them has been consumed since.
func (s *PurchaseService) CancelReceipt(ctx context.Context, receiptID string) error {
	if receiptID == "" {
		return shared.NewValidationError("receiptId", "is required")
	}
	key := "purchase:cancel:" + receiptID
	if err := s.guard.check(ctx, key); err != nil {
		return err
	}

	err := s.engine.InTx(ctx, func(tx *appcosting.Tx) error {
		return tx.ReverseEntriesBySource(ctx, costing.SourcePurchase, receiptID)
	})
	if err != nil {
		s.guard.release(ctx, key)
		return err
	}

	s.logger.Info("purchase receipt cancelled", zap.String("receipt_id", receiptID))
	return nil
}

func (s *PurchaseService) lineCurrency(code string) string {
	if code == "" {
		return s.engine.BaseCurrency()
	}
	return strings.ToUpper(code)
}

func (s *PurchaseService) resolveRate(ctx context.Context, code string, explicit decimal.Decimal, entryDate time.Time) (decimal.Decimal, error) {
	currencyCode := s.lineCurrency(code)
	if currencyCode == s.engine.BaseCurrency() {
		return decimal.NewFromInt(1), nil
	}
	if explicit.IsPositive() {
		return explicit, nil
	}
	return s.rates.Rate(ctx, currencyCode, entryDate)
}
