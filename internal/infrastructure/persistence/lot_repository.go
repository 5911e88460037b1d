package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLotRepository implements costing.LotRepository using GORM
type GormLotRepository struct {
	db *gorm.DB
}

// NewGormLotRepository creates a new GormLotRepository
func NewGormLotRepository(db *gorm.DB) *GormLotRepository {
	return &GormLotRepository{db: db}
}

// forUpdate adds a row lock clause. SQLite has no FOR UPDATE; its write
// transactions already lock the whole database, so the clause is skipped
// there to keep in-memory tests runnable.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// FindByID finds a lot by its ID
func (r *GormLotRepository) FindByID(ctx context.Context, id uuid.UUID) (*costing.Lot, error) {
	var model models.LotModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("lot", id.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a lot by its globally unique code
func (r *GormLotRepository) FindByCode(ctx context.Context, code string) (*costing.Lot, error) {
	var model models.LotModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("lot", code)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a lot by ID with a row lock
func (r *GormLotRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*costing.Lot, error) {
	var model models.LotModel
	if err := forUpdate(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("lot", id.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveForUpdate returns a pair's active lots in FIFO order with row
// locks held. Entry date ascending, insertion sequence as tie-break.
func (r *GormLotRepository) FindActiveForUpdate(ctx context.Context, warehouseID, productID uuid.UUID) ([]costing.Lot, error) {
	var lotModels []models.LotModel
	err := forUpdate(r.db.WithContext(ctx)).
		Where("warehouse_id = ? AND product_id = ? AND status = ?", warehouseID, productID, string(costing.LotStatusActive)).
		Order("entry_date ASC, seq ASC").
		Find(&lotModels).Error
	if err != nil {
		return nil, err
	}
	return toDomainLots(lotModels), nil
}

// FindBySource finds all lots created by a source document
func (r *GormLotRepository) FindBySource(ctx context.Context, sourceType costing.SourceType, sourceID string) ([]costing.Lot, error) {
	var lotModels []models.LotModel
	err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", string(sourceType), sourceID).
		Order("seq ASC").
		Find(&lotModels).Error
	if err != nil {
		return nil, err
	}
	return toDomainLots(lotModels), nil
}

// CountBySourceID counts the lots carrying a source document ID across
// all source types
func (r *GormLotRepository) CountBySourceID(ctx context.Context, sourceID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("source_id = ?", sourceID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FindActiveByWarehouse lists a warehouse's active lots in FIFO order
func (r *GormLotRepository) FindActiveByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]costing.Lot, error) {
	var lotModels []models.LotModel
	err := r.db.WithContext(ctx).
		Where("warehouse_id = ? AND status = ?", warehouseID, string(costing.LotStatusActive)).
		Order("entry_date ASC, seq ASC").
		Find(&lotModels).Error
	if err != nil {
		return nil, err
	}
	return toDomainLots(lotModels), nil
}

// FindLatestByProduct returns the most recently created lot for a product
func (r *GormLotRepository) FindLatestByProduct(ctx context.Context, productID uuid.UUID) (*costing.Lot, error) {
	var model models.LotModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("seq DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("lot", productID.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SumActiveQuantity sums remaining quantity over a pair's active lots
func (r *GormLotRepository) SumActiveQuantity(ctx context.Context, warehouseID, productID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Select("SUM(current_quantity)").
		Where("warehouse_id = ? AND product_id = ? AND status = ?", warehouseID, productID, string(costing.LotStatusActive)).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// Create inserts a new lot and populates its insertion sequence. The
// sequence is assigned from the current maximum; unlike a database
// serial it stays portable across PostgreSQL and the SQLite test setup.
func (r *GormLotRepository) Create(ctx context.Context, lot *costing.Lot) error {
	var maxSeq int64
	err := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return fmt.Errorf("failed to allocate lot sequence: %w", err)
	}
	lot.Seq = maxSeq + 1

	model := models.LotModelFromDomain(lot)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	return nil
}

// Save persists quantity, status and warehouse changes to an existing lot
func (r *GormLotRepository) Save(ctx context.Context, lot *costing.Lot) error {
	model := models.LotModelFromDomain(lot)
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("id = ?", lot.ID).
		Updates(map[string]interface{}{
			"current_quantity": model.CurrentQuantity,
			"status":           model.Status,
			"warehouse_id":     model.WarehouseID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("lot", lot.ID.String())
	}
	return nil
}

func toDomainLots(lotModels []models.LotModel) []costing.Lot {
	lots := make([]costing.Lot, len(lotModels))
	for i := range lotModels {
		lots[i] = *lotModels[i].ToDomain()
	}
	return lots
}

var _ costing.LotRepository = (*GormLotRepository)(nil)
