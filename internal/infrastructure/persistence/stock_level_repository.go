package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStockLevelRepository implements costing.StockLevelRepository using GORM
type GormStockLevelRepository struct {
	db *gorm.DB
}

// NewGormStockLevelRepository creates a new GormStockLevelRepository
func NewGormStockLevelRepository(db *gorm.DB) *GormStockLevelRepository {
	return &GormStockLevelRepository{db: db}
}

// FindByWarehouseAndProduct finds the projection row for a pair
func (r *GormStockLevelRepository) FindByWarehouseAndProduct(ctx context.Context, warehouseID, productID uuid.UUID) (*costing.StockLevel, error) {
	var model models.StockLevelModel
	err := r.db.WithContext(ctx).
		Where("warehouse_id = ? AND product_id = ?", warehouseID, productID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("stock level", warehouseID.String()+"/"+productID.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByWarehouse lists all projection rows for a warehouse
func (r *GormStockLevelRepository) FindByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]costing.StockLevel, error) {
	var levelModels []models.StockLevelModel
	err := r.db.WithContext(ctx).
		Where("warehouse_id = ?", warehouseID).
		Find(&levelModels).Error
	if err != nil {
		return nil, err
	}
	levels := make([]costing.StockLevel, len(levelModels))
	for i := range levelModels {
		levels[i] = *levelModels[i].ToDomain()
	}
	return levels, nil
}

// GetOrCreateForUpdate returns the pair's projection row with a row lock
// held, inserting a zero row on the pair's first stock movement.
func (r *GormStockLevelRepository) GetOrCreateForUpdate(ctx context.Context, warehouseID, productID uuid.UUID) (*costing.StockLevel, error) {
	var model models.StockLevelModel
	err := forUpdate(r.db.WithContext(ctx)).
		Where("warehouse_id = ? AND product_id = ?", warehouseID, productID).
		First(&model).Error
	if err == nil {
		return model.ToDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	level := costing.NewStockLevel(warehouseID, productID)
	created := models.StockLevelModelFromDomain(level)
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		return nil, err
	}
	return created.ToDomain(), nil
}

// Save persists a quantity change to a projection row
func (r *GormStockLevelRepository) Save(ctx context.Context, level *costing.StockLevel) error {
	model := models.StockLevelModelFromDomain(level)
	result := r.db.WithContext(ctx).
		Model(&models.StockLevelModel{}).
		Where("id = ?", level.ID).
		Update("quantity", model.Quantity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("stock level", level.ID.String())
	}
	return nil
}

var _ costing.StockLevelRepository = (*GormStockLevelRepository)(nil)
