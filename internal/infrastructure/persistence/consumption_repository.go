package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormConsumptionRepository implements costing.ConsumptionRepository
// using GORM. The ledger is append-only; there is deliberately no update
// or delete here.
type GormConsumptionRepository struct {
	db *gorm.DB
}

// NewGormConsumptionRepository creates a new GormConsumptionRepository
func NewGormConsumptionRepository(db *gorm.DB) *GormConsumptionRepository {
	return &GormConsumptionRepository{db: db}
}

// Create appends a consumption record and populates its sequence
func (r *GormConsumptionRepository) Create(ctx context.Context, c *costing.Consumption) error {
	var maxSeq int64
	err := r.db.WithContext(ctx).
		Model(&models.ConsumptionModel{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return fmt.Errorf("failed to allocate consumption sequence: %w", err)
	}
	c.Seq = maxSeq + 1

	model := models.ConsumptionModelFromDomain(c)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByLot returns a lot's consumptions in append order
func (r *GormConsumptionRepository) FindByLot(ctx context.Context, lotID uuid.UUID) ([]costing.Consumption, error) {
	var consumptionModels []models.ConsumptionModel
	err := r.db.WithContext(ctx).
		Where("lot_id = ?", lotID).
		Order("seq ASC").
		Find(&consumptionModels).Error
	if err != nil {
		return nil, err
	}
	return toDomainConsumptions(consumptionModels), nil
}

// FindByReference returns the consumptions recorded for a document, in append order
func (r *GormConsumptionRepository) FindByReference(ctx context.Context, referenceType, referenceID string) ([]costing.Consumption, error) {
	var consumptionModels []models.ConsumptionModel
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		Order("seq ASC").
		Find(&consumptionModels).Error
	if err != nil {
		return nil, err
	}
	return toDomainConsumptions(consumptionModels), nil
}

// CountByLot counts the consumptions recorded against a lot
func (r *GormConsumptionRepository) CountByLot(ctx context.Context, lotID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ConsumptionModel{}).
		Where("lot_id = ?", lotID).
		Count(&count).Error
	return count, err
}

func toDomainConsumptions(consumptionModels []models.ConsumptionModel) []costing.Consumption {
	consumptions := make([]costing.Consumption, len(consumptionModels))
	for i := range consumptionModels {
		consumptions[i] = *consumptionModels[i].ToDomain()
	}
	return consumptions
}

var _ costing.ConsumptionRepository = (*GormConsumptionRepository)(nil)
