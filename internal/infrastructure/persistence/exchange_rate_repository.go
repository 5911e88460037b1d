package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/currency"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormExchangeRateRepository implements currency.ExchangeRateRepository
// and currency.RateProvider using GORM.
type GormExchangeRateRepository struct {
	db *gorm.DB
}

// NewGormExchangeRateRepository creates a new GormExchangeRateRepository
func NewGormExchangeRateRepository(db *gorm.DB) *GormExchangeRateRepository {
	return &GormExchangeRateRepository{db: db}
}

// FindByCurrencyAndDate finds the exact rate recorded for a calendar date
func (r *GormExchangeRateRepository) FindByCurrencyAndDate(ctx context.Context, currencyCode string, date time.Time) (*currency.ExchangeRate, error) {
	code := strings.ToUpper(currencyCode)
	var model models.ExchangeRateModel
	err := r.db.WithContext(ctx).
		Where("currency = ? AND rate_date = ?", code, currency.DateOnly(date)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("exchange rate", code+"@"+currency.DateOnly(date).Format("2006-01-02"))
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Rate implements currency.RateProvider. A missing rate surfaces as a
// NotFound error; it is never interpolated or carried forward.
func (r *GormExchangeRateRepository) Rate(ctx context.Context, currencyCode string, date time.Time) (decimal.Decimal, error) {
	rate, err := r.FindByCurrencyAndDate(ctx, currencyCode, date)
	if err != nil {
		return decimal.Zero, err
	}
	return rate.Rate, nil
}

// Save inserts or updates the rate for a (currency, date) pair. Used by
// migrations and rate import tooling.
func (r *GormExchangeRateRepository) Save(ctx context.Context, rate *currency.ExchangeRate) error {
	model := &models.ExchangeRateModel{}
	model.FromDomain(rate)

	var existing models.ExchangeRateModel
	err := r.db.WithContext(ctx).
		Where("currency = ? AND rate_date = ?", model.Currency, model.RateDate).
		First(&existing).Error
	if err == nil {
		return r.db.WithContext(ctx).
			Model(&models.ExchangeRateModel{}).
			Where("id = ?", existing.ID).
			Update("rate", model.Rate).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

var _ currency.ExchangeRateRepository = (*GormExchangeRateRepository)(nil)
var _ currency.RateProvider = (*GormExchangeRateRepository)(nil)
