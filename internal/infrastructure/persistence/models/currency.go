package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/currency"
)

// ExchangeRateModel is the persistence model for daily exchange rates
type ExchangeRateModel struct {
	BaseModel
	Currency string          `gorm:"type:varchar(3);not null;uniqueIndex:idx_exchange_rates_currency_date,priority:1"`
	RateDate time.Time       `gorm:"type:date;not null;uniqueIndex:idx_exchange_rates_currency_date,priority:2"`
	Rate     decimal.Decimal `gorm:"type:decimal(18,6);not null"`
}

// TableName returns the table name for GORM
func (ExchangeRateModel) TableName() string {
	return "exchange_rates"
}

// ToDomain converts the persistence model to a domain ExchangeRate entity
func (m *ExchangeRateModel) ToDomain() *currency.ExchangeRate {
	return &currency.ExchangeRate{
		BaseEntity: m.BaseModel.ToDomain(),
		Currency:   m.Currency,
		RateDate:   m.RateDate,
		Rate:       m.Rate,
	}
}

// FromDomain populates the persistence model from a domain ExchangeRate entity
func (m *ExchangeRateModel) FromDomain(r *currency.ExchangeRate) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.Currency = r.Currency
	m.RateDate = r.RateDate
	m.Rate = r.Rate
}
