package currency

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// ExchangeRate is the conversion rate from a currency to the base currency
// recorded for one calendar date.
type ExchangeRate struct {
	shared.BaseEntity
	Currency string
	RateDate time.Time
	Rate     decimal.Decimal
}

// NewExchangeRate creates an exchange rate record
func NewExchangeRate(currencyCode string, rateDate time.Time, rate decimal.Decimal) (*ExchangeRate, error) {
	if currencyCode == "" {
		return nil, shared.NewValidationError("currency", "is required")
	}
	if !rate.IsPositive() {
		return nil, shared.NewValidationError("rate", "must be greater than zero")
	}
	return &ExchangeRate{
		BaseEntity: shared.NewBaseEntity(),
		Currency:   strings.ToUpper(currencyCode),
		RateDate:   DateOnly(rateDate),
		Rate:       rate,
	}, nil
}

// DateOnly truncates a timestamp to its UTC calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RateProvider looks up the rate to the base currency recorded for a
// calendar date. A missing rate is a NotFound error: rates are never
// averaged, carried forward or estimated, and callers must fail the
// enclosing business operation instead.
type RateProvider interface {
	Rate(ctx context.Context, currencyCode string, date time.Time) (decimal.Decimal, error)
}

// ExchangeRateRepository defines the interface for exchange rate reads.
// The ledger only consumes rates; managing them is out of scope.
type ExchangeRateRepository interface {
	// FindByCurrencyAndDate finds the exact rate recorded for a calendar date
	FindByCurrencyAndDate(ctx context.Context, currencyCode string, date time.Time) (*ExchangeRate, error)
}
