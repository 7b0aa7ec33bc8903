// Package provider defines the exchange-rate contracts used to convert
// transaction amounts into a reporting currency.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Common errors for provider operations
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrUnsupportedPair     = errors.New("unsupported currency pair")
)

// ExchangeRate defines the interface for external exchange rate providers.
type ExchangeRate interface {
	// GetRate fetches the current exchange rate for a currency pair.
	// The result is the number of units of to per unit of from.
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)

	// Name returns the provider's name for logging and identification.
	Name() string
}

// RateSource converts amounts between currencies.
type RateSource interface {
	// Convert returns amount expressed in to. asOf is the date the
	// amount is valued at; providers may serve their latest rate.
	Convert(
		ctx context.Context,
		amount decimal.Decimal,
		from, to string,
		asOf time.Time,
	) (decimal.Decimal, error)
}

// PairKey is the cache key of a currency pair.
func PairKey(from, to string) string {
	return "exchange_rate:" + from + "-" + to
}
