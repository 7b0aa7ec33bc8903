package provider

import (
	"context"
	"fmt"

	"github.com/amirasaad/ebanking/pkg/currency"
	"github.com/amirasaad/ebanking/pkg/provider"
	"github.com/shopspring/decimal"
)

// StaticRates serves a fixed rate table quoted against a pivot currency.
// Cross rates are derived through the pivot.
type StaticRates struct {
	pivot string
	rates map[string]decimal.Decimal
}

var _ provider.ExchangeRate = (*StaticRates)(nil)

// NewStaticRates builds a table where rates[code] is the number of code
// units per one pivot unit. The pivot itself is always 1.
func NewStaticRates(pivot string, rates map[string]decimal.Decimal) *StaticRates {
	table := make(map[string]decimal.Decimal, len(rates)+1)
	for code, r := range rates {
		table[code] = r
	}
	table[pivot] = decimal.NewFromInt(1)
	return &StaticRates{pivot: pivot, rates: table}
}

// DefaultStaticRates is a USD pivoted table for development.
func DefaultStaticRates() *StaticRates {
	return NewStaticRates(currency.USD, map[string]decimal.Decimal{
		currency.EUR: decimal.RequireFromString("0.92"),
		currency.GBP: decimal.RequireFromString("0.79"),
		currency.CHF: decimal.RequireFromString("0.88"),
		"JPY":        decimal.RequireFromString("157.20"),
	})
}

// Name implements provider.ExchangeRate.
func (s *StaticRates) Name() string {
	return "static"
}

// GetRate implements provider.ExchangeRate.
func (s *StaticRates) GetRate(_ context.Context, from, to string) (decimal.Decimal, error) {
	fromRate, ok := s.rates[from]
	if !ok || fromRate.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s->%s", provider.ErrUnsupportedPair, from, to)
	}
	toRate, ok := s.rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s->%s", provider.ErrUnsupportedPair, from, to)
	}
	return toRate.Div(fromRate), nil
}
