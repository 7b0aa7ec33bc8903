package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/amirasaad/ebanking/pkg/cache"
	"github.com/amirasaad/ebanking/pkg/provider"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Converter implements provider.RateSource on top of an ExchangeRate
// provider with a rate cache in front of it.
type Converter struct {
	rates    provider.ExchangeRate
	cache    cache.RateCache
	ttl      time.Duration
	logger   *slog.Logger
	inflight singleflight.Group
}

var _ provider.RateSource = (*Converter)(nil)

// NewConverter creates a Converter. cache may be nil.
func NewConverter(
	rates provider.ExchangeRate,
	rateCache cache.RateCache,
	ttl time.Duration,
	logger *slog.Logger,
) *Converter {
	return &Converter{
		rates:  rates,
		cache:  rateCache,
		ttl:    ttl,
		logger: logger.With("component", "converter", "provider", rates.Name()),
	}
}

// Convert implements provider.RateSource. asOf is recorded in logs only;
// the provider serves its latest rate.
func (c *Converter) Convert(
	ctx context.Context,
	amount decimal.Decimal,
	from, to string,
	asOf time.Time,
) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate, err := c.Rate(ctx, from, to)
	if err != nil {
		c.logger.Debug("Conversion failed",
			"from", from, "to", to, "as_of", asOf.Format(time.DateOnly), "error", err)
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// Rate returns the from->to rate, consulting the cache first.
func (c *Converter) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	key := provider.PairKey(from, to)
	if c.cache != nil {
		rate, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("Error getting from cache", "key", key, "error", err)
		} else if ok {
			return rate, nil
		}
	}

	v, err, _ := c.inflight.Do(key, func() (any, error) {
		rate, err := c.rates.GetRate(ctx, from, to)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if err := c.cache.Set(ctx, key, rate, c.ttl); err != nil {
				c.logger.Warn("Error setting cache", "key", key, "error", err)
			}
		}
		return rate, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}
