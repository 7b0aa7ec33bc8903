package cache

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RateCache defines the interface for caching exchange rates.
type RateCache interface {
	// Get returns the cached rate. ok is false on a miss or expiry.
	Get(ctx context.Context, key string) (rate decimal.Decimal, ok bool, err error)
	Set(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error
}
