package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/ebanking/pkg/cache"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisCache implements RateCache using Redis. Rates are stored as
// decimal strings.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

var _ cache.RateCache = (*RedisCache)(nil)

// NewRedisCache creates a RedisCache from a redis URL.
func NewRedisCache(url, prefix string, logger *slog.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisCacheWithClient(redis.NewClient(opt), prefix, logger), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(
	client redis.UniversalClient,
	prefix string,
	logger *slog.Logger,
) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, prefix: prefix, logger: logger}
}

func (r *RedisCache) key(key string) string {
	return r.prefix + key
}

// Get implements cache.RateCache.
func (r *RedisCache) Get(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis cache miss", "key", key)
		return decimal.Zero, false, nil
	}
	if err != nil {
		r.logger.Error("Redis cache get error", "key", key, "error", err)
		return decimal.Zero, false, err
	}
	rate, err := decimal.NewFromString(val)
	if err != nil {
		r.logger.Error("Redis cache decode error", "key", key, "error", err)
		return decimal.Zero, false, err
	}
	r.logger.Debug("Redis cache hit", "key", key, "rate", rate)
	return rate, true, nil
}

// Set implements cache.RateCache.
func (r *RedisCache) Set(
	ctx context.Context,
	key string,
	rate decimal.Decimal,
	ttl time.Duration,
) error {
	if err := r.client.Set(ctx, r.key(key), rate.String(), ttl).Err(); err != nil {
		r.logger.Error("Redis cache set error", "key", key, "error", err)
		return err
	}
	r.logger.Debug("Redis cache set", "key", key, "rate", rate, "ttl", ttl)
	return nil
}

// Close releases the underlying client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
