// Package initializer builds the application dependencies from config:
// logger, telemetry, the transaction store, the durable log and the rate
// source.
package initializer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amirasaad/ebanking/infra"
	infra_cache "github.com/amirasaad/ebanking/infra/cache"
	infra_eventbus "github.com/amirasaad/ebanking/infra/eventbus"
	infra_provider "github.com/amirasaad/ebanking/infra/provider"
	"github.com/amirasaad/ebanking/infra/repository/memory"
	infra_transaction "github.com/amirasaad/ebanking/infra/repository/transaction"
	"github.com/amirasaad/ebanking/pkg/app"
	"github.com/amirasaad/ebanking/pkg/cache"
	"github.com/amirasaad/ebanking/pkg/config"
	"github.com/amirasaad/ebanking/pkg/eventbus"
	"github.com/amirasaad/ebanking/pkg/provider"
	repo "github.com/amirasaad/ebanking/pkg/repository/transaction"
	txsvc "github.com/amirasaad/ebanking/pkg/service/transaction"
)

// InitializeDependencies initializes all the application dependencies.
// On failure everything opened so far is closed again.
func InitializeDependencies(ctx context.Context, cfg *config.App) (deps *app.Deps, err error) {
	logger := SetupLogger(cfg.Log)
	deps = &app.Deps{Logger: logger}
	defer func() {
		if err != nil {
			_ = deps.Close()
			deps = nil
		}
	}()

	shutdown, err := InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return deps, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	deps.Closers = append(deps.Closers, func() error { return shutdown(context.Background()) })

	deps.Store, err = initStore(cfg, deps, logger)
	if err != nil {
		return deps, fmt.Errorf("failed to initialize store: %w", err)
	}

	deps.Log, err = NewLog(cfg, logger)
	if err != nil {
		return deps, fmt.Errorf("failed to initialize log: %w", err)
	}
	deps.Closers = append(deps.Closers, deps.Log.Close)

	deps.Rates, err = initRates(cfg, deps, logger)
	if err != nil {
		return deps, fmt.Errorf("failed to initialize rates: %w", err)
	}
	return deps, nil
}

func initStore(cfg *config.App, deps *app.Deps, logger *slog.Logger) (repo.Repository, error) {
	driver := "postgres"
	if cfg.DB != nil && cfg.DB.Driver != "" {
		driver = strings.ToLower(cfg.DB.Driver)
	}
	switch driver {
	case "memory":
		logger.Warn("Using in-memory transaction store, records are lost on restart")
		return memory.NewTransactionStore(), nil
	case "postgres":
		db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		deps.Closers = append(deps.Closers, sqlDB.Close)
		if err := infra_transaction.Migrate(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("Transaction store ready", "driver", driver)
		return infra_transaction.New(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewLog selects the log backend named by BROKER_DRIVER. A backend that
// cannot be reached is an error: falling back to memory would lose the
// durability the producer acknowledges.
func NewLog(cfg *config.App, logger *slog.Logger) (eventbus.Log, error) {
	b := cfg.Broker
	if b == nil {
		return nil, fmt.Errorf("broker config is required")
	}
	switch strings.ToLower(b.Driver) {
	case "kafka", "":
		if strings.TrimSpace(b.Brokers) == "" {
			return nil, fmt.Errorf("BROKER_BROKERS is required for kafka")
		}
		return infra_eventbus.NewWithKafka(b.Brokers, logger, &infra_eventbus.KafkaConfig{
			Partitions:        b.Partitions,
			ReplicationFactor: b.ReplicationFactor,
			RequiredAcks:      b.RequiredAcks,
			SASLUsername:      b.SASLUsername,
			SASLPassword:      b.SASLPassword,
			TLSEnabled:        b.TLSEnabled,
			TLSCAFile:         b.TLSCAFile,
			TLSCertFile:       b.TLSCertFile,
			TLSKeyFile:        b.TLSKeyFile,
			TLSSkipVerify:     b.TLSSkipVerify,
		})
	case "redis":
		if cfg.Redis == nil || cfg.Redis.URL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for redis")
		}
		return infra_eventbus.NewWithRedis(cfg.Redis.URL, logger, &infra_eventbus.RedisConfig{
			Block:     cfg.Redis.Block,
			ClaimIdle: cfg.Redis.ClaimIdle,
			MaxLen:    cfg.Redis.MaxLen,
		})
	case "rabbitmq":
		if cfg.RabbitMQ == nil || cfg.RabbitMQ.URL == "" {
			return nil, fmt.Errorf("RABBITMQ_URL is required for rabbitmq")
		}
		return infra_eventbus.NewWithRabbitMQ(cfg.RabbitMQ.URL, logger, &infra_eventbus.RabbitMQConfig{
			Exchange: cfg.RabbitMQ.Exchange,
			Groups:   rabbitGroups(b),
			Prefetch: cfg.RabbitMQ.Prefetch,
		})
	case "memory":
		logger.Warn("Using in-memory log, published records are lost on restart")
		return infra_eventbus.NewWithMemory(b.Partitions, logger), nil
	default:
		return nil, fmt.Errorf("unsupported broker driver %q", b.Driver)
	}
}

// rabbitGroups lists the queues bound on first publish per topic: the
// persisting group on the transaction topic and, when dead letters are
// enabled, the replayer group on the dead-letter topic. That queue parks
// dead letters even when no replayer runs.
func rabbitGroups(b *config.Broker) map[string][]string {
	topic, group := b.Topic, b.GroupID
	if topic == "" {
		topic = txsvc.DefaultTopic
	}
	if group == "" {
		group = txsvc.DefaultGroupID
	}
	groups := map[string][]string{topic: {group}}
	if b.DLQEnabled {
		groups[eventbus.DeadLetterTopic(topic)] = []string{txsvc.ReplayerGroup(topic)}
	}
	return groups
}

// initRates builds the converter: exchangerate-api.com when an API key is
// configured, the static table otherwise. Rates are cached in redis when a
// cache URL is set and in process memory otherwise.
func initRates(cfg *config.App, deps *app.Deps, logger *slog.Logger) (provider.RateSource, error) {
	var rates provider.ExchangeRate = infra_provider.DefaultStaticRates()
	if p := cfg.ExchangeRateAPIProviders; p != nil && p.ExchangeRateApi != nil && p.ExchangeRateApi.ApiKey != "" {
		rates = infra_provider.NewExchangeRateAPI(infra_provider.ExchangeRateAPIConfig{
			APIKey:  p.ExchangeRateApi.ApiKey,
			BaseURL: p.ExchangeRateApi.ApiUrl,
			Timeout: p.ExchangeRateApi.HTTPTimeout,
		}, logger)
	} else {
		logger.Warn("No exchange rate API key configured, using static rates")
	}

	cacheCfg := cfg.ExchangeRateCache
	if cacheCfg == nil {
		cacheCfg = &config.ExchangeRateCache{}
	}
	var rateCache cache.RateCache = infra_cache.NewMemoryCache()
	if cacheCfg.Url != "" {
		redisCache, err := infra_cache.NewRedisCache(cacheCfg.Url, cacheCfg.Prefix, logger)
		if err != nil {
			return nil, err
		}
		deps.Closers = append(deps.Closers, redisCache.Close)
		rateCache = redisCache
	}

	logger.Info("Rate source ready", "provider", rates.Name(), "cache_ttl", cacheCfg.TTL)
	return infra_provider.NewConverter(rates, rateCache, cacheCfg.TTL, logger), nil
}
