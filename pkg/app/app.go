// Package app assembles the services of the ingestion pipeline from its
// infrastructure dependencies and runs the background workers.
package app

import (
	"context"
	"log/slog"

	"github.com/amirasaad/ebanking/pkg/config"
	"github.com/amirasaad/ebanking/pkg/eventbus"
	"github.com/amirasaad/ebanking/pkg/provider"
	repo "github.com/amirasaad/ebanking/pkg/repository/transaction"
	"github.com/amirasaad/ebanking/pkg/service/auth"
	txsvc "github.com/amirasaad/ebanking/pkg/service/transaction"
	"golang.org/x/sync/errgroup"
)

const meterName = "github.com/amirasaad/ebanking"

// Deps contains the infrastructure the services are built on.
type Deps struct {
	Log    eventbus.Log
	Store  repo.Repository
	Rates  provider.RateSource
	Logger *slog.Logger
	// Closers run in reverse order on Close.
	Closers []func() error
}

// Close releases every dependency that registered a closer.
func (d *Deps) Close() error {
	var first error
	for i := len(d.Closers) - 1; i >= 0; i-- {
		if err := d.Closers[i](); err != nil && first == nil {
			first = err
		}
	}
	d.Closers = nil
	return first
}

type App struct {
	Deps         *Deps
	Config       *config.App
	Metrics      *txsvc.Metrics
	TokenService *auth.TokenService
	Producer     *txsvc.Producer
	Consumer     *txsvc.Consumer
	Query        *txsvc.QueryService
	Replayer     *txsvc.DeadLetterReplayer
}

func New(deps *Deps, cfg *config.App) (*App, error) {
	metrics, err := txsvc.NewMetrics(meterName)
	if err != nil {
		return nil, err
	}
	broker := cfg.Broker
	app := &App{
		Deps:         deps,
		Config:       cfg,
		Metrics:      metrics,
		TokenService: auth.NewTokenService(cfg.Auth.Jwt, deps.Logger),
		Producer: txsvc.NewProducer(deps.Log, txsvc.ProducerConfig{
			Topic:          broker.Topic,
			PublishTimeout: broker.PublishTimeout,
		}, metrics, deps.Logger),
		Consumer: txsvc.NewConsumer(deps.Log, deps.Store, txsvc.ConsumerConfig{
			Topic:      broker.Topic,
			GroupID:    broker.GroupID,
			Workers:    broker.Workers,
			DeadLetter: broker.DLQEnabled,
		}, metrics, deps.Logger),
		Query: txsvc.NewQueryService(deps.Store, deps.Rates, txsvc.QueryConfig{
			MinYear: cfg.Query.MinYear,
			MaxYear: cfg.Query.MaxYear,
		}, metrics, deps.Logger),
	}
	if broker.DLQEnabled && broker.DLQReplayInterval > 0 {
		app.Replayer = txsvc.NewDeadLetterReplayer(deps.Log, broker.Topic, metrics, deps.Logger)
	}
	return app, nil
}

// Run starts the consumer workers and, when configured, the dead-letter
// replayer. It blocks until ctx is cancelled or the workers fail.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Consumer.Run(ctx)
	})
	if a.Replayer != nil {
		g.Go(func() error {
			defer a.Replayer.Close() //nolint:errcheck
			a.Replayer.Start(ctx, a.Config.Broker.DLQReplayInterval, a.Config.Broker.DLQBatchSize)
			return nil
		})
	}
	return g.Wait()
}
