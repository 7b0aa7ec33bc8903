package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirasaad/ebanking/infra/initializer"
	"github.com/amirasaad/ebanking/pkg/app"
	"github.com/amirasaad/ebanking/pkg/config"
	"github.com/amirasaad/ebanking/webapi"
	log "github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
)

const shutdownTimeout = 10 * time.Second

// @title E-Banking Transactions API
// @version 1.0.0
// @description Transaction ingestion and monthly statements
// @host localhost:3000
// @BasePath /
//
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description "Enter your Bearer token in the format: `Bearer {token}`"
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializer.InitializeDependencies(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			deps.Logger.Error("Failed to close dependencies", "error", err)
		}
	}()

	a, err := app.New(deps, cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	deps.Logger.Info("Starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
		"broker_driver", cfg.Broker.Driver,
		"workers", cfg.Broker.Workers,
		"dlq_replay_interval", cfg.Broker.DLQReplayInterval,
	)
	return serve(ctx, a, webapi.SetupApp(a), addr, deps.Logger)
}

// serve runs the consumer workers and the HTTP server until ctx is done or
// either of them fails, then stops both. The HTTP server stops first so no
// submission is accepted while the workers drain.
func serve(ctx context.Context, a *app.App, fiberApp *fiber.App, addr string, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := make(chan error, 1)
	go func() { workers <- a.Run(ctx) }()

	listen := make(chan error, 1)
	go func() { listen <- fiberApp.Listen(addr) }()

	var err error
	workersDone := false
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err = <-listen:
		err = fmt.Errorf("http server: %w", err)
	case err = <-workers:
		workersDone = true
		if err != nil {
			err = fmt.Errorf("consumer: %w", err)
		} else {
			err = errors.New("consumer stopped unexpectedly")
		}
	}

	if shutdownErr := fiberApp.ShutdownWithTimeout(shutdownTimeout); shutdownErr != nil {
		logger.Error("Failed to shut down HTTP server", "error", shutdownErr)
	}
	cancel()
	if workersDone {
		return err
	}
	select {
	case werr := <-workers:
		if werr != nil && err == nil {
			err = werr
		}
	case <-time.After(shutdownTimeout):
		logger.Warn("Consumer workers did not stop in time")
	}
	return err
}
