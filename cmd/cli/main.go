package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/amirasaad/ebanking/infra/initializer"
	"github.com/amirasaad/ebanking/pkg/config"
	"github.com/amirasaad/ebanking/pkg/eventbus"
	authsvc "github.com/amirasaad/ebanking/pkg/service/auth"
	txsvc "github.com/amirasaad/ebanking/pkg/service/transaction"
	"github.com/fatih/color"
)

const usage = `Usage: cli <command> [arguments]
Commands:
  seed <customer_id> <count>   publish count test transactions (1-100)
  token <customer_id>          print a bearer token`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
		}
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "Error:", err) //nolint:errcheck
		os.Exit(1)
	}
}

// openLog connects to the configured log backend. Tests replace it.
var openLog = func(cfg *config.App) (eventbus.Log, error) {
	return initializer.NewLog(cfg, initializer.SetupLogger(cfg.Log))
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 2 {
		return errUsage
	}
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	switch args[0] {
	case "token":
		return printToken(cfg, args[1], out)
	case "seed":
		if len(args) < 3 {
			return errUsage
		}
		count, err := strconv.Atoi(args[2])
		if err != nil || count < 1 || count > 100 {
			return fmt.Errorf("%w: count must be between 1 and 100", errUsage)
		}
		return seed(ctx, cfg, args[1], count, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func printToken(cfg *config.App, customerID string, out io.Writer) error {
	tokens := authsvc.NewTokenService(cfg.Auth.Jwt, initializer.SetupLogger(cfg.Log))
	token, err := tokens.Generate(customerID)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token) //nolint:errcheck
	return nil
}

func seed(ctx context.Context, cfg *config.App, customerID string, count int, out io.Writer) error {
	log, err := openLog(cfg)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer log.Close() //nolint:errcheck

	producer := txsvc.NewProducer(log, txsvc.ProducerConfig{
		Topic:          cfg.Broker.Topic,
		PublishTimeout: cfg.Broker.PublishTimeout,
	}, nil, initializer.SetupLogger(cfg.Log))

	receipts, err := producer.SeedTestTransactions(ctx, customerID, count)
	ok := color.New(color.FgGreen)
	for _, r := range receipts {
		ok.Fprintf(out, "✔ %s partition=%d offset=%d\n", r.TransactionID, r.Ack.Partition, r.Ack.Offset) //nolint:errcheck
	}
	if err != nil {
		return err
	}
	color.New(color.FgCyan, color.Bold).Fprintf(out, "Sent %d transactions for %s\n", len(receipts), customerID) //nolint:errcheck
	return nil
}
