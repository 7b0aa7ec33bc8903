package transaction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirasaad/ebanking/pkg/currency"
	domain "github.com/amirasaad/ebanking/pkg/domain/transaction"
	"github.com/amirasaad/ebanking/pkg/eventbus"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ProducerConfig configures a Producer.
type ProducerConfig struct {
	Topic          string
	PublishTimeout time.Duration
}

// SubmitRequest carries the fields a customer submits. ID is set only
// when resubmitting after an ambiguous delivery failure.
type SubmitRequest struct {
	ID          string
	Amount      decimal.Decimal
	Currency    string
	AccountIBAN string
	Description string
	ValueDate   string
}

// Receipt confirms that the log accepted a transaction.
type Receipt struct {
	TransactionID string
	CustomerID    string
	Status        string
	Ack           eventbus.Ack
}

// Producer validates transactions and publishes them to the log keyed by
// transaction id.
type Producer struct {
	log     eventbus.Publisher
	topic   string
	timeout time.Duration
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewProducer creates a Producer. Zero config values fall back to defaults.
func NewProducer(
	log eventbus.Publisher,
	cfg ProducerConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *Producer {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	return &Producer{
		log:     log,
		topic:   cfg.Topic,
		timeout: cfg.PublishTimeout,
		metrics: metrics,
		logger:  logger.With("component", "producer", "topic", cfg.Topic),
		now:     time.Now,
	}
}

type publishResult struct {
	ack eventbus.Ack
	err error
}

// Publish sends rec to the log and waits for the broker acknowledgement.
// Validation failures wrap transaction.ErrInvalidTransaction and nothing is
// published. Any failure after validation, including the publish timeout,
// wraps ErrDelivery. Publish does not retry.
func (p *Producer) Publish(ctx context.Context, rec domain.Transaction) (eventbus.Ack, error) {
	if err := rec.Validate(); err != nil {
		return eventbus.Ack{}, err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return eventbus.Ack{}, fmt.Errorf("%w: encode: %w", ErrDelivery, err)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "transaction.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction.id", rec.ID),
		attribute.String("messaging.destination", p.topic),
	)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	log := p.logger.With("transaction_id", rec.ID, "customer_id", rec.CustomerID)

	// The backend may ignore ctx, so the bound is enforced here.
	done := make(chan publishResult, 1)
	go func() {
		ack, err := p.log.Publish(ctx, p.topic, []byte(rec.ID), payload)
		done <- publishResult{ack: ack, err: err}
	}()

	var res publishResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	p.metrics.RecordPublished(ctx, p.topic, res.err)

	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, "publish failed")
		log.Error("Failed to publish transaction", "error", res.err, "timeout", p.timeout)
		return eventbus.Ack{}, fmt.Errorf("%w: %w", ErrDelivery, res.err)
	}
	log.Info("Transaction published",
		"partition", res.ack.Partition,
		"offset", res.ack.Offset,
		"message_id", res.ack.ID,
	)
	return res.ack, nil
}

// Submit builds a transaction for customerID from req and publishes it.
func (p *Producer) Submit(
	ctx context.Context,
	customerID string,
	req SubmitRequest,
) (*Receipt, error) {
	valueDate, err := domain.ParseValueDate(req.ValueDate, p.now())
	if err != nil {
		return nil, err
	}
	code := req.Currency
	if strings.TrimSpace(code) == "" {
		code = currency.DefaultTransaction
	}

	var rec *domain.Transaction
	if req.ID != "" {
		rec, err = domain.NewWithID(req.ID, customerID, req.Amount, code, req.AccountIBAN, valueDate, req.Description)
	} else {
		rec, err = domain.New(customerID, req.Amount, code, req.AccountIBAN, valueDate, req.Description)
	}
	if err != nil {
		return nil, err
	}

	ack, err := p.Publish(ctx, *rec)
	if err != nil {
		return nil, err
	}
	return &Receipt{
		TransactionID: rec.ID,
		CustomerID:    rec.CustomerID,
		Status:        "success",
		Ack:           ack,
	}, nil
}

// SeedTestTransactions publishes count generated transactions for
// customerID. Odd records are GBP credits of 100*i and even records are
// CHF debits of 100*i. It stops at the first failure and returns what was
// published so far.
func (p *Producer) SeedTestTransactions(
	ctx context.Context,
	customerID string,
	count int,
) ([]Receipt, error) {
	receipts := make([]Receipt, 0, count)
	for i := 1; i <= count; i++ {
		amount := decimal.NewFromInt(int64(100 * i))
		code := currency.GBP
		if i%2 == 0 {
			amount = amount.Neg()
			code = currency.CHF
		}
		receipt, err := p.Submit(ctx, customerID, SubmitRequest{
			Amount:      amount,
			Currency:    code,
			AccountIBAN: fmt.Sprintf("CH93-0000-0000-0000-0000-%d", i),
			Description: fmt.Sprintf("Kafka test transaction %d", i),
		})
		if err != nil {
			return receipts, fmt.Errorf("test transaction %d: %w", i, err)
		}
		receipts = append(receipts, *receipt)
	}
	return receipts, nil
}
