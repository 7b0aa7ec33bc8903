package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/amirasaad/ebanking/pkg/domain/transaction"
	"github.com/amirasaad/ebanking/pkg/eventbus"
	repo "github.com/amirasaad/ebanking/pkg/repository/transaction"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// Outcome is the result of handling one delivery.
type Outcome int

const (
	// Persisted means the record was inserted.
	Persisted Outcome = iota + 1
	// Duplicate means a record with the same id already existed.
	Duplicate
	// PersistFailed covers undecodable payloads and store errors.
	PersistFailed
)

func (o Outcome) String() string {
	switch o {
	case Persisted:
		return "persisted"
	case Duplicate:
		return "duplicate"
	case PersistFailed:
		return "persist_failed"
	default:
		return "unknown"
	}
}

const (
	fetchRetryDelay = 500 * time.Millisecond
	commitTimeout   = 5 * time.Second
)

// ConsumerConfig configures the persisting workers.
type ConsumerConfig struct {
	Topic   string
	GroupID string
	Workers int
	// DeadLetter enables publishing failed deliveries to <topic>.dlq.
	DeadLetter bool
}

// Consumer reads transactions from the log and persists them with an
// idempotent insert. Every delivery is committed after the persist attempt,
// whatever its outcome.
type Consumer struct {
	log     eventbus.Log
	store   repo.Repository
	cfg     ConsumerConfig
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewConsumer creates a Consumer. Zero config values fall back to defaults.
func NewConsumer(
	log eventbus.Log,
	store repo.Repository,
	cfg ConsumerConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *Consumer {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultGroupID
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Consumer{
		log:     log,
		store:   store,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With("component", "consumer", "topic", cfg.Topic, "group", cfg.GroupID),
		now:     time.Now,
	}
}

// HandleMessage decodes msg and stores it unless already present. It
// never retries and never acknowledges.
func (c *Consumer) HandleMessage(ctx context.Context, msg eventbus.Message) Outcome {
	outcome, _ := c.handle(ctx, msg)
	return outcome
}

func (c *Consumer) handle(ctx context.Context, msg eventbus.Message) (Outcome, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "transaction.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.source", msg.Topic),
		attribute.Int("messaging.partition", msg.Partition),
		attribute.Int64("messaging.offset", msg.Offset),
	)

	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)

	var rec domain.Transaction
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		err = fmt.Errorf("%w: decode: %w", eventbus.ErrPermanent, err)
		log.Error("Undecodable transaction payload", "error", err)
		span.SetStatus(codes.Error, "decode failed")
		return PersistFailed, err
	}
	log = log.With("transaction_id", rec.ID, "customer_id", rec.CustomerID)
	if err := rec.Validate(); err != nil {
		log.Error("Invalid transaction payload", "error", err)
		span.SetStatus(codes.Error, "invalid payload")
		return PersistFailed, fmt.Errorf("%w: %w", eventbus.ErrPermanent, err)
	}

	created, err := c.store.UpsertIfAbsent(ctx, rec)
	if err != nil {
		log.Error("Failed to persist transaction", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return PersistFailed, fmt.Errorf("persist: %w", err)
	}
	if !created {
		log.Info("Duplicate transaction ignored")
		return Duplicate, nil
	}
	log.Info("Transaction persisted")
	return Persisted, nil
}

// process handles msg, dead-letters it on failure and commits it.
func (c *Consumer) process(ctx context.Context, sub eventbus.Subscriber, msg eventbus.Message) Outcome {
	outcome, reason := c.handle(ctx, msg)
	c.metrics.RecordOutcome(ctx, msg.Topic, outcome)

	if outcome == PersistFailed && c.cfg.DeadLetter {
		c.deadLetter(ctx, msg, reason)
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	if err := sub.Commit(commitCtx, msg); err != nil {
		c.logger.Error("Failed to commit delivery",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
	return outcome
}

func (c *Consumer) deadLetter(ctx context.Context, msg eventbus.Message, reason error) {
	topic := eventbus.DeadLetterTopic(msg.Topic)
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "dlq", topic)

	payload, err := eventbus.NewDeadLetter(msg, reason, c.now()).Encode()
	if err != nil {
		log.Error("Failed to encode dead letter", "error", err)
		return
	}
	if _, err := c.log.Publish(ctx, topic, msg.Key, payload); err != nil {
		log.Error("Failed to publish dead letter", "error", err)
		return
	}
	c.metrics.RecordDeadLettered(ctx, msg.Topic)
	log.Warn("Delivery moved to dead-letter topic", "reason", reason)
}

// Run starts the configured number of workers and blocks until ctx is
// cancelled or a worker cannot subscribe.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Starting consumer workers", "workers", c.cfg.Workers)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			return c.work(ctx, worker)
		})
	}
	err := g.Wait()
	c.logger.Info("Consumer workers stopped")
	return err
}

func (c *Consumer) work(ctx context.Context, worker int) error {
	log := c.logger.With("worker", worker)
	sub, err := c.log.Subscribe(c.cfg.Topic, c.cfg.GroupID)
	if err != nil {
		return fmt.Errorf("worker %d: subscribe: %w", worker, err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			log.Warn("Failed to close subscriber", "error", err)
		}
	}()

	for {
		msg, err := sub.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, eventbus.ErrClosed) {
				return nil
			}
			log.Error("Fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchRetryDelay):
			}
			continue
		}
		c.process(ctx, sub, msg)
	}
}
