package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/ebanking/pkg/eventbus"
)

// replayIdleWait is how long ReplayOnce waits for the next dead letter
// before it considers the topic drained.
const replayIdleWait = 250 * time.Millisecond

// DeadLetterReplayer republishes dead letters to the topic they came from.
// Replaying is safe because persistence is an idempotent insert.
type DeadLetterReplayer struct {
	log     eventbus.Log
	topic   string
	group   string
	metrics *Metrics
	logger  *slog.Logger

	mu  sync.Mutex
	sub eventbus.Subscriber
}

// NewDeadLetterReplayer creates a replayer draining the dead-letter topic
// of topic.
func NewDeadLetterReplayer(
	log eventbus.Log,
	topic string,
	metrics *Metrics,
	logger *slog.Logger,
) *DeadLetterReplayer {
	if topic == "" {
		topic = DefaultTopic
	}
	dlq := eventbus.DeadLetterTopic(topic)
	return &DeadLetterReplayer{
		log:     log,
		topic:   dlq,
		group:   ReplayerGroup(topic),
		metrics: metrics,
		logger:  logger.With("component", "dlq-replayer", "topic", dlq),
	}
}

// ReplayerGroup is the consumer group the replayer reads the dead-letter
// topic of topic with.
func ReplayerGroup(topic string) string {
	return eventbus.DeadLetterTopic(topic) + "-replayer"
}

func (r *DeadLetterReplayer) subscriber() (eventbus.Subscriber, error) {
	if r.sub != nil {
		return r.sub, nil
	}
	sub, err := r.log.Subscribe(r.topic, r.group)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", r.topic, err)
	}
	r.sub = sub
	return sub, nil
}

// ReplayOnce handles up to limit dead letters and returns how many were
// sent back. Retryable dead letters are republished and then committed.
// Permanent ones are committed without replay so they cannot cycle back
// through the consumer. It returns early once no dead letter arrives for a
// short while.
func (r *DeadLetterReplayer) ReplayOnce(ctx context.Context, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, err := r.subscriber()
	if err != nil {
		return 0, err
	}

	replayed := 0
	for handled := 0; handled < limit; handled++ {
		fetchCtx, cancel := context.WithTimeout(ctx, replayIdleWait)
		msg, err := sub.Fetch(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return replayed, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return replayed, nil
			}
			return replayed, err
		}

		dl, err := eventbus.DecodeDeadLetter(msg.Value)
		if err != nil || dl.Topic == "" {
			r.logger.Error("Dropping unreadable dead letter", "offset", msg.Offset, "error", err)
			if err := sub.Commit(ctx, msg); err != nil {
				return replayed, err
			}
			continue
		}

		log := r.logger.With("transaction_id", dl.ID, "origin_topic", dl.Topic, "origin_offset", dl.Offset)
		if !dl.Retryable {
			if err := sub.Commit(ctx, msg); err != nil {
				return replayed, err
			}
			r.metrics.RecordParked(ctx, dl.Topic)
			log.Warn("Dead letter parked, not retryable", "reason", dl.Reason)
			continue
		}
		if _, err := r.log.Publish(ctx, dl.Topic, dl.Key, dl.Payload); err != nil {
			log.Error("Failed to replay dead letter", "error", err)
			return replayed, err
		}
		if err := sub.Commit(ctx, msg); err != nil {
			return replayed, err
		}
		r.metrics.RecordReplayed(ctx, dl.Topic)
		log.Info("Dead letter replayed", "reason", dl.Reason)
		replayed++
	}
	return replayed, nil
}

// Start replays batches of up to batch dead letters every interval until
// ctx is cancelled.
func (r *DeadLetterReplayer) Start(ctx context.Context, interval time.Duration, batch int) {
	r.logger.Info("Dead letter replayer started", "interval", interval, "batch", batch)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Dead letter replayer stopped")
			return
		case <-ticker.C:
			n, err := r.ReplayOnce(ctx, batch)
			if err != nil && ctx.Err() == nil {
				r.logger.Error("Replay batch failed", "replayed", n, "error", err)
				continue
			}
			if n > 0 {
				r.logger.Info("Replay batch done", "replayed", n)
			}
		}
	}
}

// Close releases the dead-letter subscription.
func (r *DeadLetterReplayer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		return nil
	}
	err := r.sub.Close()
	r.sub = nil
	return err
}
