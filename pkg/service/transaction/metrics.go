package transaction

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the pipeline counters. A nil *Metrics records nothing.
type Metrics struct {
	Published          metric.Int64Counter
	PublishFailed      metric.Int64Counter
	Persisted          metric.Int64Counter
	Duplicate          metric.Int64Counter
	PersistFailed      metric.Int64Counter
	DeadLettered       metric.Int64Counter
	Replayed           metric.Int64Counter
	Parked             metric.Int64Counter
	ConversionFailures metric.Int64Counter
}

// NewMetrics registers the counters on the global meter provider.
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.Published, "transactions_published_total", "Transactions acknowledged by the log"},
		{&m.PublishFailed, "transactions_publish_failed_total", "Publishes that failed or timed out"},
		{&m.Persisted, "transactions_persisted_total", "Transactions inserted into the store"},
		{&m.Duplicate, "transactions_duplicate_total", "Redeliveries dropped by the idempotent upsert"},
		{&m.PersistFailed, "transactions_persist_failed_total", "Deliveries that could not be persisted"},
		{&m.DeadLettered, "transactions_dead_lettered_total", "Deliveries moved to the dead-letter topic"},
		{&m.Replayed, "transactions_replayed_total", "Dead letters republished to the main topic"},
		{&m.Parked, "transactions_dead_letter_parked_total", "Dead letters left unreplayed after a permanent failure"},
		{&m.ConversionFailures, "conversion_failures_total", "Records left out of totals after a failed conversion"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}
	return m, nil
}

func (m *Metrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if m == nil || c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPublished records a publish result.
func (m *Metrics) RecordPublished(ctx context.Context, topic string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.add(ctx, m.PublishFailed, attribute.String("topic", topic))
		return
	}
	m.add(ctx, m.Published, attribute.String("topic", topic))
}

// RecordOutcome records the result of handling one delivery.
func (m *Metrics) RecordOutcome(ctx context.Context, topic string, outcome Outcome) {
	if m == nil {
		return
	}
	attr := attribute.String("topic", topic)
	switch outcome {
	case Persisted:
		m.add(ctx, m.Persisted, attr)
	case Duplicate:
		m.add(ctx, m.Duplicate, attr)
	case PersistFailed:
		m.add(ctx, m.PersistFailed, attr)
	}
}

// RecordDeadLettered records a delivery moved to the dead-letter topic.
func (m *Metrics) RecordDeadLettered(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.add(ctx, m.DeadLettered, attribute.String("topic", topic))
}

// RecordReplayed records a dead letter sent back to its topic.
func (m *Metrics) RecordReplayed(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.add(ctx, m.Replayed, attribute.String("topic", topic))
}

// RecordParked records a dead letter committed without replay.
func (m *Metrics) RecordParked(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.add(ctx, m.Parked, attribute.String("topic", topic))
}

// RecordConversionFailure records a record left out of the totals.
func (m *Metrics) RecordConversionFailure(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.add(ctx, m.ConversionFailures,
		attribute.String("from_currency", from),
		attribute.String("to_currency", to),
	)
}
