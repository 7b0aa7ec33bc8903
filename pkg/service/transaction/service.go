// Package transaction implements the ingestion pipeline services: the
// producer that publishes submitted transactions to the log, the consumer
// workers that persist them idempotently, the dead-letter replayer and the
// query service that pages a customer's month with converted totals.
package transaction

import (
	"errors"
	"time"
)

const (
	// DefaultTopic is the log topic transactions are published to.
	DefaultTopic = "transactions"
	// DefaultGroupID is the consumer group of the persisting workers.
	DefaultGroupID = "transaction-persister"
	// DefaultPublishTimeout bounds a single publish including the broker ack.
	DefaultPublishTimeout = 6 * time.Second

	tracerName = "github.com/amirasaad/ebanking/pkg/service/transaction"
)

var (
	// ErrDelivery is returned when the log did not acknowledge a publish
	// within the bound. The outcome is ambiguous: the record may still land.
	ErrDelivery = errors.New("failed to send transaction to log")
	// ErrInvalidQuery is returned for out of range query parameters.
	ErrInvalidQuery = errors.New("invalid query")
)
