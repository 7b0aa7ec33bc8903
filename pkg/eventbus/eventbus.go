// Package eventbus defines the durable, partitioned log the ingestion
// pipeline publishes to and consumes from. Backends live in infra/eventbus.
package eventbus

import (
	"context"
	"errors"
	"hash/fnv"
	"time"
)

// ErrClosed is returned by operations on a closed publisher or subscriber.
var ErrClosed = errors.New("eventbus: closed")

// Message is a record delivered to a subscriber.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	// ID is the backend native message id when offsets are not integers
	// (a Redis stream entry id for example).
	ID    string
	Key   []byte
	Value []byte
	Time  time.Time
}

// Ack is the broker acknowledgement of a durable append.
type Ack struct {
	Topic     string
	Partition int
	Offset    int64
	ID        string
}

// Publisher appends records to a topic. Publish returns only after the
// broker acknowledged the append, or with an error.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) (Ack, error)
	Close() error
}

// Subscriber reads records for one member of a consumer group. Commit must
// be called exactly once per fetched message. Uncommitted messages are
// redelivered to the group once the member goes away.
type Subscriber interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msg Message) error
	Close() error
}

// Log is a publisher that can also hand out group subscribers.
type Log interface {
	Publisher
	Subscribe(topic, group string) (Subscriber, error)
}

// PartitionFor maps a key to a partition. The same key always lands on the
// same partition for a fixed partition count.
func PartitionFor(key []byte, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(partitions))
}

// DeadLetterTopic names the topic failed records are parked on.
func DeadLetterTopic(topic string) string {
	return topic + ".dlq"
}
